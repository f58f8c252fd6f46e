package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cristian081496/ontario-directory-scraper/internal/logging"
)

// newRootCmd creates the root command. Running it performs one scrape.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "ontario-directory-scraper",
		Short: "Scrapes a paginated member directory into a CSV file.",
		Long: `ontario-directory-scraper walks every listing page of a member directory,
visits each member's profile page to fill in contact details, and writes the
deduplicated members to a CSV file. Postgres, GCS and Pub/Sub outputs are
enabled through configuration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, cfgFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("base-url", "", "URL of the first listing page")
	flags.Int("concurrency", 0, "profile pages processed in parallel")
	flags.String("output", "", "CSV file name")
	flags.String("engine", "", "page engine: chromedp or http")
	flags.Int("max-pages", 0, "upper bound on listing pages")
	return cmd
}

// Execute is the main entry point.
func Execute() {
	// Bootstrap logger until the configured one replaces it.
	logger, err := logging.New(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Fatal("Scraping failed", zap.Error(err))
	}
}
