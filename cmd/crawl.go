package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/config"
	"github.com/cristian081496/ontario-directory-scraper/internal/crawler"
	"github.com/cristian081496/ontario-directory-scraper/internal/export"
	"github.com/cristian081496/ontario-directory-scraper/internal/extract"
	"github.com/cristian081496/ontario-directory-scraper/internal/logging"
	"github.com/cristian081496/ontario-directory-scraper/internal/metrics"
	"github.com/cristian081496/ontario-directory-scraper/internal/publisher/pubsub"
	"github.com/cristian081496/ontario-directory-scraper/internal/storage/gcs"
	"github.com/cristian081496/ontario-directory-scraper/internal/storage/local"
	"github.com/cristian081496/ontario-directory-scraper/internal/storage/postgres"
)

// newBrowser builds the configured page engine. Tests replace it.
var newBrowser = func(cfg config.Config, logger *zap.Logger) (browser.Browser, error) {
	if cfg.Browser.Engine == config.EngineHTTP {
		return browser.NewStatic(cfg.BrowserOptions()), nil
	}
	b, err := browser.NewChromedp(cfg.BrowserOptions(), logger)
	if err != nil {
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return b, nil
}

func runScrape(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(srvCtx, cfg.Metrics.Addr, metrics.NewRouter(m, reg), logger.Named("metrics")); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	b, err := newBrowser(cfg, logging.Component(logger, "browser"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Warn("Failed to close browser", zap.Error(cerr))
		}
	}()

	sinkOpts, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	engine := buildEngine(cfg, b, m, logger, sinkOpts...)
	res, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, crawler.ErrNoValidRecords) {
			return err
		}
		return fmt.Errorf("run scraper: %w", err)
	}

	out := cmd.OutOrStdout()
	if res.Path == "" {
		fmt.Fprintln(out, "Scraping completed but no data was saved")
		return nil
	}
	fmt.Fprintf(out, "Scraping completed successfully! Data saved to %s\n", res.Path)
	logger.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.Int("pages", res.Pages),
		zap.Int("exported", res.Exported),
		zap.Int("degraded", res.Degraded),
		zap.Int("sink_errors", res.SinkErrors),
	)
	return nil
}

func buildEngine(
	cfg config.Config,
	b browser.Browser,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts ...crawler.Option,
) *crawler.Engine {
	paginator := crawler.NewPaginator(
		cfg.PaginatorOptions(),
		extract.NewListing(cfg.Selectors.Listing),
		m,
		logging.Component(logger, "paginator"),
	)
	enricher := crawler.NewEnricher(
		cfg.EnricherOptions(),
		b,
		extract.NewProfile(cfg.Selectors.Profile),
		m,
		logging.Component(logger, "enricher"),
	)
	exporter := export.NewCSVExporter(cfg.Output.Dir, cfg.Output.FileName, logging.Component(logger, "export"))

	opts = append([]crawler.Option{
		crawler.WithMetrics(m),
		crawler.WithLogger(logging.Component(logger, "engine")),
	}, opts...)
	return crawler.NewEngine(b, paginator, enricher, exporter, cfg.Crawler.Concurrency, opts...)
}

// buildSinks opens the result sinks enabled in cfg. The returned func closes them.
func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]crawler.Option, func(), error) {
	var (
		opts    []crawler.Option
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Postgres.DSN != "" {
		store, err := postgres.NewMemberStore(ctx, postgres.MemberStoreConfig{
			DSN:   cfg.Postgres.DSN,
			Table: cfg.Postgres.Table,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("init postgres sink: %w", err)
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("init postgres sink: %w", err)
		}
		opts = append(opts, crawler.WithMemberStore(store))
	}

	if cfg.GCS.Bucket != "" {
		blobs, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.GCS.Bucket})
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("init gcs sink: %w", err)
		}
		closers = append(closers, func() {
			if err := blobs.Close(); err != nil {
				logger.Warn("Failed to close gcs client", zap.Error(err))
			}
		})
		opts = append(opts, crawler.WithBlobStore(blobs, cfg.GCS.Prefix))
	}

	if cfg.Archive.Dir != "" {
		archive, err := local.New(local.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("init archive sink: %w", err)
		}
		opts = append(opts, crawler.WithArchive(archive))
	}

	if cfg.PubSub.Topic != "" {
		pub, err := pubsub.Open(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("init pubsub sink: %w", err)
		}
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("Failed to close pubsub client", zap.Error(err))
			}
		})
		opts = append(opts, crawler.WithPublisher(pub, cfg.PubSub.Topic))
	}

	return opts, closeAll, nil
}
