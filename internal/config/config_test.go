package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://www.ontariosignassociation.com/member-directory", cfg.Crawler.BaseURL)
	assert.Equal(t, "page", cfg.Crawler.PageParam)
	assert.Equal(t, 500, cfg.Crawler.MaxPages)
	assert.Equal(t, 5, cfg.Crawler.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Crawler.NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.Crawler.SelectorTimeout)
	assert.Equal(t, "networkidle2", cfg.Crawler.WaitUntil)
	assert.Equal(t, EngineChromedp, cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, `a[href*="/Sys/PublicProfile/"], .member-card`, cfg.Selectors.Listing.Card)
	assert.Equal(t, []string{".company", ".org"}, cfg.Selectors.Listing.Company)
	assert.Equal(t, "#idContent", cfg.Selectors.Profile.Content)
	assert.Equal(t, ".", cfg.Output.Dir)
	assert.Equal(t, "ontario_sign_association_members.csv", cfg.Output.FileName)
	assert.Equal(t, "members", cfg.Postgres.Table)
	assert.Equal(t, "exports", cfg.GCS.Prefix)
	assert.Empty(t, cfg.Archive.Dir)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, browser.WaitNetworkIdle2, cfg.BrowserOptions().WaitUntil)
	assert.Equal(t, member.MergeOverwrite, cfg.EnricherOptions().MergePolicy)
	assert.Equal(t, 500, cfg.PaginatorOptions().MaxPages)
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  base_url: https://members.example.org/directory
  concurrency: 8
  navigation_timeout: 45s
  wait_until: load
  merge_policy: fill
browser:
  engine: http
selectors:
  listing:
    card: .card
    company: [".title"]
output:
  dir: /tmp/exports
  file_name: members.csv
archive:
  dir: /var/lib/scraper/archive
pubsub:
  project_id: demo
  topic: member-runs
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://members.example.org/directory", cfg.Crawler.BaseURL)
	assert.Equal(t, 8, cfg.Crawler.Concurrency)
	assert.Equal(t, 45*time.Second, cfg.Crawler.NavigationTimeout)
	assert.Equal(t, EngineHTTP, cfg.Browser.Engine)
	assert.Equal(t, ".card", cfg.Selectors.Listing.Card)
	assert.Equal(t, []string{".title"}, cfg.Selectors.Listing.Company)
	assert.Equal(t, []string{"h3", ".name"}, cfg.Selectors.Listing.ContactName)
	assert.Equal(t, "members.csv", cfg.Output.FileName)
	assert.Equal(t, "member-runs", cfg.PubSub.Topic)
	assert.Equal(t, "/var/lib/scraper/archive", cfg.Archive.Dir)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, member.MergeFillEmpty, cfg.EnricherOptions().MergePolicy)
	assert.Equal(t, browser.WaitLoad, cfg.BrowserOptions().WaitUntil)
}

func TestLoadEnvAndFlagOverrides(t *testing.T) {
	t.Setenv("SCRAPER_CRAWLER_CONCURRENCY", "3")
	t.Setenv("SCRAPER_OUTPUT_FILE_NAME", "env.csv")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "")
	flags.Int("max-pages", 0, "")
	flags.String("engine", "", "")
	require.NoError(t, flags.Parse([]string{"--output", "flag.csv", "--max-pages", "7"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Crawler.Concurrency)
	assert.Equal(t, "flag.csv", cfg.Output.FileName)
	assert.Equal(t, 7, cfg.Crawler.MaxPages)
	assert.Equal(t, EngineChromedp, cfg.Browser.Engine)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base, err := Load("", nil)
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"relative base url":   func(c *Config) { c.Crawler.BaseURL = "/member-directory" },
		"zero concurrency":    func(c *Config) { c.Crawler.Concurrency = 0 },
		"negative max pages":  func(c *Config) { c.Crawler.MaxPages = -1 },
		"zero nav timeout":    func(c *Config) { c.Crawler.NavigationTimeout = 0 },
		"zero sel timeout":    func(c *Config) { c.Crawler.SelectorTimeout = 0 },
		"unknown wait":        func(c *Config) { c.Crawler.WaitUntil = "idle" },
		"unknown merge":       func(c *Config) { c.Crawler.MergePolicy = "union" },
		"unknown engine":      func(c *Config) { c.Browser.Engine = "firefox" },
		"empty card selector": func(c *Config) { c.Selectors.Listing.Card = "" },
		"empty file name":     func(c *Config) { c.Output.FileName = " " },
		"topic without project": func(c *Config) {
			c.PubSub.Topic = "runs"
			c.PubSub.ProjectID = ""
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
