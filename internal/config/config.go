// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/crawler"
	"github.com/cristian081496/ontario-directory-scraper/internal/extract"
	"github.com/cristian081496/ontario-directory-scraper/internal/member"
)

// Browser engines.
const (
	EngineChromedp = "chromedp"
	EngineHTTP     = "http"
)

// Config captures all scraper configuration knobs loaded via Viper.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	Output    OutputConfig    `mapstructure:"output"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrawlerConfig governs pagination and enrichment.
type CrawlerConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	PageParam         string        `mapstructure:"page_param"`
	MaxPages          int           `mapstructure:"max_pages"`
	Concurrency       int           `mapstructure:"concurrency"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout"`
	WaitUntil         string        `mapstructure:"wait_until"`
	MergePolicy       string        `mapstructure:"merge_policy"`
}

// BrowserConfig selects and tunes the page-rendering engine.
type BrowserConfig struct {
	Engine    string `mapstructure:"engine"`
	Headless  bool   `mapstructure:"headless"`
	UserAgent string `mapstructure:"user_agent"`
	ExecPath  string `mapstructure:"exec_path"`
}

// SelectorsConfig holds the CSS selectors of both extraction contexts.
type SelectorsConfig struct {
	Listing extract.ListingSelectors `mapstructure:"listing"`
	Profile extract.ProfileSelectors `mapstructure:"profile"`
}

// OutputConfig sets where the CSV is written.
type OutputConfig struct {
	Dir      string `mapstructure:"dir"`
	FileName string `mapstructure:"file_name"`
}

// PostgresConfig enables the member table sink when DSN is set.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// GCSConfig enables the CSV upload when Bucket is set.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// ArchiveConfig copies each run's CSV under Dir/<run id>/ when Dir is set.
type ArchiveConfig struct {
	Dir string `mapstructure:"dir"`
}

// PubSubConfig enables the run notification when Topic is set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig serves Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"base-url":    "crawler.base_url",
	"concurrency": "crawler.concurrency",
	"max-pages":   "crawler.max_pages",
	"output":      "output.file_name",
	"engine":      "browser.engine",
}

// Load builds a Config from defaults, the optional file at path, SCRAPER_*
// environment variables and the changed flags in flags, in increasing order
// of precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.base_url", "https://www.ontariosignassociation.com/member-directory")
	v.SetDefault("crawler.page_param", "page")
	v.SetDefault("crawler.max_pages", 500)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.navigation_timeout", 30*time.Second)
	v.SetDefault("crawler.selector_timeout", 15*time.Second)
	v.SetDefault("crawler.wait_until", string(browser.WaitNetworkIdle2))
	v.SetDefault("crawler.merge_policy", string(member.MergeOverwrite))
	v.SetDefault("browser.engine", EngineChromedp)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.exec_path", "")

	listing := extract.DefaultListingSelectors()
	v.SetDefault("selectors.listing.card", listing.Card)
	v.SetDefault("selectors.listing.company", listing.Company)
	v.SetDefault("selectors.listing.contact_name", listing.ContactName)
	v.SetDefault("selectors.listing.address", listing.Address)
	v.SetDefault("selectors.listing.website", listing.Website)
	v.SetDefault("selectors.listing.member_type", listing.MemberType)
	v.SetDefault("selectors.listing.next_page", listing.NextPage)

	profile := extract.DefaultProfileSelectors()
	v.SetDefault("selectors.profile.content", profile.Content)
	v.SetDefault("selectors.profile.first_name", profile.FirstName)
	v.SetDefault("selectors.profile.last_name", profile.LastName)
	v.SetDefault("selectors.profile.contact_name", profile.ContactName)
	v.SetDefault("selectors.profile.phone", profile.Phone)
	v.SetDefault("selectors.profile.website", profile.Website)
	v.SetDefault("selectors.profile.member_type", profile.MemberType)
	v.SetDefault("selectors.profile.city", profile.City)
	v.SetDefault("selectors.profile.province", profile.Province)
	v.SetDefault("selectors.profile.address", profile.Address)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.file_name", "ontario_sign_association_members.csv")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "members")
	v.SetDefault("gcs.bucket", "")
	v.SetDefault("gcs.prefix", "exports")
	v.SetDefault("archive.dir", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Crawler.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("crawler.base_url must be an absolute http(s) URL")
	}
	if c.Crawler.PageParam == "" {
		return fmt.Errorf("crawler.page_param must be set")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.NavigationTimeout <= 0 {
		return fmt.Errorf("crawler.navigation_timeout must be > 0")
	}
	if c.Crawler.SelectorTimeout <= 0 {
		return fmt.Errorf("crawler.selector_timeout must be > 0")
	}
	if _, err := browser.ParseWaitUntil(c.Crawler.WaitUntil); err != nil {
		return fmt.Errorf("crawler.wait_until: %w", err)
	}
	if _, err := member.ParseMergePolicy(c.Crawler.MergePolicy); err != nil {
		return fmt.Errorf("crawler.merge_policy: %w", err)
	}
	if c.Browser.Engine != EngineChromedp && c.Browser.Engine != EngineHTTP {
		return fmt.Errorf("browser.engine must be %q or %q", EngineChromedp, EngineHTTP)
	}
	if c.Selectors.Listing.Card == "" {
		return fmt.Errorf("selectors.listing.card must be set")
	}
	if strings.TrimSpace(c.Output.FileName) == "" {
		return fmt.Errorf("output.file_name must be set")
	}
	if c.Postgres.DSN != "" && c.Postgres.Table == "" {
		return fmt.Errorf("postgres.table must be set when postgres.dsn is set")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// BrowserOptions converts the browser settings for the engine constructors.
func (c Config) BrowserOptions() browser.Config {
	wait, _ := browser.ParseWaitUntil(c.Crawler.WaitUntil)
	return browser.Config{
		Headless:          c.Browser.Headless,
		UserAgent:         c.Browser.UserAgent,
		ExecPath:          c.Browser.ExecPath,
		WaitUntil:         wait,
		NavigationTimeout: c.Crawler.NavigationTimeout,
	}
}

// PaginatorOptions converts the crawler settings for the listing paginator.
func (c Config) PaginatorOptions() crawler.PaginatorConfig {
	return crawler.PaginatorConfig{
		BaseURL:           c.Crawler.BaseURL,
		PageParam:         c.Crawler.PageParam,
		MaxPages:          c.Crawler.MaxPages,
		NavigationTimeout: c.Crawler.NavigationTimeout,
		SelectorTimeout:   c.Crawler.SelectorTimeout,
	}
}

// EnricherOptions converts the crawler settings for the profile enricher.
func (c Config) EnricherOptions() crawler.EnricherConfig {
	policy, _ := member.ParseMergePolicy(c.Crawler.MergePolicy)
	return crawler.EnricherConfig{
		NavigationTimeout: c.Crawler.NavigationTimeout,
		SelectorTimeout:   c.Crawler.SelectorTimeout,
		MergePolicy:       policy,
	}
}
