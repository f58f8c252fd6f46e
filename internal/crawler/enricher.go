package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/extract"
	"github.com/cristian081496/ontario-directory-scraper/internal/member"
	"github.com/cristian081496/ontario-directory-scraper/internal/metrics"
)

// EnricherConfig controls profile visits.
type EnricherConfig struct {
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	MergePolicy       member.MergePolicy
}

// Enricher fills a listing record from its profile page. Every call uses its
// own page so concurrent calls never share a browsing context.
type Enricher struct {
	cfg     EnricherConfig
	browser browser.Browser
	profile *extract.Profile
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewEnricher builds an Enricher.
func NewEnricher(
	cfg EnricherConfig,
	b browser.Browser,
	profile *extract.Profile,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MergePolicy == "" {
		cfg.MergePolicy = member.MergeOverwrite
	}
	return &Enricher{cfg: cfg, browser: b, profile: profile, metrics: m, logger: logger}
}

// Enrich visits r.ProfileURL and merges the profile fields into r. Records
// without a profile URL are returned unchanged. On failure the unchanged
// record is returned with the error.
func (e *Enricher) Enrich(ctx context.Context, r member.Record) (member.Record, error) {
	if r.ProfileURL == "" {
		e.metrics.ObserveProfile(metrics.ProfileSkipped, 0)
		return r, nil
	}
	start := time.Now()
	profile, err := e.visit(ctx, r.ProfileURL)
	if err != nil {
		e.metrics.ObserveProfile(metrics.ProfileDegraded, time.Since(start))
		return r, fmt.Errorf("enrich %s: %w", r.ProfileURL, err)
	}
	e.metrics.ObserveProfile(metrics.ProfileEnriched, time.Since(start))
	return member.Merge(r, profile, e.cfg.MergePolicy), nil
}

func (e *Enricher) visit(ctx context.Context, profileURL string) (member.Profile, error) {
	page, err := e.browser.NewPage(ctx)
	if err != nil {
		return member.Profile{}, fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.logger.Debug("close profile page", zap.String("url", profileURL), zap.Error(cerr))
		}
	}()

	navCtx := ctx
	if e.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, e.cfg.NavigationTimeout)
		defer cancel()
	}
	if err := page.Navigate(navCtx, profileURL); err != nil {
		return member.Profile{}, err
	}
	if !page.WaitFor(ctx, e.profile.ContentSelector(), e.cfg.SelectorTimeout) {
		e.logger.Debug("profile content did not appear before timeout", zap.String("url", profileURL))
	}
	profile, err := browser.Evaluate(ctx, page, e.profile.Extract)
	if err != nil {
		return member.Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return profile, nil
}
