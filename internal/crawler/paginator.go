package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/extract"
	"github.com/cristian081496/ontario-directory-scraper/internal/member"
	"github.com/cristian081496/ontario-directory-scraper/internal/metrics"
)

// PaginatorConfig controls the listing crawl.
type PaginatorConfig struct {
	BaseURL           string
	PageParam         string
	MaxPages          int
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
}

// Paginator walks the listing pages on a single browsing context until a page
// yields no cards or offers no next-page link.
type Paginator struct {
	cfg     PaginatorConfig
	listing *extract.Listing
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewPaginator builds a Paginator.
func NewPaginator(cfg PaginatorConfig, listing *extract.Listing, m *metrics.Metrics, logger *zap.Logger) *Paginator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	return &Paginator{cfg: cfg, listing: listing, metrics: m, logger: logger}
}

// PageURL returns the listing URL of page n. Page 1 is the base URL itself.
func (p *Paginator) PageURL(n int) (string, error) {
	if n <= 1 {
		return p.cfg.BaseURL, nil
	}
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(p.cfg.PageParam, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type listingSnapshot struct {
	cards []member.Card
	next  bool
}

// Crawl returns every card found, in page order, and the number of pages
// visited. A navigation failure aborts the crawl with the cards collected so
// far.
func (p *Paginator) Crawl(ctx context.Context, page browser.Page) ([]member.Card, int, error) {
	var (
		cards []member.Card
		pages int
	)
	for n := 1; ; n++ {
		if p.cfg.MaxPages > 0 && n > p.cfg.MaxPages {
			p.logger.Warn("page limit reached, stopping pagination",
				zap.Int("max_pages", p.cfg.MaxPages),
				zap.Int("count", len(cards)),
			)
			return cards, pages, nil
		}
		pageURL, err := p.PageURL(n)
		if err != nil {
			return cards, pages, err
		}
		p.logger.Info("scraping listing page", zap.Int("page", n), zap.String("url", pageURL))

		if err := p.navigate(ctx, page, pageURL); err != nil {
			return cards, pages, fmt.Errorf("navigate listing page %d: %w", n, err)
		}
		pages++

		if !page.WaitFor(ctx, p.listing.CardSelector(), p.cfg.SelectorTimeout) {
			p.logger.Debug("member cards did not appear before timeout", zap.Int("page", n))
		}
		snap, err := browser.Evaluate(ctx, page, func(doc *goquery.Document) listingSnapshot {
			return listingSnapshot{cards: p.listing.Cards(doc), next: p.listing.HasNext(doc)}
		})
		if err != nil {
			return cards, pages, fmt.Errorf("read listing page %d: %w", n, err)
		}
		p.metrics.ObserveListingPage(pageURL, len(snap.cards))

		if len(snap.cards) == 0 {
			p.logger.Info("no members on page, stopping pagination", zap.Int("page", n))
			return cards, pages, nil
		}
		cards = append(cards, snap.cards...)
		p.logger.Info("found members on page", zap.Int("page", n), zap.Int("count", len(snap.cards)))

		if !snap.next {
			p.logger.Info("no next page link, stopping pagination", zap.Int("page", n))
			return cards, pages, nil
		}
	}
}

func (p *Paginator) navigate(ctx context.Context, page browser.Page, pageURL string) error {
	if p.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.NavigationTimeout)
		defer cancel()
	}
	return page.Navigate(ctx, pageURL)
}
