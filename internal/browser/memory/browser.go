// Package memory contains an in-memory browser for tests. Pages are served
// from registered HTML keyed by URL.
package memory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
)

// Browser records navigations and page lifecycles for inspection.
type Browser struct {
	mu          sync.Mutex
	pages       map[string]string
	failures    map[string]error
	delay       time.Duration
	newPageErr  error
	navigations []string
	open        int
	peak        int
	closed      int
	shutdown    bool
}

// New returns an empty memory Browser.
func New() *Browser {
	return &Browser{
		pages:    make(map[string]string),
		failures: make(map[string]error),
	}
}

// SetPage registers the HTML served for rawURL.
func (b *Browser) SetPage(rawURL, html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[rawURL] = html
}

// Fail makes every navigation to rawURL return err.
func (b *Browser) Fail(rawURL string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[rawURL] = err
}

// FailNewPage makes NewPage return err.
func (b *Browser) FailNewPage(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.newPageErr = err
}

// SetDelay holds every navigation for d.
func (b *Browser) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// NewPage opens a page.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	if b.shutdown {
		return nil, fmt.Errorf("browser closed")
	}
	b.open++
	if b.open > b.peak {
		b.peak = b.open
	}
	return &page{b: b}, nil
}

// Close marks the browser closed.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdown = true
	return nil
}

// Navigations returns every URL navigated to, in call order.
func (b *Browser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.navigations))
	copy(out, b.navigations)
	return out
}

// OpenPages returns the number of pages not yet closed.
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// PeakPages returns the highest number of simultaneously open pages.
func (b *Browser) PeakPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peak
}

// ClosedPages returns how many pages were closed.
func (b *Browser) ClosedPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type page struct {
	b *Browser

	mu       sync.Mutex
	html     string
	location string
	loaded   bool
	closed   bool
}

func (p *page) Navigate(ctx context.Context, rawURL string) error {
	p.b.mu.Lock()
	p.b.navigations = append(p.b.navigations, rawURL)
	delay := p.b.delay
	failure := p.b.failures[rawURL]
	html, ok := p.b.pages[rawURL]
	p.b.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("navigate %s: %w", rawURL, ctx.Err())
		case <-timer.C:
		}
	}
	if failure != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, failure)
	}
	if !ok {
		return fmt.Errorf("navigate %s: no page registered", rawURL)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.html = html
	p.location = rawURL
	p.loaded = true
	return nil
}

func (p *page) WaitFor(ctx context.Context, selector string, _ time.Duration) bool {
	doc, err := p.Document(ctx)
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

func (p *page) Document(_ context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	html, location, loaded := p.html, p.location, p.loaded
	p.mu.Unlock()
	if !loaded {
		return nil, browser.ErrNoDocument
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if u, err := url.Parse(location); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (p *page) Close() error {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	if already {
		return nil
	}
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.open--
	p.b.closed++
	return nil
}
