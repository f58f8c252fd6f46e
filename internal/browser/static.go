package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// Static fetches pages over plain HTTP with colly. It renders no JavaScript,
// so WaitFor only reports whether the selector exists in the fetched markup.
type Static struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewStatic builds the HTTP engine.
func NewStatic(cfg Config) *Static {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	// The timeout lives on the shared HTTP client, so it is set once here.
	c.SetRequestTimeout(cfg.navTimeout())
	return &Static{cfg: cfg, baseCollector: c}
}

// NewPage returns a page with its own collector.
func (s *Static) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return &staticPage{engine: s}, nil
}

// Close is a no-op; idle connections are released with the transport.
func (s *Static) Close() error { return nil }

func (s *Static) buildCollector(snap *snapshot, fetchErr *error) *colly.Collector {
	collector := s.baseCollector.Clone()
	configureHooks(collector, snap, fetchErr)
	return collector
}

type snapshot struct {
	body     []byte
	location string
}

func configureHooks(hooks collectorHooks, snap *snapshot, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		snap.body = append([]byte(nil), r.Body...)
		snap.location = r.Request.URL.String()
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

type staticPage struct {
	engine *Static

	mu   sync.Mutex
	last *snapshot
}

// Navigate performs a GET and keeps the response body as the current document.
func (p *staticPage) Navigate(ctx context.Context, rawURL string) error {
	var (
		snap     snapshot
		fetchErr error
	)
	collector := p.engine.buildCollector(&snap, &fetchErr)
	if err := runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	p.mu.Lock()
	p.last = &snap
	p.mu.Unlock()
	return nil
}

// WaitFor reports whether selector matches the fetched markup.
func (p *staticPage) WaitFor(ctx context.Context, selector string, _ time.Duration) bool {
	doc, err := p.Document(ctx)
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

// Document parses the last response body.
func (p *staticPage) Document(_ context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	snap := p.last
	p.mu.Unlock()
	if snap == nil {
		return nil, ErrNoDocument
	}
	return newDocument(string(snap.body), snap.location)
}

func (p *staticPage) Close() error { return nil }

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
