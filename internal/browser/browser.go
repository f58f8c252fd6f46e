// Package browser models the page-rendering engine the crawler drives: open an
// isolated page, navigate it, wait for a selector and take a document snapshot
// that extraction functions run against.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoDocument is returned when a page is asked for a document before any
// navigation succeeded.
var ErrNoDocument = errors.New("no document loaded")

// Browser opens isolated pages. Every page owns its own browsing context and
// must be closed by the caller.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browsing context.
type Page interface {
	// Navigate loads rawURL and waits for the engine's load condition.
	Navigate(ctx context.Context, rawURL string) error
	// WaitFor waits up to timeout for selector to appear. It reports false on
	// timeout or absence and never fails the caller.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) bool
	// Document snapshots the current DOM. The document Url is the page location.
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// Evaluate runs a pure extraction function against a snapshot of the page.
func Evaluate[T any](ctx context.Context, page Page, fn func(*goquery.Document) T) (T, error) {
	var zero T
	doc, err := page.Document(ctx)
	if err != nil {
		return zero, fmt.Errorf("snapshot document: %w", err)
	}
	return fn(doc), nil
}

// WaitUntil names the navigation completion condition.
type WaitUntil string

// Supported load conditions.
const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle0     WaitUntil = "networkidle0"
	WaitNetworkIdle2     WaitUntil = "networkidle2"
)

// ParseWaitUntil validates a configured load condition.
func ParseWaitUntil(raw string) (WaitUntil, error) {
	switch w := WaitUntil(raw); w {
	case WaitLoad, WaitDOMContentLoaded, WaitNetworkIdle0, WaitNetworkIdle2:
		return w, nil
	case "":
		return WaitLoad, nil
	default:
		return "", fmt.Errorf("unknown wait condition %q", raw)
	}
}

// Config controls the concrete engines.
type Config struct {
	Headless          bool
	UserAgent         string
	ExecPath          string
	WaitUntil         WaitUntil
	NavigationTimeout time.Duration
}

func (c Config) navTimeout() time.Duration {
	if c.NavigationTimeout > 0 {
		return c.NavigationTimeout
	}
	return 30 * time.Second
}
