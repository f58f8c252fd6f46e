package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Chromedp drives headless Chrome. Each Page is a separate tab created from
// one shared browser process.
type Chromedp struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger
}

// NewChromedp starts Chrome and waits until the browser is reachable.
func NewChromedp(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := ParseWaitUntil(string(cfg.WaitUntil)); err != nil {
		return nil, err
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	logger.Debug("chrome started",
		zap.Bool("headless", cfg.Headless),
		zap.String("wait_until", string(cfg.WaitUntil)),
	)
	return &Chromedp{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

// Close shuts the browser down. Open pages stop working.
func (b *Chromedp) Close() error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocCancel()
	b.logger.Debug("chrome stopped")
	return nil
}

// NewPage opens a new tab.
func (b *Chromedp) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &chromePage{
		tabCtx:    tabCtx,
		cancel:    cancel,
		waitUntil: b.cfg.WaitUntil,
		timeout:   b.cfg.navTimeout(),
	}
	if err := chromedp.Run(tabCtx, p.setupAction(b.cfg.UserAgent)); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

type chromePage struct {
	tabCtx    context.Context
	cancel    context.CancelFunc
	waitUntil WaitUntil
	timeout   time.Duration
	frameID   cdp.FrameID

	mu        sync.Mutex
	navigated bool
}

func (p *chromePage) setupAction(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return fmt.Errorf("get frame tree: %w", err)
		}
		if tree != nil && tree.Frame != nil {
			p.frameID = tree.Frame.ID
		}
		return nil
	})
}

// Navigate loads rawURL, waits for the load event and then for the lifecycle
// event matching the configured condition.
func (p *chromePage) Navigate(ctx context.Context, rawURL string) error {
	runCtx, cancel := context.WithTimeout(p.tabCtx, p.timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	want := lifecycleEvent(p.waitUntil)
	events := make(chan string, 64)
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok || (p.frameID != "" && e.FrameID != p.frameID) {
			return
		}
		select {
		case events <- e.Name:
		default:
		}
	})

	if err := chromedp.Run(runCtx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	p.mu.Lock()
	p.navigated = true
	p.mu.Unlock()

	if want == "load" || want == "DOMContentLoaded" {
		return nil
	}
	for {
		select {
		case name := <-events:
			if name == want {
				return nil
			}
		case <-runCtx.Done():
			return fmt.Errorf("wait for %s on %s: %w", p.waitUntil, rawURL, runCtx.Err())
		}
	}
}

// WaitFor polls for selector until it is ready or timeout elapses.
func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	return chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery)) == nil
}

// Document snapshots the rendered DOM.
func (p *chromePage) Document(ctx context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	navigated := p.navigated
	p.mu.Unlock()
	if !navigated {
		return nil, ErrNoDocument
	}

	runCtx, cancel := context.WithTimeout(p.tabCtx, p.timeout)
	defer cancel()
	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	var html, location string
	if err := chromedp.Run(runCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("read dom: %w", err)
	}
	return newDocument(html, location)
}

// Close closes the tab.
func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

func lifecycleEvent(w WaitUntil) string {
	switch w {
	case WaitDOMContentLoaded:
		return "DOMContentLoaded"
	case WaitNetworkIdle0:
		return "networkIdle"
	case WaitNetworkIdle2:
		return "networkAlmostIdle"
	default:
		return "load"
	}
}

func newDocument(html, location string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if location != "" {
		if u, err := url.Parse(location); err == nil {
			doc.Url = u
		}
	}
	return doc, nil
}

// forwardCancel cancels a derived chromedp context when the caller's context
// ends. The returned func stops the watcher.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
