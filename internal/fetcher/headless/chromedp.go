// Package headless renders register pages in headless Chrome. It serves the
// directory when the register's listings need JavaScript; report PDFs are
// always fetched over plain HTTP.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/data-to-insight/inspection-crawler/internal/metrics"
)

const defaultNavigationTimeout = 45 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// Settle is how long to wait after the body is ready before reading the DOM.
	Settle time.Duration
}

// Waiter blocks until a request to url may be sent.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// StatusError reports a non-2xx document response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("render %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Fetcher implements directory.Fetcher using chromedp.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	waiter      Waiter
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher. Chrome is started lazily on the
// first Fetch. w may be nil.
func NewChromedp(cfg Config, w Waiter) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		waiter:      w,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close stops the browser.
func (f *Fetcher) Close() error {
	f.allocCancel()
	return nil
}

// Fetch navigates to url and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.acquire(ctx); err != nil {
		return nil, err
	}
	defer f.release()
	if f.waiter != nil {
		if err := f.waiter.Wait(ctx, url); err != nil {
			return nil, err
		}
	}

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	// Cancel the browser tab with the caller.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()

	meta := &responseMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	html, err := f.render(taskCtx, url)
	if err != nil {
		metrics.ObserveFetch(url, metrics.OutcomeFailed, 0)
		return nil, err
	}
	if code := meta.statusOr(http.StatusOK); code < 200 || code > 299 {
		metrics.ObserveFetch(url, metrics.OutcomeStatus, 0)
		return nil, &StatusError{URL: url, Code: code}
	}
	metrics.ObserveFetch(url, metrics.OutcomeOK, len(html))
	return []byte(html), nil
}

func (f *Fetcher) render(ctx context.Context, url string) (string, error) {
	var html string
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.cfg.Settle > 0 {
		actions = append(actions, chromedp.Sleep(f.cfg.Settle))
	}
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run %s: %w", url, err)
	}
	return html, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// responseMeta records the status of the last top-level document response.
type responseMeta struct {
	mu     sync.Mutex
	status int
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.mu.Unlock()
}

func (m *responseMeta) statusOr(def int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == 0 {
		return def
	}
	return m.status
}
