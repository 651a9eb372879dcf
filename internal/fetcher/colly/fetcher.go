// Package collyfetcher implements the crawler's resilient fetcher on top of
// gocolly. Transient network failures are retried a bounded number of times
// with a fixed pause; HTTP status failures are returned immediately.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultTimeout    = 10 * time.Second
)

// NoRetryDelay disables the pause between attempts.
const NoRetryDelay time.Duration = -1

var (
	// ErrRetriesExhausted wraps the last transient error once every attempt failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrUnexpected wraps failures that are neither transient nor HTTP status errors.
	ErrUnexpected = errors.New("unexpected fetch failure")
	// ErrBodyTooLarge reports a body longer than Config.MaxBodyBytes.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// StatusError reports a non-2xx response. It is never retried.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
	// MaxBodyBytes rejects longer bodies. Zero means unlimited.
	MaxBodyBytes int
}

// Waiter blocks until a request to url may be sent.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter makes every attempt wait on w first.
func WithLimiter(w Waiter) Option {
	return func(f *Fetcher) { f.limiter = w }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

// Fetcher retrieves URLs with bounded retries.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	limiter       Waiter
	pauser        pauseController
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	switch {
	case cfg.RetryDelay == 0:
		cfg.RetryDelay = DefaultRetryDelay
	case cfg.RetryDelay < 0:
		cfg.RetryDelay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	f := &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		pauser:    &timerPauseController{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	// Retries revisit the same URL. The register is a fixed public listing,
	// so robots.txt is not consulted.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit(), colly.IgnoreRobotsTxt())
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	// colly truncates at MaxBodySize without an error; read one byte past the
	// limit so an oversized body is detectable. Zero lifts colly's own cap.
	c.MaxBodySize = 0
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes + 1
	}
	c.WithTransport(f.transport)
	c.SetRequestTimeout(cfg.Timeout)
	f.baseCollector = c
	return f
}

// Fetch returns the body of url. Every error means "no content"; errors.Is
// and errors.As distinguish the cause.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, url); err != nil {
				return nil, fmt.Errorf("fetch %s: %w", url, err)
			}
		}

		body, err := f.attempt(ctx, url)
		if err == nil {
			metrics.ObserveFetch(url, metrics.OutcomeOK, len(body))
			return body, nil
		}

		var statusErr *StatusError
		switch {
		case errors.As(err, &statusErr):
			metrics.ObserveFetch(url, metrics.OutcomeStatus, 0)
			return nil, statusErr
		case ctx.Err() != nil:
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		case IsTransient(err):
			metrics.ObserveFetch(url, metrics.OutcomeTransient, 0)
			lastErr = err
			f.logger.Warn("transient fetch failure",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", f.cfg.Retries),
				zap.Error(err),
			)
			if attempt < f.cfg.Retries {
				f.pauser.Pause(ctx, f.cfg.RetryDelay)
			}
		default:
			metrics.ObserveFetch(url, metrics.OutcomeFailed, 0)
			return nil, fmt.Errorf("%w: %s: %w", ErrUnexpected, url, err)
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, url, f.cfg.Retries, lastErr)
}

// IsTransient reports whether err is a network condition worth retrying:
// timeouts, refused or reset connections, and other socket errors.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, &body, &fetchErr)
	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/pdf;q=0.9,*/*;q=0.8")
	})

	hooks.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			*fetchErr = &StatusError{URL: r.Request.URL.String(), Code: r.StatusCode}
			return
		}
		if f.cfg.MaxBodyBytes > 0 && len(r.Body) > f.cfg.MaxBodyBytes {
			*fetchErr = fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.cfg.MaxBodyBytes)
			return
		}
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 && r.Request != nil && r.Request.URL != nil {
			*fetchErr = &StatusError{URL: r.Request.URL.String(), Code: r.StatusCode}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// pauseController abstracts how the fetcher waits between attempts.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
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
