package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/metrics"
)

// ErrFirstPage is returned when the first directory page cannot be listed.
var ErrFirstPage = errors.New("first directory page unavailable")

// Deps are the collaborators an Engine drives.
type Deps struct {
	Directory Directory
	Fetcher   Fetcher
	Decoder   Decoder
	// Store is required only when Config.PersistDocuments is set.
	Store BlobStore
	// Hasher, when set, fingerprints each stored document in the log.
	Hasher Hasher
	Sinks  []RecordSink
	IDs    IDGenerator
	Clock  Clock
	Logger *zap.Logger
}

// Engine runs crawls. It is safe to call Status while Crawl runs.
type Engine struct {
	cfg     Config
	terms   []string
	dir     Directory
	fetcher Fetcher
	decoder Decoder
	store   BlobStore
	hasher  Hasher
	sinks   []RecordSink
	ids     IDGenerator
	clock   Clock
	logger  *zap.Logger

	mu     sync.RWMutex
	status *RunStatus
}

// NewEngine validates cfg and builds an Engine.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Directory == nil {
		return nil, errors.New("crawler: directory is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	if deps.Decoder == nil {
		return nil, errors.New("crawler: decoder is required")
	}
	if cfg.PersistDocuments && deps.Store == nil {
		return nil, errors.New("crawler: persist_documents requires a blob store")
	}
	if deps.IDs == nil {
		return nil, errors.New("crawler: id generator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = utcClock{}
	}
	return &Engine{
		cfg:     cfg,
		terms:   normalizeTerms(cfg.SelectionTerms),
		dir:     deps.Directory,
		fetcher: deps.Fetcher,
		decoder: deps.Decoder,
		store:   deps.Store,
		hasher:  deps.Hasher,
		sinks:   deps.Sinks,
		ids:     deps.IDs,
		clock:   clock,
		logger:  logger.Named("crawler"),
	}, nil
}

// Crawl walks directory pages from opts.Start and returns one record per
// provider with a matching publication, in upstream order. Only a failure to
// list the first page is fatal. When ctx is canceled the records assembled
// so far are returned together with the context error.
func (e *Engine) Crawl(ctx context.Context, opts Options) (Result, error) {
	runID := opts.RunID
	if runID == "" {
		var err error
		if runID, err = e.ids.NewID(); err != nil {
			return Result{}, fmt.Errorf("new run id: %w", err)
		}
	}
	page := opts.Start
	if page.Rows <= 0 {
		page.Rows = e.cfg.PageSize
	}
	if page.Start < 0 {
		page.Start = 0
	}

	res := Result{RunID: runID}
	e.setStatus(&RunStatus{RunID: runID, State: RunRunning, StartedAt: e.clock.Now(), Page: page})
	logger := e.logger.With(zap.String("run_id", runID))
	logger.Info("crawl started",
		zap.Int("start", page.Start),
		zap.Int("rows", page.Rows),
		zap.Int("max_results", opts.MaxResults),
		zap.Bool("capture_text", opts.CaptureText),
		zap.Bool("paginate", e.cfg.Paginate),
	)

	seen := make(map[string]struct{})
	for first := true; ; first = false {
		if opts.MaxResults > 0 && page.Start >= opts.MaxResults {
			break
		}
		if ctx.Err() != nil {
			break
		}

		providers, err := e.dir.ListProviders(ctx, page)
		if err != nil {
			metrics.ObserveDirectoryPage("error")
			if first && ctx.Err() == nil {
				err = fmt.Errorf("%w: %w", ErrFirstPage, err)
				e.finish(&res, err)
				return res, err
			}
			logger.Warn("directory page failed; stopping pagination", zap.Int("start", page.Start), zap.Error(err))
			break
		}
		res.Counters.Pages++
		if len(providers) == 0 {
			metrics.ObserveDirectoryPage("empty")
			logger.Info("directory page empty; stopping", zap.Int("start", page.Start))
			break
		}
		metrics.ObserveDirectoryPage("ok")

		fresh := make([]inspection.ProviderEntry, 0, len(providers))
		for _, p := range providers {
			if _, dup := seen[p.Identifier]; dup {
				res.Counters.Duplicates++
				continue
			}
			seen[p.Identifier] = struct{}{}
			fresh = append(fresh, p)
		}
		res.Counters.Providers += len(fresh)
		logger.Info("directory page listed",
			zap.Int("start", page.Start),
			zap.Int("providers", len(providers)),
			zap.Int("new", len(fresh)),
		)

		for _, r := range e.processPage(ctx, fresh, opts) {
			switch r.outcome {
			case metrics.ProviderSkipped:
				res.Counters.Skipped++
				continue
			case metrics.ProviderUnmatched:
				res.Counters.Unmatched++
				continue
			}
			if r.docFailed {
				res.Counters.DocumentFailures++
			}
			res.Counters.SinkErrors += e.emit(ctx, runID, r.record, logger)
			res.Records = append(res.Records, r.record)
			res.Counters.Records++
		}
		e.updateStatus(page, res.Counters)

		if !e.cfg.Paginate {
			break
		}
		page = page.Next()
	}

	err := ctx.Err()
	e.finish(&res, err)
	return res, err
}

// Status returns the state of the latest run, if any.
func (e *Engine) Status() (RunStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.status == nil {
		return RunStatus{}, false
	}
	out := *e.status
	if out.FinishedAt != nil {
		t := *out.FinishedAt
		out.FinishedAt = &t
	}
	return out, true
}

type providerResult struct {
	record    inspection.InspectionRecord
	outcome   string
	docFailed bool
}

// processPage visits providers sequentially, or through a bounded pool when
// Concurrency > 1. Results are indexed so output order matches input order.
func (e *Engine) processPage(ctx context.Context, providers []inspection.ProviderEntry, opts Options) []providerResult {
	results := make([]providerResult, len(providers))
	if e.cfg.Concurrency <= 1 {
		for i, p := range providers {
			if ctx.Err() != nil {
				results[i] = providerResult{outcome: metrics.ProviderSkipped}
				continue
			}
			results[i] = e.visit(ctx, p, opts)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, p := range providers {
		g.Go(func() error {
			if gctx.Err() != nil {
				results[i] = providerResult{outcome: metrics.ProviderSkipped}
				return nil
			}
			results[i] = e.visit(gctx, p, opts)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) visit(ctx context.Context, p inspection.ProviderEntry, opts Options) providerResult {
	logger := e.logger.With(
		zap.String("urn", p.Identifier),
		zap.String("provider", p.NormalizedName),
		zap.String("url", p.Link),
	)

	pubs, err := e.dir.ListPublications(ctx, p)
	if err != nil {
		logger.Warn("provider page failed; skipping", zap.Error(err))
		metrics.ObserveProvider(metrics.ProviderSkipped)
		return providerResult{outcome: metrics.ProviderSkipped}
	}

	pub, ok := e.selectPublication(pubs, logger)
	if !ok {
		logger.Debug("no matching publication", zap.Int("publications", len(pubs)))
		metrics.ObserveProvider(metrics.ProviderUnmatched)
		return providerResult{outcome: metrics.ProviderUnmatched}
	}

	rec, docFailed := e.assemble(ctx, p, pub, opts.CaptureText, logger)
	metrics.ObserveProvider(metrics.ProviderRecorded)
	return providerResult{record: rec, outcome: metrics.ProviderRecorded, docFailed: docFailed}
}

func (e *Engine) emit(ctx context.Context, runID string, rec inspection.InspectionRecord, logger *zap.Logger) int {
	failed := 0
	for _, sink := range e.sinks {
		if err := sink.Write(ctx, runID, rec); err != nil {
			failed++
			logger.Warn("record sink failed", zap.String("urn", rec.URN), zap.Error(err))
		}
	}
	return failed
}

func (e *Engine) setStatus(s *RunStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
}

func (e *Engine) updateStatus(page inspection.PageState, c Counters) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == nil {
		return
	}
	e.status.Page = page
	e.status.Counters = c
}

func (e *Engine) finish(res *Result, err error) {
	now := e.clock.Now()
	state := RunCompleted
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		state = RunCanceled
	case err != nil:
		state = RunFailed
	}
	metrics.ObserveRun(string(state))

	e.mu.Lock()
	if e.status != nil {
		e.status.State = state
		e.status.FinishedAt = &now
		e.status.Counters = res.Counters
		if err != nil {
			e.status.ErrorText = err.Error()
		}
	}
	e.mu.Unlock()

	fields := []zap.Field{
		zap.String("run_id", res.RunID),
		zap.String("state", string(state)),
		zap.Int("pages", res.Counters.Pages),
		zap.Int("providers", res.Counters.Providers),
		zap.Int("records", res.Counters.Records),
		zap.Int("unmatched", res.Counters.Unmatched),
		zap.Int("skipped", res.Counters.Skipped),
	}
	if err != nil {
		e.logger.Error("crawl finished with error", append(fields, zap.Error(err))...)
		return
	}
	e.logger.Info("crawl finished", fields...)
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
