// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/clock/system"
	"github.com/data-to-insight/inspection-crawler/internal/config"
	"github.com/data-to-insight/inspection-crawler/internal/crawler"
	"github.com/data-to-insight/inspection-crawler/internal/directory"
	"github.com/data-to-insight/inspection-crawler/internal/document"
	"github.com/data-to-insight/inspection-crawler/internal/enrich"
	"github.com/data-to-insight/inspection-crawler/internal/export"
	"github.com/data-to-insight/inspection-crawler/internal/extract"
	collyfetcher "github.com/data-to-insight/inspection-crawler/internal/fetcher/colly"
	"github.com/data-to-insight/inspection-crawler/internal/fetcher/headless"
	"github.com/data-to-insight/inspection-crawler/internal/hash/sha256"
	"github.com/data-to-insight/inspection-crawler/internal/id/uuid"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/data-to-insight/inspection-crawler/internal/publisher/pubsub"
	"github.com/data-to-insight/inspection-crawler/internal/storage"
	"github.com/data-to-insight/inspection-crawler/internal/storage/postgres"
)

// pageRenderer loads directory pages in a browser.
type pageRenderer interface {
	directory.Fetcher
	Close() error
}

// newRenderer builds the headless renderer. Tests replace it.
var newRenderer = func(cfg headless.Config, w headless.Waiter) (pageRenderer, error) {
	browser, err := headless.NewChromedp(cfg, w)
	if err != nil {
		return nil, err
	}
	return browser, nil
}

// Publisher pushes records to a message topic.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) (string, error)
	Close() error
}

// RunLedger records run lifecycle rows.
type RunLedger interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, status string, records int, errMsg *string) error
}

// App holds the shared, long-lived services for one process. It is
// initialized once at startup and closed by the command that built it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	engine    *crawler.Engine
	decoder   *document.PdfToText
	records   *postgres.RecordStore
	publisher Publisher
	ledger    RunLedger
	ids       crawler.IDGenerator
	clock     crawler.Clock
	closers   []func() error
}

// Option overrides a service built by New. Tests use it to swap in
// in-memory collaborators.
type Option func(*options)

type options struct {
	publisher Publisher
	store     crawler.BlobStore
	ledger    RunLedger
	sinks     []crawler.RecordSink
}

// WithPublisher uses p instead of a Pub/Sub publisher.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLedger records runs in l instead of the Postgres runs table.
func WithLedger(l RunLedger) Option {
	return func(o *options) { o.ledger = l }
}

// WithSinks adds record sinks after the configured ones.
func WithSinks(sinks ...crawler.RecordSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithBlobStore uses s instead of the configured storage provider.
func WithBlobStore(s crawler.BlobStore) Option {
	return func(o *options) { o.store = s }
}

// New builds every service the configuration enables. It fails fast if any
// enabled service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: cfg, logger: logger, ids: uuid.New(), clock: system.New()}

	limiter := ratelimit.New(ratelimit.Config{RatePerSecond: cfg.HTTP.RatePerSecond, Burst: cfg.HTTP.Burst})
	retryDelay := cfg.HTTP.RetryDelay()
	if retryDelay == 0 {
		retryDelay = collyfetcher.NoRetryDelay
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.HTTP.Timeout(),
		Retries:      cfg.HTTP.Retries,
		RetryDelay:   retryDelay,
		MaxBodyBytes: int(cfg.HTTP.MaxBodyBytes),
	}, collyfetcher.WithLimiter(limiter), collyfetcher.WithLogger(logger))

	var pages directory.Fetcher = fetcher
	if strings.EqualFold(cfg.HTTP.Renderer, config.RendererChromedp) {
		browser, err := newRenderer(headless.Config{
			MaxParallel:       cfg.Crawl.Concurrency,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.HTTP.Timeout(),
		}, limiter)
		if err != nil {
			return nil, fmt.Errorf("headless renderer: %w", err)
		}
		a.closers = append(a.closers, browser.Close)
		pages = browser
		logger.Info("directory pages rendered with headless chrome")
	}

	dir, err := directory.New(pages, directory.Config{BaseURL: cfg.Crawl.BaseURL, Rows: cfg.Crawl.PageSize})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("directory: %w", err)
	}
	a.decoder = document.NewPdfToText(document.Config{BinPath: cfg.Document.PdfToTextPath, Args: cfg.Document.Args})

	store := o.store
	if store == nil {
		blob, closeStore, err := storage.Open(ctx, storage.Config{
			Provider: cfg.Storage.Provider,
			BaseDir:  cfg.Storage.BaseDir,
			Bucket:   cfg.Storage.GCSBucket,
			Prefix:   cfg.Storage.Prefix,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		a.closers = append(a.closers, closeStore)
		store = blob
	}
	logger.Info("storage ready", zap.String("provider", cfg.Storage.Provider))

	var sinks []crawler.RecordSink
	if cfg.DB.DSN != "" {
		records, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:       cfg.DB.DSN,
			Table:     cfg.DB.Table,
			RunsTable: cfg.DB.RunsTable,
			MaxConns:  cfg.DB.MaxConns,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		a.records = records
		a.ledger = records
		if err := records.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, RecordStoreSink{Store: records})
		logger.Info("record store ready", zap.String("table", cfg.DB.Table))
	}

	a.publisher = o.publisher
	if a.publisher == nil && cfg.PubSub.Topic != "" {
		pub, err := pubsubpublisher.Open(ctx, pubsubpublisher.Config{ProjectID: cfg.PubSub.ProjectID, Topic: cfg.PubSub.Topic})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize publisher: %w", err)
		}
		a.publisher = pub
		logger.Info("publisher ready", zap.String("topic", cfg.PubSub.Topic))
	}
	if a.publisher != nil {
		sinks = append(sinks, PublisherSink{Publisher: a.publisher})
	}
	sinks = append(sinks, o.sinks...)
	if o.ledger != nil {
		a.ledger = o.ledger
	}

	a.engine, err = crawler.NewEngine(cfg.CrawlerConfig(), crawler.Deps{
		Directory: dir,
		Fetcher:   fetcher,
		Decoder:   a.decoder,
		Store:     store,
		Hasher:    sha256.New(),
		Sinks:     sinks,
		IDs:       a.ids,
		Clock:     a.clock,
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("crawler: %w", err)
	}
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Engine returns the crawl engine.
func (a *App) Engine() *crawler.Engine { return a.engine }

// Config returns the configuration the services were built from.
func (a *App) Config() config.Config { return a.cfg }

// IDs returns the run id generator.
func (a *App) IDs() crawler.IDGenerator { return a.ids }

// Records returns the Postgres record store, or nil when no DSN is set.
func (a *App) Records() *postgres.RecordStore { return a.records }

// RunReport summarizes a finished crawl.
type RunReport struct {
	Result  crawler.Result
	Exports []string
}

// Run crawls, records the run in the ledger when one is configured, and
// exports whatever records were assembled, even when the crawl stopped early.
func (a *App) Run(ctx context.Context, opts crawler.Options) (RunReport, error) {
	if opts.RunID == "" {
		id, err := a.ids.NewID()
		if err != nil {
			return RunReport{}, fmt.Errorf("new run id: %w", err)
		}
		opts.RunID = id
	}
	// Ledger writes outlive a canceled crawl context.
	ledgerCtx := context.WithoutCancel(ctx)
	if a.ledger != nil {
		if err := a.ledger.StartRun(ledgerCtx, opts.RunID, a.clock.Now()); err != nil {
			a.logger.Warn("record run start failed", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}

	res, crawlErr := a.engine.Crawl(ctx, opts)
	report := RunReport{Result: res}

	if a.ledger != nil {
		status, errMsg := ledgerStatus(crawlErr)
		if err := a.ledger.FinishRun(ledgerCtx, opts.RunID, a.clock.Now(), status, len(res.Records), errMsg); err != nil {
			a.logger.Warn("record run finish failed", zap.String("run_id", opts.RunID), zap.Error(err))
		}
	}

	if errors.Is(crawlErr, crawler.ErrFirstPage) {
		return report, crawlErr
	}

	paths, err := a.Export(res.Records, !opts.CaptureText)
	report.Exports = paths
	if err != nil {
		return report, errors.Join(crawlErr, err)
	}
	return report, crawlErr
}

// ledgerStatus maps a crawl outcome to the status persisted in the run
// ledger. Interrupted runs are recorded as canceled, matching Engine.Status.
func ledgerStatus(crawlErr error) (string, *string) {
	if crawlErr == nil {
		return postgres.RunCompleted, nil
	}
	msg := crawlErr.Error()
	if errors.Is(crawlErr, context.Canceled) || errors.Is(crawlErr, context.DeadlineExceeded) {
		return postgres.RunCanceled, &msg
	}
	return postgres.RunFailed, &msg
}

// Export writes records in the configured formats, joining the lookup table
// first when one is configured.
func (a *App) Export(records []inspection.InspectionRecord, lightweight bool) ([]string, error) {
	if len(a.cfg.Export.Formats) == 0 {
		return nil, nil
	}
	table := export.FromRecords(records, lightweight)
	if a.cfg.Export.LookupPath != "" {
		lookup, err := enrich.LoadPath(a.cfg.Export.LookupPath)
		if err != nil {
			a.logger.Warn("lookup unavailable; exporting without enrichment",
				zap.String("path", a.cfg.Export.LookupPath), zap.Error(err))
		} else {
			table = enrich.Join(table, lookup, a.cfg.Export.LookupColumns, a.logger)
		}
	}
	paths, err := export.Write(export.Config{
		Dir:        a.cfg.Export.Dir,
		Filename:   a.cfg.Export.Filename,
		Formats:    a.cfg.Export.Formats,
		LinkColumn: inspection.ColLocalLink,
	}, table)
	if err != nil {
		return paths, fmt.Errorf("export: %w", err)
	}
	for _, p := range paths {
		a.logger.Info("export written", zap.String("path", p), zap.Int("rows", len(table.Rows)))
	}
	return paths, nil
}

// ExtractFile runs the extraction engine on a local report. The record's
// identity fields are left empty apart from the link, which is the path.
func (a *App) ExtractFile(ctx context.Context, path string) (inspection.InspectionRecord, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return inspection.InspectionRecord{}, fmt.Errorf("read document: %w", err)
	}
	pages, err := a.decoder.Decode(ctx, doc)
	if err != nil {
		return inspection.InspectionRecord{}, fmt.Errorf("decode document: %w", err)
	}
	rec := inspection.InspectionRecord{InspectionLink: path}
	descriptor := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	crawler.ApplyFacts(&rec, extract.FromPages(pages, a.cfg.Crawl.TrailingMarker), inspection.PublicationEntry{
		DescriptorText:  descriptor,
		SourceReference: path,
	})
	return rec, nil
}

// Close shuts down every service in reverse order of construction.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	if a.records != nil {
		a.records.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
