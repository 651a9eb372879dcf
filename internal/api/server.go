package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/crawler"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/metrics"
	"github.com/data-to-insight/inspection-crawler/internal/storage/postgres"
)

const requestTimeout = 30 * time.Second

// StatusSource reports the latest in-process run.
type StatusSource interface {
	Status() (crawler.RunStatus, bool)
}

// RunLister reads the run ledger.
type RunLister interface {
	ListRuns(ctx context.Context, limit, offset int) ([]postgres.RunRow, error)
}

// RunFunc runs one crawl to completion.
type RunFunc func(ctx context.Context, opts crawler.Options) error

// Config wires the server's collaborators. Runs and Trigger are optional;
// their routes answer 503 when unset.
type Config struct {
	Status  StatusSource
	Runs    RunLister
	Trigger RunFunc
	IDs     crawler.IDGenerator
	// MaxResults is used when a trigger request omits max_results.
	MaxResults int
	Logger     *zap.Logger
}

// Server wires HTTP handlers to the crawl engine and run ledger.
type Server struct {
	router  chi.Router
	cfg     Config
	runs    *RunsHandler
	logger  *zap.Logger
	baseCtx context.Context

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes. Triggered crawls
// run under ctx, not the request context.
func NewServer(ctx context.Context, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		runs:    NewRunsHandler(cfg.Runs, logger),
		logger:  logger.Named("api"),
		baseCtx: ctx,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1/runs", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		r.Get("/", s.runs.ListRuns)
		r.Post("/", s.startRun)
		r.Get("/latest", s.latestRun)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until every triggered crawl has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) latestRun(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Status == nil {
		writeError(w, http.StatusServiceUnavailable, "crawler unavailable")
		return
	}
	status, ok := s.cfg.Status.Status()
	if !ok {
		writeError(w, http.StatusNotFound, "no run yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": status})
}

type runRequest struct {
	Start       *int  `json:"start"`
	MaxResults  *int  `json:"max_results"`
	CaptureText *bool `json:"capture_text"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Trigger == nil || s.cfg.IDs == nil {
		writeError(w, http.StatusServiceUnavailable, "run trigger unavailable")
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	opts := crawler.Options{
		Start:       inspection.PageState{Start: valueOrDefault(req.Start, 0)},
		MaxResults:  valueOrDefault(req.MaxResults, s.cfg.MaxResults),
		CaptureText: valueOrDefault(req.CaptureText, true),
	}
	if opts.Start.Start < 0 || opts.MaxResults < 0 {
		writeError(w, http.StatusBadRequest, "start and max_results must be >= 0")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	runID, err := s.cfg.IDs.NewID()
	if err != nil {
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "generate run id")
		return
	}
	opts.RunID = runID
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		if err := s.cfg.Trigger(s.baseCtx, opts); err != nil {
			s.logger.Warn("triggered run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()

	s.logger.Info("run accepted", zap.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", reqID),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
