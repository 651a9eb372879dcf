package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/storage/postgres"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
	ledgerTimeout   = 3 * time.Second
)

// RunsHandler exposes the read-only run ledger.
type RunsHandler struct {
	repo    RunLister
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunsHandler wires the ledger and logger.
func NewRunsHandler(repo RunLister, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{repo: repo, timeout: ledgerTimeout, logger: logger}
}

// ListRuns handles GET /v1/runs?limit=&offset=. It returns {"runs": [...]}
// newest first, 400 for invalid paging, 503 without a ledger, or 500 when
// the query fails.
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run ledger unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListRuns(ctx, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []postgres.RunRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = min(val, maxLimit)
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
