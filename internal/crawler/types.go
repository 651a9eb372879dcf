package crawler

import (
	"time"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// Options are the per-run inputs to Crawl.
type Options struct {
	// RunID names the run. Empty means the engine generates one.
	RunID string
	Start inspection.PageState
	// MaxResults stops pagination once the next page would start at or
	// beyond it. Zero means no limit.
	MaxResults int
	// CaptureText enables document download and fact extraction. When
	// false, records carry only identity fields.
	CaptureText bool
}

// Counters summarize what a run did.
type Counters struct {
	Pages            int `json:"pages"`
	Providers        int `json:"providers"`
	Duplicates       int `json:"duplicates"`
	Skipped          int `json:"skipped"`
	Unmatched        int `json:"unmatched"`
	Records          int `json:"records"`
	DocumentFailures int `json:"document_failures"`
	SinkErrors       int `json:"sink_errors"`
}

// Result is the output of one crawl run.
type Result struct {
	RunID    string
	Records  []inspection.InspectionRecord
	Counters Counters
}

// RunState represents the lifecycle state of a crawl run.
type RunState string

// Run states reported by Engine.Status.
const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
	RunCanceled  RunState = "canceled"
)

// RunStatus is a point-in-time view of the latest run.
type RunStatus struct {
	RunID      string               `json:"run_id"`
	State      RunState             `json:"state"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	Page       inspection.PageState `json:"page"`
	Counters   Counters             `json:"counters"`
	ErrorText  string               `json:"error_text,omitempty"`
}
