// Package postgres persists crawl runs and inspection records in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// Default table names.
const (
	DefaultRecordsTable = "inspection_records"
	DefaultRunsTable    = "crawl_runs"
)

// Run statuses persisted in the runs table.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for records.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// RecordStore writes runs and records into Postgres. Records are keyed by
// (run_id, urn) so re-running a provider within a run replaces its row.
type RecordStore struct {
	pool      execCloser
	table     string
	runsTable string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, runs, err := tableNames(cfg.Table, cfg.RunsTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table, runsTable: runs}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table, runsTable string) (*RecordStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	table, runs, err := tableNames(table, runsTable)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: table, runsTable: runs}, nil
}

func tableNames(table, runs string) (string, string, error) {
	if table == "" {
		table = DefaultRecordsTable
	}
	if runs == "" {
		runs = DefaultRunsTable
	}
	for _, name := range []string{table, runs} {
		if !validTableName.MatchString(name) {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
	}
	return table, runs, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the runs and records tables when missing.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	runs := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id        TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	records       INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`, s.runsTable)
	records := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id                   TEXT NOT NULL,
	urn                      TEXT NOT NULL,
	local_authority          TEXT NOT NULL,
	inspection_link          TEXT NOT NULL,
	outcome_grade            SMALLINT,
	previous_inspection_date DATE,
	previous_state           TEXT NOT NULL,
	inspection_start_date    DATE,
	inspection_end_date      DATE,
	publication_date         DATE,
	next_inspection          TEXT,
	next_inspection_by_date  DATE,
	next_inspection_note     TEXT,
	local_link               TEXT,
	inspection_outcome_text  TEXT,
	lightweight              BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (run_id, urn)
)`, s.table)
	for _, stmt := range []string{runs, records} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// StartRun records a run as running.
func (s *RecordStore) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, started_at, status)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status`, s.runsTable)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, RunRunning); err != nil {
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	return nil
}

// FinishRun marks a run completed or failed. errMsg may be nil.
func (s *RecordStore) FinishRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	status string,
	records int,
	errMsg *string,
) error {
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, records = $3, error_message = $4
WHERE run_id = $5`, s.runsTable)
	if _, err := s.pool.Exec(ctx, query, finishedAt, status, records, errMsg, runID); err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// RunRow is one row of the runs table.
type RunRow struct {
	RunID        string     `json:"run_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Records      int        `json:"records"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// ListRuns returns runs newest first.
func (s *RecordStore) ListRuns(ctx context.Context, limit, offset int) ([]RunRow, error) {
	query := fmt.Sprintf(`
SELECT run_id, started_at, finished_at, status, records, error_message
FROM %s
ORDER BY started_at DESC
LIMIT $1 OFFSET $2`, s.runsTable)
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Records, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// UpsertRecord inserts or replaces the record for (runID, rec.URN).
func (s *RecordStore) UpsertRecord(ctx context.Context, runID string, rec inspection.InspectionRecord) error {
	if s == nil || s.pool == nil {
		return errors.New("record store is not configured")
	}
	if runID == "" || rec.URN == "" {
		return errors.New("run id and urn are required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	urn,
	local_authority,
	inspection_link,
	outcome_grade,
	previous_inspection_date,
	previous_state,
	inspection_start_date,
	inspection_end_date,
	publication_date,
	next_inspection,
	next_inspection_by_date,
	next_inspection_note,
	local_link,
	inspection_outcome_text,
	lightweight
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (run_id, urn) DO UPDATE SET
	local_authority = EXCLUDED.local_authority,
	inspection_link = EXCLUDED.inspection_link,
	outcome_grade = EXCLUDED.outcome_grade,
	previous_inspection_date = EXCLUDED.previous_inspection_date,
	previous_state = EXCLUDED.previous_state,
	inspection_start_date = EXCLUDED.inspection_start_date,
	inspection_end_date = EXCLUDED.inspection_end_date,
	publication_date = EXCLUDED.publication_date,
	next_inspection = EXCLUDED.next_inspection,
	next_inspection_by_date = EXCLUDED.next_inspection_by_date,
	next_inspection_note = EXCLUDED.next_inspection_note,
	local_link = EXCLUDED.local_link,
	inspection_outcome_text = EXCLUDED.inspection_outcome_text,
	lightweight = EXCLUDED.lightweight`, s.table)

	if _, err := s.pool.Exec(ctx, query, recordArgs(runID, rec)...); err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.URN, err)
	}
	return nil
}

func recordArgs(runID string, rec inspection.InspectionRecord) []any {
	var grade *int16
	if rec.OutcomeGrade != nil {
		g := int16(*rec.OutcomeGrade)
		grade = &g
	}
	var previous *time.Time
	if rec.PreviousInspection.State == inspection.PreviousFound {
		t := rec.PreviousInspection.Date.Time()
		previous = &t
	}
	var next *string
	if rec.NextInspection != nil {
		s := rec.NextInspection.String()
		next = &s
	}
	return []any{
		runID,
		rec.URN,
		rec.LocalAuthority,
		rec.InspectionLink,
		grade,
		previous,
		rec.PreviousInspection.State.String(),
		dateArg(rec.InspectionStart),
		dateArg(rec.InspectionEnd),
		dateArg(rec.PublicationDate),
		next,
		dateArg(rec.NextInspectionByDate),
		textArg(rec.NextInspectionNote),
		textArg(rec.LocalLink),
		textArg(rec.OutcomeText),
		rec.Lightweight,
	}
}

func dateArg(d *inspection.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}

func textArg(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
