package app

import (
	"context"
	"fmt"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// RecordWriter upserts one record for a run.
type RecordWriter interface {
	UpsertRecord(ctx context.Context, runID string, rec inspection.InspectionRecord) error
}

// RecordStoreSink writes crawled records to the record store.
type RecordStoreSink struct {
	Store RecordWriter
}

// Write implements crawler.RecordSink.
func (s RecordStoreSink) Write(ctx context.Context, runID string, rec inspection.InspectionRecord) error {
	return s.Store.UpsertRecord(ctx, runID, rec)
}

// RecordMessage is the Pub/Sub payload for one record.
type RecordMessage struct {
	RunID  string                      `json:"run_id"`
	Record inspection.InspectionRecord `json:"record"`
}

// PublisherSink publishes crawled records keyed by URN.
type PublisherSink struct {
	Publisher Publisher
}

// Write implements crawler.RecordSink.
func (s PublisherSink) Write(ctx context.Context, runID string, rec inspection.InspectionRecord) error {
	if _, err := s.Publisher.Publish(ctx, rec.URN, RecordMessage{RunID: runID, Record: rec}); err != nil {
		return fmt.Errorf("publish record %s: %w", rec.URN, err)
	}
	return nil
}
