package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-to-insight/inspection-crawler/internal/app"
	"github.com/data-to-insight/inspection-crawler/internal/crawler"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/publisher/memory"
)

var (
	_ crawler.RecordSink = app.RecordStoreSink{}
	_ crawler.RecordSink = app.PublisherSink{}
)

type recordingWriter struct {
	runID string
	urns  []string
	err   error
}

func (w *recordingWriter) UpsertRecord(_ context.Context, runID string, rec inspection.InspectionRecord) error {
	w.runID = runID
	w.urns = append(w.urns, rec.URN)
	return w.err
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("topic not found")
}

func (failingPublisher) Close() error { return nil }

func TestRecordStoreSink(t *testing.T) {
	w := &recordingWriter{}
	sink := app.RecordStoreSink{Store: w}

	require.NoError(t, sink.Write(context.Background(), "run-1", inspection.InspectionRecord{URN: "80432"}))
	assert.Equal(t, "run-1", w.runID)
	assert.Equal(t, []string{"80432"}, w.urns)

	w.err = errors.New("conn reset")
	require.Error(t, sink.Write(context.Background(), "run-1", inspection.InspectionRecord{URN: "80511"}))
}

func TestPublisherSinkWrapsRecord(t *testing.T) {
	pub := memory.New()
	sink := app.PublisherSink{Publisher: pub}
	rec := inspection.InspectionRecord{
		URN:            "80432",
		LocalAuthority: "barnet",
		InspectionLink: "https://files.example.org/v1/file/50252437",
		Lightweight:    true,
	}

	require.NoError(t, sink.Write(context.Background(), "run-7", rec))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "80432", msgs[0].Key)
	var decoded struct {
		RunID  string            `json:"run_id"`
		Record map[string]string `json:"record"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, "run-7", decoded.RunID)
	assert.Equal(t, "barnet", decoded.Record[inspection.ColLocalAuthority])
}

func TestPublisherSinkError(t *testing.T) {
	sink := app.PublisherSink{Publisher: failingPublisher{}}
	err := sink.Write(context.Background(), "run-1", inspection.InspectionRecord{URN: "80432"})
	require.ErrorContains(t, err, "publish record 80432")
}
