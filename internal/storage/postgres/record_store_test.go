package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

func TestUpsertRecordWritesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	grade := inspection.GradeInconsistent
	start := inspection.NewDate(2024, time.July, 15)
	rec := inspection.InspectionRecord{
		URN:                "80432",
		LocalAuthority:     "barnet",
		InspectionLink:     "https://files.example.org/v1/file/50252437",
		OutcomeGrade:       &grade,
		PreviousInspection: inspection.PreviousInspection{State: inspection.PreviousAbsent},
		InspectionStart:    &start,
		NextInspection:     &inspection.Timeframe{Magnitude: 3, Unit: "years"},
		OutcomeText:        "inconsistent experiences",
	}

	wantGrade := int16(2)
	wantStart := start.Time()
	wantNext := "3 years"
	wantText := "inconsistent experiences"
	mock.ExpectExec("INSERT INTO inspection_records").
		WithArgs(
			"run-1",
			"80432",
			"barnet",
			rec.InspectionLink,
			&wantGrade,
			(*time.Time)(nil),
			"absent",
			&wantStart,
			(*time.Time)(nil),
			(*time.Time)(nil),
			&wantNext,
			(*time.Time)(nil),
			(*string)(nil),
			(*string)(nil),
			&wantText,
			false,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertRecord(context.Background(), "run-1", rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRecordPropagatesError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "send_records", "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO send_records").WillReturnError(errors.New("boom"))
	err = store.UpsertRecord(context.Background(), "run-1", inspection.InspectionRecord{URN: "1", Lightweight: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert record 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRecordRequiresKeys(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)
	require.Error(t, store.UpsertRecord(context.Background(), "", inspection.InspectionRecord{URN: "1"}))
	require.Error(t, store.UpsertRecord(context.Background(), "run", inspection.InspectionRecord{}))
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	started := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	finished := started.Add(time.Hour)
	mock.ExpectExec("INSERT INTO crawl_runs").
		WithArgs("run-1", started, RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE crawl_runs").
		WithArgs(finished, RunCompleted, 153, (*string)(nil), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.StartRun(context.Background(), "run-1", started))
	require.NoError(t, store.FinishRun(context.Background(), "run-1", finished, RunCompleted, 153, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inspection_records").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNamesValidated(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, "records; DROP TABLE x", "")
	require.Error(t, err)
	_, err = NewRecordStoreWithPool(nil, "", "")
	require.Error(t, err)
	_, err = NewRecordStore(context.Background(), RecordStoreConfig{})
	require.Error(t, err)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	started := time.Date(2024, time.August, 20, 9, 0, 0, 0, time.UTC)
	finished := started.Add(12 * time.Minute)
	msg := "first directory page unavailable"
	mock.ExpectQuery("SELECT run_id, started_at").
		WithArgs(10, 0).
		WillReturnRows(mock.NewRows([]string{"run_id", "started_at", "finished_at", "status", "records", "error_message"}).
			AddRow("run-2", started, &finished, RunFailed, 0, &msg).
			AddRow("run-1", started.Add(-time.Hour), &finished, RunCompleted, 153, (*string)(nil)))

	runs, err := store.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	require.NotNil(t, runs[0].ErrorMessage)
	assert.Equal(t, msg, *runs[0].ErrorMessage)
	assert.Equal(t, 153, runs[1].Records)
	assert.Nil(t, runs[1].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsQueryError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT run_id").WithArgs(5, 10).WillReturnError(errors.New("db down"))
	_, err = store.ListRuns(context.Background(), 5, 10)
	require.ErrorContains(t, err, "db down")
}
