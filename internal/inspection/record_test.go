package inspection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviousInspectionValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		prev PreviousInspection
		want string
	}{
		{"found", PreviousFoundOn(NewDate(2019, time.June, 19)), "19/06/2019"},
		{"absent", PreviousInspection{State: PreviousAbsent}, SentinelDate},
		{"unparseable", PreviousInspection{State: PreviousUnparseable}, SentinelDate},
		{"not attempted", PreviousInspection{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.prev.Value())
		})
	}
}

func TestRecordJSONUsesStableNames(t *testing.T) {
	t.Parallel()

	grade := GradeInconsistent
	start := NewDate(2024, time.July, 15)
	rec := InspectionRecord{
		URN:                "80432",
		LocalAuthority:     "barnet",
		InspectionLink:     "https://files.example.org/v1/file/1",
		OutcomeGrade:       &grade,
		PreviousInspection: PreviousInspection{State: PreviousAbsent},
		InspectionStart:    &start,
		NextInspection:     &Timeframe{Magnitude: 3, Unit: "years"},
		OutcomeText:        "text",
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "80432", got[ColURN])
	assert.EqualValues(t, 2, got[ColOutcomeGrade])
	assert.Equal(t, SentinelDate, got[ColPreviousInspection])
	assert.Equal(t, "15/07/24", got[ColInspectionStart])
	assert.Nil(t, got[ColInspectionEnd])
	assert.Equal(t, "3 years", got[ColNextInspection])
	assert.Contains(t, got, ColNextInspectionByDate)
	assert.Nil(t, got[ColNextInspectionByDate])
}

func TestLightweightRecordOnlyCarriesIdentity(t *testing.T) {
	t.Parallel()

	rec := InspectionRecord{URN: "1", LocalAuthority: "york", InspectionLink: "l", Lightweight: true}
	assert.Equal(t, []string{ColURN, ColLocalAuthority, ColInspectionLink}, rec.Columns())
	assert.Len(t, rec.Values(), 3)
	assert.Equal(t, []string{"1", "york", "l"}, rec.Strings())
}

func TestPageStateNext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PageState{Start: 100, Rows: 100}, PageState{Start: 0, Rows: 100}.Next())
}
