package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// Reasons a projection could not be made.
const (
	ReasonNoLastDate      = "last inspection date not provided"
	ReasonNoTimeframe     = "next inspection time frame not found"
	ReasonUnsupportedDate = "unsupported date format"
	ReasonBadTimeframe    = "invalid next inspection time frame"
)

// ProjectionError describes why a next-inspection date was not projected. It
// is informational and never aborts a record.
type ProjectionError struct {
	Reason string
	Input  string
}

func (e *ProjectionError) Error() string {
	if e.Input == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Input)
}

var (
	lastDateLayouts = []string{"2 January 2006", "2/1/2006", "2/1/06"}
	timeframeText   = regexp.MustCompile(`(?i)(\d+) (years?|months?)`)
)

// ProjectNextInspectionDate adds timeframe ("2 years", "6 months") to
// lastDate and returns the result as dd/mm/yy. Month arithmetic is calendar
// based and clamps to the end of shorter months.
func ProjectNextInspectionDate(lastDate, timeframe string) (string, error) {
	lastDate = strings.TrimSpace(lastDate)
	if lastDate == "" {
		return "", &ProjectionError{Reason: ReasonNoLastDate}
	}
	if strings.TrimSpace(timeframe) == "" {
		return "", &ProjectionError{Reason: ReasonNoTimeframe}
	}
	last, err := parseLastDate(lastDate)
	if err != nil {
		return "", &ProjectionError{Reason: ReasonUnsupportedDate, Input: lastDate}
	}
	m := timeframeText.FindStringSubmatch(timeframe)
	if m == nil {
		return "", &ProjectionError{Reason: ReasonBadTimeframe, Input: timeframe}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", &ProjectionError{Reason: ReasonBadTimeframe, Input: timeframe}
	}
	tf := inspection.Timeframe{Magnitude: n, Unit: strings.ToLower(m[2])}
	return Project(inspection.DateOf(last), tf).Short(), nil
}

// Project adds tf to d.
func Project(d inspection.Date, tf inspection.Timeframe) inspection.Date {
	months := tf.Magnitude
	if strings.HasPrefix(tf.Unit, "year") {
		months *= 12
	}
	return inspection.DateOf(addMonths(d.Time(), months))
}

func parseLastDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range lastDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// addMonths moves t by n calendar months, clamping the day to the length of
// the target month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	idx := int(m) - 1 + n
	y += floorDiv(idx, 12)
	target := time.Month(idx - floorDiv(idx, 12)*12 + 1)
	if last := daysIn(y, target); d > last {
		d = last
	}
	return time.Date(y, target, d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
