package extract

import (
	"errors"
	"strings"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/textnorm"
)

// ErrNoText is reported when a document decoded to no pages.
var ErrNoText = errors.New("document has no text")

// Facts are the fields extracted from one report.
type Facts struct {
	Dates              Dates
	OutcomeText        string
	Grade              *inspection.Grade
	NextInspection     *inspection.Timeframe
	NextInspectionBy   *inspection.Date
	NextInspectionNote string
}

// FromPages runs every extraction stage over decoded page text. Pages from
// the first one containing trailingMarker onwards are ignored for the
// outcome narrative.
func FromPages(pages []string, trailingMarker string) Facts {
	if len(pages) == 0 {
		return Facts{
			Dates:              Dates{Err: ErrNoText},
			OutcomeText:        OutcomeSectionNotFound,
			NextInspectionNote: ReasonNoLastDate,
		}
	}

	f := Facts{Dates: ExtractDates(textnorm.CleanFirstPage(pages[0]))}

	body := strings.Join(textnorm.TrimTrailingPages(pages, trailingMarker), "\n")
	body = textnorm.StripNonPrintableKeepNewlines(textnorm.FoldCompat(body))
	f.OutcomeText = ExtractOutcomeSection(body)
	f.Grade = DetermineOutcomeGrade(f.OutcomeText)
	f.NextInspection = ExtractNextInspection(f.OutcomeText)

	var last, timeframe string
	if f.Dates.Start != nil {
		last = f.Dates.Start.Short()
	}
	if f.NextInspection != nil {
		timeframe = f.NextInspection.String()
	}
	projected, err := ProjectNextInspectionDate(last, timeframe)
	if err != nil {
		f.NextInspectionNote = err.Error()
		return f
	}
	if d, ok := parseShort(projected); ok {
		f.NextInspectionBy = &d
	}
	return f
}

func parseShort(s string) (inspection.Date, bool) {
	t, err := parseLastDate(s)
	if err != nil {
		return inspection.Date{}, false
	}
	return inspection.DateOf(t), true
}
