package extract

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

var (
	// ErrNoInspectionDates is returned when no inspection date rule matches.
	ErrNoInspectionDates = errors.New("no inspection dates found")
	// ErrInvalidDate is returned when a rule matched but a date could not be built.
	ErrInvalidDate = errors.New("invalid inspection date")
)

var dayMonthYearLayouts = []string{"2 January 2006", "2 Jan 2006"}

// Dates holds the dates read from the first page of a report. Start and End
// are independently nil; Err explains why either is missing.
type Dates struct {
	Start    *inspection.Date
	End      *inspection.Date
	Previous inspection.PreviousInspection
	Err      error
}

type dateRange struct {
	start, end dayMonthYear
}

type dayMonthYear struct {
	day, month, year string
}

func (d dayMonthYear) String() string {
	return d.day + " " + d.month + " " + d.year
}

const (
	datesLabel    = `(?i)Inspection dates?\s*:\s*`
	previousLabel = `(?i)Dates? of previous inspection\s*:\s*`
	day           = `(\d{1,2})`
	month         = `([A-Za-z]+)`
	year          = `(\d{4})`
	dash          = `\s*-\s*`
)

func fullRange(label string) Rule[dateRange] {
	return Rule[dateRange]{
		Name:    "full_range",
		Pattern: regexp.MustCompile(label + day + ` ` + month + ` ` + year + ` to ` + day + ` ` + month + ` ` + year),
		Build: func(g []string) (dateRange, error) {
			return dateRange{dayMonthYear{g[1], g[2], g[3]}, dayMonthYear{g[4], g[5], g[6]}}, nil
		},
	}
}

func sharedMonth(label, sep string) Rule[dateRange] {
	return Rule[dateRange]{
		Name:    "shared_month",
		Pattern: regexp.MustCompile(label + day + sep + day + ` ` + month + ` ` + year),
		Build: func(g []string) (dateRange, error) {
			return dateRange{dayMonthYear{g[1], g[3], g[4]}, dayMonthYear{g[2], g[3], g[4]}}, nil
		},
	}
}

func sharedYear(label, sep string) Rule[dateRange] {
	return Rule[dateRange]{
		Name:    "shared_year",
		Pattern: regexp.MustCompile(label + day + ` ` + month + sep + day + ` ` + month + ` ` + year),
		Build: func(g []string) (dateRange, error) {
			return dateRange{dayMonthYear{g[1], g[2], g[5]}, dayMonthYear{g[3], g[4], g[5]}}, nil
		},
	}
}

var inspectionDateRules = Chain[dateRange]{
	fullRange(datesLabel),
	sharedMonth(datesLabel, ` to `),
	sharedYear(datesLabel, ` to `),
	{
		Name:    "dash_full_range",
		Pattern: regexp.MustCompile(datesLabel + day + ` ` + month + ` ` + year + dash + day + ` ` + month + ` ` + year),
		Build: func(g []string) (dateRange, error) {
			return dateRange{dayMonthYear{g[1], g[2], g[3]}, dayMonthYear{g[4], g[5], g[6]}}, nil
		},
	},
	func() Rule[dateRange] {
		r := sharedYear(datesLabel, dash)
		r.Name = "dash_shared_year"
		return r
	}(),
	func() Rule[dateRange] {
		r := sharedMonth(datesLabel, dash)
		r.Name = "dash_shared_month"
		return r
	}(),
	{
		Name:    "single_date",
		Pattern: regexp.MustCompile(datesLabel + day + ` ` + month + ` ` + year),
		Build: func(g []string) (dateRange, error) {
			d := dayMonthYear{g[1], g[2], g[3]}
			return dateRange{d, d}, nil
		},
	},
}

var previousDateRules = Chain[dateRange]{
	sharedMonth(previousLabel, ` to `),
	fullRange(previousLabel),
	sharedYear(previousLabel, ` to `),
}

// ExtractDates reads the inspection start and end dates and the previous
// inspection end date from cleaned first-page text. It never fails outright:
// fields that cannot be resolved are nil and Err says why.
func ExtractDates(text string) Dates {
	out := Dates{Previous: ExtractPreviousInspection(text)}

	m, ok := inspectionDateRules.Find(text)
	if !ok {
		out.Err = ErrNoInspectionDates
		return out
	}
	var errs []error
	if d, err := canonicalDate(m.Value.start, inspection.ShortLayout); err == nil {
		out.Start = &d
	} else {
		errs = append(errs, fmt.Errorf("start date %q: %w", m.Value.start, err))
	}
	if d, err := canonicalDate(m.Value.end, inspection.ShortLayout); err == nil {
		out.End = &d
	} else {
		errs = append(errs, fmt.Errorf("end date %q: %w", m.Value.end, err))
	}
	if len(errs) > 0 {
		out.Err = fmt.Errorf("%w: %w", ErrInvalidDate, errors.Join(errs...))
	}
	return out
}

// ExtractPreviousInspection reads the end date of the previous inspection.
// No labelled range yields PreviousAbsent; an unreadable one yields
// PreviousUnparseable.
func ExtractPreviousInspection(text string) inspection.PreviousInspection {
	m, ok := previousDateRules.Find(text)
	if !ok {
		return inspection.PreviousInspection{State: inspection.PreviousAbsent}
	}
	d, err := canonicalDate(m.Value.end, inspection.LongLayout)
	if err != nil {
		return inspection.PreviousInspection{State: inspection.PreviousUnparseable}
	}
	return inspection.PreviousFoundOn(d)
}

// canonicalDate parses a day-month-year triple, renders it in layout and
// checks the rendering parses back.
func canonicalDate(dmy dayMonthYear, layout string) (inspection.Date, error) {
	t, err := parseDayMonthYear(dmy.String())
	if err != nil {
		return inspection.Date{}, err
	}
	if _, err := time.Parse(layout, t.Format(layout)); err != nil {
		return inspection.Date{}, fmt.Errorf("canonical form: %w", err)
	}
	return inspection.DateOf(t), nil
}

func parseDayMonthYear(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dayMonthYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
