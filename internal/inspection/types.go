// Package inspection defines the domain types shared by the crawler, the
// extraction engine and the record sinks.
package inspection

import (
	"encoding/json"
	"fmt"
	"time"
)

// Canonical output layouts for emitted dates.
const (
	ShortLayout = "02/01/06"
	LongLayout  = "02/01/2006"
)

// SentinelDate marks a previous-inspection date that is known to be absent
// or could not be read.
const SentinelDate = "01/01/1900"

// PageState addresses one page of the provider directory.
type PageState struct {
	Start int `json:"start"`
	Rows  int `json:"rows"`
}

// Next returns the state of the following page.
func (p PageState) Next() PageState {
	return PageState{Start: p.Start + p.Rows, Rows: p.Rows}
}

// ProviderEntry is one provider listed in the directory.
type ProviderEntry struct {
	Identifier     string
	DisplayName    string
	NormalizedName string
	Link           string
}

// PublicationEntry is one document listed on a provider page.
type PublicationEntry struct {
	DescriptorText  string
	SourceReference string
}

// Date is a calendar date without a time component.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Short renders the date as dd/mm/yy.
func (d Date) Short() string { return d.t.Format(ShortLayout) }

// Long renders the date as dd/mm/yyyy.
func (d Date) Long() string { return d.t.Format(LongLayout) }

// After reports whether d is later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

func (d Date) String() string { return d.Short() }

// MarshalJSON renders the short canonical form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Short())
}

// Grade is the outcome severity rank.
type Grade int

// Outcome grades, in declaration order.
const (
	GradePositive            Grade = 1
	GradeInconsistent        Grade = 2
	GradeSignificantConcerns Grade = 3
)

// Timeframe is an approximate interval such as "2 years".
type Timeframe struct {
	Magnitude int
	Unit      string
}

func (t Timeframe) String() string {
	return fmt.Sprintf("%d %s", t.Magnitude, t.Unit)
}

// MarshalJSON renders the timeframe as "<n> <unit>".
func (t Timeframe) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// PreviousState tags how the previous-inspection date was resolved.
type PreviousState int

// Previous inspection states. The zero value means extraction never ran.
const (
	PreviousNotAttempted PreviousState = iota
	PreviousAbsent
	PreviousUnparseable
	PreviousFound
)

func (s PreviousState) String() string {
	switch s {
	case PreviousAbsent:
		return "absent"
	case PreviousUnparseable:
		return "unparseable"
	case PreviousFound:
		return "found"
	default:
		return "not_attempted"
	}
}

// PreviousInspection is the end date of the prior inspection, if any.
type PreviousInspection struct {
	State PreviousState
	Date  Date
}

// PreviousFoundOn returns a resolved previous inspection.
func PreviousFoundOn(d Date) PreviousInspection {
	return PreviousInspection{State: PreviousFound, Date: d}
}

// Value renders the output form: dd/mm/yyyy when found, the sentinel when
// absent or unreadable, and "" when extraction never ran.
func (p PreviousInspection) Value() string {
	switch p.State {
	case PreviousFound:
		return p.Date.Long()
	case PreviousAbsent, PreviousUnparseable:
		return SentinelDate
	default:
		return ""
	}
}

// MarshalJSON renders Value, or null when extraction never ran.
func (p PreviousInspection) MarshalJSON() ([]byte, error) {
	if p.State == PreviousNotAttempted {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value())
}
