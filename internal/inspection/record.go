package inspection

import (
	"encoding/json"
	"strconv"
)

// Column names of the flat record, in export order.
const (
	ColURN                  = "urn"
	ColLocalAuthority       = "local_authority"
	ColInspectionLink       = "inspection_link"
	ColOutcomeGrade         = "outcome_grade"
	ColPreviousInspection   = "previous_inspection_date"
	ColInspectionStart      = "inspection_start_date"
	ColInspectionEnd        = "inspection_end_date"
	ColPublicationDate      = "publication_date"
	ColNextInspection       = "next_inspection"
	ColNextInspectionByDate = "next_inspection_by_date"
	ColNextInspectionNote   = "next_inspection_note"
	ColLocalLink            = "local_link"
	ColOutcomeText          = "inspection_outcome_text"
)

var (
	fullColumns = []string{
		ColURN,
		ColLocalAuthority,
		ColInspectionLink,
		ColOutcomeGrade,
		ColPreviousInspection,
		ColInspectionStart,
		ColInspectionEnd,
		ColPublicationDate,
		ColNextInspection,
		ColNextInspectionByDate,
		ColNextInspectionNote,
		ColLocalLink,
		ColOutcomeText,
	}
	lightColumns = []string{ColURN, ColLocalAuthority, ColInspectionLink}
)

// InspectionRecord is the fact record assembled for one provider. It is
// built once by the crawler and never mutated afterwards.
type InspectionRecord struct {
	URN                  string
	LocalAuthority       string
	InspectionLink       string
	OutcomeGrade         *Grade
	PreviousInspection   PreviousInspection
	InspectionStart      *Date
	InspectionEnd        *Date
	PublicationDate      *Date
	NextInspection       *Timeframe
	NextInspectionByDate *Date
	NextInspectionNote   string
	LocalLink            string
	OutcomeText          string

	// Lightweight records carry only the identifier, name and link.
	Lightweight bool
}

// Columns returns the column names for records of the given shape.
func Columns(lightweight bool) []string {
	if lightweight {
		return append([]string(nil), lightColumns...)
	}
	return append([]string(nil), fullColumns...)
}

// Columns returns the column names populated by this record.
func (r InspectionRecord) Columns() []string {
	return Columns(r.Lightweight)
}

// Values returns the record as a flat map of column to value. Absent values
// are nil.
func (r InspectionRecord) Values() map[string]any {
	out := map[string]any{
		ColURN:            r.URN,
		ColLocalAuthority: r.LocalAuthority,
		ColInspectionLink: r.InspectionLink,
	}
	if r.Lightweight {
		return out
	}
	out[ColOutcomeGrade] = gradeValue(r.OutcomeGrade)
	out[ColPreviousInspection] = nilIfEmpty(r.PreviousInspection.Value())
	out[ColInspectionStart] = dateValue(r.InspectionStart)
	out[ColInspectionEnd] = dateValue(r.InspectionEnd)
	out[ColPublicationDate] = dateValue(r.PublicationDate)
	if r.NextInspection != nil {
		out[ColNextInspection] = r.NextInspection.String()
	} else {
		out[ColNextInspection] = nil
	}
	out[ColNextInspectionByDate] = dateValue(r.NextInspectionByDate)
	out[ColNextInspectionNote] = nilIfEmpty(r.NextInspectionNote)
	out[ColLocalLink] = nilIfEmpty(r.LocalLink)
	out[ColOutcomeText] = r.OutcomeText
	return out
}

// Strings returns the record as column-ordered strings, with "" for nulls.
func (r InspectionRecord) Strings() []string {
	values := r.Values()
	cols := r.Columns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = Stringify(values[c])
	}
	return out
}

// MarshalJSON writes the flat field mapping with stable names.
func (r InspectionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values())
}

// Stringify renders a record value for tabular output.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func gradeValue(g *Grade) any {
	if g == nil {
		return nil
	}
	return int(*g)
}

func dateValue(d *Date) any {
	if d == nil {
		return nil
	}
	return d.Short()
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
