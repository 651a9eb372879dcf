package extract

import (
	"regexp"
	"strings"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
	"github.com/data-to-insight/inspection-crawler/internal/textnorm"
)

// OutcomeSectionNotFound is returned by ExtractOutcomeSection when the
// heading pair is missing. Callers treat it as no outcome text.
const OutcomeSectionNotFound = "Inspection outcome section not found."

var outcomeSection = regexp.MustCompile(`(?is)Inspection outcome(.*?)Information about the local area partnership`)

// ExtractOutcomeSection returns the narrative between the outcome heading
// and the partnership heading as one normalized block. The closing paragraph
// is a publishing notice and is dropped when there is more than one.
func ExtractOutcomeSection(text string) string {
	m := outcomeSection.FindStringSubmatch(text)
	if m == nil {
		return OutcomeSectionNotFound
	}
	paragraphs := textnorm.SplitParagraphs(strings.TrimSpace(m[1]))
	if len(paragraphs) > 1 {
		paragraphs = paragraphs[:len(paragraphs)-1]
	}
	return textnorm.NormalizeParagraphs(strings.Join(paragraphs, "\n\n"))
}

// HasOutcomeSection reports whether section is real outcome text.
func HasOutcomeSection(section string) bool {
	return section != "" && section != OutcomeSectionNotFound
}

type gradePhrase struct {
	phrase string
	grade  inspection.Grade
}

// Declaration order is the tie-break when several phrases occur.
var gradePhrases = []gradePhrase{
	{"positive experiences", inspection.GradePositive},
	{"inconsistent experiences", inspection.GradeInconsistent},
	{"significant concerns", inspection.GradeSignificantConcerns},
}

// DetermineOutcomeGrade maps the first declared phrase present in section to
// its grade, or nil when none occurs.
func DetermineOutcomeGrade(section string) *inspection.Grade {
	if !HasOutcomeSection(section) {
		return nil
	}
	for _, p := range gradePhrases {
		if strings.Contains(section, p.phrase) {
			g := p.grade
			return &g
		}
	}
	return nil
}
