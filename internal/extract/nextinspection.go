package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

var wordNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

const horizon = `(\d+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve) (years?|months?)`

func horizonRule(name, lead string) Rule[inspection.Timeframe] {
	return Rule[inspection.Timeframe]{
		Name:    name,
		Pattern: regexp.MustCompile(`(?i)` + lead + ` ` + horizon),
		Build: func(g []string) (inspection.Timeframe, error) {
			word := strings.ToLower(g[1])
			n, ok := wordNumbers[word]
			if !ok {
				var err error
				if n, err = strconv.Atoi(word); err != nil {
					return inspection.Timeframe{}, err
				}
			}
			return inspection.Timeframe{Magnitude: n, Unit: strings.ToLower(g[2])}, nil
		},
	}
}

// Monitoring visits take precedence over full reinspections.
var nextInspectionRules = Chain[inspection.Timeframe]{
	horizonRule("monitoring", `monitoring inspection will be carried out within approximately`),
	horizonRule("full_reinspection", `full reinspection will be within approximately`),
	horizonRule("next_full_inspection", `the next full area SEND inspection will be within approximately`),
}

// ExtractNextInspection returns the horizon stated in the outcome section,
// with word numbers normalized to digits, or nil when none is stated.
func ExtractNextInspection(section string) *inspection.Timeframe {
	if !HasOutcomeSection(section) {
		return nil
	}
	m, ok := nextInspectionRules.Find(section)
	if !ok || m.Err != nil {
		return nil
	}
	tf := m.Value
	return &tf
}
