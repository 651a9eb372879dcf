// Package extract turns report text into typed inspection facts. Every stage
// is an ordered chain of pattern rules evaluated until the first match.
package extract

import "regexp"

// Rule pairs a pattern with the extractor run on its submatches.
type Rule[T any] struct {
	Name    string
	Pattern *regexp.Regexp
	Build   func(groups []string) (T, error)
}

// Chain is an ordered list of rules. Adding a newly observed document shape
// means appending a rule.
type Chain[T any] []Rule[T]

// Match is the outcome of the first rule whose pattern matched. Err is the
// rule's build error; a matched rule never falls through to the next one.
type Match[T any] struct {
	Rule  string
	Value T
	Err   error
}

// Find evaluates the chain against text and reports whether any rule matched.
func (c Chain[T]) Find(text string) (Match[T], bool) {
	for _, r := range c {
		groups := r.Pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		v, err := r.Build(groups)
		return Match[T]{Rule: r.Name, Value: v, Err: err}, true
	}
	return Match[T]{}, false
}
