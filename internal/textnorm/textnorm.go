// Package textnorm cleans page text produced by the document decoder before
// the extraction rules run over it.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTrailingMarker opens the boilerplate pages at the end of a report.
const DefaultTrailingMarker = "Local area partnership details"

var (
	nonPrintable            = regexp.MustCompile(`[^\x20-\x7E]`)
	nonPrintableKeepNewline = regexp.MustCompile(`[^\x20-\x7E\n]`)
	whitespaceRun           = regexp.MustCompile(`\s+`)
	spaceRun                = regexp.MustCompile(` +`)
	blankLines              = regexp.MustCompile(`\n\s*\n`)

	// "20 24" -> "2024"
	splitYear = regexp.MustCompile(`\b(20)\s+(\d{2})\b`)
	// "1 9 June" -> "19 June"
	splitDay = regexp.MustCompile(
		`(?i)\b(\d) (\d) (January|February|March|April|May|June|July|August|September|October|November|December)\b`,
	)
)

// typographic maps punctuation that has no compatibility decomposition onto
// its ASCII form so it survives StripNonPrintable.
func typographic(r rune) rune {
	switch r {
	case '‐', '‑', '‒', '–', '—', '―', '−':
		return '-'
	case '‘', '’', '‛':
		return '\''
	case '“', '”':
		return '"'
	default:
		return r
	}
}

// FoldCompat applies NFKC compatibility folding (ligatures, no-break spaces)
// and maps typographic dashes and quotes to ASCII.
func FoldCompat(s string) string {
	t := transform.Chain(norm.NFKC, runes.Map(typographic))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// StripNonPrintable drops every character outside printable ASCII.
func StripNonPrintable(s string) string {
	return nonPrintable.ReplaceAllString(s, "")
}

// StripNonPrintableKeepNewlines is StripNonPrintable but preserves '\n' so
// paragraph breaks stay available for section segmentation.
func StripNonPrintableKeepNewlines(s string) string {
	return nonPrintableKeepNewline.ReplaceAllString(strings.ReplaceAll(s, "\r\n", "\n"), "")
}

// CollapseWhitespace replaces every whitespace run with a single space.
func CollapseWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(s, " ")
}

// RepairSplitDigits rejoins digits that PDF extraction split apart inside
// date tokens.
func RepairSplitDigits(s string) string {
	s = splitYear.ReplaceAllString(s, "$1$2")
	return splitDay.ReplaceAllString(s, "$1$2 $3")
}

// CleanFirstPage prepares first-page text for date extraction.
func CleanFirstPage(s string) string {
	s = CollapseWhitespace(FoldCompat(s))
	return RepairSplitDigits(StripNonPrintable(s))
}

// TrimTrailingPages drops the first page containing marker and every page
// after it.
func TrimTrailingPages(pages []string, marker string) []string {
	if marker == "" {
		return pages
	}
	for i, p := range pages {
		if strings.Contains(p, marker) {
			return pages[:i]
		}
	}
	return pages
}

// SplitParagraphs splits text on blank lines.
func SplitParagraphs(s string) []string {
	return blankLines.Split(s, -1)
}

// NormalizeParagraphs joins wrapped lines, collapses blank-line runs and
// spaces, and flattens the result to a single block.
func NormalizeParagraphs(s string) string {
	s = joinWrappedLines(s)
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n\n", " ")
	return spaceRun.ReplaceAllString(s, " ")
}

// joinWrappedLines turns each lone '\n' into a space, leaving runs of two or
// more newlines intact.
func joinWrappedLines(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] != '\n' {
			continue
		}
		prevNL := i > 0 && b[i-1] == '\n'
		nextNL := i+1 < len(b) && b[i+1] == '\n'
		if !prevNL && !nextNL {
			b[i] = ' '
		}
	}
	return string(b)
}
