package crawler

import (
	"strings"

	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/extract"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// Matches reports whether the lowercased descriptor contains every term.
// Terms are expected lowercased.
func Matches(descriptor string, terms []string) bool {
	d := strings.ToLower(descriptor)
	for _, term := range terms {
		if !strings.Contains(d, term) {
			return false
		}
	}
	return true
}

// selectPublication returns the first matching publication in upstream
// order. With RerankByDate, when every match carries a parseable publish
// date, the latest one wins instead; ties keep upstream order.
func (e *Engine) selectPublication(pubs []inspection.PublicationEntry, logger *zap.Logger) (inspection.PublicationEntry, bool) {
	var matches []inspection.PublicationEntry
	for _, pub := range pubs {
		if Matches(pub.DescriptorText, e.terms) {
			matches = append(matches, pub)
		}
	}
	if len(matches) == 0 {
		return inspection.PublicationEntry{}, false
	}
	selected := matches[0]
	if len(matches) == 1 {
		return selected, true
	}

	dates := make([]inspection.Date, len(matches))
	allDated := true
	for i, m := range matches {
		d, ok := extract.ParsePublishedDate(m.DescriptorText)
		if !ok {
			allDated = false
		}
		dates[i] = d
	}

	if dates[0].IsZero() {
		return selected, true
	}
	latest := 0
	for i := 1; i < len(matches); i++ {
		if !dates[i].IsZero() && dates[i].After(dates[latest]) {
			latest = i
		}
	}
	if latest == 0 {
		return selected, true
	}

	if e.cfg.RerankByDate && allDated {
		logger.Info("re-ranked publications by publish date",
			zap.String("upstream_first", selected.DescriptorText),
			zap.String("selected", matches[latest].DescriptorText),
		)
		return matches[latest], true
	}
	logger.Warn("later publication is dated after the selected one",
		zap.String("selected", selected.DescriptorText),
		zap.String("newer", matches[latest].DescriptorText),
	)
	return selected, true
}
