package crawler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/data-to-insight/inspection-crawler/internal/textnorm"
)

// DefaultSelectionTerms must all appear in a publication descriptor for it
// to be selected.
var DefaultSelectionTerms = []string{"area", "send", "full inspection"}

// Config controls how a crawl walks the register.
type Config struct {
	PageSize         int
	Paginate         bool
	SelectionTerms   []string
	TrailingMarker   string
	PersistDocuments bool
	Concurrency      int
	RerankByDate     bool
}

// DefaultConfig returns the settings used by the scheduled crawl.
func DefaultConfig() Config {
	return Config{
		PageSize:       100,
		Paginate:       true,
		SelectionTerms: append([]string(nil), DefaultSelectionTerms...),
		TrailingMarker: textnorm.DefaultTrailingMarker,
		Concurrency:    1,
		RerankByDate:   true,
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("crawl.page_size must be > 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if len(normalizeTerms(c.SelectionTerms)) == 0 {
		return errors.New("crawl.selection_terms must include at least one term")
	}
	return nil
}

func normalizeTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, term := range in {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
