// Package enrich joins exported inspection rows with a local authority
// lookup table keyed by provider URN.
package enrich

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/data-to-insight/inspection-crawler/internal/export"
	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// DefaultColumns are the lookup columns added after urn.
var DefaultColumns = []string{"la_code", "region_code", "ltla23cd", "stat_neighbours"}

// ErrNoKeyColumn is returned when the lookup file has no urn header.
var ErrNoKeyColumn = errors.New("lookup has no urn column")

// Lookup maps a canonical URN to its lookup row.
type Lookup struct {
	rows map[string]map[string]string
}

// Len returns the number of keyed rows.
func (l Lookup) Len() int { return len(l.rows) }

// Get returns the lookup row for urn.
func (l Lookup) Get(urn string) (map[string]string, bool) {
	row, ok := l.rows[canonicalURN(urn)]
	return row, ok
}

// LoadPath reads a lookup CSV. A directory loads the first .csv file in
// name order.
func LoadPath(path string) (Lookup, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Lookup{}, fmt.Errorf("stat lookup: %w", err)
	}
	if info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(path, "*.csv"))
		if err != nil {
			return Lookup{}, fmt.Errorf("glob lookup dir: %w", err)
		}
		if len(matches) == 0 {
			return Lookup{}, fmt.Errorf("no csv file in %s", path)
		}
		sort.Strings(matches)
		path = matches[0]
	}
	f, err := os.Open(path)
	if err != nil {
		return Lookup{}, fmt.Errorf("open lookup: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a lookup CSV with a header row containing urn.
func Load(r io.Reader) (Lookup, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return Lookup{}, fmt.Errorf("read lookup header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	key := -1
	for i, h := range header {
		if strings.EqualFold(h, inspection.ColURN) {
			key = i
			break
		}
	}
	if key < 0 {
		return Lookup{}, ErrNoKeyColumn
	}

	out := Lookup{rows: make(map[string]map[string]string)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Lookup{}, fmt.Errorf("read lookup row: %w", err)
		}
		if key >= len(rec) {
			continue
		}
		urn := canonicalURN(rec[key])
		if urn == "" {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		out.rows[urn] = row
	}
	return out, nil
}

// Join returns a new table with columns inserted after urn. Rows without a
// lookup match are kept with empty values and reported through the logger.
func Join(t export.Table, lookup Lookup, columns []string, logger *zap.Logger) export.Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := t.Index(inspection.ColURN)
	if key < 0 || len(columns) == 0 {
		return t
	}

	out := export.Table{Columns: insertAfter(t.Columns, key, columns)}
	unmatched := 0
	for _, row := range t.Rows {
		extra := make([]string, len(columns))
		if key < len(row) {
			if match, ok := lookup.Get(row[key]); ok {
				for i, c := range columns {
					extra[i] = match[c]
				}
			} else {
				unmatched++
				logger.Warn("no lookup row for provider", zap.String("urn", row[key]))
			}
		}
		out.Rows = append(out.Rows, insertAfter(row, key, extra))
	}
	if unmatched > 0 {
		logger.Info("enrichment finished with unmatched rows",
			zap.Int("rows", len(t.Rows)),
			zap.Int("unmatched", unmatched),
		)
	}
	return out
}

func insertAfter(values []string, idx int, extra []string) []string {
	out := make([]string, 0, len(values)+len(extra))
	out = append(out, values[:idx+1]...)
	out = append(out, extra...)
	return append(out, values[idx+1:]...)
}

// canonicalURN compares numeric URNs by value so "080432" matches "80432".
func canonicalURN(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return s
}
