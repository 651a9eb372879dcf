// Package export writes crawl results as CSV, XLSX or JSON files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// Supported output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// SheetName is the worksheet written to XLSX exports.
const SheetName = "inspections"

// ErrUnknownFormat is returned for a format outside the supported set.
var ErrUnknownFormat = errors.New("unknown export format")

// Table is a header plus string rows in column order.
type Table struct {
	Columns []string
	Rows    [][]string
}

// FromRecords flattens records into a table. An empty slice yields the full
// column set unless lightweight is set.
func FromRecords(records []inspection.InspectionRecord, lightweight bool) Table {
	t := Table{Columns: inspection.Columns(lightweight)}
	for _, rec := range records {
		t.Rows = append(t.Rows, rec.Strings())
	}
	return t
}

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Config controls where and how tables are written.
type Config struct {
	Dir      string
	Filename string
	Formats  []string
	// LinkColumn is rendered as a hyperlink in XLSX output.
	LinkColumn string
}

// Write renders t once per configured format and returns the written paths.
func Write(cfg Config, t Table) ([]string, error) {
	if cfg.Filename == "" {
		return nil, errors.New("export filename is required")
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	paths := make([]string, 0, len(cfg.Formats))
	for _, format := range cfg.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		path := filepath.Join(dir, cfg.Filename+"."+format)
		var err error
		switch format {
		case FormatCSV:
			err = writeFile(path, func(f *os.File) error { return WriteCSV(f, t) })
		case FormatJSON:
			err = writeFile(path, func(f *os.File) error { return WriteJSON(f, t) })
		case FormatXLSX:
			err = WriteXLSX(path, t, cfg.LinkColumn)
		default:
			return paths, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
