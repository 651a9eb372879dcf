// Package document decodes report PDFs into per-page text with the
// pdftotext command-line tool.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrEmptyDocument is returned when there are no bytes to decode.
var ErrEmptyDocument = errors.New("document is empty")

// PdfToText decodes PDFs by running pdftotext on a temporary copy.
type PdfToText struct {
	binPath string
	args    []string
	tempDir string
}

// Config controls the pdftotext invocation. Args are passed before the input
// path; the output always goes to stdout.
type Config struct {
	BinPath string
	Args    []string
	TempDir string
}

// NewPdfToText creates a decoder. If BinPath is empty, "pdftotext" is used.
func NewPdfToText(cfg Config) *PdfToText {
	bin := cfg.BinPath
	if bin == "" {
		bin = "pdftotext"
	}
	return &PdfToText{
		binPath: bin,
		args:    append([]string(nil), cfg.Args...),
		tempDir: cfg.TempDir,
	}
}

// Decode returns the text of each page in document order.
func (p *PdfToText) Decode(ctx context.Context, pdf []byte) ([]string, error) {
	if len(pdf) == 0 {
		return nil, ErrEmptyDocument
	}

	f, err := os.CreateTemp(p.tempDir, "inspection-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("document: create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.Write(pdf); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("document: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("document: close temp file: %w", err)
	}

	args := append(append([]string(nil), p.args...), f.Name(), "-")
	cmd := exec.CommandContext(ctx, p.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("document: pdftotext failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return SplitPages(stdout.String()), nil
}

// SplitPages splits pdftotext output on form feeds. The empty tail after the
// last page break is dropped.
func SplitPages(text string) []string {
	if text == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
