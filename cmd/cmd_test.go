package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-to-insight/inspection-crawler/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestApplyFlagOverrides(t *testing.T) {
	crawl := newCrawlCmd()
	require.NoError(t, crawl.ParseFlags([]string{
		"--single-page", "--concurrency=4", "--format=csv,xlsx", "--export-dir=/tmp/out", "--lookup=lookups",
	}))
	cfg, err := config.Load("")
	require.NoError(t, err)

	require.NoError(t, applyFlagOverrides(crawl, &cfg))
	assert.False(t, cfg.Crawl.Paginate)
	assert.Equal(t, 4, cfg.Crawl.Concurrency)
	assert.Equal(t, []string{"csv", "xlsx"}, cfg.Export.Formats)
	assert.Equal(t, "/tmp/out", cfg.Export.Dir)
	assert.Equal(t, "lookups", cfg.Export.LookupPath)
	assert.False(t, cfg.Crawl.PersistDocuments)
}

func TestApplyFlagOverridesIgnoresUnsetFlags(t *testing.T) {
	extract := newExtractCmd()
	cfg, err := config.Load("")
	require.NoError(t, err)
	want := cfg

	require.NoError(t, applyFlagOverrides(extract, &cfg))
	assert.Equal(t, want, cfg)
}

func TestCrawlOptions(t *testing.T) {
	crawl := newCrawlCmd()
	require.NoError(t, crawl.ParseFlags([]string{"--start=100"}))
	opts, err := crawlOptions(crawl, 160, true)
	require.NoError(t, err)
	assert.Equal(t, 100, opts.Start.Start)
	assert.Equal(t, 160, opts.MaxResults)
	assert.True(t, opts.CaptureText)

	crawl = newCrawlCmd()
	require.NoError(t, crawl.ParseFlags([]string{"--max-results=0", "--lightweight"}))
	opts, err = crawlOptions(crawl, 160, true)
	require.NoError(t, err)
	assert.Equal(t, 0, opts.MaxResults)
	assert.False(t, opts.CaptureText)

	crawl = newCrawlCmd()
	require.NoError(t, crawl.ParseFlags([]string{"--start=-1"}))
	_, err = crawlOptions(crawl, 160, true)
	require.Error(t, err)
}

func TestCrawlCommandLightweight(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			fmt.Fprint(w, `<html><body></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/provider/44/80432">London Borough of Barnet</a></body></html>`)
	})
	mux.HandleFunc("/provider/44/80432", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<a class="publication-link" href="/files/1.pdf"><span class="nonvisual">Area SEND full inspection, pdf - 20 August 2024</span></a>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Setenv("INSPECT_CRAWL_BASE_URL", srv.URL)
	t.Setenv("INSPECT_HTTP_RATE_PER_SECOND", "0")
	t.Setenv("INSPECT_LOGGING_LEVEL", "error")
	dir := t.TempDir()

	out, err := execute(t, "crawl", "--lightweight", "--export-dir", dir, "--format", "csv")
	require.NoError(t, err)
	path := filepath.Join(dir, "ofsted_childrens_services_send_overview.csv")
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "urn,local_authority,inspection_link\n80432,barnet,"+srv.URL+"/files/1.pdf\n", string(data))
}

func TestExtractCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stub")
	}
	dir := t.TempDir()
	fakeBin := filepath.Join(dir, "pdftotext")
	script := "#!/bin/sh\nprintf 'Inspection dates: 15 July 2024 to 19 July 2024\\fInspection outcome\\n\\n" +
		"There are widespread and/or systemic failings leading to significant concerns.\\n\\n" +
		"Ofsted and CQC ask that the partnership publishes this report.\\f'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0o755))
	pdf := filepath.Join(dir, "area send full inspection - 20 august 2024.pdf")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.7"), 0o600))

	t.Setenv("INSPECT_DOCUMENT_PDFTOTEXT_PATH", fakeBin)
	t.Setenv("INSPECT_LOGGING_LEVEL", "error")

	out, err := execute(t, "extract", pdf)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &records))
	require.Len(t, records, 1)
	assert.Equal(t, pdf, records[0]["inspection_link"])
	assert.Equal(t, "15/07/24", records[0]["inspection_start_date"])
	assert.Equal(t, "20/08/24", records[0]["publication_date"])
}

func TestExtractCommandRequiresArgs(t *testing.T) {
	_, err := execute(t, "extract")
	require.Error(t, err)
}
