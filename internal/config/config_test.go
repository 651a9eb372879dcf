package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.PageSize != 100 || cfg.Crawl.MaxResults != 160 {
		t.Fatalf("unexpected paging defaults: %+v", cfg.Crawl)
	}
	if !cfg.Crawl.Paginate || !cfg.Crawl.CaptureText || !cfg.Crawl.RerankByDate {
		t.Fatalf("expected paginate, capture_text and rerank_by_date on by default: %+v", cfg.Crawl)
	}
	if got := strings.Join(cfg.Crawl.SelectionTerms, "|"); got != "area|send|full inspection" {
		t.Fatalf("unexpected selection terms %q", got)
	}
	if cfg.HTTP.Retries != 3 || cfg.HTTP.RetryDelay() != 5*time.Second || cfg.HTTP.Timeout() != 10*time.Second {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.HTTP.Renderer != RendererHTTP {
		t.Fatalf("expected plain http renderer by default, got %q", cfg.HTTP.Renderer)
	}
	if cfg.Storage.Provider != "none" {
		t.Fatalf("expected storage disabled by default, got %q", cfg.Storage.Provider)
	}
	if got := cfg.CrawlerConfig(); got.Concurrency != 1 || got.TrailingMarker != "Local area partnership details" {
		t.Fatalf("unexpected crawler config %+v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  page_size: 50
  max_results: 0
  paginate: false
  capture_text: false
  persist_documents: true
  selection_terms: ["area", "send"]
  concurrency: 3
  rerank_by_date: false
http:
  timeout_seconds: 30
  retries: 5
  retry_delay_seconds: 1
  user_agent: test-agent
storage:
  provider: local
  base_dir: /tmp/reports
db:
  dsn: postgres://localhost/inspections
pubsub:
  project_id: proj
  topic: records
export:
  formats: [csv, xlsx]
  lookup_path: import_data/la_lookup
logging:
  development: false
  level: debug
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.PageSize != 50 || cfg.Crawl.Paginate || cfg.Crawl.CaptureText || !cfg.Crawl.PersistDocuments {
		t.Fatalf("expected crawl overrides to apply: %+v", cfg.Crawl)
	}
	if len(cfg.Crawl.SelectionTerms) != 2 || cfg.Crawl.RerankByDate {
		t.Fatalf("expected selection overrides: %+v", cfg.Crawl)
	}
	if cfg.HTTP.UserAgent != "test-agent" || cfg.HTTP.Retries != 5 {
		t.Fatalf("expected http overrides: %+v", cfg.HTTP)
	}
	if cfg.DB.Table != "inspection_records" || cfg.DB.DSN == "" {
		t.Fatalf("expected db defaults with dsn override: %+v", cfg.DB)
	}
	if len(cfg.Export.Formats) != 2 || len(cfg.Export.LookupColumns) != 4 {
		t.Fatalf("expected export overrides: %+v", cfg.Export)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INSPECT_CRAWL_PAGE_SIZE", "25")
	t.Setenv("INSPECT_HTTP_USER_AGENT", "env-agent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.PageSize != 25 {
		t.Fatalf("expected env page size 25, got %d", cfg.Crawl.PageSize)
	}
	if cfg.HTTP.UserAgent != "env-agent" {
		t.Fatalf("expected env user agent, got %q", cfg.HTTP.UserAgent)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size", func(c *Config) { c.Crawl.PageSize = 0 }, "crawl.page_size"},
		{"concurrency", func(c *Config) { c.Crawl.Concurrency = 0 }, "crawl.concurrency"},
		{"retries", func(c *Config) { c.HTTP.Retries = 0 }, "http.retries"},
		{"gcs bucket", func(c *Config) { c.Storage.Provider = "gcs" }, "storage.gcs_bucket"},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "s3" }, "storage.provider"},
		{"persist without storage", func(c *Config) { c.Crawl.PersistDocuments = true }, "crawl.persist_documents"},
		{"pubsub project", func(c *Config) { c.PubSub.Topic = "t" }, "pubsub.project_id"},
		{"export format", func(c *Config) { c.Export.Formats = []string{"html"} }, "export.formats"},
		{"renderer", func(c *Config) { c.HTTP.Renderer = "webkit" }, "http.renderer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
