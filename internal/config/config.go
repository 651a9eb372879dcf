// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/data-to-insight/inspection-crawler/internal/crawler"
	"github.com/data-to-insight/inspection-crawler/internal/directory"
	"github.com/data-to-insight/inspection-crawler/internal/enrich"
	"github.com/data-to-insight/inspection-crawler/internal/export"
	"github.com/data-to-insight/inspection-crawler/internal/storage"
	"github.com/data-to-insight/inspection-crawler/internal/textnorm"
)

// EnvPrefix prefixes every environment override, e.g. INSPECT_CRAWL_PAGE_SIZE.
const EnvPrefix = "INSPECT"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Document DocumentConfig `mapstructure:"document"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Export   ExportConfig   `mapstructure:"export"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlConfig governs the register walk.
type CrawlConfig struct {
	BaseURL          string   `mapstructure:"base_url"`
	PageSize         int      `mapstructure:"page_size"`
	MaxResults       int      `mapstructure:"max_results"`
	Paginate         bool     `mapstructure:"paginate"`
	CaptureText      bool     `mapstructure:"capture_text"`
	PersistDocuments bool     `mapstructure:"persist_documents"`
	SelectionTerms   []string `mapstructure:"selection_terms"`
	TrailingMarker   string   `mapstructure:"trailing_marker"`
	Concurrency      int      `mapstructure:"concurrency"`
	RerankByDate     bool     `mapstructure:"rerank_by_date"`
}

// Directory page renderers.
const (
	RendererHTTP     = "http"
	RendererChromedp = "chromedp"
)

// HTTPConfig configures the fetcher's retry and politeness behavior.
// Renderer selects how directory and provider pages are loaded; documents
// are always fetched over HTTP.
type HTTPConfig struct {
	Renderer          string  `mapstructure:"renderer"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	Retries           int     `mapstructure:"retries"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds"`
	UserAgent         string  `mapstructure:"user_agent"`
	MaxBodyBytes      int64   `mapstructure:"max_body_bytes"`
	RatePerSecond     float64 `mapstructure:"rate_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DocumentConfig locates the PDF text extractor.
type DocumentConfig struct {
	PdfToTextPath string   `mapstructure:"pdftotext_path"`
	Args          []string `mapstructure:"args"`
}

// StorageConfig selects where raw reports are persisted.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database. An empty DSN
// disables the record store.
type DBConfig struct {
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
	RunsTable string `mapstructure:"runs_table"`
	MaxConns  int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds the record topic. An empty topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ExportConfig controls the tabular outputs written after a crawl.
type ExportConfig struct {
	Dir           string   `mapstructure:"dir"`
	Filename      string   `mapstructure:"filename"`
	Formats       []string `mapstructure:"formats"`
	LookupPath    string   `mapstructure:"lookup_path"`
	LookupColumns []string `mapstructure:"lookup_columns"`
}

// MetricsConfig enables the HTTP status server when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.base_url", directory.DefaultBaseURL)
	v.SetDefault("crawl.page_size", directory.DefaultRows)
	v.SetDefault("crawl.max_results", 160)
	v.SetDefault("crawl.paginate", true)
	v.SetDefault("crawl.capture_text", true)
	v.SetDefault("crawl.persist_documents", false)
	v.SetDefault("crawl.selection_terms", crawler.DefaultSelectionTerms)
	v.SetDefault("crawl.trailing_marker", textnorm.DefaultTrailingMarker)
	v.SetDefault("crawl.concurrency", 1)
	v.SetDefault("crawl.rerank_by_date", true)
	v.SetDefault("http.renderer", RendererHTTP)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.retry_delay_seconds", 5)
	v.SetDefault("http.user_agent", "inspection-crawler/0.1")
	v.SetDefault("http.max_body_bytes", 50<<20)
	v.SetDefault("http.rate_per_second", 2.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("document.pdftotext_path", "pdftotext")
	v.SetDefault("document.args", []string{"-layout", "-enc", "UTF-8"})
	v.SetDefault("storage.provider", storage.ProviderNone)
	v.SetDefault("storage.base_dir", "data/inspection_reports")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("db.table", "inspection_records")
	v.SetDefault("db.runs_table", "crawl_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.filename", "ofsted_childrens_services_send_overview")
	v.SetDefault("export.formats", []string{export.FormatCSV})
	v.SetDefault("export.lookup_columns", enrich.DefaultColumns)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("crawl.base_url must be set")
	}
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("crawl.page_size must be > 0")
	}
	if c.Crawl.MaxResults < 0 {
		return fmt.Errorf("crawl.max_results must be >= 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.Retries <= 0 {
		return fmt.Errorf("http.retries must be > 0")
	}
	if c.HTTP.RetryDelaySeconds < 0 {
		return fmt.Errorf("http.retry_delay_seconds must be >= 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	switch strings.ToLower(c.HTTP.Renderer) {
	case "", RendererHTTP, RendererChromedp:
	default:
		return fmt.Errorf("http.renderer %q is not supported", c.HTTP.Renderer)
	}
	switch strings.ToLower(c.Storage.Provider) {
	case "", storage.ProviderNone, storage.ProviderMemory:
	case storage.ProviderLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local provider")
		}
	case storage.ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("storage.provider %q is not supported", c.Storage.Provider)
	}
	if c.Crawl.PersistDocuments && (c.Storage.Provider == "" || strings.EqualFold(c.Storage.Provider, storage.ProviderNone)) {
		return fmt.Errorf("crawl.persist_documents requires storage.provider")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	for _, f := range c.Export.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case export.FormatCSV, export.FormatXLSX, export.FormatJSON:
		default:
			return fmt.Errorf("export.formats: unsupported format %q", f)
		}
	}
	return nil
}

// CrawlerConfig maps the crawl section onto the engine configuration.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		PageSize:         c.Crawl.PageSize,
		Paginate:         c.Crawl.Paginate,
		SelectionTerms:   c.Crawl.SelectionTerms,
		TrailingMarker:   c.Crawl.TrailingMarker,
		PersistDocuments: c.Crawl.PersistDocuments,
		Concurrency:      c.Crawl.Concurrency,
		RerankByDate:     c.Crawl.RerankByDate,
	}
}

// Timeout returns the per-attempt fetch timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between fetch attempts.
func (c HTTPConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}
