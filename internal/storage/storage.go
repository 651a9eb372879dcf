// Package storage selects where downloaded inspection reports are persisted
// and names them per provider.
package storage

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/data-to-insight/inspection-crawler/internal/storage/gcs"
	"github.com/data-to-insight/inspection-crawler/internal/storage/local"
	"github.com/data-to-insight/inspection-crawler/internal/storage/memory"
)

// Providers accepted by Open.
const (
	ProviderNone   = "none"
	ProviderLocal  = "local"
	ProviderGCS    = "gcs"
	ProviderMemory = "memory"
)

// PDFContentType is the content type reports are stored with.
const PDFContentType = "application/pdf"

// BlobStore persists objects and returns a URI for them.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// Config selects and configures a blob store.
type Config struct {
	Provider string
	BaseDir  string
	Bucket   string
	Prefix   string
}

// Open builds the configured store. The returned close function releases
// any client the store holds.
func Open(ctx context.Context, cfg Config) (BlobStore, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return None{}, noop, nil
	case ProviderMemory:
		return memory.NewBlobStore(), noop, nil
	case ProviderLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local storage: %w", err)
		}
		return store, noop, nil
	case ProviderGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket, Prefix: cfg.Prefix})
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("gcs storage: %w", err)
		}
		return store, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// None discards objects. It is used when persistence is disabled.
type None struct{}

// PutObject drains r and returns an empty URI.
func (None) PutObject(_ context.Context, _ string, _ string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", fmt.Errorf("discard object: %w", err)
	}
	return "", nil
}

var unsafePathChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]+`)

// DocumentPath names a provider's report as
// "<identifier>_<name>/<descriptor>.pdf". The descriptor is lowercased and
// the ", pdf" suffix marker is dropped.
func DocumentPath(identifier, normalizedName, descriptor string) string {
	dir := sanitizeSegment(identifier + "_" + normalizedName)
	file := strings.ToLower(strings.TrimSpace(descriptor))
	file = strings.Replace(file, ", pdf", "", 1)
	file = sanitizeSegment(file)
	if file == "" {
		file = "report"
	}
	return dir + "/" + file + ".pdf"
}

func sanitizeSegment(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, " .")
	if s == ".." {
		return "_"
	}
	return s
}
