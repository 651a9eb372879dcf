package crawler

import (
	"context"
	"io"
	"time"

	"github.com/data-to-insight/inspection-crawler/internal/inspection"
)

// Directory lists providers and their publications.
//
// NewestFirst: ListPublications returns entries in the order the register
// shows them, which is assumed to be most recent first. The engine selects
// the first matching entry unless re-ranking by publish date is enabled.
type Directory interface {
	// ListProviders returns the providers on one directory page. An empty
	// slice ends pagination.
	ListProviders(ctx context.Context, page inspection.PageState) ([]inspection.ProviderEntry, error)
	ListPublications(ctx context.Context, provider inspection.ProviderEntry) ([]inspection.PublicationEntry, error)
}

// Fetcher downloads a URL body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Decoder turns document bytes into ordered page texts.
type Decoder interface {
	Decode(ctx context.Context, doc []byte) ([]string, error)
}

// BlobStore writes raw documents and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
}

// RecordSink receives each assembled record in upstream order.
type RecordSink interface {
	Write(ctx context.Context, runID string, rec inspection.InspectionRecord) error
}

// Hasher fingerprints stored documents.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
