package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("%PDF-1.7")
	uri, err := store.PutObject(context.Background(), "80432_barnet/report.pdf", "application/pdf", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, "memory://80432_barnet/report.pdf", uri)

	payload[0] = 'X'
	stored, contentType, ok := store.Object("80432_barnet/report.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.7", string(stored), "stored copy must not alias the caller's buffer")
	assert.Equal(t, "application/pdf", contentType)

	stored[0] = 'Y'
	again, _, _ := store.Object("80432_barnet/report.pdf")
	assert.Equal(t, "%PDF-1.7", string(again))
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"b/2.pdf", "a/1.pdf"} {
		_, err := store.PutObject(context.Background(), p, "", bytes.NewReader(nil))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a/1.pdf", "b/2.pdf"}, store.Paths())

	_, _, ok := store.Object("missing")
	assert.False(t, ok)
}
