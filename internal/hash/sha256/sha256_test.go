package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/data-to-insight/inspection-crawler/internal/crawler"
)

var _ crawler.Hasher = (*Hasher)(nil)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	got, err := h.Hash([]byte("pdf-barnet"))
	require.NoError(t, err)
	assert.Equal(t, "416868b19a50e2df21185e3accba2c5016b8674ad68b58c0c9a78d3032aaf860", got)

	again, err := h.Hash([]byte("pdf-barnet"))
	require.NoError(t, err)
	assert.Equal(t, got, again)

	other, err := h.Hash([]byte("pdf-leeds"))
	require.NoError(t, err)
	assert.NotEqual(t, got, other)
}
