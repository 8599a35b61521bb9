package chunkcanvas

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcanvas/blobstore"
	"github.com/hupe1980/chunkcanvas/catalog"
)

type failingStore struct {
	blobstore.Store
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("bucket unavailable")
}

func TestMirror(t *testing.T) {
	ctx := context.Background()
	remote := blobstore.NewMemoryStore()
	journal := blobstore.NewMemoryJournal()
	metrics := &BasicMetricsCollector{}
	s := New(WithMirror(remote), WithJournal(journal), WithMetricsCollector(metrics))

	path := createIndex(t, s, t.TempDir(), "docs", 2, "ip")
	_, err := s.Upsert(ctx, path, []Item{{ID: 1, Text: "one", Vector: []float32{1, 2}}})
	require.NoError(t, err)

	keys, err := remote.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs.faiss", "docs.meta.json"}, keys)

	index, meta := readPair(t, path)
	got, err := remote.Get(ctx, "docs.faiss")
	require.NoError(t, err)
	assert.Equal(t, index, got)
	got, err = remote.Get(ctx, "docs.meta.json")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	latest, ok, err := journal.Latest(ctx, "docs")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Version)
	assert.Equal(t, 1, latest.Total)
	assert.Equal(t, 2, latest.Dimension)
	assert.Equal(t, "ip", latest.Metric)
	assert.Equal(t, "docs.faiss", latest.IndexKey)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.MirrorCount)
	assert.Equal(t, int64(0), stats.MirrorErrors)

	t.Run("NotOnFailedWrite", func(t *testing.T) {
		_, err := s.Upsert(ctx, path, []Item{{ID: 2, Vector: []float32{1}}})
		require.Error(t, err)
		assert.Len(t, journal.History("docs"), 2)
	})
}

func TestMirror_FailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	s := New(WithMirror(failingStore{}), WithMetricsCollector(metrics))

	path := createIndex(t, s, t.TempDir(), "docs", 2, "ip")
	res, err := s.Upsert(ctx, path, []Item{{ID: 1, Vector: []float32{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.FileExists(t, catalog.MetaPath(path))

	assert.Equal(t, int64(2), metrics.GetStats().MirrorErrors)
}

func TestMirror_CompressedLocalStore(t *testing.T) {
	ctx := context.Background()
	remote := blobstore.NewCompressed(blobstore.NewLocalStore(t.TempDir()), blobstore.CompressionZSTD)
	s := New(WithMirror(remote))

	path := createIndex(t, s, t.TempDir(), "docs", 8, "l2")
	_, err := s.Upsert(ctx, path, []Item{{ID: 1, Vector: make([]float32, 8)}})
	require.NoError(t, err)

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := remote.Get(ctx, "docs.faiss")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
