package chunkcanvas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level})), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		lines = append(lines, m)
	}
	return lines
}

func TestLogger(t *testing.T) {
	ctx := context.Background()
	logger, buf := newBufferLogger(slog.LevelDebug)

	logger.WithPath("/x.faiss").LogUpsert(ctx, "/x.faiss", 3, 10, nil)
	logger.LogUpsert(ctx, "/x.faiss", 3, 0, errors.New("boom"))
	logger.LogRecovery(ctx, "/x.faiss", recoveryRollForward, nil)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, float64(10), lines[0]["total"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "WARN", lines[2]["level"])
	assert.Equal(t, recoveryRollForward, lines[2]["action"])
}

func TestStore_Logging(t *testing.T) {
	ctx := context.Background()
	logger, buf := newBufferLogger(slog.LevelInfo)
	s := New(WithLogger(logger))

	path := createIndex(t, s, t.TempDir(), "docs", 2, "l2")
	_, err := s.Upsert(ctx, path, []Item{{ID: 1, Vector: []float32{1}}})
	require.Error(t, err)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "index created", lines[0]["msg"])
	assert.Equal(t, path, lines[0]["path"])
	assert.Equal(t, "upsert failed", lines[1]["msg"])
}

func TestNoopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NoopLogger().LogMirror(context.Background(), "docs", 1, errors.New("x"))
	})
}

func TestBasicMetricsCollector(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	s := New(WithMetricsCollector(metrics))

	path := createIndex(t, s, t.TempDir(), "docs", 2, "l2")
	_, err := s.Upsert(ctx, path, []Item{{ID: 1, Vector: []float32{1, 0}}, {ID: 2, Vector: []float32{0, 1}}})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, path, []Item{{ID: 3, Vector: []float32{1}}})
	require.Error(t, err)
	_, err = s.Info(ctx, path)
	require.NoError(t, err)
	_, err = s.Search(ctx, path, SearchQuery{Vector: []float32{1, 0}, K: 1})
	require.NoError(t, err)
	_, err = s.Delete(ctx, path, []int64{1})
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.CreateCount)
	assert.Equal(t, int64(2), stats.UpsertCount)
	assert.Equal(t, int64(2), stats.UpsertItems)
	assert.Equal(t, int64(1), stats.UpsertErrors)
	assert.Equal(t, int64(1), stats.ReadCount)
	assert.Equal(t, int64(1), stats.SearchCount)
	assert.Equal(t, int64(1), stats.DeleteItems)
}
