package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcanvas"
	"github.com/hupe1980/chunkcanvas/internal/observability"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config, opts ...Option) http.Handler {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(chunkcanvas.New(), cfg, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func createDocs(t *testing.T, h http.Handler, dir string) string {
	t.Helper()
	rec, body := do(t, h, http.MethodPost, "/faiss/indexes/create", map[string]any{
		"base_dir":  dir,
		"db_name":   "docs",
		"dimension": 2,
		"metric":    "l2",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["db_path"].(string)
}

func TestServer_Health(t *testing.T) {
	s := New(chunkcanvas.New(), Config{Version: "1.2.3"}, WithLogger(quietLogger()))
	h := s.Handler()

	rec, body := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])

	rec, _ = do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.Health().SetReady(true)
	rec, _ = do(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_IndexLifecycle(t *testing.T) {
	h := newTestServer(t, Config{})
	dir := t.TempDir()

	path := createDocs(t, h, dir)
	assert.Equal(t, filepath.Join(dir, "docs.faiss"), path)

	rec, body := do(t, h, http.MethodPost, "/faiss/indexes/upsert", map[string]any{
		"db_path": path,
		"items": []map[string]any{
			{"id": 1, "text": "one", "vector": []float32{1, 0}, "metadata": map[string]any{"source": "a.pdf"}},
			{"id": 2, "text": "two", "vector": []float32{0, 3}},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, path, body["db_path"])
	assert.Equal(t, float64(2), body["upserted"])
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(2), body["dimension"])
	assert.Equal(t, "l2", body["metric"])

	t.Run("Info", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/faiss/indexes/info?db_path="+path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), body["total"])
		assert.Equal(t, "l2", body["metric"])
	})

	t.Run("Content", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/faiss/indexes/content?db_path="+path+"&limit=1&preview_dim=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(2), body["total"])

		items := body["items"].([]any)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, float64(1), item["id"])
		assert.Equal(t, "one", item["text"])
		assert.Equal(t, map[string]any{"source": "a.pdf"}, item["metadata"])
		assert.Equal(t, []any{float64(1)}, item["embedding_preview"])

		rec, body = do(t, h, http.MethodGet, "/faiss/indexes/content?db_path="+path+"&offset=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		items = body["items"].([]any)
		require.Len(t, items, 1)
		item = items[0].(map[string]any)
		assert.Equal(t, map[string]any{}, item["metadata"])
		assert.Equal(t, []any{float64(0), float64(3)}, item["embedding_preview"])
	})

	t.Run("Search", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/faiss/indexes/search", map[string]any{
			"db_path": path,
			"vector":  []float32{0, 2},
			"k":       1,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		hits := body["hits"].([]any)
		require.Len(t, hits, 1)
		assert.Equal(t, float64(2), hits[0].(map[string]any)["id"])
		assert.Equal(t, float64(1), hits[0].(map[string]any)["score"])
	})

	t.Run("SearchWithFilter", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/faiss/indexes/search", map[string]any{
			"db_path": path,
			"vector":  []float32{0, 2},
			"k":       2,
			"filter":  map[string]any{"filters": []map[string]any{{"key": "source", "op": "eq", "value": "a.pdf"}}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		hits := body["hits"].([]any)
		require.Len(t, hits, 1)
		assert.Equal(t, float64(1), hits[0].(map[string]any)["id"])
	})

	t.Run("Vector", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/faiss/indexes/vector?db_path="+path+"&id=2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []any{float64(0), float64(3)}, body["vector"])
	})

	t.Run("List", func(t *testing.T) {
		rec, body := do(t, h, http.MethodGet, "/faiss/indexes/list?base_dir="+dir, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, dir, body["base_dir"])
		assert.Equal(t, []any{map[string]any{"name": "docs", "db_path": path}}, body["indexes"])
	})

	t.Run("Delete", func(t *testing.T) {
		rec, body := do(t, h, http.MethodPost, "/faiss/indexes/delete", map[string]any{"db_path": path, "ids": []int{1, 1, 7}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, float64(2), body["requested"])
		assert.Equal(t, float64(1), body["deleted"])
		assert.Equal(t, float64(1), body["total"])
	})
}

func TestServer_Errors(t *testing.T) {
	h := newTestServer(t, Config{})
	dir := t.TempDir()
	path := createDocs(t, h, dir)
	missing := filepath.Join(dir, "missing.faiss")

	tests := []struct {
		name   string
		method string
		target string
		body   any
		code   int
	}{
		{"InfoWithoutPath", http.MethodGet, "/faiss/indexes/info", nil, http.StatusBadRequest},
		{"InfoMissing", http.MethodGet, "/faiss/indexes/info?db_path=" + missing, nil, http.StatusNotFound},
		{"CreateExists", http.MethodPost, "/faiss/indexes/create", map[string]any{"db_path": path, "dimension": 2}, http.StatusBadRequest},
		{"CreateNoLocation", http.MethodPost, "/faiss/indexes/create", map[string]any{"dimension": 2}, http.StatusBadRequest},
		{"CreateZeroDimension", http.MethodPost, "/faiss/indexes/create", map[string]any{"base_dir": dir, "db_name": "x", "dimension": 0}, http.StatusBadRequest},
		{"CreateBadMetric", http.MethodPost, "/faiss/indexes/create", map[string]any{"base_dir": dir, "db_name": "x", "dimension": 2, "metric": "hamming"}, http.StatusBadRequest},
		{"CreateBadName", http.MethodPost, "/faiss/indexes/create", map[string]any{"base_dir": dir, "db_name": "!!!", "dimension": 2}, http.StatusBadRequest},
		{"UpsertMismatch", http.MethodPost, "/faiss/indexes/upsert", map[string]any{"db_path": path, "items": []map[string]any{{"id": 1, "vector": []float32{1, 2, 3}}}}, http.StatusBadRequest},
		{"UpsertMissing", http.MethodPost, "/faiss/indexes/upsert", map[string]any{"db_path": missing, "items": []map[string]any{{"id": 1, "vector": []float32{1, 2}}}}, http.StatusNotFound},
		{"UpsertDuplicate", http.MethodPost, "/faiss/indexes/upsert", map[string]any{"db_path": path, "items": []map[string]any{{"id": 1, "vector": []float32{1, 2}}, {"id": 1, "vector": []float32{1, 2}}}}, http.StatusBadRequest},
		{"UpsertEmpty", http.MethodPost, "/faiss/indexes/upsert", map[string]any{"db_path": path, "items": []any{}}, http.StatusBadRequest},
		{"UpsertNoPath", http.MethodPost, "/faiss/indexes/upsert", map[string]any{"items": []any{}}, http.StatusBadRequest},
		{"UpsertMetadataNotObject", http.MethodPost, "/faiss/indexes/upsert", `{"db_path":"` + path + `","items":[{"id":1,"vector":[1,2],"metadata":[1]}]}`, http.StatusBadRequest},
		{"MalformedJSON", http.MethodPost, "/faiss/indexes/upsert", `{"db_path":`, http.StatusBadRequest},
		{"ContentLimitZero", http.MethodGet, "/faiss/indexes/content?limit=0&db_path=" + path, nil, http.StatusBadRequest},
		{"ContentLimitTooLarge", http.MethodGet, "/faiss/indexes/content?limit=501&db_path=" + path, nil, http.StatusBadRequest},
		{"ContentPreviewTooLarge", http.MethodGet, "/faiss/indexes/content?preview_dim=65&db_path=" + path, nil, http.StatusBadRequest},
		{"ContentNegativeOffset", http.MethodGet, "/faiss/indexes/content?offset=-1&db_path=" + path, nil, http.StatusBadRequest},
		{"ContentNotInteger", http.MethodGet, "/faiss/indexes/content?limit=ten&db_path=" + path, nil, http.StatusBadRequest},
		{"ContentMissing", http.MethodGet, "/faiss/indexes/content?db_path=" + missing, nil, http.StatusNotFound},
		{"SearchBadK", http.MethodPost, "/faiss/indexes/search", map[string]any{"db_path": path, "vector": []float32{1, 2}, "k": 0}, http.StatusBadRequest},
		{"SearchBadFilter", http.MethodPost, "/faiss/indexes/search", map[string]any{"db_path": path, "vector": []float32{1, 2}, "k": 1, "filter": map[string]any{"filters": []map[string]any{{"key": "a", "op": "like", "value": 1}}}}, http.StatusBadRequest},
		{"DeleteEmpty", http.MethodPost, "/faiss/indexes/delete", map[string]any{"db_path": path, "ids": []int{}}, http.StatusBadRequest},
		{"VectorBadID", http.MethodGet, "/faiss/indexes/vector?id=x&db_path=" + path, nil, http.StatusBadRequest},
		{"VectorMissingID", http.MethodGet, "/faiss/indexes/vector?id=5&db_path=" + path, nil, http.StatusNotFound},
		{"ListWithoutBaseDir", http.MethodGet, "/faiss/indexes/list", nil, http.StatusBadRequest},
		{"ListMissingBaseDir", http.MethodGet, "/faiss/indexes/list?base_dir=" + filepath.Join(dir, "nope"), nil, http.StatusNotFound},
		{"ListBadRecursive", http.MethodGet, "/faiss/indexes/list?recursive=maybe&base_dir=" + dir, nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["detail"])
		})
	}

	t.Run("MethodNotAllowed", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodGet, "/faiss/indexes/create", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("IndexUnchangedAfterFailures", func(t *testing.T) {
		_, body := do(t, h, http.MethodGet, "/faiss/indexes/info?db_path="+path, nil)
		assert.Equal(t, float64(0), body["total"])
	})
}

func TestServer_BodyLimit(t *testing.T) {
	h := newTestServer(t, Config{MaxBodyBytes: 16})
	rec, body := do(t, h, http.MethodPost, "/faiss/indexes/create", map[string]any{"base_dir": t.TempDir(), "db_name": "docs", "dimension": 2})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotEmpty(t, body["detail"])
}

func TestServer_RequestID(t *testing.T) {
	h := newTestServer(t, Config{})

	rec, _ := do(t, h, http.MethodGet, "/health", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestServer_CORS(t *testing.T) {
	t.Run("Wildcard", func(t *testing.T) {
		h := newTestServer(t, Config{})
		req := httptest.NewRequest(http.MethodOptions, "/faiss/indexes/create", nil)
		req.Header.Set("Origin", "https://ui.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
	})

	t.Run("ExplicitOrigins", func(t *testing.T) {
		h := newTestServer(t, Config{CORSOrigins: []string{"https://ui.example"}})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://ui.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "https://ui.example", rec.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServer_RateLimit(t *testing.T) {
	h := newTestServer(t, Config{RateLimit: 0.001, RateBurst: 1})

	rec, _ := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", body["detail"])
}

func TestServer_Metrics(t *testing.T) {
	metrics := observability.NewPrometheusCollector()
	store := chunkcanvas.New(chunkcanvas.WithMetricsCollector(metrics))
	h := New(store, Config{}, WithLogger(quietLogger()), WithMetrics(metrics)).Handler()

	createDocs(t, h, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	text := rec.Body.String()
	assert.Contains(t, text, `chunkcanvas_http_requests_total{code="200",route="/faiss/indexes/create"} 1`)
	assert.Contains(t, text, `chunkcanvas_operation_latency_seconds_count{op="create",status="success"} 1`)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := New(chunkcanvas.New(), Config{}, WithLogger(quietLogger()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/ready"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-errCh)
}
