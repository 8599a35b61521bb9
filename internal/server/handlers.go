package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hupe1980/chunkcanvas"
	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/internal/observability"
	"github.com/hupe1980/chunkcanvas/metadata"
)

type createIndexRequest struct {
	DBPath    string `json:"db_path"`
	BaseDir   string `json:"base_dir"`
	DBName    string `json:"db_name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Overwrite bool   `json:"overwrite"`
}

type upsertItem struct {
	ID       int64              `json:"id"`
	Text     string             `json:"text"`
	Vector   []float32          `json:"vector"`
	Metadata *metadata.Document `json:"metadata"`
}

type upsertRequest struct {
	DBPath string       `json:"db_path"`
	Items  []upsertItem `json:"items"`
}

type deleteRequest struct {
	DBPath string  `json:"db_path"`
	IDs    []int64 `json:"ids"`
}

type searchRequest struct {
	DBPath string              `json:"db_path"`
	Vector []float32           `json:"vector"`
	K      int                 `json:"k"`
	Filter *metadata.FilterSet `json:"filter,omitempty"`
}

type infoResponse struct {
	DBPath    string          `json:"db_path"`
	Total     int             `json:"total"`
	Metric    distance.Metric `json:"metric"`
	Dimension int             `json:"dimension"`
}

type upsertResponse struct {
	DBPath    string          `json:"db_path"`
	Upserted  int             `json:"upserted"`
	Total     int             `json:"total"`
	Dimension int             `json:"dimension"`
	Metric    distance.Metric `json:"metric"`
}

type deleteResponse struct {
	DBPath    string `json:"db_path"`
	Requested int    `json:"requested"`
	Deleted   int    `json:"deleted"`
	Total     int    `json:"total"`
}

type recordView struct {
	ID               int64              `json:"id"`
	Text             string             `json:"text"`
	Metadata         *metadata.Document `json:"metadata"`
	EmbeddingPreview []float32          `json:"embedding_preview"`
}

type contentResponse struct {
	DBPath    string          `json:"db_path"`
	Total     int             `json:"total"`
	Metric    distance.Metric `json:"metric"`
	Dimension int             `json:"dimension"`
	Items     []recordView    `json:"items"`
}

type searchHit struct {
	ID       int64              `json:"id"`
	Score    float32            `json:"score"`
	Text     string             `json:"text"`
	Metadata *metadata.Document `json:"metadata"`
}

type searchResponse struct {
	DBPath string          `json:"db_path"`
	Metric distance.Metric `json:"metric"`
	Hits   []searchHit     `json:"hits"`
}

type vectorResponse struct {
	DBPath string    `json:"db_path"`
	ID     int64     `json:"id"`
	Vector []float32 `json:"vector"`
}

type indexEntry struct {
	Name   string `json:"name"`
	DBPath string `json:"db_path"`
}

type listIndexesResponse struct {
	BaseDir string       `json:"base_dir"`
	Indexes []indexEntry `json:"indexes"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	baseDir := q.Get("base_dir")
	if baseDir == "" {
		s.writeDetail(w, http.StatusBadRequest, "base_dir is required")
		return
	}
	recursive := true
	if v := q.Get("recursive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeDetail(w, http.StatusBadRequest, "recursive must be a boolean")
			return
		}
		recursive = b
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "list", baseDir)
	listing, err := s.store.List(ctx, baseDir, recursive)
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := listIndexesResponse{BaseDir: listing.BaseDir, Indexes: make([]indexEntry, 0, len(listing.Indexes))}
	for _, e := range listing.Indexes {
		resp.Indexes = append(resp.Indexes, indexEntry{Name: e.Name, DBPath: e.Path})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createIndexRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "create", req.DBPath)
	info, err := s.store.Create(ctx, chunkcanvas.CreateRequest{
		Path:      req.DBPath,
		BaseDir:   req.BaseDir,
		Name:      req.DBName,
		Dimension: req.Dimension,
		Metric:    req.Metric,
		Overwrite: req.Overwrite,
	})
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toInfoResponse(info))
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.DBPath == "" {
		s.writeDetail(w, http.StatusBadRequest, "db_path is required")
		return
	}

	items := make([]chunkcanvas.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = chunkcanvas.Item{ID: it.ID, Text: it.Text, Vector: it.Vector, Metadata: it.Metadata}
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "upsert", req.DBPath)
	observability.RecordCount(span, "items", len(items))
	res, err := s.store.Upsert(ctx, req.DBPath, items)
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, upsertResponse{
		DBPath:    res.Path,
		Upserted:  res.Upserted,
		Total:     res.Total,
		Dimension: res.Dimension,
		Metric:    res.Metric,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.DBPath == "" {
		s.writeDetail(w, http.StatusBadRequest, "db_path is required")
		return
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "delete", req.DBPath)
	observability.RecordCount(span, "ids", len(req.IDs))
	res, err := s.store.Delete(ctx, req.DBPath, req.IDs)
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, deleteResponse{
		DBPath:    res.Path,
		Requested: res.Requested,
		Deleted:   res.Deleted,
		Total:     res.Total,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.DBPath == "" {
		s.writeDetail(w, http.StatusBadRequest, "db_path is required")
		return
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "search", req.DBPath)
	res, err := s.store.Search(ctx, req.DBPath, chunkcanvas.SearchQuery{Vector: req.Vector, K: req.K, Filter: req.Filter})
	if err == nil {
		observability.RecordCount(span, "hits", len(res.Hits))
	}
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := searchResponse{DBPath: res.Path, Metric: res.Metric, Hits: make([]searchHit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		resp.Hits = append(resp.Hits, searchHit{ID: h.ID, Score: h.Score, Text: h.Text, Metadata: orEmpty(h.Metadata)})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	path, ok := s.requirePath(w, r.URL.Query())
	if !ok {
		return
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "info", path)
	info, err := s.store.Info(ctx, path)
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toInfoResponse(info))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, ok := s.requirePath(w, q)
	if !ok {
		return
	}

	var query chunkcanvas.ContentQuery
	var err error
	if query.Offset, err = intParam(q, "offset", 0, 0, -1); err == nil {
		if query.Limit, err = intParam(q, "limit", chunkcanvas.DefaultPageSize, 1, chunkcanvas.MaxPageSize); err == nil {
			query.PreviewDim, err = intParam(q, "preview_dim", chunkcanvas.DefaultPreviewDim, 1, chunkcanvas.MaxPreviewDim)
		}
	}
	if err != nil {
		s.writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "content", path)
	page, err := s.store.Content(ctx, path, query)
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := contentResponse{
		DBPath:    page.Path,
		Total:     page.Total,
		Metric:    page.Metric,
		Dimension: page.Dimension,
		Items:     make([]recordView, 0, len(page.Items)),
	}
	for _, it := range page.Items {
		resp.Items = append(resp.Items, recordView{
			ID:               it.ID,
			Text:             it.Text,
			Metadata:         orEmpty(it.Metadata),
			EmbeddingPreview: it.Preview,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVector(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path, ok := s.requirePath(w, q)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	if err != nil {
		s.writeDetail(w, http.StatusBadRequest, "id must be an integer")
		return
	}

	ctx, span := observability.StartIndexSpan(r.Context(), "vector", path)
	vec, err := s.store.Vector(ctx, path, id)
	observability.EndSpan(span, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vectorResponse{DBPath: path, ID: id, Vector: vec})
}

func toInfoResponse(info *chunkcanvas.Info) infoResponse {
	return infoResponse{
		DBPath:    info.Path,
		Total:     info.Total,
		Metric:    info.Metric,
		Dimension: info.Dimension,
	}
}

func orEmpty(doc *metadata.Document) *metadata.Document {
	if doc == nil {
		return metadata.NewDocument()
	}
	return doc
}

func (s *Server) requirePath(w http.ResponseWriter, q url.Values) (string, bool) {
	path := q.Get("db_path")
	if path == "" {
		s.writeDetail(w, http.StatusBadRequest, "db_path is required")
		return "", false
	}
	return path, true
}

// intParam parses an optional integer query parameter bounded below by lo
// and, unless hi is negative, above by hi.
func intParam(q url.Values, name string, def, lo, hi int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < lo || (hi >= 0 && n > hi) {
		if hi < 0 {
			return 0, fmt.Errorf("%s must be greater than or equal to %d", name, lo)
		}
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeDetail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeDetail(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := s.codec.Unmarshal(body, v); err != nil {
		s.writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case chunkcanvas.IsValidation(err), errors.Is(err, chunkcanvas.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, chunkcanvas.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chunkcanvas.ErrReconstructionUnsupported):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
	}
	s.writeDetail(w, code, err.Error())
}

func (s *Server) writeDetail(w http.ResponseWriter, code int, detail string) {
	s.writeJSON(w, code, detailResponse{Detail: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := s.codec.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
		code = http.StatusInternalServerError
		data = []byte(`{"detail":"internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(data, '\n'))
}
