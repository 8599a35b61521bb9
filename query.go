package chunkcanvas

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/chunkcanvas/catalog"
)

// Info returns the size, dimension and metric of the index at path.
func (s *Store) Info(ctx context.Context, path string) (*Info, error) {
	start := time.Now()
	info, err := s.info(ctx, path)
	err = translateError(err)
	s.opts.metricsCollector.RecordRead("info", time.Since(start), err)
	return info, err
}

func (s *Store) info(ctx context.Context, path string) (*Info, error) {
	st, unlock, err := s.open(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return st.info(), nil
}

// Content returns the page [Offset, Offset+Limit) of the records of the
// index at path, in ascending ID order. Each record carries a preview of its
// stored vector; a record without a vector gets an empty preview instead of
// failing the page. An offset past the end yields an empty page.
func (s *Store) Content(ctx context.Context, path string, q ContentQuery) (*Page, error) {
	start := time.Now()
	page, err := s.content(ctx, path, q)
	err = translateError(err)
	s.opts.metricsCollector.RecordRead("content", time.Since(start), err)
	return page, err
}

func (s *Store) content(ctx context.Context, path string, q ContentQuery) (*Page, error) {
	q, err := s.normalizeContentQuery(q)
	if err != nil {
		return nil, err
	}

	st, unlock, err := s.open(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids := st.side.IDs()
	from := min(q.Offset, len(ids))
	to := min(from+q.Limit, len(ids))

	items := make([]RecordView, 0, to-from)
	missing := 0
	for _, id := range ids[from:to] {
		rec, _ := st.side.Get(id)
		view := RecordView{
			ID:       id,
			Text:     rec.Text,
			Metadata: rec.Metadata.Clone(),
			Preview:  []float32{},
		}
		if v, ok := st.idx.Reconstruct(id); ok {
			view.Preview = v[:min(q.PreviewDim, len(v))]
		} else {
			missing++
		}
		items = append(items, view)
	}
	if missing > 0 {
		s.opts.logger.LogPreviewMiss(ctx, st.loc.IndexPath, missing)
	}

	info := st.info()
	return &Page{
		Path:      info.Path,
		Total:     info.Total,
		Dimension: info.Dimension,
		Metric:    info.Metric,
		Offset:    q.Offset,
		Limit:     q.Limit,
		Items:     items,
	}, nil
}

func (s *Store) normalizeContentQuery(q ContentQuery) (ContentQuery, error) {
	if q.Offset < 0 {
		return q, fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidArgument, q.Offset)
	}
	if q.Limit == 0 {
		q.Limit = DefaultPageSize
	}
	q.Limit = max(1, min(q.Limit, s.opts.maxPageSize))
	if q.PreviewDim == 0 {
		q.PreviewDim = DefaultPreviewDim
	}
	q.PreviewDim = max(1, min(q.PreviewDim, MaxPreviewDim))
	return q, nil
}

// Search returns the q.K stored vectors closest to q.Vector, joined with
// their records.
func (s *Store) Search(ctx context.Context, path string, q SearchQuery) (*SearchResult, error) {
	start := time.Now()
	res, err := s.search(ctx, path, q)
	err = translateError(err)
	s.opts.metricsCollector.RecordSearch(q.K, time.Since(start), err)

	hits := 0
	if res != nil {
		path, hits = res.Path, len(res.Hits)
	}
	s.opts.logger.LogSearch(ctx, path, q.K, hits, err)
	return res, err
}

func (s *Store) search(ctx context.Context, path string, q SearchQuery) (*SearchResult, error) {
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, q.K)
	}
	if q.Filter != nil {
		if err := q.Filter.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}

	st, unlock, err := s.open(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := st.idx.CheckDimension(q.Vector); err != nil {
		return nil, &DimensionMismatchError{
			Expected: st.idx.Dimension(),
			Actual:   len(q.Vector),
			cause:    err,
		}
	}

	var accept func(int64) bool
	if q.Filter != nil {
		accept = func(id int64) bool {
			rec, ok := st.side.Get(id)
			return ok && q.Filter.Matches(rec.Metadata)
		}
	}

	results, err := st.idx.SearchWithFilter(q.Vector, q.K, accept)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		rec, _ := st.side.Get(r.ID)
		hits[i] = Hit{
			ID:       r.ID,
			Score:    r.Score,
			Text:     rec.Text,
			Metadata: rec.Metadata.Clone(),
		}
	}
	return &SearchResult{
		Path:   st.loc.IndexPath,
		Metric: st.idx.Metric(),
		Hits:   hits,
	}, nil
}

// Vector returns the stored vector of id. Under cosine it is the normalized
// vector. It fails with ErrReconstructionUnsupported if id has a record but no
// vector, and with ErrNotFound if id is unknown.
func (s *Store) Vector(ctx context.Context, path string, id int64) ([]float32, error) {
	start := time.Now()
	v, err := s.vector(ctx, path, id)
	err = translateError(err)
	s.opts.metricsCollector.RecordRead("vector", time.Since(start), err)
	return v, err
}

func (s *Store) vector(ctx context.Context, path string, id int64) ([]float32, error) {
	st, unlock, err := s.open(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if v, ok := st.idx.Reconstruct(id); ok {
		return v, nil
	}
	if _, ok := st.side.Get(id); ok {
		return nil, fmt.Errorf("%w: id %d", ErrReconstructionUnsupported, id)
	}
	return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// List returns the indexes found below baseDir, sorted by path. Only the top
// level is searched unless recursive is set.
func (s *Store) List(ctx context.Context, baseDir string, recursive bool) (*Listing, error) {
	start := time.Now()
	listing, err := s.list(ctx, baseDir, recursive)
	err = translateError(err)
	s.opts.metricsCollector.RecordRead("list", time.Since(start), err)
	return listing, err
}

func (s *Store) list(ctx context.Context, baseDir string, recursive bool) (*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, entries, err := catalog.List(baseDir, recursive)
	if err != nil {
		return nil, err
	}
	return &Listing{BaseDir: root, Indexes: entries}, nil
}
