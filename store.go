package chunkcanvas

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/index/flat"
	"github.com/hupe1980/chunkcanvas/metadata"
)

// Store creates, mutates and reads embedding indexes. It holds no index in
// memory between calls: every operation loads the pair it works on. A Store
// is safe for concurrent use.
type Store struct {
	opts  options
	locks *lockTable
}

// New creates a Store.
func New(optFns ...Option) *Store {
	return &Store{
		opts:  applyOptions(optFns),
		locks: newLockTable(),
	}
}

// Info describes an index.
type Info struct {
	Path      string
	Total     int
	Dimension int
	Metric    distance.Metric
}

// CreateRequest references the index to create: either Path, or BaseDir
// together with Name. An empty Metric means cosine.
type CreateRequest struct {
	Path      string
	BaseDir   string
	Name      string
	Dimension int
	Metric    string
	Overwrite bool
}

// Item is one entry of an upsert batch.
type Item struct {
	ID       int64
	Text     string
	Vector   []float32
	Metadata *metadata.Document
}

// UpsertResult reports the state of an index after an upsert.
type UpsertResult struct {
	Path      string
	Upserted  int
	Total     int
	Dimension int
	Metric    distance.Metric
}

// DeleteResult reports the outcome of a delete.
type DeleteResult struct {
	Path string
	// Requested is the number of distinct IDs asked for.
	Requested int
	// Deleted is the number of IDs that had a stored vector.
	Deleted int
	Total   int
}

// ContentQuery selects a page of records. Zero Limit and PreviewDim select
// DefaultPageSize and DefaultPreviewDim.
type ContentQuery struct {
	Offset     int
	Limit      int
	PreviewDim int
}

// RecordView is one record of a content page. Preview holds the leading
// components of the stored vector and is empty when no vector is stored.
type RecordView struct {
	ID       int64
	Text     string
	Metadata *metadata.Document
	Preview  []float32
}

// Page is a slice of the records of an index in ascending ID order.
type Page struct {
	Path      string
	Total     int
	Dimension int
	Metric    distance.Metric
	Offset    int
	Limit     int
	Items     []RecordView
}

// SearchQuery is a k-nearest-neighbor query. A non-nil Filter restricts the
// candidates to records whose metadata matches it.
type SearchQuery struct {
	Vector []float32
	K      int
	Filter *metadata.FilterSet
}

// Hit is one search result joined with its record.
type Hit struct {
	ID int64
	// Score is the squared Euclidean distance for l2 and the inner product
	// otherwise.
	Score    float32
	Text     string
	Metadata *metadata.Document
}

// SearchResult holds the hits of a search, best first.
type SearchResult struct {
	Path   string
	Metric distance.Metric
	Hits   []Hit
}

// Listing is the result of List.
type Listing struct {
	BaseDir string
	Indexes []catalog.Entry
}

// state is a loaded index pair.
type state struct {
	loc  catalog.Location
	idx  *flat.Flat
	side *metadata.Sidecar
}

func (st *state) info() *Info {
	return &Info{
		Path:      st.loc.IndexPath,
		Total:     st.idx.Count(),
		Dimension: st.idx.Dimension(),
		Metric:    st.idx.Metric(),
	}
}

// open resolves path, locks it and loads the pair. A pending commit is
// recovered first, which requires the exclusive lock; shared openers upgrade
// for that case and keep the exclusive lock until they release.
func (s *Store) open(ctx context.Context, path string, exclusive bool) (*state, func(), error) {
	loc, err := catalog.ResolveForAccess(path)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := s.lock(ctx, loc, exclusive)
	if err != nil {
		return nil, nil, err
	}

	if !exclusive {
		pending, err := s.hasPending(loc)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if pending {
			unlock()
			if unlock, err = s.lock(ctx, loc, true); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := s.recoverPending(ctx, loc); err != nil {
		unlock()
		return nil, nil, err
	}

	st, err := s.load(ctx, loc)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return st, unlock, nil
}

// load reads both files of loc. The caller must hold a lock of loc.
func (s *Store) load(ctx context.Context, loc catalog.Location) (*state, error) {
	idx, err := flat.LoadFromFile(s.opts.fsys, loc.IndexPath)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, fmt.Errorf("%w: index %s", ErrNotFound, loc.IndexPath)
		case errors.Is(err, flat.ErrCorruptIndex):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: read index: %w", ErrIO, err)
		}
	}

	side, err := metadata.LoadSidecar(s.opts.fsys, loc.MetaPath, s.opts.codec)
	if err != nil {
		if errors.Is(err, metadata.ErrCorruptMetadata) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read metadata: %w", ErrIO, err)
	}

	// The vector index decides the metric; it cannot change after creation.
	if _, ok := side.Dimension(); ok && side.Metric() != idx.Metric() {
		s.opts.logger.WarnContext(ctx, "sidecar metric differs from index",
			"path", loc.IndexPath,
			"sidecar", side.Metric(),
			"index", idx.Metric(),
		)
	}

	return &state{loc: loc, idx: idx, side: side}, nil
}
