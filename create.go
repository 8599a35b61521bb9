package chunkcanvas

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/index/flat"
	"github.com/hupe1980/chunkcanvas/internal/fs"
	"github.com/hupe1980/chunkcanvas/metadata"
)

// Create creates an empty index and its sidecar. It fails with
// ErrAlreadyExists if the index file exists and req.Overwrite is false; with
// Overwrite an existing pair is replaced by an empty one.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Info, error) {
	start := time.Now()
	info, err := s.create(ctx, req)
	err = translateError(err)
	s.opts.metricsCollector.RecordCreate(time.Since(start), err)

	path := req.Path
	if info != nil {
		path = info.Path
	}
	s.opts.logger.LogCreate(ctx, path, req.Dimension, req.Metric, err)
	return info, err
}

func (s *Store) create(ctx context.Context, req CreateRequest) (*Info, error) {
	metric, err := distance.ParseMetric(strings.ToLower(strings.TrimSpace(req.Metric)))
	if err != nil {
		return nil, err
	}
	idx, err := flat.New(req.Dimension, metric)
	if err != nil {
		return nil, err
	}

	loc, err := catalog.ResolveForCreate(catalog.CreateLocation{
		Path:    req.Path,
		BaseDir: req.BaseDir,
		Name:    req.Name,
	})
	if err != nil {
		return nil, err
	}

	if err := s.opts.fsys.MkdirAll(filepath.Dir(loc.IndexPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	unlock, err := s.lock(ctx, loc, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := fs.Exists(s.opts.fsys, loc.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if exists && !req.Overwrite {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, loc.IndexPath)
	}

	st := &state{loc: loc, idx: idx, side: metadata.NewSidecar()}
	if err := s.commitPair(ctx, loc, st.idx, st.side); err != nil {
		return nil, err
	}
	s.mirror(ctx, st)

	return st.info(), nil
}
