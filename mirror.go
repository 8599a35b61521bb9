package chunkcanvas

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chunkcanvas/blobstore"
	"github.com/hupe1980/chunkcanvas/catalog"
	"github.com/hupe1980/chunkcanvas/internal/fs"
)

// mirror uploads the committed pair of st to the configured blob store and
// journals the upload. Failures are logged and counted but never returned:
// the local commit already succeeded. The caller must hold the lock of
// st.loc so the uploaded files belong to the same commit.
func (s *Store) mirror(ctx context.Context, st *state) {
	if s.opts.mirror == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	version, err := s.upload(ctx, st)
	s.opts.metricsCollector.RecordMirror(time.Since(start), err)
	s.opts.logger.LogMirror(ctx, st.loc.Name(), version, err)
}

func (s *Store) upload(ctx context.Context, st *state) (uint64, error) {
	name := st.loc.Name()
	indexKey := name + catalog.IndexExt
	metaKey := name + catalog.MetaExt

	files := []struct {
		key  string
		path string
	}{
		{indexKey, st.loc.IndexPath},
		{metaKey, st.loc.MetaPath},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			data, err := fs.ReadFile(s.opts.fsys, f.path)
			if err != nil {
				return err
			}
			return s.opts.mirror.Put(gctx, f.key, data)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if s.opts.journal == nil {
		return 0, nil
	}
	return s.opts.journal.Append(ctx, blobstore.Commit{
		Index:     name,
		IndexKey:  indexKey,
		MetaKey:   metaKey,
		Total:     st.idx.Count(),
		Dimension: st.idx.Dimension(),
		Metric:    st.idx.Metric().String(),
		Time:      time.Now().UTC(),
	})
}
