package chunkcanvas

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/chunkcanvas/metadata"
)

// Upsert inserts or replaces every item of the batch in both the vector index
// and the sidecar of the index at path, then commits the pair.
//
// The batch is rejected before any state is touched if it is empty
// (ErrEmptyBatch), repeats an ID (*DuplicateIDError) or carries a vector whose
// length differs from the index dimension (*DimensionMismatchError, for the
// first offending item). Upsert never creates an index; a missing index fails
// with ErrNotFound.
func (s *Store) Upsert(ctx context.Context, path string, items []Item) (*UpsertResult, error) {
	start := time.Now()
	res, err := s.upsert(ctx, path, items)
	err = translateError(err)
	s.opts.metricsCollector.RecordUpsert(len(items), time.Since(start), err)

	total := 0
	if res != nil {
		path, total = res.Path, res.Total
	}
	s.opts.logger.LogUpsert(ctx, path, len(items), total, err)
	return res, err
}

func (s *Store) upsert(ctx context.Context, path string, items []Item) (*UpsertResult, error) {
	if err := validateBatch(items); err != nil {
		return nil, err
	}

	st, unlock, err := s.open(ctx, path, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids := make([]int64, len(items))
	vectors := make([][]float32, len(items))
	for i, it := range items {
		if err := st.idx.CheckDimension(it.Vector); err != nil {
			return nil, &DimensionMismatchError{
				Expected: st.idx.Dimension(),
				Actual:   len(it.Vector),
				ID:       it.ID,
				HasID:    true,
				cause:    err,
			}
		}
		ids[i] = it.ID
		vectors[i] = it.Vector
	}

	if err := st.idx.Upsert(ids, vectors); err != nil {
		return nil, err
	}
	for _, it := range items {
		st.side.Upsert(it.ID, metadata.Record{Text: it.Text, Metadata: it.Metadata.Clone()})
	}

	if err := s.commitPair(ctx, st.loc, st.idx, st.side); err != nil {
		return nil, err
	}
	s.mirror(ctx, st)

	info := st.info()
	return &UpsertResult{
		Path:      info.Path,
		Upserted:  len(items),
		Total:     info.Total,
		Dimension: info.Dimension,
		Metric:    info.Metric,
	}, nil
}

func validateBatch(items []Item) error {
	if len(items) == 0 {
		return ErrEmptyBatch
	}
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			return &DuplicateIDError{ID: it.ID}
		}
		seen[it.ID] = struct{}{}
	}
	for _, it := range items {
		if _, err := it.Metadata.MarshalJSON(); err != nil {
			return fmt.Errorf("%w: metadata of id %d: %w", ErrInvalidArgument, it.ID, err)
		}
	}
	return nil
}

// Delete removes ids from both files of the index at path. Unknown IDs are
// ignored; the pair is only rewritten if something was removed.
func (s *Store) Delete(ctx context.Context, path string, ids []int64) (*DeleteResult, error) {
	start := time.Now()
	res, err := s.delete(ctx, path, ids)
	err = translateError(err)
	s.opts.metricsCollector.RecordDelete(len(ids), time.Since(start), err)

	requested, deleted := len(ids), 0
	if res != nil {
		path, requested, deleted = res.Path, res.Requested, res.Deleted
	}
	s.opts.logger.LogDelete(ctx, path, requested, deleted, err)
	return res, err
}

func (s *Store) delete(ctx context.Context, path string, ids []int64) (*DeleteResult, error) {
	if len(ids) == 0 {
		return nil, ErrEmptyBatch
	}
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}

	st, unlock, err := s.open(ctx, path, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	deleted := st.idx.Remove(unique)
	if dropped := st.side.Remove(unique...); deleted > 0 || dropped > 0 {
		if err := s.commitPair(ctx, st.loc, st.idx, st.side); err != nil {
			return nil, fmt.Errorf("delete: %w", err)
		}
		s.mirror(ctx, st)
	}

	return &DeleteResult{
		Path:      st.loc.IndexPath,
		Requested: len(unique),
		Deleted:   deleted,
		Total:     st.idx.Count(),
	}, nil
}
