// Package flat provides an ID-mapped flat index: vectors are addressed by
// caller-chosen int64 IDs and searched by exact scan.
package flat

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/chunkcanvas/distance"
	"github.com/hupe1980/chunkcanvas/internal/queue"
	"github.com/hupe1980/chunkcanvas/persistence"
)

// SearchResult is one hit of a search.
type SearchResult struct {
	ID int64
	// Score is the squared Euclidean distance for l2 (lower is better) and the
	// inner product for ip and cosine (higher is better).
	Score float32
}

// Flat stores vectors contiguously in fixed-size slots. A map resolves IDs to
// slots and a roaring bitmap tracks slots freed by removals so they can be
// reused. Flat is safe for concurrent use.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	metric    distance.Metric
	distFunc  distance.Func

	data    []float32        // len(slotIDs) * dimension values
	slotIDs []int64          // owning ID of each slot; stale for free slots
	slots   map[int64]uint32 // ID -> slot
	free    *roaring.Bitmap  // free slots
}

// New creates an empty index.
func New(dimension int, metric distance.Metric) (*Flat, error) {
	if dimension <= 0 || dimension > persistence.MaxDimension {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrInvalidDimension, dimension, persistence.MaxDimension)
	}
	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &Flat{
		dimension: dimension,
		metric:    metric,
		distFunc:  fn,
		slots:     make(map[int64]uint32),
		free:      roaring.New(),
	}, nil
}

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int { return f.dimension }

// Metric returns the metric the index was created with.
func (f *Flat) Metric() distance.Metric { return f.metric }

// Count returns the number of stored vectors.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.slots)
}

// Contains reports whether id has a stored vector.
func (f *Flat) Contains(id int64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.slots[id]
	return ok
}

// IDs returns all stored IDs in ascending order.
func (f *Flat) IDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.slots))
}

// CheckDimension returns a *DimensionMismatchError if len(v) differs from the
// index dimension.
func (f *Flat) CheckDimension(v []float32) error {
	if len(v) != f.dimension {
		return &DimensionMismatchError{Expected: f.dimension, Actual: len(v)}
	}
	return nil
}

// Upsert stores vectors under ids with replace semantics: existing IDs are
// removed first, then every pair is added. Under cosine the stored vectors are
// L2-normalized copies; a zero vector is stored unchanged. Nothing is modified
// if any vector has the wrong dimension.
func (f *Flat) Upsert(ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("%w: %d ids, %d vectors", ErrLengthMismatch, len(ids), len(vectors))
	}

	prepared := make([][]float32, len(vectors))
	for i, v := range vectors {
		if err := f.CheckDimension(v); err != nil {
			return err
		}
		if f.metric.Normalizes() {
			prepared[i] = distance.NormalizeL2Copy(v)
		} else {
			prepared[i] = v
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.removeLocked(ids)
	for i, id := range ids {
		f.addLocked(id, prepared[i])
	}
	return nil
}

// Remove deletes the given IDs and returns how many were present. Unknown IDs
// are ignored.
func (f *Flat) Remove(ids []int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked(ids)
}

func (f *Flat) removeLocked(ids []int64) int {
	n := 0
	for _, id := range ids {
		slot, ok := f.slots[id]
		if !ok {
			continue
		}
		delete(f.slots, id)
		f.free.Add(slot)
		n++
	}
	return n
}

// addLocked copies v into a slot for id. An id already present is overwritten in place.
func (f *Flat) addLocked(id int64, v []float32) {
	slot, ok := f.slots[id]
	if !ok {
		if !f.free.IsEmpty() {
			slot = f.free.Minimum()
			f.free.Remove(slot)
		} else {
			slot = uint32(len(f.slotIDs))
			f.slotIDs = append(f.slotIDs, 0)
			f.data = append(f.data, make([]float32, f.dimension)...)
		}
		f.slots[id] = slot
		f.slotIDs[slot] = id
	}
	copy(f.vectorAt(slot), v)
}

func (f *Flat) vectorAt(slot uint32) []float32 {
	off := int(slot) * f.dimension
	return f.data[off : off+f.dimension : off+f.dimension]
}

// Reconstruct returns a copy of the stored vector for id, or false if id is
// not present. Under cosine the normalized vector is returned.
func (f *Flat) Reconstruct(id int64) ([]float32, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	slot, ok := f.slots[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(f.vectorAt(slot)), true
}

// Search returns the k best matches for query, best first.
func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	return f.SearchWithFilter(query, k, nil)
}

// SearchWithFilter is Search restricted to IDs accepted by filter. A nil
// filter accepts every ID. Ties are broken by ascending ID.
func (f *Flat) SearchWithFilter(query []float32, k int, filter func(id int64) bool) ([]SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if err := f.CheckDimension(query); err != nil {
		return nil, err
	}

	q := query
	if f.metric.Normalizes() {
		q = distance.NormalizeL2Copy(query)
	}
	higherIsBetter := f.metric.HigherIsBetter()

	f.mu.RLock()
	defer f.mu.RUnlock()

	top := queue.NewTopK(min(k, len(f.slots)+1))
	for id, slot := range f.slots {
		if filter != nil && !filter(id) {
			continue
		}
		d := f.distFunc(q, f.vectorAt(slot))
		if higherIsBetter {
			d = -d
		}
		top.Offer(queue.Item{ID: id, Distance: d})
	}

	items := top.Drain()
	results := make([]SearchResult, len(items))
	for i, it := range items {
		score := it.Distance
		if higherIsBetter {
			score = -score
		}
		results[i] = SearchResult{ID: it.ID, Score: score}
	}
	return results, nil
}
