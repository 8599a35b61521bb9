package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chunkcanvas/distance"
)

func TestNew(t *testing.T) {
	_, err := New(0, distance.MetricL2)
	assert.ErrorIs(t, err, ErrInvalidDimension)

	_, err = New(3, distance.Metric("hamming"))
	assert.ErrorIs(t, err, distance.ErrUnsupportedMetric)

	f, err := New(3, distance.MetricIP)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Dimension())
	assert.Equal(t, distance.MetricIP, f.Metric())
	assert.Equal(t, 0, f.Count())
}

func TestFlat(t *testing.T) {
	t.Run("Upsert", func(t *testing.T) {
		f, err := New(3, distance.MetricL2)
		require.NoError(t, err)

		require.NoError(t, f.Upsert([]int64{7, 3}, [][]float32{{1, 2, 3}, {4, 5, 6}}))
		assert.Equal(t, 2, f.Count())
		assert.Equal(t, []int64{3, 7}, f.IDs())

		v, ok := f.Reconstruct(7)
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 3}, v)
	})

	t.Run("ReplaceKeepsCount", func(t *testing.T) {
		f, _ := New(2, distance.MetricL2)
		require.NoError(t, f.Upsert([]int64{1}, [][]float32{{1, 1}}))
		require.NoError(t, f.Upsert([]int64{1}, [][]float32{{2, 2}}))
		assert.Equal(t, 1, f.Count())

		v, _ := f.Reconstruct(1)
		assert.Equal(t, []float32{2, 2}, v)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		f, _ := New(3, distance.MetricL2)
		require.NoError(t, f.Upsert([]int64{1}, [][]float32{{1, 2, 3}}))

		err := f.Upsert([]int64{2, 3}, [][]float32{{1, 2, 3}, {1, 2}})
		require.ErrorIs(t, err, ErrDimensionMismatch)

		var dm *DimensionMismatchError
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)
		assert.Equal(t, []int64{1}, f.IDs(), "a rejected batch changes nothing")
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		f, _ := New(2, distance.MetricL2)
		assert.ErrorIs(t, f.Upsert([]int64{1, 2}, [][]float32{{1, 1}}), ErrLengthMismatch)
	})

	t.Run("CosineNormalizes", func(t *testing.T) {
		f, _ := New(2, distance.MetricCosine)
		input := []float32{3, 4}
		require.NoError(t, f.Upsert([]int64{1, 2}, [][]float32{input, {0, 0}}))

		v, _ := f.Reconstruct(1)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
		assert.Equal(t, []float32{3, 4}, input, "caller's vector is not modified")

		zero, ok := f.Reconstruct(2)
		require.True(t, ok)
		assert.Equal(t, []float32{0, 0}, zero)
	})

	t.Run("IPDoesNotNormalize", func(t *testing.T) {
		f, _ := New(2, distance.MetricIP)
		require.NoError(t, f.Upsert([]int64{1}, [][]float32{{3, 4}}))
		v, _ := f.Reconstruct(1)
		assert.Equal(t, []float32{3, 4}, v)
	})

	t.Run("RemoveAndReuse", func(t *testing.T) {
		f, _ := New(2, distance.MetricL2)
		require.NoError(t, f.Upsert([]int64{1, 2, 3}, [][]float32{{1, 1}, {2, 2}, {3, 3}}))

		assert.Equal(t, 1, f.Remove([]int64{2, 42}))
		assert.Equal(t, 2, f.Count())
		assert.False(t, f.Contains(2))
		_, ok := f.Reconstruct(2)
		assert.False(t, ok)

		require.NoError(t, f.Upsert([]int64{9}, [][]float32{{9, 9}}))
		assert.Len(t, f.slotIDs, 3, "freed slot is reused")
		v, _ := f.Reconstruct(9)
		assert.Equal(t, []float32{9, 9}, v)
		v, _ = f.Reconstruct(3)
		assert.Equal(t, []float32{3, 3}, v)
	})

	t.Run("ReconstructReturnsCopy", func(t *testing.T) {
		f, _ := New(2, distance.MetricL2)
		require.NoError(t, f.Upsert([]int64{1}, [][]float32{{1, 2}}))
		v, _ := f.Reconstruct(1)
		v[0] = 100
		again, _ := f.Reconstruct(1)
		assert.Equal(t, []float32{1, 2}, again)
	})
}

func TestSearch(t *testing.T) {
	t.Run("L2", func(t *testing.T) {
		f, _ := New(3, distance.MetricL2)
		require.NoError(t, f.Upsert([]int64{10, 20, 30}, [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}))

		res, err := f.Search([]float32{0, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, int64(10), res[0].ID)
		assert.Equal(t, float32(14), res[0].Score)
		assert.Equal(t, int64(20), res[1].ID)
	})

	t.Run("IP", func(t *testing.T) {
		f, _ := New(2, distance.MetricIP)
		require.NoError(t, f.Upsert([]int64{1, 2, 3}, [][]float32{{1, 0}, {5, 0}, {0, 9}}))

		res, err := f.Search([]float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, []int64{2, 1, 3}, []int64{res[0].ID, res[1].ID, res[2].ID})
		assert.Equal(t, float32(5), res[0].Score)
	})

	t.Run("Cosine", func(t *testing.T) {
		f, _ := New(2, distance.MetricCosine)
		require.NoError(t, f.Upsert([]int64{1, 2}, [][]float32{{10, 0}, {1, 1}}))

		res, err := f.Search([]float32{3, 0}, 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, int64(1), res[0].ID)
		assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	})

	t.Run("Filter", func(t *testing.T) {
		f, _ := New(1, distance.MetricL2)
		require.NoError(t, f.Upsert([]int64{1, 2, 3, 4}, [][]float32{{1}, {2}, {3}, {4}}))

		res, err := f.SearchWithFilter([]float32{0}, 10, func(id int64) bool { return id%2 == 0 })
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, int64(2), res[0].ID)
		assert.Equal(t, int64(4), res[1].ID)
	})

	t.Run("Errors", func(t *testing.T) {
		f, _ := New(2, distance.MetricL2)
		_, err := f.Search([]float32{1, 2}, 0)
		assert.ErrorIs(t, err, ErrInvalidK)
		_, err = f.Search([]float32{1}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)

		res, err := f.Search([]float32{1, 2}, 3)
		require.NoError(t, err)
		assert.Empty(t, res)
	})
}

func BenchmarkFlatSearch(b *testing.B) {
	const dim, n = 128, 10_000
	f, _ := New(dim, distance.MetricCosine)

	ids := make([]int64, n)
	vecs := make([][]float32, n)
	for i := range vecs {
		ids[i] = int64(i)
		vecs[i] = make([]float32, dim)
		for j := range vecs[i] {
			vecs[i][j] = float32((i*31+j*17)%97) / 97
		}
	}
	if err := f.Upsert(ids, vecs); err != nil {
		b.Fatal(err)
	}

	query := vecs[n/2]
	b.ReportAllocs()
	for b.Loop() {
		if _, err := f.Search(query, 10); err != nil {
			b.Fatal(err)
		}
	}
}
