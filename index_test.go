package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := NewBuilder(3).WithMetric(EuclideanDistance).Build()
	require.NoError(t, err)
	return ix
}

func TestIndexInsertRejectsWrongDims(t *testing.T) {
	ix := newTestIndex(t)

	err := ix.Insert([]float32{1, 2}, 1)

	require.Error(t, err)
	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Found)
}

func TestIndexSearchRejectsWrongDims(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert([]float32{1, 2, 3}, 1))

	_, err := ix.Search([]float32{1, 2}, 1)

	require.Error(t, err)
	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
}

func TestIndexSearchOnEmptyIndexReturnsErrEmptyIndex(t *testing.T) {
	ix := newTestIndex(t)

	_, err := ix.Search([]float32{1, 2, 3}, 1)

	require.ErrorIs(t, err, ErrEmptyIndex)
}

// S1: insert N vectors, search k=1 for a vector identical to one inserted,
// expect that exact vector back at distance ~0.
func TestIndexScenarioExactMatch(t *testing.T) {
	ix := newTestIndex(t)
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {5, 5, 5}}
	for i, v := range vectors {
		require.NoError(t, ix.Insert(v, uint64(i+1)))
	}

	results, err := ix.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(2), results[0].ExtID)
	assert.InDelta(t, 0, results[0].Dist, 1e-5)
}

// S2: deleting an inserted vector removes it from subsequent search
// results entirely.
func TestIndexScenarioDeletedVectorNeverReturned(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert([]float32{1, 1, 1}, 1))
	require.NoError(t, ix.Insert([]float32{2, 2, 2}, 2))
	require.NoError(t, ix.Insert([]float32{3, 3, 3}, 3))

	assert.True(t, ix.Delete(2))

	results, err := ix.Search([]float32{2, 2, 2}, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, uint64(2), r.ExtID)
	}
}

func TestIndexContainsAndLen(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert([]float32{1, 1, 1}, 1))

	assert.True(t, ix.Contains(1))
	assert.False(t, ix.Contains(2))
	assert.Equal(t, 1, ix.Len())
}

func TestIndexStats(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert([]float32{1, 1, 1}, 1))
	require.NoError(t, ix.Insert([]float32{2, 2, 2}, 2))

	stats := ix.Stats()
	assert.Equal(t, 2, stats.Len)
	assert.Equal(t, 3, stats.Dims)
	assert.Greater(t, stats.TotalBytes, uint64(0))
}

func TestIndexEvictTTL(t *testing.T) {
	ix := newTestIndex(t)
	require.NoError(t, ix.Insert([]float32{1, 1, 1}, 1))

	evicted, skipped := ix.EvictTTL(0)

	assert.GreaterOrEqual(t, evicted, 0)
	assert.Equal(t, 0, skipped)
}

func TestIndexSetEfClampsToOne(t *testing.T) {
	ix := newTestIndex(t)
	ix.SetEf(0)
	assert.Equal(t, 1, ix.Ef)

	ix.SetEfConstruction(-10)
	assert.Equal(t, 1, ix.Efc)
}
