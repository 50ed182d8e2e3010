package hnsw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzerHeightAndTopography(t *testing.T) {
	g := newTestGraph()
	rng := rand.New(rand.NewSource(3))
	for i := 1; i <= 25; i++ {
		g.Add(uint64(i), randVec(rng, 4), 0)
	}

	a := Analyzer{Graph: g}

	assert.Equal(t, len(g.levels), a.Height())

	topo := a.Topography()
	assert.Equal(t, len(g.levels), len(topo))
	assert.Equal(t, len(g.levels[0]), topo[0])
}

func TestAnalyzerConnectivityIgnoresDeletedNodes(t *testing.T) {
	g := newTestGraph()
	g.Add(1, []float32{0, 0}, 0)
	g.Add(2, []float32{1, 1}, 0)
	g.Add(3, []float32{2, 2}, 0)
	g.Delete(2)

	a := Analyzer{Graph: g}
	conn := a.Connectivity()

	assert.Equal(t, len(g.levels), len(conn))
	for _, v := range conn {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestAnalyzerEmptyGraph(t *testing.T) {
	g := newTestGraph()
	a := Analyzer{Graph: g}

	assert.Equal(t, 0, a.Height())
	assert.Nil(t, a.Topography())
	assert.Nil(t, a.Connectivity())
}
