package hnsw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertInvariants checks P1-P5 against the current state of g.
func assertInvariants(t *testing.T, g *Graph) {
	t.Helper()

	active := 0
	for idx, n := range g.nodes {
		if n.isDeleted() {
			continue
		}
		active++

		// P2: every active vector matches the graph's recorded dims.
		if g.dims != 0 {
			assert.Len(t, n.vec, g.dims, "node %d vector dims", idx)
		}

		// P1: link validity, no self-links, no duplicates.
		for l, links := range n.links {
			seen := make(map[NodeID]bool, len(links))
			for _, nb := range links {
				assert.NotEqual(t, NodeID(idx), nb, "node %d has self-link on layer %d", idx, l)
				assert.GreaterOrEqual(t, int(nb), 0, "node %d layer %d has negative link", idx, l)
				assert.Less(t, int(nb), len(g.nodes), "node %d layer %d link out of range", idx, l)
				assert.False(t, seen[nb], "node %d layer %d has duplicate link %d", idx, l, nb)
				seen[nb] = true
				if int(nb) >= 0 && int(nb) < len(g.nodes) {
					assert.False(t, g.nodes[nb].isDeleted(), "node %d layer %d links to deleted node %d", idx, l, nb)
				}
			}
		}
	}

	// P3: Len() reports the active count exactly.
	assert.Equal(t, active, g.Len())

	// P4: byExt bijects onto active nodes.
	assert.Equal(t, active, len(g.byExt))
	for extID, id := range g.byExt {
		require.False(t, g.nodes[id].isDeleted())
		assert.Equal(t, extID, g.nodes[id].extID)
	}

	// P5: entry is valid iff the graph is non-empty, and always names a
	// node on the highest populated level.
	if active == 0 {
		assert.Equal(t, noNode, g.entry)
	} else {
		require.NotEqual(t, noNode, g.entry)
		assert.False(t, g.nodes[g.entry].isDeleted())
		assert.Contains(t, g.levels[g.maxLevel], g.entry)
	}
}

func TestInvariantsHoldAfterInsertsAndDeletes(t *testing.T) {
	g := newTestGraph()
	rng := rand.New(rand.NewSource(99))

	for i := 1; i <= 30; i++ {
		g.Add(uint64(i), randVec(rng, 5), uint64(i))
		assertInvariants(t, g)
	}

	for i := 1; i <= 30; i += 2 {
		g.Delete(uint64(i))
		assertInvariants(t, g)
	}
}

func TestInvariantsHoldAfterEviction(t *testing.T) {
	g := newTestGraph()
	rng := rand.New(rand.NewSource(13))

	for i := 1; i <= 20; i++ {
		g.Add(uint64(i), randVec(rng, 4), uint64(i*10))
	}

	g.EvictTTL(200, 50)
	assertInvariants(t, g)

	capV := 5
	g.EvictLRUUntil(&capV, nil)
	assertInvariants(t, g)
}

func TestInvariantsHoldAfterSanitize(t *testing.T) {
	g := newTestGraph()
	rng := rand.New(rand.NewSource(21))
	for i := 1; i <= 10; i++ {
		g.Add(uint64(i), randVec(rng, 3), 0)
	}

	g.Sanitize()
	assertInvariants(t, g)
}

func TestLawReinsertReplaces(t *testing.T) {
	// L2: re-inserting under the same ext_id replaces, not duplicates.
	g := newTestGraph()
	g.Add(1, []float32{0, 0}, 0)
	g.Add(1, []float32{100, 100}, 0)

	assert.Equal(t, 1, g.Len())
	id := g.byExt[1]
	assert.Equal(t, []float32{100, 100}, g.nodes[id].vec)
}

func TestLawCosineSelfDistanceNearZero(t *testing.T) {
	// L4: CosineDistance(v, v) ~ 0.
	v := []float32{3, -1, 4, 1, 5}
	assert.InDelta(t, 0, CosineDistance(v, v), 1e-5)
}

func TestEmptyGraphHasNoNode(t *testing.T) {
	g := newTestGraph()
	assertInvariants(t, g)
	assert.Equal(t, noNode, g.entry)
	assert.Equal(t, 0, g.Len())
}
