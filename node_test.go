package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode(t *testing.T) {
	n := newNode(42, []float32{1, 2, 3}, 2, 100)

	require.Equal(t, uint64(42), n.extID)
	require.Len(t, n.links, 3)
	assert.Equal(t, 2, n.topLevel())
	assert.Equal(t, uint64(100), n.lastHit.Load())
	assert.False(t, n.isDeleted())
	assert.Equal(t, len(n.vec)*4, n.bytes)
}

func TestNodeTouch(t *testing.T) {
	n := newNode(1, []float32{1}, 0, 10)
	n.touch(20)
	assert.Equal(t, uint64(20), n.lastHit.Load())
}

func TestNodeRecomputeBytes(t *testing.T) {
	n := newNode(1, []float32{1, 2, 3, 4}, 1, 0)
	n.links[0] = []NodeID{1, 2}
	n.links[1] = []NodeID{3}
	n.touchBytes()
	assert.Equal(t, 4*4+3*linkSize, n.bytes)
}
