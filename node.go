package hnsw

import "sync/atomic"

// NodeID is a dense, stable index into a Graph's node arena. It never
// changes for the lifetime of a node, including after the node is deleted;
// deleted slots are tombstoned in place, never reused.
type NodeID int

// noNode is the sentinel NodeID meaning "no node" (an empty graph's entry
// point, or a not-found lookup).
const noNode NodeID = -1

// linkSize is the per-entry cost charged against a node's byte footprint
// for each neighbor id it stores, used only to keep eviction's notion of
// memory pressure roughly proportional to reality.
const linkSize = 8

// node is a single arena entry: a vector, its per-layer adjacency, and the
// bookkeeping needed for eviction and soft deletion.
type node struct {
	extID uint64
	vec   []float32
	links [][]NodeID // links[l] = neighbor ids on layer l; links[0] is the base layer

	lastHit atomic.Uint64 // unix seconds, updated on access under shared or exclusive access
	deleted atomic.Bool

	bytes int // cached approximate footprint, see recomputeBytes
}

func newNode(extID uint64, vec []float32, level int, now uint64) *node {
	n := &node{
		extID: extID,
		vec:   vec,
		links: make([][]NodeID, level+1),
	}
	n.lastHit.Store(now)
	n.touchBytes()
	return n
}

// recomputeBytes derives the approximate heap footprint of the node: four
// bytes per vector component plus linkSize bytes per stored neighbor id
// across every layer.
func (n *node) recomputeBytes() int {
	b := len(n.vec) * 4
	for _, l := range n.links {
		b += len(l) * linkSize
	}
	return b
}

// touchBytes recomputes and stores n.bytes. Callers are responsible for
// folding the before/after delta into the graph's totalBytes counter.
func (n *node) touchBytes() {
	n.bytes = n.recomputeBytes()
}

func (n *node) topLevel() int {
	return len(n.links) - 1
}

func (n *node) isDeleted() bool {
	return n.deleted.Load()
}

func (n *node) touch(now uint64) {
	n.lastHit.Store(now)
}
