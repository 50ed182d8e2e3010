package hnsw

import "time"

// SearchResult pairs an external id with its distance to the query vector
// that produced it.
type SearchResult struct {
	ExtID uint64
	Dist  float32
}

// Stats summarizes the current state of an Index, as returned by Stats.
type Stats struct {
	Len        int
	TotalBytes uint64
	MaxLevel   int
	Dims       int
}

// Index is the public entry point to the index: a dimensionality-checked,
// timestamp-stamping facade in front of a Graph. Construct one with a
// Builder rather than assembling the fields directly.
type Index struct {
	Dims   int
	M      int
	Ef     int
	Efc    int
	Metric DistanceFunc

	graph *Graph
}

func nowUnix() uint64 {
	return uint64(time.Now().Unix())
}

// Insert adds vec under extID, replacing any existing node with the same
// extID. Returns *DimensionMismatchError if len(vec) != ix.Dims.
func (ix *Index) Insert(vec []float32, extID uint64) error {
	if len(vec) != ix.Dims {
		return &DimensionMismatchError{Expected: ix.Dims, Found: len(vec)}
	}
	ix.graph.Add(extID, vec, nowUnix())
	return nil
}

// Search returns up to k external ids closest to query, using the index's
// configured default search beam width.
func (ix *Index) Search(query []float32, k int) ([]SearchResult, error) {
	return ix.SearchWithEf(query, k, ix.Ef)
}

// SearchWithEf is Search with an explicit beam-width override for this call
// only. The effective width is max(ef, k, 1).
func (ix *Index) SearchWithEf(query []float32, k int, ef int) ([]SearchResult, error) {
	if len(query) != ix.Dims {
		return nil, &DimensionMismatchError{Expected: ix.Dims, Found: len(query)}
	}
	if ix.graph.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	raw := ix.graph.Search(query, k, maxInt(ef, k, 1))
	if len(raw) == 0 {
		return nil, nil
	}

	now := nowUnix()
	out := make([]SearchResult, 0, len(raw))
	touched := make([]uint64, 0, len(raw))
	for _, r := range raw {
		extID := ix.graph.ExtIDOf(r.node)
		out = append(out, SearchResult{ExtID: extID, Dist: r.dist})
		touched = append(touched, extID)
	}
	ix.graph.Touch(touched, now)

	return out, nil
}

// Delete removes the node named by extID. It is idempotent.
func (ix *Index) Delete(extID uint64) bool {
	return ix.graph.Delete(extID)
}

// Contains reports whether extID names an active node.
func (ix *Index) Contains(extID uint64) bool {
	return ix.graph.Contains(extID)
}

// Len returns the number of active vectors in the index.
func (ix *Index) Len() int {
	return ix.graph.Len()
}

// TotalBytes returns the approximate aggregate footprint of active nodes.
func (ix *Index) TotalBytes() uint64 {
	return ix.graph.TotalBytes()
}

// Stats reports a snapshot of the index's current size and shape.
func (ix *Index) Stats() Stats {
	return Stats{
		Len:        ix.graph.Len(),
		TotalBytes: ix.graph.TotalBytes(),
		MaxLevel:   ix.graph.MaxLevel(),
		Dims:       ix.Dims,
	}
}

// EvictTTL deletes every node whose last access is older than ttlSecs,
// stamping "now" as the reference time. Returns (evicted, 0): the second
// value is reserved for forward compatibility with callers that expect a
// (evicted, skipped) pair.
func (ix *Index) EvictTTL(ttlSecs uint64) (int, int) {
	return ix.graph.EvictTTL(nowUnix(), ttlSecs), 0
}

// EvictLRUUntil evicts least-recently-used nodes until neither cap is
// exceeded. A nil cap is unbounded. Returns (evicted, 0).
func (ix *Index) EvictLRUUntil(maxVecs *int, maxBytes *uint64) (int, int) {
	return ix.graph.EvictLRUUntil(maxVecs, maxBytes), 0
}

// SetEf updates the default search beam width, clamped to at least 1.
func (ix *Index) SetEf(ef int) {
	ix.Ef = maxInt(ef, 1)
}

// SetEfConstruction updates the construction beam width, clamped to at
// least 1. Only affects nodes inserted after the call.
func (ix *Index) SetEfConstruction(efc int) {
	ix.Efc = maxInt(efc, 1)
	ix.graph.EfConstruction = ix.Efc
}

// Analyzer returns a read-only diagnostic view of the index's graph.
func (ix *Index) Analyzer() Analyzer {
	return Analyzer{Graph: ix.graph}
}
