package hnsw

// Analyzer holds a graph and provides read-only diagnostic methods over
// its shape. It takes no lock of its own; callers must hold at least a
// shared lock on the underlying index for the duration of a call.
type Analyzer struct {
	Graph *Graph
}

// Height returns the number of layers the graph currently has.
func (a Analyzer) Height() int {
	return len(a.Graph.levels)
}

// Topography returns, for each layer, the number of nodes whose top level
// is that layer (index 0 being the base layer), or nil for a graph with no
// layers. A node is counted once, at its top level only.
func (a Analyzer) Topography() []int {
	if len(a.Graph.levels) == 0 {
		return nil
	}
	topo := make([]int, len(a.Graph.levels))
	for l, ids := range a.Graph.levels {
		topo[l] = len(ids)
	}
	return topo
}

// Connectivity returns the average out-degree of active nodes on each
// layer, index 0 being the base layer. Unlike Topography, which only
// counts layer membership, this walks every active node's stored
// adjacency for that layer, so it reflects actual edge density rather
// than just which nodes reach that high.
func (a Analyzer) Connectivity() []float64 {
	if len(a.Graph.levels) == 0 {
		return nil
	}

	sums := make([]float64, len(a.Graph.levels))
	counts := make([]float64, len(a.Graph.levels))

	for _, n := range a.Graph.nodes {
		if n.isDeleted() {
			continue
		}
		for l, links := range n.links {
			if l >= len(sums) {
				continue
			}
			sums[l] += float64(len(links))
			counts[l]++
		}
	}

	conn := make([]float64, len(a.Graph.levels))
	for l := range conn {
		if counts[l] == 0 {
			continue
		}
		conn[l] = sums[l] / counts[l]
	}
	return conn
}
