package hnsw

import (
	"math/rand"
	"sort"
	"time"

	"github.com/trailmarker/hnswix/heap"
	"golang.org/x/exp/maps"
)

// searchCandidate pairs a node with its distance to whatever query vector
// produced it. It is the element type shared by both heaps in beamSearch
// and by the LRU eviction candidate queue's sibling type, lruCandidate.
type searchCandidate struct {
	node NodeID
	dist float32
}

// Less orders candidates by distance. NaN distances sort after every
// number, so the order stays total even for non-finite input.
func (s searchCandidate) Less(o searchCandidate) bool {
	if s.dist != s.dist {
		return false
	}
	if o.dist != o.dist {
		return true
	}
	return s.dist < o.dist
}

// lruCandidate orders nodes by last-access time for EvictLRUUntil's
// candidate queue: the heap's Pop always returns the least-recently-used
// node first.
type lruCandidate struct {
	id      NodeID
	lastHit uint64
}

func (c lruCandidate) Less(o lruCandidate) bool {
	return c.lastHit < o.lastHit
}

func defaultRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Graph is the Hierarchical Navigable Small World index: a node arena,
// per-layer membership lists, and the entry point used to seed every
// search.
//
// Graph is safe for any number of concurrent readers (Search, Contains,
// Len, TotalBytes, Touch) running alongside each other, but structural
// mutations (Add, Delete, EvictTTL, EvictLRUUntil, Sanitize) require the
// caller to hold exclusive access. Graph does not serialize its own
// operations; the host is expected to hold an exclusive/shared lock around
// it (see §5 of the design notes).
type Graph struct {
	// Distance is the distance function used to compare vectors. It must
	// be set before the first call to Add.
	Distance DistanceFunc

	// Rng drives level generation. It may be replaced with a
	// deterministically seeded source for reproducible tests; note that a
	// fixed seed can produce degenerate graphs under adversarial input.
	Rng *rand.Rand

	// M is the maximum number of neighbors kept per node, per layer.
	M int

	// EfConstruction is the beam width used while building the graph.
	EfConstruction int

	dims int

	nodes    []*node
	levels   [][]NodeID
	maxLevel int
	entry    NodeID

	byExt map[uint64]NodeID

	active     int
	totalBytes uint64
}

// NewGraph returns an empty graph configured with m, efConstruction and
// distance. m is clamped to at least 2 and efConstruction to at least 1.
func NewGraph(m, efConstruction int, distance DistanceFunc) *Graph {
	if m < 2 {
		m = 2
	}
	if efConstruction < 1 {
		efConstruction = 1
	}
	return &Graph{
		Distance:       distance,
		Rng:            defaultRand(),
		M:              m,
		EfConstruction: efConstruction,
		entry:          noNode,
		byExt:          make(map[uint64]NodeID),
	}
}

// Dims returns the dimensionality of the vectors stored in the graph, or 0
// if the graph is empty and has never held a node.
func (g *Graph) Dims() int {
	return g.dims
}

// Len returns the number of active (non-deleted) nodes.
func (g *Graph) Len() int {
	return g.active
}

// TotalBytes returns the approximate aggregate footprint of active nodes.
func (g *Graph) TotalBytes() uint64 {
	return g.totalBytes
}

// MaxLevel returns the highest populated layer, or 0 for an empty graph.
func (g *Graph) MaxLevel() int {
	return g.maxLevel
}

// Contains reports whether extID names an active node.
func (g *Graph) Contains(extID uint64) bool {
	_, ok := g.byExt[extID]
	return ok
}

func (g *Graph) rng() *rand.Rand {
	if g.Rng == nil {
		g.Rng = defaultRand()
	}
	return g.Rng
}

// Add inserts vec under extID, stamping now as its initial last-access
// time. If extID already names an active node, that node is deleted first
// (Add has upsert semantics).
func (g *Graph) Add(extID uint64, vec []float32, now uint64) {
	if existing, ok := g.byExt[extID]; ok {
		g.deleteID(existing)
	}

	level := sampleLevel(g.rng(), g.M)

	oldMax := g.maxLevel
	oldEntry := g.entry
	wasEmpty := oldEntry == noNode

	id := NodeID(len(g.nodes))
	n := newNode(extID, vec, level, now)
	g.nodes = append(g.nodes, n)
	g.byExt[extID] = id
	g.active++
	g.accountBytes(n)
	if g.dims == 0 {
		g.dims = len(vec)
	}

	for level >= len(g.levels) {
		g.levels = append(g.levels, nil)
	}

	if wasEmpty {
		g.entry = id
		g.maxLevel = level
		g.levels[level] = append(g.levels[level], id)
		return
	}

	ep := oldEntry

	// Descend phase: only needed when the graph already has layers above
	// this node's top level.
	for l := oldMax; l > level; l-- {
		ep = g.greedyDescend(ep, vec, l)
	}

	touched := map[NodeID]bool{id: true}

	for l := minInt(level, oldMax); l >= 0; l-- {
		candidates := g.beamSearch(ep, vec, maxInt(g.EfConstruction, g.M, 1), l)
		if len(candidates) > 0 {
			sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
			ep = candidates[0].node
		}

		selected := g.selectNeighbors(candidates, g.M, id)
		if len(selected) == 0 && ep != id {
			selected = []NodeID{ep}
		}

		filtered := selected[:0]
		for _, s := range selected {
			if s == id || g.nodes[s].isDeleted() {
				continue
			}
			filtered = append(filtered, s)
		}

		n.links[l] = append(n.links[l], filtered...)
		for _, s := range filtered {
			g.nodes[s].links[l] = append(g.nodes[s].links[l], id)
			touched[s] = true
		}
		for _, s := range filtered {
			g.pruneLayer(s, l)
		}
	}

	if level > oldMax {
		g.maxLevel = level
		g.entry = id
	}
	g.levels[level] = append(g.levels[level], id)

	for tid := range touched {
		g.finalizeNode(tid)
	}
}

// finalizeNode sorts and dedupes every layer of n's adjacency and folds its
// byte-footprint delta into the graph's totalBytes counter.
func (g *Graph) finalizeNode(id NodeID) {
	n := g.nodes[id]
	before := n.bytes
	for l := range n.links {
		n.links[l] = sortDedupe(n.links[l])
	}
	n.touchBytes()
	g.applyByteDelta(before, n.bytes)
}

func (g *Graph) accountBytes(n *node) {
	g.totalBytes += uint64(n.bytes)
}

// applyByteDelta folds newB-oldB into totalBytes, saturating at zero if the
// delta would otherwise underflow the unsigned counter.
func (g *Graph) applyByteDelta(oldB, newB int) {
	if newB >= oldB {
		g.totalBytes += uint64(newB - oldB)
		return
	}
	d := uint64(oldB - newB)
	if d > g.totalBytes {
		g.totalBytes = 0
	} else {
		g.totalBytes -= d
	}
}

func sortDedupe(ids []NodeID) []NodeID {
	if len(ids) == 0 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// selectNeighbors implements the HNSW neighbor heuristic shared by
// insertion (anchor = the vector being inserted) and pruning (anchor = the
// node whose adjacency is being trimmed): candidates are walked in
// ascending distance-to-anchor order, and a candidate is accepted only if
// it is strictly closer to the anchor than to every neighbor already
// accepted. This favors spreading connections across distinct directions
// over simply keeping the m closest points.
func (g *Graph) selectNeighbors(candidates []searchCandidate, m int, excludeSelf NodeID) []NodeID {
	sorted := make([]searchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.node == excludeSelf {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].dist < sorted[j].dist })

	selected := make([]NodeID, 0, m)
	for _, c := range sorted {
		if len(selected) >= m {
			break
		}
		good := true
		for _, s := range selected {
			if c.dist >= g.Distance(g.nodes[c.node].vec, g.nodes[s].vec) {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c.node)
		}
	}
	return selected
}

// pruneLayer trims id's layer-l adjacency back to at most M entries using
// selectNeighbors anchored on id itself.
func (g *Graph) pruneLayer(id NodeID, l int) {
	n := g.nodes[id]
	if l >= len(n.links) || len(n.links[l]) <= g.M {
		return
	}

	anchor := n.vec
	cands := make([]searchCandidate, 0, len(n.links[l]))
	for _, nb := range n.links[l] {
		if nb == id || g.nodes[nb].isDeleted() {
			continue
		}
		cands = append(cands, searchCandidate{node: nb, dist: g.Distance(g.nodes[nb].vec, anchor)})
	}
	n.links[l] = g.selectNeighbors(cands, g.M, id)
}

// beamSearch performs ef-search: a best-first traversal of layer l starting
// at ep, returning up to ef candidates closest to q. The returned slice is
// in heap (not sorted) order; callers that need ranked results sort it.
func (g *Graph) beamSearch(ep NodeID, q []float32, ef int, l int) []searchCandidate {
	if ep == noNode || g.nodes[ep].isDeleted() {
		return nil
	}

	top := heap.Heap[searchCandidate]{}
	top.Init(make([]searchCandidate, 0, ef))
	frontier := heap.Heap[searchCandidate]{}
	frontier.Init(make([]searchCandidate, 0, ef))
	visited := make(map[NodeID]bool, ef*2)

	seed := searchCandidate{node: ep, dist: g.Distance(g.nodes[ep].vec, q)}
	top.Push(seed)
	frontier.Push(seed)
	visited[ep] = true

	for frontier.Len() > 0 {
		c := frontier.Pop()
		if top.Len() >= ef && c.dist > top.Max().dist {
			break
		}

		nd := g.nodes[c.node]
		if l >= len(nd.links) {
			continue
		}
		for _, nb := range nd.links[l] {
			if visited[nb] {
				continue
			}
			visited[nb] = true

			nbNode := g.nodes[nb]
			if nbNode.isDeleted() {
				continue
			}

			d := g.Distance(nbNode.vec, q)
			if top.Len() < ef || d < top.Max().dist {
				top.Push(searchCandidate{node: nb, dist: d})
				frontier.Push(searchCandidate{node: nb, dist: d})
				if top.Len() > ef {
					top.PopLast()
				}
			}
		}
	}

	return top.Slice()
}

// greedyDescend walks from ep to its strictly-closer layer-l neighbor,
// repeating until no neighbor improves on the current node. It is used
// both for the insert descend phase and for the top-down walk in Search.
func (g *Graph) greedyDescend(ep NodeID, q []float32, l int) NodeID {
	best := ep
	bestDist := g.Distance(g.nodes[ep].vec, q)
	for {
		improved := false
		nd := g.nodes[best]
		if l < len(nd.links) {
			for _, nb := range nd.links[l] {
				if g.nodes[nb].isDeleted() {
					continue
				}
				d := g.Distance(g.nodes[nb].vec, q)
				if d < bestDist {
					bestDist = d
					best = nb
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

// anyActiveEntry scans levels top-down for any active node, used when the
// graph's own entry has been invalidated by deletion.
func (g *Graph) anyActiveEntry() NodeID {
	for l := len(g.levels) - 1; l >= 0; l-- {
		for _, id := range g.levels[l] {
			if !g.nodes[id].isDeleted() {
				return id
			}
		}
	}
	return noNode
}

// Search returns up to k candidates closest to q, using beam width
// max(ef, k, 1). Results are sorted ascending by distance.
func (g *Graph) Search(q []float32, k int, ef int) []searchCandidate {
	if len(g.nodes) == 0 || k == 0 {
		return nil
	}

	ep := g.entry
	if ep == noNode || g.nodes[ep].isDeleted() {
		ep = g.anyActiveEntry()
		if ep == noNode {
			return nil
		}
	}

	for l := g.maxLevel; l >= 1; l-- {
		ep = g.greedyDescend(ep, q, l)
	}

	width := maxInt(ef, k, 1)
	results := g.beamSearch(ep, q, width, 0)
	sort.Slice(results, func(i, j int) bool { return results[i].dist < results[j].dist })
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ExtIDOf returns the external id stored at NodeID id.
func (g *Graph) ExtIDOf(id NodeID) uint64 {
	return g.nodes[id].extID
}

// Touch stamps now onto every node named by extIDs that still resolves to
// an active node, under the shared-access atomic last_hit field.
func (g *Graph) Touch(extIDs []uint64, now uint64) {
	for _, e := range extIDs {
		if id, ok := g.byExt[e]; ok {
			g.nodes[id].touch(now)
		}
	}
}

// Delete removes the node named by extID. It is idempotent: deleting an
// unknown or already-deleted id returns false without mutating state.
func (g *Graph) Delete(extID uint64) bool {
	id, ok := g.byExt[extID]
	if !ok {
		return false
	}
	return g.deleteID(id)
}

func (g *Graph) deleteID(id NodeID) bool {
	n := g.nodes[id]
	if n.isDeleted() {
		return false
	}

	// Drop every link to id held by an active node, not only those of id's
	// own neighbors: back-edge pruning can leave one-way links to id.
	for idx, other := range g.nodes {
		if NodeID(idx) == id || other.isDeleted() {
			continue
		}
		before := other.bytes
		for l := range other.links {
			other.links[l] = removeID(other.links[l], id)
		}
		other.touchBytes()
		g.applyByteDelta(before, other.bytes)
	}

	before := n.bytes
	n.vec = nil
	n.links = nil
	n.deleted.Store(true)
	n.touchBytes()
	g.applyByteDelta(before, n.bytes)

	for l := range g.levels {
		g.levels[l] = removeID(g.levels[l], id)
	}

	g.active--
	delete(g.byExt, n.extID)

	if g.entry == id {
		g.pickNewEntry()
	}

	return true
}

func removeID(s []NodeID, id NodeID) []NodeID {
	for i, v := range s {
		if v == id {
			s[i] = s[len(s)-1]
			return s[:len(s)-1]
		}
	}
	return s
}

// pickNewEntry re-derives entry (and maxLevel) from the highest non-empty
// level, or sets entry to noNode if the graph has gone empty.
func (g *Graph) pickNewEntry() {
	for l := len(g.levels) - 1; l >= 0; l-- {
		for _, id := range g.levels[l] {
			if !g.nodes[id].isDeleted() {
				g.entry = id
				g.maxLevel = l
				return
			}
		}
	}
	g.entry = noNode
	g.maxLevel = 0
}

// repair trims trailing empty layers and re-validates entry after a batch
// of deletions (TTL sweep, LRU eviction).
func (g *Graph) repair() {
	for len(g.levels) > 0 && len(g.levels[len(g.levels)-1]) == 0 {
		g.levels = g.levels[:len(g.levels)-1]
	}
	if len(g.levels) == 0 {
		g.maxLevel = 0
		g.entry = noNode
		return
	}
	if g.maxLevel >= len(g.levels) {
		g.maxLevel = len(g.levels) - 1
	}
	if g.entry == noNode || g.nodes[g.entry].isDeleted() {
		g.pickNewEntry()
	}
}

// EvictTTL deletes every active node whose last_hit is older than ttlSecs
// relative to now, then repairs graph invariants. Returns the number of
// nodes evicted.
func (g *Graph) EvictTTL(now, ttlSecs uint64) int {
	var evicted int
	for idx, n := range g.nodes {
		if n.isDeleted() {
			continue
		}
		if now-n.lastHit.Load() > ttlSecs {
			if g.deleteID(NodeID(idx)) {
				evicted++
			}
		}
	}
	g.repair()
	return evicted
}

// EvictLRUUntil evicts least-recently-used nodes until neither cap is
// exceeded. A nil cap is treated as unbounded. Returns the number evicted.
func (g *Graph) EvictLRUUntil(maxVecs *int, maxBytes *uint64) int {
	need := func() bool {
		if maxVecs != nil && g.active > *maxVecs {
			return true
		}
		if maxBytes != nil && g.totalBytes > *maxBytes {
			return true
		}
		return false
	}
	if !need() {
		return 0
	}

	h := heap.Heap[lruCandidate]{}
	h.Init(make([]lruCandidate, 0, g.active))
	for idx, n := range g.nodes {
		if n.isDeleted() {
			continue
		}
		h.Push(lruCandidate{id: NodeID(idx), lastHit: n.lastHit.Load()})
	}

	var evicted int
	for h.Len() > 0 && need() {
		c := h.Pop()
		if g.deleteID(c.id) {
			evicted++
		}
	}
	g.repair()
	return evicted
}

// Sanitize defensively repairs a graph that may have come from an untrusted
// or partially-corrupt source (a snapshot import). For every node it drops
// out-of-range, self, duplicate, or deleted-target links, then rebuilds
// levels, maxLevel, entry, byExt, active and totalBytes from scratch.
// Returns the number of edges dropped and the number of nodes that needed
// any fix at all.
func (g *Graph) Sanitize() (droppedEdges, fixedNodes int) {
	n := len(g.nodes)
	active := make(map[NodeID]bool, n)
	for idx, nd := range g.nodes {
		if !nd.isDeleted() {
			active[NodeID(idx)] = true
		}
	}

	for idx, nd := range g.nodes {
		id := NodeID(idx)
		if nd.isDeleted() {
			continue
		}

		fixedThis := false
		if len(nd.links) == 0 {
			nd.links = make([][]NodeID, 1)
			fixedThis = true
		}

		for l := range nd.links {
			seenLocal := make(map[NodeID]bool, len(nd.links[l]))
			cleaned := nd.links[l][:0]
			for _, nb := range nd.links[l] {
				if nb < 0 || int(nb) >= n || nb == id || !active[nb] || seenLocal[nb] {
					droppedEdges++
					fixedThis = true
					continue
				}
				seenLocal[nb] = true
				cleaned = append(cleaned, nb)
			}
			sort.Slice(cleaned, func(i, j int) bool { return cleaned[i] < cleaned[j] })
			nd.links[l] = cleaned
		}

		if fixedThis {
			fixedNodes++
		}
	}

	g.levels = nil
	g.byExt = make(map[uint64]NodeID, len(active))
	g.active = 0
	g.totalBytes = 0
	g.maxLevel = 0
	g.entry = noNode

	// Walk the arena in a deterministic order; maps.Keys+sort keeps the
	// rebuild reproducible the same way the teacher sorts neighbor keys
	// before iterating a map in its own search loop.
	ids := maps.Keys(active)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		nd := g.nodes[id]
		top := nd.topLevel()
		for top >= len(g.levels) {
			g.levels = append(g.levels, nil)
		}
		g.levels[top] = append(g.levels[top], id)
		if top > g.maxLevel {
			g.maxLevel = top
		}
		g.byExt[nd.extID] = id
		g.active++
		nd.touchBytes()
		g.totalBytes += uint64(nd.bytes)
	}

	if g.active > 0 {
		for _, id := range g.levels[g.maxLevel] {
			g.entry = id
			break
		}
	}

	return droppedEdges, fixedNodes
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(vs ...int) int {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
