// Package heap provides a small generic binary heap used by the graph's
// beam search and LRU eviction candidate queues.
package heap

// Item constrains heap elements to those that can be strictly ordered
// against other values of the same type.
type Item[T any] interface {
	Less(T) bool
}

// Heap is a binary min-heap over any type implementing Item. The zero value
// is an empty heap ready to use.
type Heap[T Item[T]] struct {
	data []T
}

// Init replaces the heap's backing slice and establishes the heap property.
func (h *Heap[T]) Init(data []T) {
	h.data = data
	for i := len(h.data)/2 - 1; i >= 0; i-- {
		h.down(i)
	}
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int {
	return len(h.data)
}

// Push adds v to the heap.
func (h *Heap[T]) Push(v T) {
	h.data = append(h.data, v)
	h.up(len(h.data) - 1)
}

// Pop removes and returns the smallest element.
func (h *Heap[T]) Pop() T {
	n := len(h.data) - 1
	h.data[0], h.data[n] = h.data[n], h.data[0]
	min := h.data[n]
	h.data = h.data[:n]
	if n > 0 {
		h.down(0)
	}
	return min
}

// Min returns the smallest element without removing it.
func (h *Heap[T]) Min() T {
	return h.data[0]
}

// Max returns the largest element without removing it. O(n); the heap only
// orders around its minimum.
func (h *Heap[T]) Max() T {
	worst := h.data[0]
	for _, v := range h.data[1:] {
		if worst.Less(v) {
			worst = v
		}
	}
	return worst
}

// PopLast removes and returns the largest element. O(n).
func (h *Heap[T]) PopLast() T {
	worstIdx := 0
	for i, v := range h.data {
		if h.data[worstIdx].Less(v) {
			worstIdx = i
		}
	}
	worst := h.data[worstIdx]
	n := len(h.data) - 1
	h.data[worstIdx] = h.data[n]
	h.data = h.data[:n]
	if worstIdx < n {
		h.down(worstIdx)
		h.up(worstIdx)
	}
	return worst
}

// Slice returns a copy of the heap's elements in heap (not sorted) order.
func (h *Heap[T]) Slice() []T {
	out := make([]T, len(h.data))
	copy(out, h.data)
	return out
}

func (h *Heap[T]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.data[i].Less(h.data[parent]) {
			break
		}
		h.data[i], h.data[parent] = h.data[parent], h.data[i]
		i = parent
	}
}

func (h *Heap[T]) down(i int) {
	n := len(h.data)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		smallest := left
		if right := left + 1; right < n && h.data[right].Less(h.data[left]) {
			smallest = right
		}
		if !h.data[smallest].Less(h.data[i]) {
			break
		}
		h.data[i], h.data[smallest] = h.data[smallest], h.data[i]
		i = smallest
	}
}
