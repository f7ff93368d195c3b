package multiway

import "container/heap"

// runHeap is a min-heap of run indexes ordered by their current heads.
// Exhausted runs are popped and never pushed back.
type runHeap[T any] struct {
	c     *cursors[T]
	items []int
}

func (h *runHeap[T]) Len() int { return len(h.items) }

func (h *runHeap[T]) Less(i, j int) bool {
	return h.c.beats(h.items[i], h.items[j])
}

func (h *runHeap[T]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

// Push is required by heap.Interface.
func (h *runHeap[T]) Push(x any) {
	run, ok := x.(int)
	if !ok {
		panic("runHeap.Push: invalid type assertion")
	}
	h.items = append(h.items, run)
}

// Pop is required by heap.Interface.
func (h *runHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[0 : n-1]
	return item
}

func mergeHeap[T any](dst []T, c *cursors[T]) int {
	h := &runHeap[T]{c: c, items: make([]int, 0, len(c.runs))}
	for i := range c.runs {
		h.items = append(h.items, i)
	}
	heap.Init(h)

	n := 0
	for n < len(dst) && h.Len() > 0 {
		top := h.items[0]
		dst[n] = c.take(top)
		n++

		if c.exhausted(top) {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return n
}
