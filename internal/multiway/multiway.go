package multiway

import "fmt"

// Algorithm selects how the next smallest run head is found.
type Algorithm int

const (
	LoserTree Algorithm = iota
	Heap
	Scan
)

func (a Algorithm) String() string {
	switch a {
	case LoserTree:
		return "loser-tree"
	case Heap:
		return "heap"
	case Scan:
		return "scan"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// Merge writes the first min(len(dst), total) elements of the merged runs
// into dst and returns how many elements were written. Every run must be
// sorted according to cmp. The runs themselves are not modified.
func Merge[T any](dst []T, runs [][]T, cmp func(a, b T) int, stable bool, alg Algorithm) int {
	live := make([][]T, 0, len(runs))
	for _, r := range runs {
		if len(r) > 0 {
			live = append(live, r)
		}
	}

	if len(dst) == 0 || len(live) == 0 {
		return 0
	}

	switch len(live) {
	case 1:
		return copy(dst, live[0])
	case 2:
		return mergeTwo(dst, live[0], live[1], cmp)
	}

	c := newCursors(live, cmp, stable)
	switch alg {
	case Heap:
		return mergeHeap(dst, c)
	case Scan:
		return mergeScan(dst, c)
	default:
		return mergeLoserTree(dst, c)
	}
}

// mergeTwo is stable by construction: a wins every tie.
func mergeTwo[T any](dst, a, b []T, cmp func(a, b T) int) int {
	i, j, n := 0, 0, 0
	for n < len(dst) && i < len(a) && j < len(b) {
		if cmp(b[j], a[i]) < 0 {
			dst[n] = b[j]
			j++
		} else {
			dst[n] = a[i]
			i++
		}
		n++
	}

	if n < len(dst) && i < len(a) {
		n += copy(dst[n:], a[i:])
	}
	if n < len(dst) && j < len(b) {
		n += copy(dst[n:], b[j:])
	}
	return n
}

// cursors tracks the read position inside each run and knows how to order
// two run heads.
type cursors[T any] struct {
	runs   [][]T
	pos    []int
	cmp    func(a, b T) int
	stable bool
}

func newCursors[T any](runs [][]T, cmp func(a, b T) int, stable bool) *cursors[T] {
	return &cursors[T]{
		runs:   runs,
		pos:    make([]int, len(runs)),
		cmp:    cmp,
		stable: stable,
	}
}

func (c *cursors[T]) exhausted(i int) bool {
	return c.pos[i] >= len(c.runs[i])
}

func (c *cursors[T]) head(i int) T {
	return c.runs[i][c.pos[i]]
}

// beats reports whether the head of run a must be emitted before the head of
// run b. Exhausted runs lose against everything.
func (c *cursors[T]) beats(a, b int) bool {
	if c.exhausted(a) {
		return false
	}
	if c.exhausted(b) {
		return true
	}

	r := c.cmp(c.head(a), c.head(b))
	if r != 0 || !c.stable {
		return r < 0
	}
	return a < b
}

// take emits the head of run i and advances it.
func (c *cursors[T]) take(i int) T {
	v := c.runs[i][c.pos[i]]
	c.pos[i]++
	return v
}

// mergeScan picks the smallest head with a linear scan over the runs.
func mergeScan[T any](dst []T, c *cursors[T]) int {
	n := 0
	for n < len(dst) {
		best := -1
		for i := range c.runs {
			if c.exhausted(i) {
				continue
			}
			if best < 0 || c.beats(i, best) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		dst[n] = c.take(best)
		n++
	}
	return n
}
