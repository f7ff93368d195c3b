package splitting

// Exact splits by multi-sequence selection: worker w starts at global rank
// ⌊w·S/N⌋ where S = min(size, total). Loads differ by at most one element
// and the result only depends on the input.
type Exact[T any] struct{}

func (Exact[T]) Split(t *Table, runs []Run[T], size, total int, cmp func(a, b T) int, stable bool) error {
	n := t.Workers()
	s := min(size, total)

	bounds := make([][]int, n+1)
	bounds[0] = begins(runs)
	for w := 1; w <= n; w++ {
		bounds[w] = selectRank(runs, boundary(w, s, n), total, cmp)
	}

	t.fillRows(bounds)
	return Validate(t, runs, s)
}
