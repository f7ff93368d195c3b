// Package merge merges several sorted sequences into one output slice using
// multiple goroutines.
//
// The total work is split into one chunk per worker: a splitting strategy
// decides, for every input sequence, which sub-range each worker consumes.
// Every worker then runs a sequential multiway merge over its sub-ranges and
// writes its output to a disjoint part of the target. Concatenating the
// worker outputs in worker order yields exactly what a sequential merge
// would produce.
//
// A merge may request fewer elements than the sequences hold. The returned
// Result carries the sequences advanced past the consumed elements, so a
// large merge can be produced in several steps:
//
//	m := merge.New[int](merge.WithWorkerCount(8))
//	seqs := []merge.Sequence[int]{merge.NewSequence(a), merge.NewSequence(b)}
//	out := make([]int, len(a)+len(b))
//
//	res, err := m.Merge(ctx, merge.Request[int]{
//	    Sequences: seqs,
//	    Target:    out,
//	    Size:      1024,
//	    Compare:   cmp.Compare[int],
//	    Stable:    true,
//	})
//	// res.Sequences continue after the first 1024 merged elements and
//	// res.Position is where the next step writes.
//
// # Splitting
//
// Exact splitting runs a multi-sequence selection per worker boundary and
// produces perfectly balanced chunks. Sampling splitting derives boundaries
// from a sorted sample of every sequence; it is cheaper for long sequences
// and many workers but only approximately balanced. Both consume exactly
// the requested number of elements.
//
// # Stability
//
// A stable merge keeps equal elements in sequence order: an element of a
// lower-indexed sequence is written before an equal element of a
// higher-indexed one, independently of the number of workers.
package merge
