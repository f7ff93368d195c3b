package splitting

import (
	"slices"
	"sort"
)

// All boundaries are computed in the lexicographic order (value, run index,
// position). Ties between runs therefore always resolve in run order, which
// is exactly the order a stable sequential merge emits them in, so a split
// taken in this order never reorders equal elements across workers.

// lowerBound returns the first index in run r whose element is not less than v.
func lowerBound[T any](r Run[T], v T, cmp func(a, b T) int) int {
	i, _ := slices.BinarySearchFunc(r.Items[r.Begin:r.End], v, cmp)
	return r.Begin + i
}

// upperBound returns the first index in run r whose element is greater than v.
func upperBound[T any](r Run[T], v T, cmp func(a, b T) int) int {
	items := r.Items[r.Begin:r.End]
	return r.Begin + sort.Search(len(items), func(i int) bool {
		return cmp(items[i], v) > 0
	})
}

// splitAt splits every run in front of the pivot element runs[j].Items[p]:
// elements lexicographically smaller than the pivot go left.
func splitAt[T any](runs []Run[T], j, p int, cmp func(a, b T) int, out []int) {
	v := runs[j].Items[p]
	for t := range runs {
		switch {
		case t < j:
			out[t] = upperBound(runs[t], v, cmp)
		case t == j:
			out[t] = p
		default:
			out[t] = lowerBound(runs[t], v, cmp)
		}
	}
}

// splitBelow splits every run in front of the first element not less than v.
func splitBelow[T any](runs []Run[T], v T, cmp func(a, b T) int, out []int) {
	for t := range runs {
		out[t] = lowerBound(runs[t], v, cmp)
	}
}

// rankOf returns how many elements of all runs precede runs[j].Items[p]
// lexicographically.
func rankOf[T any](runs []Run[T], j, p int, cmp func(a, b T) int) int {
	v := runs[j].Items[p]
	rank := p - runs[j].Begin
	for t := range runs {
		switch {
		case t < j:
			rank += upperBound(runs[t], v, cmp) - runs[t].Begin
		case t > j:
			rank += lowerBound(runs[t], v, cmp) - runs[t].Begin
		}
	}
	return rank
}

func begins[T any](runs []Run[T]) []int {
	out := make([]int, len(runs))
	for i, r := range runs {
		out[i] = r.Begin
	}
	return out
}

func ends[T any](runs []Run[T]) []int {
	out := make([]int, len(runs))
	for i, r := range runs {
		out[i] = r.End
	}
	return out
}

// selectRank returns, per run, the split position such that exactly rank
// elements lie to the left of the split in total.
func selectRank[T any](runs []Run[T], rank, total int, cmp func(a, b T) int) []int {
	if rank <= 0 {
		return begins(runs)
	}
	if rank >= total {
		return ends(runs)
	}

	out := make([]int, len(runs))
	for j, r := range runs {
		if r.Len() == 0 {
			continue
		}

		// rankOf is strictly increasing along a run.
		k := sort.Search(r.Len(), func(i int) bool {
			return rankOf(runs, j, r.Begin+i, cmp) >= rank
		})
		if k == r.Len() {
			continue
		}

		p := r.Begin + k
		if rankOf(runs, j, p, cmp) == rank {
			splitAt(runs, j, p, cmp, out)
			return out
		}
	}

	// Unreachable for runs sorted by cmp: every rank in [0, total) belongs
	// to exactly one element.
	panic("splitting: no element of the requested rank, runs are not sorted")
}
