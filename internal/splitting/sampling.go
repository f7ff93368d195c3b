package splitting

import (
	"cmp"
	"slices"
)

// Sampling picks worker boundaries from a sorted sample of every run
// instead of running a full selection per boundary. Loads are only
// approximately balanced, but the work is independent of the run lengths.
//
// The end of the last worker is always placed exactly at rank
// min(size, total), and sampled boundaries are clamped to it, so the table
// covers exactly the requested number of elements.
type Sampling[T any] struct {
	// Oversampling is the number of samples drawn per run and worker.
	// Values below one fall back to DefaultOversampling.
	Oversampling int
}

// sample identifies one element of one run.
type sample struct {
	run int
	pos int
}

func (sp Sampling[T]) Split(t *Table, runs []Run[T], size, total int, compare func(a, b T) int, stable bool) error {
	n := t.Workers()
	s := min(size, total)

	samples := sp.draw(runs, n)
	slices.SortFunc(samples, func(a, b sample) int {
		if c := compare(runs[a.run].Items[a.pos], runs[b.run].Items[b.pos]); c != 0 {
			return c
		}
		if c := cmp.Compare(a.run, b.run); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	last := selectRank(runs, s, total, compare)

	bounds := make([][]int, n+1)
	bounds[0] = begins(runs)
	bounds[n] = last
	for w := 1; w < n; w++ {
		if s == 0 || len(samples) == 0 {
			bounds[w] = last
			continue
		}
		b := make([]int, len(runs))

		idx := int(int64(w) * int64(s) * int64(len(samples)) / (int64(n) * int64(total)))
		idx = min(idx, len(samples)-1)
		pivot := samples[idx]
		if stable {
			splitAt(runs, pivot.run, pivot.pos, compare, b)
		} else {
			splitBelow(runs, runs[pivot.run].Items[pivot.pos], compare, b)
		}

		prev := bounds[w-1]
		for i := range b {
			b[i] = max(min(b[i], last[i]), prev[i])
		}
		bounds[w] = b
	}

	t.fillRows(bounds)
	return Validate(t, runs, s)
}

// draw takes oversampling·workers evenly spaced samples from every
// non-empty run.
func (sp Sampling[T]) draw(runs []Run[T], workers int) []sample {
	over := sp.Oversampling
	if over < 1 {
		over = DefaultOversampling
	}
	perRun := over * workers

	samples := make([]sample, 0, perRun*len(runs))
	for j, r := range runs {
		l := r.Len()
		if l == 0 {
			continue
		}
		for i := 0; i < perRun; i++ {
			pos := r.Begin + int(int64(l)*int64(i+1)/int64(perRun+1))
			samples = append(samples, sample{run: j, pos: pos})
		}
	}
	return samples
}
