// Package splitting decides which part of every input run each worker of a
// parallel merge handles.
//
// A Strategy fills a Table so that, for every run, the ranges of workers
// 0..N-1 are contiguous and ascending, the first range starts at the run's
// Begin, and the whole table covers exactly min(size, total) elements.
// Concatenating the per-worker merges in worker order then yields the same
// sequence a single sequential merge would produce.
package splitting

import "fmt"

// DefaultOversampling is the number of samples taken per run and worker by
// the Sampling strategy when none is configured.
const DefaultOversampling = 10

// Strategy fills a chunk table for a merge of the given runs.
//
// size is the number of elements requested and total the number of
// elements available; the table must cover min(size, total) elements.
type Strategy[T any] interface {
	Split(t *Table, runs []Run[T], size, total int, cmp func(a, b T) int, stable bool) error
}

// Kind enumerates the available strategies.
type Kind int

const (
	KindExact Kind = iota
	KindSampling
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindSampling:
		return "sampling"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// New returns the strategy for kind. oversampling is only used by the
// sampling strategy.
func New[T any](kind Kind, oversampling int) (Strategy[T], error) {
	switch kind {
	case KindExact:
		return Exact[T]{}, nil
	case KindSampling:
		return Sampling[T]{Oversampling: oversampling}, nil
	default:
		return nil, fmt.Errorf("unknown splitting strategy %v", kind)
	}
}

// boundary returns the global rank at which worker w starts when s elements
// are spread over n workers.
func boundary(w, s, n int) int {
	return int(int64(w) * int64(s) / int64(n))
}
