package merge

import (
	"fmt"

	"github.com/utkarsh5026/parmerge/internal/splitting"
)

// inputs are the non-empty sequences of a request.
type inputs[T any] struct {
	runs  []splitting.Run[T]
	index []int // position of runs[i] in Request.Sequences
	total int
}

// validate rejects requests that cannot be merged at all.
func validate[T any](req *Request[T]) error {
	if req.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidRequest, req.Size)
	}
	if req.Position < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidRequest, req.Position)
	}
	if req.Compare == nil {
		return fmt.Errorf("%w: nil comparison function", ErrInvalidRequest)
	}
	if req.Workers < 0 {
		return fmt.Errorf("%w: negative worker count %d", ErrInvalidRequest, req.Workers)
	}

	for i, s := range req.Sequences {
		if s.Begin < 0 || s.Begin > s.End || s.End > len(s.Items) {
			return fmt.Errorf("%w: sequence %d has range [%d, %d) over %d items",
				ErrInvalidRequest, i, s.Begin, s.End, len(s.Items))
		}
	}
	return nil
}

// filter drops empty sequences and counts the elements of the rest.
func filter[T any](seqs []Sequence[T]) inputs[T] {
	in := inputs[T]{
		runs:  make([]splitting.Run[T], 0, len(seqs)),
		index: make([]int, 0, len(seqs)),
	}

	for i, s := range seqs {
		if s.Len() == 0 {
			continue
		}
		in.runs = append(in.runs, s.run())
		in.index = append(in.index, i)
		in.total += s.Len()
	}
	return in
}

// resolveWorkers picks the worker count: the requested one if set, the
// fallback otherwise, and never more than there are elements.
func resolveWorkers(requested, fallback, total int) int {
	n := requested
	if n <= 0 {
		n = fallback
	}
	if n < 1 {
		n = 1
	}
	return min(n, total)
}
