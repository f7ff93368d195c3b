package splitting

import (
	"errors"
	"fmt"
)

// ErrInvalidTable is returned when a filled chunk table breaks the
// partition invariants.
var ErrInvalidTable = errors.New("invalid chunk table")

// Run is a sorted range Items[Begin:End] taking part in a merge.
type Run[T any] struct {
	Items      []T
	Begin, End int
}

// Len returns the number of elements left in the run.
func (r Run[T]) Len() int { return r.End - r.Begin }

// Range is a half-open interval of absolute indexes into a run's Items.
type Range struct {
	Begin, End int
}

// Len returns the number of elements covered by the range.
func (r Range) Len() int { return r.End - r.Begin }

// Table holds the sub-range of every run assigned to every worker. Row w
// lists the ranges worker w merges, one per run.
type Table struct {
	workers int
	runs    int
	cells   []Range
}

// NewTable allocates an empty table for the given number of workers and runs.
func NewTable(workers, runs int) *Table {
	return &Table{
		workers: workers,
		runs:    runs,
		cells:   make([]Range, workers*runs),
	}
}

func (t *Table) Workers() int { return t.workers }

func (t *Table) Runs() int { return t.runs }

// At returns the range of run s assigned to worker w.
func (t *Table) At(w, s int) Range { return t.cells[w*t.runs+s] }

// Set assigns r as the range of run s handled by worker w.
func (t *Table) Set(w, s int, r Range) { t.cells[w*t.runs+s] = r }

// Row returns the ranges assigned to worker w. The returned slice aliases
// the table.
func (t *Table) Row(w int) []Range {
	return t.cells[w*t.runs : (w+1)*t.runs]
}

// Last returns the ranges assigned to the highest-indexed worker.
func (t *Table) Last() []Range { return t.Row(t.workers - 1) }

// fillRows assigns worker w the ranges between boundary w and w+1.
// bounds must hold workers+1 boundary vectors.
func (t *Table) fillRows(bounds [][]int) {
	for w := 0; w < t.workers; w++ {
		for s := 0; s < t.runs; s++ {
			t.Set(w, s, Range{Begin: bounds[w][s], End: bounds[w+1][s]})
		}
	}
}

// Validate checks that, for every run, the ranges of workers 0..N-1 are
// contiguous, start at the run's Begin and stay inside the run, and that
// the table covers exactly want elements in total.
func Validate[T any](t *Table, runs []Run[T], want int) error {
	if t.Runs() != len(runs) {
		return fmt.Errorf("%w: table has %d runs, got %d", ErrInvalidTable, t.Runs(), len(runs))
	}

	covered := 0
	for s, run := range runs {
		next := run.Begin
		for w := 0; w < t.workers; w++ {
			r := t.At(w, s)
			if r.Begin != next {
				return fmt.Errorf("%w: worker %d run %d starts at %d, want %d", ErrInvalidTable, w, s, r.Begin, next)
			}
			if r.End < r.Begin || r.End > run.End {
				return fmt.Errorf("%w: worker %d run %d range [%d, %d) outside [%d, %d)",
					ErrInvalidTable, w, s, r.Begin, r.End, run.Begin, run.End)
			}
			covered += r.Len()
			next = r.End
		}
	}

	if covered != want {
		return fmt.Errorf("%w: covers %d elements, want %d", ErrInvalidTable, covered, want)
	}
	return nil
}
