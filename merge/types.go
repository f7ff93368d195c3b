package merge

import (
	"errors"
	"fmt"

	"github.com/utkarsh5026/parmerge/internal/multiway"
	"github.com/utkarsh5026/parmerge/internal/splitting"
)

var (
	ErrInvalidRequest = errors.New("invalid merge request")
	ErrShortTarget    = errors.New("target too short")
)

// Sequence is the sorted range Items[Begin:End]. Begin moves forward as a
// merge consumes elements.
type Sequence[T any] struct {
	Items      []T
	Begin, End int
}

// NewSequence returns a sequence covering all of items.
func NewSequence[T any](items []T) Sequence[T] {
	return Sequence[T]{Items: items, End: len(items)}
}

// Len returns the number of elements not consumed yet.
func (s Sequence[T]) Len() int { return s.End - s.Begin }

// Remaining returns the elements not consumed yet.
func (s Sequence[T]) Remaining() []T { return s.Items[s.Begin:s.End] }

func (s Sequence[T]) run() splitting.Run[T] {
	return splitting.Run[T]{Items: s.Items, Begin: s.Begin, End: s.End}
}

// SplittingAlgorithm selects how the work is divided between workers.
type SplittingAlgorithm int

const (
	// DefaultSplitting uses the splitting configured on the Merger.
	DefaultSplitting SplittingAlgorithm = iota
	// Exact places every boundary with a multi-sequence selection.
	Exact
	// Sampling places boundaries using a sorted sample of the sequences.
	Sampling
)

func (a SplittingAlgorithm) String() string {
	switch a {
	case DefaultSplitting:
		return "default"
	case Exact:
		return "exact"
	case Sampling:
		return "sampling"
	default:
		return fmt.Sprintf("SplittingAlgorithm(%d)", int(a))
	}
}

func (a SplittingAlgorithm) kind() (splitting.Kind, error) {
	switch a {
	case Exact:
		return splitting.KindExact, nil
	case Sampling:
		return splitting.KindSampling, nil
	default:
		return 0, fmt.Errorf("%w: unknown splitting algorithm %v", ErrInvalidRequest, a)
	}
}

// ParseSplitting maps "exact" and "sampling" to their SplittingAlgorithm.
func ParseSplitting(name string) (SplittingAlgorithm, error) {
	switch name {
	case "exact":
		return Exact, nil
	case "sampling":
		return Sampling, nil
	default:
		return DefaultSplitting, fmt.Errorf("unknown splitting algorithm %q", name)
	}
}

// MergeAlgorithm selects the sequential merge every worker runs.
type MergeAlgorithm = multiway.Algorithm

const (
	LoserTree = multiway.LoserTree
	Heap      = multiway.Heap
	Scan      = multiway.Scan
)

// Request describes one merge step.
type Request[T any] struct {
	// Sequences are the sorted inputs. Empty sequences are allowed and
	// skipped. The slice is not modified; see Merger.MergeInPlace.
	Sequences []Sequence[T]

	// Target receives the merged elements starting at Position.
	Target   []T
	Position int

	// Size is the number of elements to merge. Fewer are written when the
	// sequences hold less.
	Size int

	// Compare orders the elements; every sequence must be sorted by it.
	Compare func(a, b T) int

	// Stable keeps equal elements in sequence order.
	Stable bool

	// Workers and Splitting override the Merger defaults when set.
	Workers   int
	Splitting SplittingAlgorithm
}

// Result describes the outcome of a merge step.
type Result[T any] struct {
	// Position is Request.Position + Request.Size, even when fewer than
	// Size elements were available. Degenerate requests that merge
	// nothing leave it at Request.Position.
	Position int

	// Written is the number of elements actually written.
	Written int

	// Sequences are copies of the request's sequences, in the same order,
	// advanced past the consumed elements.
	Sequences []Sequence[T]

	// Workers is the number of workers the merge was split into.
	Workers int
}
