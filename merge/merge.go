package merge

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/parmerge/internal/splitting"
)

// Merger runs parallel multiway merges. It holds configuration only and is
// safe for concurrent use.
type Merger[T any] struct {
	config *config
}

// New creates a Merger with the given options.
//
// Default configuration:
//   - workerCount: runtime.GOMAXPROCS(0)
//   - splitting: Exact
//   - executor: executor.Ephemeral{}
//   - algorithm: LoserTree
//   - oversampling: 10 samples per sequence and worker
//   - no-op logger, no metrics
func New[T any](opts ...Option) *Merger[T] {
	return &Merger[T]{config: createConfig(opts...)}
}

// Merge merges up to req.Size elements of req.Sequences into req.Target,
// starting at req.Position.
//
// Requests with nothing to merge (size 0, or only empty sequences) succeed
// without writing. Otherwise the returned Position is always
// req.Position + req.Size, also when the sequences held fewer elements;
// Written tells how many elements were actually produced.
//
// When a worker fails, or the comparison function panics, the error is
// returned together with unadvanced sequences. Part of the target may
// already have been overwritten.
func (m *Merger[T]) Merge(ctx context.Context, req Request[T]) (Result[T], error) {
	if err := validate(&req); err != nil {
		return Result[T]{}, err
	}

	res := Result[T]{
		Position:  req.Position,
		Sequences: slices.Clone(req.Sequences),
	}

	in := filter(req.Sequences)
	if req.Size == 0 || in.total == 0 {
		m.config.logger.Debug("nothing to merge",
			zap.Int("size", req.Size),
			zap.Int("sequences", len(req.Sequences)))
		m.config.metrics.noop()
		return res, nil
	}

	size := min(req.Size, in.total)
	if req.Position > len(req.Target) || len(req.Target)-req.Position < size {
		return res, fmt.Errorf("%w: need %d elements from position %d, have %d",
			ErrShortTarget, size, req.Position, len(req.Target))
	}

	alg := req.Splitting
	if alg == DefaultSplitting {
		alg = m.config.splitting
	}
	kind, err := alg.kind()
	if err != nil {
		return res, err
	}
	strategy, err := splitting.New[T](kind, m.config.oversampling)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	res.Workers = resolveWorkers(req.Workers, m.config.workerCount, in.total)
	m.config.logger.Debug("merge plan",
		zap.Int("workers", res.Workers),
		zap.Int("sequences", len(in.runs)),
		zap.Int("total", in.total),
		zap.Int("size", size),
		zap.Stringer("splitting", alg),
		zap.Bool("stable", req.Stable))

	if err := ctx.Err(); err != nil {
		return res, err
	}

	start := time.Now()
	table := splitting.NewTable(res.Workers, len(in.runs))
	if err := split(strategy, table, in, size, req.Compare, req.Stable); err != nil {
		m.config.logger.Warn("splitting failed", zap.Error(err))
		m.config.metrics.failed()
		return res, err
	}

	plan := assign(table, in.runs, size)
	written, err := m.dispatch(ctx, &req, table, in, plan)
	if err != nil {
		m.config.metrics.failed()
		return res, err
	}

	last := table.Last()
	for i, idx := range in.index {
		res.Sequences[idx].Begin = last[i].End
	}
	res.Position = req.Position + req.Size
	res.Written = written

	m.config.metrics.merged(alg.String(), written, time.Since(start), imbalance(plan, written))
	return res, nil
}

// MergeInPlace is Merge followed by copying the advanced sequences back
// into req.Sequences. On error req.Sequences is left unchanged.
func (m *Merger[T]) MergeInPlace(ctx context.Context, req Request[T]) (Result[T], error) {
	res, err := m.Merge(ctx, req)
	if err != nil {
		return res, err
	}
	copy(req.Sequences, res.Sequences)
	return res, nil
}

// Merge merges size elements of seqs into target, advancing seqs past the
// consumed elements. Equal elements may be written in any order. It
// returns the output position after the merge, which is size unless
// nothing was merged.
func Merge[T any](ctx context.Context, seqs []Sequence[T], target []T, size int, cmp func(a, b T) int, opts ...Option) (int, error) {
	res, err := New[T](opts...).MergeInPlace(ctx, Request[T]{
		Sequences: seqs,
		Target:    target,
		Size:      size,
		Compare:   cmp,
	})
	return res.Position, err
}

// StableMerge is Merge that keeps equal elements in sequence order.
func StableMerge[T any](ctx context.Context, seqs []Sequence[T], target []T, size int, cmp func(a, b T) int, opts ...Option) (int, error) {
	res, err := New[T](opts...).MergeInPlace(ctx, Request[T]{
		Sequences: seqs,
		Target:    target,
		Size:      size,
		Compare:   cmp,
		Stable:    true,
	})
	return res.Position, err
}

// imbalance is the largest worker load over the ideal per-worker load.
func imbalance(plan []assignment, written int) float64 {
	if written == 0 {
		return 1
	}
	largest := 0
	for _, a := range plan {
		largest = max(largest, a.size)
	}
	return float64(largest) * float64(len(plan)) / float64(written)
}
