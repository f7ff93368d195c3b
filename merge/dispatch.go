package merge

import (
	"context"
	"fmt"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/utkarsh5026/parmerge/internal/multiway"
	"github.com/utkarsh5026/parmerge/internal/splitting"
)

// assignment is the part of the output one worker produces.
type assignment struct {
	offset int // first output index, relative to Request.Position
	size   int // number of elements to write
}

// assign computes where every worker writes and how much, from the chunk
// table alone.
func assign[T any](t *splitting.Table, runs []splitting.Run[T], size int) []assignment {
	out := make([]assignment, t.Workers())
	for w := range out {
		offset, local := 0, 0
		for s, r := range t.Row(w) {
			offset += r.Begin - runs[s].Begin
			local += r.Len()
		}
		out[w] = assignment{offset: offset, size: max(min(local, size-offset), 0)}
	}
	return out
}

// split fills t, turning a panic in the comparison function into an error.
func split[T any](strategy splitting.Strategy[T], t *splitting.Table, in inputs[T], size int, cmp func(a, b T) int, stable bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("splitting panic: %v\nstack trace:\n%s", r, buf[:n])
		}
	}()

	return strategy.Split(t, in.runs, size, in.total, cmp, stable)
}

// mergeChunk runs the sequential merge of worker w into dst. A panic in the
// comparison function is returned as an error.
func mergeChunk[T any](w int, dst []T, runs [][]T, cmp func(a, b T) int, stable bool, alg multiway.Algorithm) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("worker %d panic: %v\nstack trace:\n%s", w, r, buf[:n])
		}
	}()

	if n := multiway.Merge(dst, runs, cmp, stable, alg); n != len(dst) {
		return fmt.Errorf("worker %d wrote %d of %d elements", w, n, len(dst))
	}
	return nil
}

// dispatch runs one sequential merge per worker and waits for all of them.
// It returns the number of elements written. Failures of individual workers
// are combined in worker order.
func (m *Merger[T]) dispatch(ctx context.Context, req *Request[T], t *splitting.Table, in inputs[T], plan []assignment) (int, error) {
	errs := make([]error, len(plan))

	runErr := m.config.executor.Run(ctx, len(plan), func(ctx context.Context, w int) error {
		a := plan[w]
		if a.size == 0 {
			return nil
		}

		row := t.Row(w)
		runs := make([][]T, len(row))
		for s, r := range row {
			runs[s] = in.runs[s].Items[r.Begin:r.End]
		}

		start := req.Position + a.offset
		errs[w] = mergeChunk(w, req.Target[start:start+a.size], runs, req.Compare, req.Stable, m.config.algorithm)
		return errs[w]
	})

	var result *multierror.Error
	recorded := false
	for w, err := range errs {
		if err == nil {
			continue
		}
		if err == runErr {
			recorded = true
		}
		m.config.logger.Warn("merge worker failed", zap.Int("worker", w), zap.Error(err))
		result = multierror.Append(result, err)
	}
	if runErr != nil && !recorded {
		m.config.logger.Warn("merge batch failed", zap.Error(runErr))
		result = multierror.Append(result, runErr)
	}
	if err := result.ErrorOrNil(); err != nil {
		return 0, err
	}

	written := 0
	for _, a := range plan {
		written += a.size
	}
	return written, nil
}
