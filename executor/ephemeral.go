package executor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ephemeral runs every batch on newly started goroutines.
//
// The zero value starts all invocations at once. A positive Limit caps the
// number of invocations running at the same time; the rest start as soon as
// a slot frees up.
type Ephemeral struct {
	Limit int
}

// Run implements Executor. Once an invocation fails, invocations that have
// not started yet observe a cancelled context and return without running.
func (e Ephemeral) Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.Limit > 0 {
		g.SetLimit(e.Limit)
	}

	for w := range n {
		g.Go(func() error {
			return runTask(gctx, task, w)
		})
	}
	return g.Wait()
}
