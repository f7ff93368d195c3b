// Package executor runs one-shot fork-join batches: a task is invoked once
// per worker index and the caller blocks until every invocation returned.
//
// Two implementations are provided:
//
//   - Ephemeral starts fresh goroutines for every batch.
//   - Pool keeps a fixed set of workers alive between batches, which pays
//     off when many small batches are run back to back.
//
// Both recover panics raised by a task and report them as errors carrying
// the stack trace, so a failing task never takes the process down.
//
// # Basic Usage
//
//	p := executor.NewPool(executor.WithWorkerCount(8))
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Shutdown(5 * time.Second)
//
//	err := p.Run(ctx, 8, func(ctx context.Context, worker int) error {
//	    return process(worker)
//	})
//
// Tasks must not call Run on the pool that executes them: with every worker
// busy the nested batch would never be scheduled.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
)

var (
	ErrPoolNotStarted  = errors.New("pool not started")
	ErrPoolClosed      = errors.New("pool shut down")
	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")
)

// Task is the body of one worker in a fork-join batch. worker is the
// zero-based index of the invocation within the batch.
type Task func(ctx context.Context, worker int) error

// Executor runs n invocations of task concurrently and blocks until all of
// them have returned. It returns the first error reported by any
// invocation, or nil.
type Executor interface {
	Run(ctx context.Context, n int, task Task) error
}

// runTask invokes task for one worker. A panic is converted into an error so
// that it surfaces through Run instead of crashing the process.
func runTask(ctx context.Context, task Task, worker int) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("worker %d panic: %v\nstack trace:\n%s", worker, r, buf[:n])
		}
	}()

	return task(ctx, worker)
}
