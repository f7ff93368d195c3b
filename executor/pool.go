package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/parmerge/internal/cpu"
)

// Pool is a long-running, reusable set of workers that executes fork-join
// batches. Invocations of a batch are spread round-robin over per-worker
// queues. A Pool is safe for concurrent use by multiple callers.
type Pool struct {
	config *poolConfig
	mu     sync.RWMutex
	state  *poolState
}

// poolState holds the runtime state of a started pool.
type poolState struct {
	cancel     context.CancelFunc
	started    atomic.Bool
	shutdown   atomic.Bool
	counter    atomic.Int64
	queues     []chan *job
	quit       chan struct{}  // closed when Shutdown begins
	done       chan struct{}  // closed when all workers have exited
	submitters sync.WaitGroup // Run calls still enqueueing jobs
}

// job is one invocation of a batch.
type job struct {
	ctx    context.Context
	task   Task
	worker int
	report func(worker int, err error)
}

// NewPool creates a Pool with the given options. No worker is started until
// Start is called.
//
// Default configuration:
//   - workerCount: runtime.GOMAXPROCS(0)
//   - taskBuffer: equal to workerCount
//   - no rate limiting, no CPU pinning, no-op logger
func NewPool(opts ...PoolOption) *Pool {
	return &Pool{config: createConfig(opts...)}
}

// Workers returns the number of workers the pool runs.
func (p *Pool) Workers() int { return p.config.workerCount }

// Start launches the workers. ctx bounds the lifetime of the pool: once it
// is cancelled, workers finish the invocation at hand, fail the ones still
// queued and exit.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != nil && p.state.started.Load() {
		return errors.New("pool already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	n := p.config.workerCount
	state := &poolState{
		cancel: cancel,
		queues: make([]chan *job, n),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for i := range state.queues {
		state.queues[i] = make(chan *job, p.config.taskBuffer)
	}

	p.state = state
	state.started.Store(true)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			return p.worker(ctx, state, i)
		})
	}

	go func() {
		_ = g.Wait()
		close(state.done)
	}()

	p.config.logger.Debug("worker pool started",
		zap.Int("workers", n),
		zap.Int("task_buffer", p.config.taskBuffer),
		zap.Bool("cpu_affinity", p.config.pinWorkers))
	return nil
}

// Run implements Executor. It enqueues n invocations of task and blocks
// until all of them have been executed. Invocations that can no longer be
// executed because the pool is shutting down report ErrPoolClosed.
//
// The returned error is the error of the lowest-indexed failed invocation.
func (p *Pool) Run(ctx context.Context, n int, task Task) error {
	if n <= 0 {
		return nil
	}

	p.mu.RLock()
	state := p.state
	if state == nil || !state.started.Load() {
		p.mu.RUnlock()
		return ErrPoolNotStarted
	}
	if state.shutdown.Load() {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	state.submitters.Add(1)
	p.mu.RUnlock()

	results := make(chan jobResult, n)
	report := func(worker int, err error) {
		results <- jobResult{worker: worker, err: err}
	}

	for w := range n {
		j := &job{ctx: ctx, task: task, worker: w, report: report}
		select {
		case state.queues[state.next()] <- j:
		case <-state.quit:
			report(w, ErrPoolClosed)
		case <-state.done:
			report(w, ErrPoolClosed)
		}
	}
	state.submitters.Done()

	errs := make([]error, n)
	reported := make([]bool, n)
	for pending := n; pending > 0; {
		select {
		case r := <-results:
			errs[r.worker], reported[r.worker] = r.err, true
			pending--
		case <-state.done:
			// No worker is left; whatever has not reported by now never will.
			collectAbandoned(results, errs, reported)
			pending = 0
		}
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops accepting batches and waits for the workers to execute
// everything already queued.
//
// Parameters:
//   - timeout: Maximum duration to wait for graceful shutdown (0 = wait forever)
//
// Example:
//
//	p.Start(ctx)
//	defer p.Shutdown(10 * time.Second)
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	state := p.state
	if state == nil || !state.started.Load() {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}

	if !state.shutdown.CompareAndSwap(false, true) {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.mu.Unlock()

	close(state.quit)
	state.submitters.Wait()
	for _, q := range state.queues {
		close(q)
	}

	err := waitUntil(state.done, timeout)
	state.cancel()

	p.config.logger.Debug("worker pool shut down", zap.Error(err))
	return err
}

type jobResult struct {
	worker int
	err    error
}

// worker executes jobs from its queue until the queue is closed or ctx is
// cancelled.
func (p *Pool) worker(ctx context.Context, state *poolState, id int) error {
	if p.config.pinWorkers {
		core, release, err := cpu.Pin(id)
		defer release()
		if err != nil {
			p.config.logger.Warn("cpu pinning failed", zap.Int("worker", id), zap.Error(err))
		} else {
			p.config.logger.Debug("worker pinned", zap.Int("worker", id), zap.Int("cpu", core))
		}
	}

	queue := state.queues[id]
	for {
		select {
		case <-ctx.Done():
			p.drain(queue, ctx.Err())
			return ctx.Err()
		case j, ok := <-queue:
			if !ok {
				return nil
			}
			p.execute(j)
		}
	}
}

// execute runs one job and reports its outcome to the batch it belongs to.
func (p *Pool) execute(j *job) {
	if p.config.rateLimiter != nil {
		if err := p.config.rateLimiter.Wait(j.ctx); err != nil {
			// Rate limiter's error doesn't wrap context errors, so check context explicitly
			if ctxErr := j.ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			j.report(j.worker, err)
			return
		}
	}

	err := runTask(j.ctx, j.task, j.worker)
	if err != nil {
		p.config.logger.Debug("task failed", zap.Int("worker", j.worker), zap.Error(err))
	}
	j.report(j.worker, err)
}

// drain fails every job still sitting in the queue.
func (p *Pool) drain(queue <-chan *job, cause error) {
	for {
		select {
		case j, ok := <-queue:
			if !ok {
				return
			}
			j.report(j.worker, cause)
		default:
			return
		}
	}
}

// next returns the next queue index in a round-robin fashion.
func (s *poolState) next() int64 {
	return (s.counter.Add(1) - 1) % int64(len(s.queues))
}

// collectAbandoned gathers the results reported before the workers exited
// and marks every other invocation as ErrPoolClosed.
func collectAbandoned(results <-chan jobResult, errs []error, reported []bool) {
	for {
		select {
		case r := <-results:
			errs[r.worker], reported[r.worker] = r.err, true
		default:
			for i := range errs {
				if !reported[i] {
					errs[i] = ErrPoolClosed
				}
			}
			return
		}
	}
}

// waitUntil blocks until either the done channel is closed or the timeout is reached.
func waitUntil(d <-chan struct{}, timeout time.Duration) error {
	if timeout <= 0 {
		<-d
		return nil
	}

	select {
	case <-d:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
