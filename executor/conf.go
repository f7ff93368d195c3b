package executor

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PoolOption is a functional option for configuring a Pool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	workerCount int
	taskBuffer  int
	rateLimiter *rate.Limiter
	pinWorkers  bool
	logger      *zap.Logger
}

// WithWorkerCount sets the number of long-lived workers.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) PoolOption {
	return func(cfg *poolConfig) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithTaskBuffer sets the buffer size of every worker's queue.
// If not specified, defaults to the number of workers.
func WithTaskBuffer(size int) PoolOption {
	return func(cfg *poolConfig) {
		if size >= 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithRateLimit limits how many invocations the pool starts per second,
// across all batches. Useful when several callers share one pool and
// batches must not starve other work on the machine.
//
// Example:
//
//	WithRateLimit(1000, 64) // 1000 invocations/sec with bursts of 64
func WithRateLimit(tasksPerSecond float64, burst int) PoolOption {
	return func(cfg *poolConfig) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithCPUAffinity pins every worker to its own OS thread and, on Linux, that
// thread to a CPU core (worker i runs on core i mod NumCPU).
func WithCPUAffinity() PoolOption {
	return func(cfg *poolConfig) {
		cfg.pinWorkers = true
	}
}

// WithLogger sets the logger used for lifecycle and failure events.
func WithLogger(logger *zap.Logger) PoolOption {
	return func(cfg *poolConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

func createConfig(opts ...PoolOption) *poolConfig {
	cfg := &poolConfig{
		workerCount: runtime.GOMAXPROCS(0),
		taskBuffer:  -1,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.taskBuffer < 0 {
		cfg.taskBuffer = cfg.workerCount
	}
	return cfg
}
