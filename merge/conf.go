package merge

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/utkarsh5026/parmerge/executor"
	"github.com/utkarsh5026/parmerge/internal/splitting"
)

// Option is a functional option for configuring a Merger.
type Option func(*config)

type config struct {
	workerCount  int
	splitting    SplittingAlgorithm
	executor     executor.Executor
	algorithm    MergeAlgorithm
	oversampling int
	logger       *zap.Logger
	metrics      *Metrics
}

// WithWorkerCount sets the number of workers used when a request does not
// ask for a specific count.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithSplitting sets the splitting algorithm used when a request does not
// name one. Defaults to Exact.
func WithSplitting(alg SplittingAlgorithm) Option {
	return func(cfg *config) {
		if alg == Exact || alg == Sampling {
			cfg.splitting = alg
		}
	}
}

// WithExecutor sets the executor workers run on. Pass a started
// *executor.Pool to reuse long-lived workers across merges.
// If not specified, every merge starts its own goroutines.
func WithExecutor(exec executor.Executor) Option {
	return func(cfg *config) {
		if exec != nil {
			cfg.executor = exec
		}
	}
}

// WithMergeAlgorithm sets the sequential merge run by every worker.
// Defaults to LoserTree.
func WithMergeAlgorithm(alg MergeAlgorithm) Option {
	return func(cfg *config) {
		switch alg {
		case LoserTree, Heap, Scan:
			cfg.algorithm = alg
		}
	}
}

// WithOversampling sets the number of samples per sequence and worker drawn
// by Sampling splitting.
func WithOversampling(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.oversampling = n
		}
	}
}

// WithLogger sets the logger for merge plans and failures.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics records every merge in m. A nil m disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}

func createConfig(opts ...Option) *config {
	cfg := &config{
		workerCount:  runtime.GOMAXPROCS(0),
		splitting:    Exact,
		executor:     executor.Ephemeral{},
		algorithm:    LoserTree,
		oversampling: splitting.DefaultOversampling,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
