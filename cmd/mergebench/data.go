package main

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/parmerge/executor"
	"github.com/utkarsh5026/parmerge/merge"
)

// element is a generated key tagged with its origin, so that stability
// violations show up as differences.
type element struct {
	Key int
	Seq int
	Pos int
}

func compareElements(a, b element) int { return cmp.Compare(a.Key, b.Key) }

// generate builds one sorted sequence per entry of lengths with keys drawn
// from [0, keys).
func generate(rng *rand.Rand, lengths []int, keys int) []merge.Sequence[element] {
	seqs := make([]merge.Sequence[element], len(lengths))
	for s, n := range lengths {
		items := make([]element, n)
		for i := range items {
			items[i].Key = rng.IntN(keys)
		}
		slices.SortFunc(items, compareElements)
		for i := range items {
			items[i].Seq, items[i].Pos = s, i
		}
		seqs[s] = merge.NewSequence(items)
	}
	return seqs
}

// cell is one point of the benchmark grid.
type cell struct {
	splitting merge.SplittingAlgorithm
	executor  string
	workers   int
}

func (c cell) String() string {
	return fmt.Sprintf("%s/%s/%d", c.splitting, c.executor, c.workers)
}

func buildGrid(splittings, executors []string, workers []int) ([]cell, error) {
	var cells []cell
	for _, s := range splittings {
		alg, err := merge.ParseSplitting(s)
		if err != nil {
			return nil, err
		}
		for _, e := range executors {
			for _, w := range workers {
				cells = append(cells, cell{splitting: alg, executor: e, workers: w})
			}
		}
	}
	return cells, nil
}

// newExecutor returns the named executor and a function releasing it.
func newExecutor(ctx context.Context, name string, workers int) (executor.Executor, func(), error) {
	switch name {
	case "ephemeral":
		return executor.Ephemeral{}, func() {}, nil
	case "pool", "pool-pinned":
		opts := []executor.PoolOption{
			executor.WithWorkerCount(workers),
			executor.WithLogger(logger),
		}
		if name == "pool-pinned" {
			opts = append(opts, executor.WithCPUAffinity())
		}
		p := executor.NewPool(opts...)
		if err := p.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start %s: %w", name, err)
		}
		release := func() {
			if err := p.Shutdown(5 * time.Second); err != nil {
				logger.Warn("pool shutdown failed", zap.String("executor", name), zap.Error(err))
			}
		}
		return p, release, nil
	default:
		return nil, nil, fmt.Errorf("unknown executor %q", name)
	}
}
