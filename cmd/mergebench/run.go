package main

import (
	"cmp"
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utkarsh5026/parmerge/merge"
)

// result is the outcome of timing one grid cell.
type result struct {
	cell     cell
	median   time.Duration
	fastest  time.Duration
	elements int
	workers  int
	rank     int
	err      error
}

func (r result) throughput() float64 {
	if r.median <= 0 {
		return 0
	}
	return float64(r.elements) / r.median.Seconds()
}

func newRunCmd() *cobra.Command {
	base := Scenario{
		Name:       "default",
		Sequences:  16,
		Length:     100_000,
		Workers:    []int{1, 2, 4, 8},
		Iterations: 3,
		Splitting:  []string{"exact", "sampling"},
		Executors:  executorNames,
		Seed:       1,
	}
	var (
		configPath string
		ciMode     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Time the merge over a grid of splitting, executor and worker count",
		Example: `  mergebench run --sequences 64 --length 10000 --workers 1,4,8 --stable
  mergebench run --config scenarios.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := []Scenario{base}
			if configPath != "" {
				var err error
				if scenarios, err = loadScenarios(configPath, base); err != nil {
					return err
				}
			} else if err := base.validate(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, sc := range scenarios {
				printScenario(out, sc)
				results, err := runScenario(cmd.Context(), sc, !ciMode)
				if err != nil {
					return err
				}
				renderResults(out, results)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&base.Sequences, "sequences", base.Sequences, "Number of input sequences")
	f.IntVar(&base.Length, "length", base.Length, "Elements per sequence")
	f.IntVar(&base.Size, "size", base.Size, "Elements to merge per iteration (0 = all)")
	f.IntSliceVar(&base.Workers, "workers", base.Workers, "Worker counts to try")
	f.IntVar(&base.Iterations, "iterations", base.Iterations, "Timed iterations per configuration")
	f.BoolVar(&base.Stable, "stable", base.Stable, "Run stable merges")
	f.StringSliceVar(&base.Splitting, "splitting", base.Splitting, "Splitting algorithms to try (exact, sampling)")
	f.StringSliceVar(&base.Executors, "executors", base.Executors, "Executors to try (ephemeral, pool, pool-pinned)")
	f.Uint64Var(&base.Seed, "seed", base.Seed, "Seed for the generated input")
	f.StringVar(&configPath, "config", "", "YAML file with a list of scenarios")
	f.BoolVar(&ciMode, "ci", false, "Disable the progress bar")

	return cmd
}

// runScenario times every grid cell of sc on one generated input.
func runScenario(ctx context.Context, sc Scenario, showProgress bool) ([]result, error) {
	cells, err := buildGrid(sc.Splitting, sc.Executors, sc.Workers)
	if err != nil {
		return nil, err
	}

	lengths := make([]int, sc.Sequences)
	for i := range lengths {
		lengths[i] = sc.Length
	}
	rng := rand.New(rand.NewPCG(sc.Seed, uint64(sc.Sequences)))
	seqs := generate(rng, lengths, max(sc.Sequences*sc.Length*4, 1))
	size := sc.mergeSize()
	target := make([]element, size)

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(cells),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Merging"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionEnableColorCodes(true),
		)
	}

	results := make([]result, 0, len(cells))
	for _, c := range cells {
		if bar != nil {
			bar.Describe(fmt.Sprintf("Merging: %s", c))
		}
		r := timeCell(ctx, c, sc, seqs, target)
		if r.err != nil {
			logger.Warn("configuration failed", zap.Stringer("cell", c), zap.Error(r.err))
		}
		results = append(results, r)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	rank(results)
	return results, nil
}

func timeCell(ctx context.Context, c cell, sc Scenario, seqs []merge.Sequence[element], target []element) result {
	r := result{cell: c, elements: len(target)}

	exec, release, err := newExecutor(ctx, c.executor, c.workers)
	if err != nil {
		r.err = err
		return r
	}
	defer release()

	m := merge.New[element](
		merge.WithExecutor(exec),
		merge.WithSplitting(c.splitting),
		merge.WithWorkerCount(c.workers),
		merge.WithLogger(logger),
	)
	req := merge.Request[element]{
		Sequences: seqs,
		Target:    target,
		Size:      len(target),
		Compare:   compareElements,
		Stable:    sc.Stable,
	}

	times := make([]time.Duration, 0, sc.Iterations)
	for range sc.Iterations {
		start := time.Now()
		res, err := m.Merge(ctx, req)
		if err != nil {
			r.err = err
			return r
		}
		times = append(times, time.Since(start))
		r.workers = res.Workers
	}

	slices.Sort(times)
	r.fastest = times[0]
	r.median = times[len(times)/2]
	logger.Debug("configuration timed",
		zap.Stringer("cell", c),
		zap.Duration("median", r.median),
		zap.Duration("fastest", r.fastest))
	return r
}

// rank orders successful results by median time and numbers them from 1.
// Failed results go last.
func rank(results []result) {
	slices.SortStableFunc(results, func(a, b result) int {
		switch {
		case a.err != nil && b.err != nil:
			return 0
		case a.err != nil:
			return 1
		case b.err != nil:
			return -1
		}
		return cmp.Compare(a.median, b.median)
	})

	n := 0
	for i := range results {
		if results[i].err == nil {
			n++
			results[i].rank = n
		}
	}
}
