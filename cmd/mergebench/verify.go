package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/utkarsh5026/parmerge/executor"
	"github.com/utkarsh5026/parmerge/merge"
)

type verifyOptions struct {
	cases     int
	seed      uint64
	sequences int
	length    int
	keys      int
	workers   []int
	executors []string
}

func newVerifyCmd() *cobra.Command {
	opts := verifyOptions{
		cases:     100,
		seed:      1,
		sequences: 8,
		length:    200,
		keys:      50,
		workers:   []int{2, 3, 7, 16},
		executors: []string{"ephemeral", "pool"},
	}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check every configuration against a single-worker merge on random inputs",
		Long: `verify generates random sorted sequences and checks that

  • every splitting, executor and worker count produces the same output and
    consumes the same elements as a single-worker exact merge, and
  • merging in two steps produces the same output as merging at once.

It exits with a non-zero status when any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			failed, err := runVerify(cmd.Context(), cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d cases failed", failed, opts.cases)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.cases, "cases", opts.cases, "Number of random cases")
	f.Uint64Var(&opts.seed, "seed", opts.seed, "Seed for the random cases")
	f.IntVar(&opts.sequences, "sequences", opts.sequences, "Maximum number of sequences per case")
	f.IntVar(&opts.length, "length", opts.length, "Maximum sequence length")
	f.IntVar(&opts.keys, "keys", opts.keys, "Number of distinct keys; small values produce many duplicates")
	f.IntSliceVar(&opts.workers, "workers", opts.workers, "Worker counts to check")
	f.StringSliceVar(&opts.executors, "executors", opts.executors, "Executors to check (ephemeral, pool, pool-pinned)")

	return cmd
}

// verifier holds the mergers compared against the reference.
type verifier struct {
	reference *merge.Merger[element]
	mergers   map[cell]*merge.Merger[element]
	cells     []cell
}

// runVerify runs opts.cases random cases and returns how many failed.
func runVerify(ctx context.Context, w io.Writer, opts verifyOptions) (int, error) {
	if opts.cases < 0 || opts.sequences <= 0 || opts.length < 0 || opts.keys <= 0 {
		return 0, fmt.Errorf("invalid verify options %+v", opts)
	}

	cells, err := buildGrid([]string{"exact", "sampling"}, opts.executors, opts.workers)
	if err != nil {
		return 0, err
	}
	if len(cells) == 0 {
		return 0, fmt.Errorf("no configuration to verify")
	}

	v := &verifier{
		reference: merge.New[element](merge.WithWorkerCount(1), merge.WithSplitting(merge.Exact)),
		mergers:   make(map[cell]*merge.Merger[element], len(cells)),
		cells:     cells,
	}

	// One executor per executor kind and worker count, shared by both
	// splitting algorithms.
	executors := make(map[cell]executor.Executor)
	for _, c := range cells {
		key := cell{executor: c.executor, workers: c.workers}
		exec, ok := executors[key]
		if !ok {
			var release func()
			exec, release, err = newExecutor(ctx, c.executor, c.workers)
			if err != nil {
				return 0, err
			}
			defer release()
			executors[key] = exec
		}
		v.mergers[c] = merge.New[element](
			merge.WithExecutor(exec),
			merge.WithSplitting(c.splitting),
			merge.WithWorkerCount(c.workers),
			merge.WithLogger(logger),
		)
	}

	printSectionHeader(w, "DIFFERENTIAL VERIFICATION",
		fmt.Sprintf("  • %d cases, %d configurations each", opts.cases, len(cells)))

	failed := 0
	rng := rand.New(rand.NewPCG(opts.seed, 0x9e3779b97f4a7c15))
	for i := range opts.cases {
		problems := v.check(ctx, rng, opts)
		if len(problems) == 0 {
			_, _ = green.Fprintf(w, "case %d: ok\n", i+1)
			continue
		}
		failed++
		_, _ = red.Fprintf(w, "case %d: FAIL\n", i+1)
		for _, p := range problems {
			_, _ = red.Fprintf(w, "  • %s\n", p)
		}
		logger.Warn("verification case failed", zap.Int("case", i+1), zap.Strings("problems", problems))
	}

	fmt.Fprintln(w)
	if failed == 0 {
		_, _ = green.Fprintf(w, "✅ %d/%d cases passed\n", opts.cases, opts.cases)
	} else {
		_, _ = red.Fprintf(w, "❌ %d/%d cases failed\n", failed, opts.cases)
	}
	return failed, nil
}

// check runs one random case and describes every mismatch found.
func (v *verifier) check(ctx context.Context, rng *rand.Rand, opts verifyOptions) []string {
	lengths := make([]int, 1+rng.IntN(opts.sequences))
	for i := range lengths {
		lengths[i] = rng.IntN(opts.length + 1)
	}
	seqs := generate(rng, lengths, opts.keys)

	total := 0
	for _, s := range seqs {
		total += s.Len()
	}
	size := rng.IntN(total + 1)
	stable := rng.IntN(2) == 0

	req := merge.Request[element]{
		Sequences: seqs,
		Target:    make([]element, size),
		Size:      size,
		Compare:   compareElements,
		Stable:    stable,
	}
	want, err := v.reference.Merge(ctx, req)
	if err != nil {
		return []string{fmt.Sprintf("reference merge: %v", err)}
	}
	wantOut := req.Target

	var problems []string
	for _, c := range v.cells {
		req.Target = make([]element, size)
		got, err := v.mergers[c].Merge(ctx, req)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", c, err))
			continue
		}
		if p := compareOutputs(wantOut, req.Target, stable); p != "" {
			problems = append(problems, fmt.Sprintf("%s (stable=%v, size=%d): %s", c, stable, size, p))
		}
		if !sameProgress(want.Sequences, got.Sequences) {
			problems = append(problems, fmt.Sprintf("%s: sequences advanced differently", c))
		}
		if got.Position != want.Position || got.Written != want.Written {
			problems = append(problems, fmt.Sprintf("%s: position %d written %d, want %d and %d",
				c, got.Position, got.Written, want.Position, want.Written))
		}
	}

	// Two steps of k and size-k elements must equal the one-shot merge.
	k := rng.IntN(size + 1)
	c := v.cells[rng.IntN(len(v.cells))]
	working := slices.Clone(seqs)
	out := make([]element, size)
	pos := 0
	for _, step := range []int{k, size - k} {
		res, err := v.mergers[c].MergeInPlace(ctx, merge.Request[element]{
			Sequences: working,
			Target:    out,
			Position:  pos,
			Size:      step,
			Compare:   compareElements,
			Stable:    stable,
		})
		if err != nil {
			return append(problems, fmt.Sprintf("%s chunked: %v", c, err))
		}
		pos = res.Position
	}
	if p := compareOutputs(wantOut, out, stable); p != "" {
		problems = append(problems, fmt.Sprintf("%s chunked at %d: %s", c, k, p))
	}
	return problems
}

// compareOutputs reports the first difference between want and got. Unstable
// merges only have to agree on the keys.
func compareOutputs(want, got []element, stable bool) string {
	for i := range want {
		if stable && want[i] != got[i] {
			return fmt.Sprintf("index %d is %+v, want %+v", i, got[i], want[i])
		}
		if want[i].Key != got[i].Key {
			return fmt.Sprintf("index %d has key %d, want %d", i, got[i].Key, want[i].Key)
		}
	}
	return ""
}

// sameProgress reports whether a and b consumed the same elements.
func sameProgress(a, b []merge.Sequence[element]) bool {
	return slices.EqualFunc(a, b, func(x, y merge.Sequence[element]) bool {
		return x.Begin == y.Begin && x.End == y.End
	})
}
