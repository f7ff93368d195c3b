package merge

import (
	"cmp"
	"context"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/utkarsh5026/parmerge/executor"
)

// rec is an element that remembers where it came from, so stability can
// be checked after merging.
type rec struct {
	Key int
	Seq int
	Idx int
}

func compareRec(a, b rec) int { return cmp.Compare(a.Key, b.Key) }

// mergeConfig defines a test configuration for a Merger.
type mergeConfig struct {
	name string
	opts func(t *testing.T) []Option
}

// getAllConfigs returns every combination of splitting, executor and
// sequential merge algorithm.
func getAllConfigs() []mergeConfig {
	executors := []struct {
		name  string
		build func(t *testing.T) executor.Executor
	}{
		{"Ephemeral", func(t *testing.T) executor.Executor { return executor.Ephemeral{} }},
		{"EphemeralLimited", func(t *testing.T) executor.Executor { return executor.Ephemeral{Limit: 2} }},
		{"Pool", startPool},
	}

	var configs []mergeConfig
	for _, split := range []SplittingAlgorithm{Exact, Sampling} {
		for _, exec := range executors {
			for _, alg := range []MergeAlgorithm{LoserTree, Heap, Scan} {
				configs = append(configs, mergeConfig{
					name: split.String() + "/" + exec.name + "/" + alg.String(),
					opts: func(t *testing.T) []Option {
						return []Option{
							WithSplitting(split),
							WithExecutor(exec.build(t)),
							WithMergeAlgorithm(alg),
						}
					},
				})
			}
		}
	}
	return configs
}

// startPool starts a pool that is shut down when the test finishes.
func startPool(t *testing.T) executor.Executor {
	t.Helper()
	p := executor.NewPool(executor.WithWorkerCount(4))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		if err := p.Shutdown(5 * time.Second); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
	return p
}

// randomSequences builds k sorted sequences of up to maxLen elements with
// keys in [0, keys). Some sequences start after a consumed prefix.
func randomSequences(rng *rand.Rand, k, maxLen, keys int) []Sequence[rec] {
	seqs := make([]Sequence[rec], k)
	for s := range seqs {
		n := rng.IntN(maxLen + 1)
		items := make([]rec, n)
		for i := range items {
			items[i] = rec{Key: rng.IntN(keys), Seq: s}
		}
		slices.SortFunc(items, compareRec)
		for i := range items {
			items[i].Idx = i
		}

		begin := 0
		if n > 0 && rng.IntN(3) == 0 {
			begin = rng.IntN(n)
		}
		seqs[s] = Sequence[rec]{Items: items, Begin: begin, End: n}
	}
	return seqs
}

// reference is the stable merge of the remaining elements of seqs,
// truncated to size.
func reference(seqs []Sequence[rec], size int) []rec {
	var all []rec
	for _, s := range seqs {
		all = append(all, s.Remaining()...)
	}
	slices.SortStableFunc(all, compareRec)
	return all[:min(size, len(all))]
}

func totalLen[T any](seqs []Sequence[T]) int {
	n := 0
	for _, s := range seqs {
		n += s.Len()
	}
	return n
}

func keysOf(rs []rec) []int {
	keys := make([]int, len(rs))
	for i, r := range rs {
		keys[i] = r.Key
	}
	return keys
}
