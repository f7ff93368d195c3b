package merge

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/utkarsh5026/parmerge/executor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMerge_TwoSequences(t *testing.T) {
	for _, cfg := range getAllConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			m := New[int](cfg.opts(t)...)
			seqs := []Sequence[int]{
				NewSequence([]int{1, 3, 5}),
				NewSequence([]int{2, 4, 6}),
			}
			out := make([]int, 6)

			res, err := m.Merge(context.Background(), Request[int]{
				Sequences: seqs,
				Target:    out,
				Size:      6,
				Compare:   cmp.Compare[int],
				Workers:   2,
			})
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}

			if diff := gocmp.Diff([]int{1, 2, 3, 4, 5, 6}, out); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
			if res.Position != 6 || res.Written != 6 || res.Workers != 2 {
				t.Errorf("got Position=%d Written=%d Workers=%d, want 6/6/2", res.Position, res.Written, res.Workers)
			}
			for i, s := range res.Sequences {
				if s.Begin != 3 || s.Len() != 0 {
					t.Errorf("sequence %d not fully consumed: %+v", i, s)
				}
			}
			if seqs[0].Begin != 0 || seqs[1].Begin != 0 {
				t.Error("Merge modified the request's sequences")
			}
		})
	}
}

func TestMerge_WorkerCountIndependence(t *testing.T) {
	for _, cfg := range getAllConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			m := New[rec](cfg.opts(t)...)
			rng := rand.New(rand.NewPCG(7, 11))

			for round := 0; round < 10; round++ {
				seqs := randomSequences(rng, 1+rng.IntN(7), 60, 1+rng.IntN(40))
				total := totalLen(seqs)
				size := rng.IntN(total + 5)
				want := reference(seqs, size)

				for _, workers := range []int{1, 2, 3, 5, 8, 64} {
					for _, stable := range []bool{true, false} {
						out := make([]rec, len(want))
						res, err := m.Merge(context.Background(), Request[rec]{
							Sequences: seqs,
							Target:    out,
							Size:      size,
							Compare:   compareRec,
							Stable:    stable,
							Workers:   workers,
						})
						if err != nil {
							t.Fatalf("round %d workers %d: Merge() error = %v", round, workers, err)
						}

						if stable {
							if diff := gocmp.Diff(want, out); diff != "" {
								t.Fatalf("round %d workers %d stable: mismatch (-want +got):\n%s", round, workers, diff)
							}
						} else if diff := gocmp.Diff(keysOf(want), keysOf(out)); diff != "" {
							t.Fatalf("round %d workers %d: key mismatch (-want +got):\n%s", round, workers, diff)
						}

						if res.Written != len(want) {
							t.Errorf("Written = %d, want %d", res.Written, len(want))
						}
						consumed := 0
						for i, s := range res.Sequences {
							consumed += s.Begin - seqs[i].Begin
							if s.End != seqs[i].End || s.Begin > s.End {
								t.Fatalf("sequence %d advanced to invalid range %+v", i, s)
							}
						}
						if consumed != len(want) {
							t.Errorf("consumed %d elements, want %d", consumed, len(want))
						}
					}
				}
			}
		})
	}
}

func TestMerge_ConsumedElementsMatchOutput(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	m := New[rec](WithWorkerCount(4))

	for round := 0; round < 50; round++ {
		seqs := randomSequences(rng, 5, 30, 6)
		size := rng.IntN(totalLen(seqs) + 1)
		out := make([]rec, size)

		res, err := m.Merge(context.Background(), Request[rec]{
			Sequences: seqs,
			Target:    out,
			Size:      size,
			Compare:   compareRec,
			Stable:    true,
		})
		if err != nil {
			t.Fatal(err)
		}

		var consumed []rec
		for i, s := range res.Sequences {
			consumed = append(consumed, seqs[i].Items[seqs[i].Begin:s.Begin]...)
		}
		slices.SortFunc(consumed, func(a, b rec) int {
			return cmp.Or(cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.Idx, b.Idx))
		})
		written := slices.Clone(out[:res.Written])
		slices.SortFunc(written, func(a, b rec) int {
			return cmp.Or(cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.Idx, b.Idx))
		})
		if diff := gocmp.Diff(consumed, written); diff != "" {
			t.Fatalf("round %d: written elements differ from consumed ones (-consumed +written):\n%s", round, diff)
		}
	}
}

func TestMerge_ChunkedResumption(t *testing.T) {
	for _, split := range []SplittingAlgorithm{Exact, Sampling} {
		t.Run(split.String(), func(t *testing.T) {
			rng := rand.New(rand.NewPCG(42, 1))
			m := New[rec](WithSplitting(split), WithWorkerCount(4))

			for round := 0; round < 20; round++ {
				seqs := randomSequences(rng, 4, 50, 10)
				total := totalLen(seqs)
				want := reference(seqs, total)

				k := rng.IntN(total + 1)
				got := make([]rec, total)
				working := slices.Clone(seqs)

				pos := 0
				for _, step := range []int{k, total - k} {
					res, err := m.MergeInPlace(context.Background(), Request[rec]{
						Sequences: working,
						Target:    got,
						Position:  pos,
						Size:      step,
						Compare:   compareRec,
						Stable:    true,
					})
					if err != nil {
						t.Fatalf("round %d step %d: %v", round, step, err)
					}
					pos = res.Position
				}

				if pos != total {
					t.Errorf("round %d: final position %d, want %d", round, pos, total)
				}
				if diff := gocmp.Diff(want, got); diff != "" {
					t.Fatalf("round %d: chunked merge differs from one-shot merge (-want +got):\n%s", round, diff)
				}
				if n := totalLen(working); n != 0 {
					t.Errorf("round %d: %d elements left after merging everything", round, n)
				}
			}
		})
	}
}

func TestMerge_Stability(t *testing.T) {
	// Three sequences of identical keys: a stable merge must emit them
	// sequence by sequence for every worker count.
	seqs := make([]Sequence[rec], 3)
	for s := range seqs {
		items := make([]rec, 20)
		for i := range items {
			items[i] = rec{Key: i / 10, Seq: s, Idx: i}
		}
		seqs[s] = NewSequence(items)
	}
	want := reference(seqs, 60)

	for _, split := range []SplittingAlgorithm{Exact, Sampling} {
		for workers := 1; workers <= 16; workers++ {
			out := make([]rec, 60)
			_, err := New[rec](WithSplitting(split)).Merge(context.Background(), Request[rec]{
				Sequences: seqs,
				Target:    out,
				Size:      60,
				Compare:   compareRec,
				Stable:    true,
				Workers:   workers,
			})
			if err != nil {
				t.Fatal(err)
			}
			if diff := gocmp.Diff(want, out); diff != "" {
				t.Fatalf("%v with %d workers (-want +got):\n%s", split, workers, diff)
			}
		}
	}
}

func TestMerge_Degenerate(t *testing.T) {
	tests := []struct {
		name         string
		seqs         [][]int
		size         int
		wantPosition int
		wantWritten  int
		wantOut      []int
	}{
		{name: "no sequences", seqs: nil, size: 5, wantPosition: 2, wantOut: []int{9, 9, 9, 9}},
		{name: "all empty", seqs: [][]int{{}, {}, nil}, size: 5, wantPosition: 2, wantOut: []int{9, 9, 9, 9}},
		{name: "zero size", seqs: [][]int{{1, 2}, {3}}, size: 0, wantPosition: 2, wantOut: []int{9, 9, 9, 9}},
		{name: "single sequence", seqs: [][]int{{}, {4, 5, 6}, {}}, size: 2, wantPosition: 4, wantWritten: 2, wantOut: []int{9, 9, 4, 5}},
		{name: "size beyond total", seqs: [][]int{{7}, {1}}, size: 10, wantPosition: 12, wantWritten: 2, wantOut: []int{9, 9, 1, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seqs := make([]Sequence[int], len(tt.seqs))
			for i, s := range tt.seqs {
				seqs[i] = NewSequence(s)
			}
			out := []int{9, 9, 9, 9}

			res, err := New[int](WithWorkerCount(8)).Merge(context.Background(), Request[int]{
				Sequences: seqs,
				Target:    out,
				Position:  2,
				Size:      tt.size,
				Compare:   cmp.Compare[int],
			})
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			if res.Position != tt.wantPosition || res.Written != tt.wantWritten {
				t.Errorf("got Position=%d Written=%d, want %d/%d", res.Position, res.Written, tt.wantPosition, tt.wantWritten)
			}
			if diff := gocmp.Diff(tt.wantOut, out); diff != "" {
				t.Errorf("target mismatch (-want +got):\n%s", diff)
			}
			if len(res.Sequences) != len(seqs) {
				t.Errorf("got %d sequences back, want %d", len(res.Sequences), len(seqs))
			}
			if res.Written == 0 {
				if diff := gocmp.Diff(seqs, res.Sequences); diff != "" {
					t.Errorf("no-op advanced sequences (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestMerge_ClampsWorkersToTotal(t *testing.T) {
	out := make([]int, 3)
	res, err := New[int]().Merge(context.Background(), Request[int]{
		Sequences: []Sequence[int]{NewSequence([]int{2}), NewSequence([]int{1, 3})},
		Target:    out,
		Size:      3,
		Compare:   cmp.Compare[int],
		Workers:   100,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Workers != 3 {
		t.Errorf("Workers = %d, want 3", res.Workers)
	}
	if diff := gocmp.Diff([]int{1, 2, 3}, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_InvalidRequests(t *testing.T) {
	items := []int{1, 2, 3}
	valid := func() Request[int] {
		return Request[int]{
			Sequences: []Sequence[int]{NewSequence(items)},
			Target:    make([]int, 3),
			Size:      3,
			Compare:   cmp.Compare[int],
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *Request[int])
		wantErr error
	}{
		{"negative size", func(r *Request[int]) { r.Size = -1 }, ErrInvalidRequest},
		{"negative position", func(r *Request[int]) { r.Position = -1 }, ErrInvalidRequest},
		{"nil compare", func(r *Request[int]) { r.Compare = nil }, ErrInvalidRequest},
		{"negative workers", func(r *Request[int]) { r.Workers = -2 }, ErrInvalidRequest},
		{"begin after end", func(r *Request[int]) { r.Sequences[0] = Sequence[int]{Items: items, Begin: 2, End: 1} }, ErrInvalidRequest},
		{"end beyond items", func(r *Request[int]) { r.Sequences[0] = Sequence[int]{Items: items, End: 4} }, ErrInvalidRequest},
		{"unknown splitting", func(r *Request[int]) { r.Splitting = SplittingAlgorithm(42) }, ErrInvalidRequest},
		{"short target", func(r *Request[int]) { r.Target = make([]int, 2) }, ErrShortTarget},
		{"short target after position", func(r *Request[int]) { r.Position = 1 }, ErrShortTarget},
		{"position past target", func(r *Request[int]) { r.Position = 10 }, ErrShortTarget},
		{"position near max int", func(r *Request[int]) { r.Position = math.MaxInt - 1 }, ErrShortTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			_, err := New[int]().Merge(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Merge() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge_PanickingComparator(t *testing.T) {
	for _, cfg := range getAllConfigs() {
		t.Run(cfg.name, func(t *testing.T) {
			for _, workers := range []int{1, 4} {
				seqs := []Sequence[int]{
					NewSequence([]int{1, 4, 7, 10}),
					NewSequence([]int{2, 5, 8, 11}),
					NewSequence([]int{3, 6, 9, 12}),
				}
				original := slices.Clone(seqs)

				res, err := New[int](cfg.opts(t)...).MergeInPlace(context.Background(), Request[int]{
					Sequences: seqs,
					Target:    make([]int, 12),
					Size:      12,
					Compare:   func(a, b int) int { panic("broken comparator") },
					Workers:   workers,
				})
				if err == nil {
					t.Fatalf("workers %d: expected an error", workers)
				}
				if !strings.Contains(err.Error(), "broken comparator") {
					t.Errorf("workers %d: error does not carry the panic: %v", workers, err)
				}
				if diff := gocmp.Diff(original, seqs); diff != "" {
					t.Errorf("workers %d: sequences advanced after failure (-want +got):\n%s", workers, diff)
				}
				if diff := gocmp.Diff(original, res.Sequences); diff != "" {
					t.Errorf("workers %d: result sequences advanced after failure (-want +got):\n%s", workers, diff)
				}
			}
		})
	}
}

// gatedExecutor arms a flag and holds every worker until all of them have
// started, so a failure in one cannot cancel the others before they run.
type gatedExecutor struct {
	inner executor.Executor
	armed *atomic.Bool
}

func (g gatedExecutor) Run(ctx context.Context, n int, task executor.Task) error {
	var started sync.WaitGroup
	started.Add(n)
	g.armed.Store(true)
	return g.inner.Run(ctx, n, func(ctx context.Context, w int) error {
		started.Done()
		started.Wait()
		return task(ctx, w)
	})
}

func TestMerge_CombinesWorkerFailures(t *testing.T) {
	const workers = 4

	executors := []struct {
		name  string
		build func(t *testing.T) executor.Executor
	}{
		{"Ephemeral", func(t *testing.T) executor.Executor { return executor.Ephemeral{} }},
		{"Pool", startPool},
	}

	for _, ex := range executors {
		t.Run(ex.name, func(t *testing.T) {
			var armed atomic.Bool
			compare := func(a, b int) int {
				if armed.Load() {
					panic("comparator exploded")
				}
				return cmp.Compare(a, b)
			}

			seqs := make([]Sequence[int], workers)
			for s := range seqs {
				items := make([]int, 50)
				for i := range items {
					items[i] = i*workers + s
				}
				seqs[s] = NewSequence(items)
			}

			m := New[int](
				WithExecutor(gatedExecutor{inner: ex.build(t), armed: &armed}),
				WithSplitting(Exact),
			)
			res, err := m.Merge(context.Background(), Request[int]{
				Sequences: seqs,
				Target:    make([]int, 200),
				Size:      200,
				Compare:   compare,
				Workers:   workers,
			})

			var me *multierror.Error
			if !errors.As(err, &me) {
				t.Fatalf("Merge() error = %v, want a *multierror.Error", err)
			}
			if len(me.Errors) != workers {
				t.Fatalf("got %d combined errors, want %d:\n%v", len(me.Errors), workers, err)
			}
			for w, werr := range me.Errors {
				if !strings.Contains(werr.Error(), fmt.Sprintf("worker %d panic: comparator exploded", w)) {
					t.Errorf("error %d = %v", w, werr)
				}
			}
			if diff := gocmp.Diff(seqs, res.Sequences); diff != "" {
				t.Errorf("sequences advanced after failure (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seqs := []Sequence[int]{NewSequence([]int{1, 3}), NewSequence([]int{2})}
	res, err := New[int]().Merge(ctx, Request[int]{
		Sequences: seqs,
		Target:    make([]int, 3),
		Size:      3,
		Compare:   cmp.Compare[int],
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Merge() error = %v, want context.Canceled", err)
	}
	if diff := gocmp.Diff(seqs, res.Sequences); diff != "" {
		t.Errorf("sequences advanced (-want +got):\n%s", diff)
	}
}

func TestMergeInPlace(t *testing.T) {
	seqs := []Sequence[int]{NewSequence([]int{1, 2, 3}), NewSequence([]int{1, 2, 3})}
	out := make([]int, 4)

	res, err := New[int]().MergeInPlace(context.Background(), Request[int]{
		Sequences: seqs,
		Target:    out,
		Size:      4,
		Compare:   cmp.Compare[int],
		Stable:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := gocmp.Diff(res.Sequences, seqs); diff != "" {
		t.Errorf("request sequences not updated (-result +request):\n%s", diff)
	}
	if seqs[0].Begin+seqs[1].Begin != 4 {
		t.Errorf("consumed %d elements, want 4", seqs[0].Begin+seqs[1].Begin)
	}
	if diff := gocmp.Diff([]int{1, 1, 2, 2}, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageMerge(t *testing.T) {
	a := []int{1, 4, 9}
	b := []int{2, 3, 10}
	seqs := []Sequence[int]{NewSequence(a), NewSequence(b)}
	out := make([]int, 6)

	pos, err := Merge(context.Background(), seqs, out, 4, cmp.Compare[int], WithWorkerCount(2))
	if err != nil {
		t.Fatal(err)
	}
	if pos != 4 {
		t.Errorf("position = %d, want 4", pos)
	}

	// Resume where the first call stopped.
	pos2, err := StableMerge(context.Background(), seqs, out[pos:], 10, cmp.Compare[int])
	if err != nil {
		t.Fatal(err)
	}
	if pos2 != 10 {
		t.Errorf("position = %d, want 10 even though only 2 elements remained", pos2)
	}
	if diff := gocmp.Diff([]int{1, 2, 3, 4, 9, 10}, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if totalLen(seqs) != 0 {
		t.Errorf("%d elements left", totalLen(seqs))
	}
}

func TestMerge_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	m := New[int](WithLogger(zap.New(core)))

	_, err := m.Merge(context.Background(), Request[int]{
		Sequences: []Sequence[int]{NewSequence([]int{1}), NewSequence([]int{0})},
		Target:    make([]int, 2),
		Size:      2,
		Compare:   cmp.Compare[int],
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessage("merge plan").Len(); n != 1 {
		t.Errorf("got %d merge plan entries, want 1", n)
	}

	_, _ = m.Merge(context.Background(), Request[int]{Size: 0, Compare: cmp.Compare[int]})
	if n := logs.FilterMessage("nothing to merge").Len(); n != 1 {
		t.Errorf("got %d no-op entries, want 1", n)
	}

	_, err = m.Merge(context.Background(), Request[int]{
		Sequences: []Sequence[int]{NewSequence([]int{1}), NewSequence([]int{0})},
		Target:    make([]int, 2),
		Size:      2,
		Compare:   func(a, b int) int { panic("boom") },
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if logs.FilterLevelExact(zap.WarnLevel).Len() == 0 {
		t.Error("failure was not logged at warn level")
	}
}

func TestResolveWorkers(t *testing.T) {
	tests := []struct {
		requested, fallback, total, want int
	}{
		{0, 4, 100, 4},
		{2, 4, 100, 2},
		{8, 4, 3, 3},
		{0, 16, 5, 5},
		{0, 0, 5, 1},
		{1, 4, 1, 1},
	}
	for _, tt := range tests {
		if got := resolveWorkers(tt.requested, tt.fallback, tt.total); got != tt.want {
			t.Errorf("resolveWorkers(%d, %d, %d) = %d, want %d", tt.requested, tt.fallback, tt.total, got, tt.want)
		}
	}
}

func TestSplittingAlgorithm(t *testing.T) {
	for _, name := range []string{"exact", "sampling"} {
		alg, err := ParseSplitting(name)
		if err != nil {
			t.Fatalf("ParseSplitting(%q) error = %v", name, err)
		}
		if alg.String() != name {
			t.Errorf("String() = %q, want %q", alg.String(), name)
		}
	}
	if _, err := ParseSplitting("random"); err == nil {
		t.Error("ParseSplitting accepted an unknown name")
	}
}

func BenchmarkMerge(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	seqs := make([]Sequence[int], 16)
	total := 0
	for s := range seqs {
		items := make([]int, 1<<14)
		for i := range items {
			items[i] = rng.IntN(1 << 20)
		}
		slices.Sort(items)
		seqs[s] = NewSequence(items)
		total += len(items)
	}
	out := make([]int, total)

	for _, split := range []SplittingAlgorithm{Exact, Sampling} {
		for _, workers := range []int{1, 4, 8} {
			m := New[int](WithSplitting(split), WithWorkerCount(workers))
			b.Run(fmt.Sprintf("%s/workers=%d", split, workers), func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					if _, err := m.Merge(context.Background(), Request[int]{
						Sequences: seqs,
						Target:    out,
						Size:      total,
						Compare:   cmp.Compare[int],
					}); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
