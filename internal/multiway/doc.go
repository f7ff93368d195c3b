// Package multiway implements the sequential bounded multiway merge used by
// each worker of a parallel merge.
//
// Merge takes a small set of sorted runs and writes the smallest len(dst)
// elements of their union into dst. Three selection algorithms are
// available:
//
//   - LoserTree: a tournament tree with log(k) comparisons per element (default)
//   - Heap: a binary heap over run cursors built on container/heap
//   - Scan: a linear scan over the run heads, cheapest for a handful of runs
//
// A single run is copied and two runs use a dedicated two-way merge no
// matter which algorithm is selected.
//
// When stable is true, equal elements are emitted in run order (run 0
// first). Unstable merges still produce sorted output but the relative
// order of equal elements is unspecified.
package multiway
