// Package cpu binds worker goroutines to CPU cores.
package cpu

import "runtime"

// CoreFor maps a worker index onto a logical CPU.
func CoreFor(workerID int) int {
	n := runtime.NumCPU()
	id := workerID % n
	if id < 0 {
		id += n
	}
	return id
}
