//go:build !linux

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. Thread pinning is only
// implemented on Linux, so cpu is always -1 here.
func Pin(workerID int) (cpu int, release func(), err error) {
	runtime.LockOSThread()
	return -1, runtime.UnlockOSThread, nil
}
