//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore restricts the calling OS thread to a single CPU.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	return unix.SchedSetaffinity(0, &mask) // 0 = current thread
}

// Pin locks the calling goroutine to its OS thread and binds that thread to
// CPU workerID mod NumCPU. The returned release function unlocks the thread
// and must be called when the worker exits. On failure the goroutine is
// still locked and release must still be called.
func Pin(workerID int) (cpu int, release func(), err error) {
	runtime.LockOSThread()
	release = runtime.UnlockOSThread

	cpu = CoreFor(workerID)
	if err = pinToCore(cpu); err != nil {
		return -1, release, err
	}
	return cpu, release, nil
}
