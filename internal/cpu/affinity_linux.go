//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to core slot % NumCPU. The returned release func unlocks the thread; it
// must run on the same goroutine.
func Pin(slot int) (release func(), err error) {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core(slot))

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return runtime.UnlockOSThread, err
	}
	return runtime.UnlockOSThread, nil
}
