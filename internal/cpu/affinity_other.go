//go:build !linux

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. Core pinning is only
// implemented on Linux.
func Pin(slot int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
