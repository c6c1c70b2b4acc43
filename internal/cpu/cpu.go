// Package cpu binds worker goroutines to OS threads and cores.
package cpu

import "runtime"

// NumCPU returns the number of logical CPUs usable by the process.
func NumCPU() int {
	return runtime.NumCPU()
}

func core(slot int) int {
	n := NumCPU()
	if slot < 0 {
		slot = -slot
	}
	return slot % n
}
