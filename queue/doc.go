// Package queue provides the unbounded blocking FIFO used to hand results and
// idle workers between goroutines, and an observable variant that reports
// every insertion and removal to attached observers.
package queue
