// Package benchmarks measures queue, pool, task and collection throughput.
package benchmarks
