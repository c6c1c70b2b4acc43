package algorithms

import (
	"math/rand"
	"sync"
	"time"
)

// maxShift keeps 1<<retry from overflowing int64.
const maxShift = 62

// BackoffType selects how the delay between two attempts of a task grows.
type BackoffType int

const (
	// BackoffExponential doubles the delay after every failed attempt.
	BackoffExponential BackoffType = iota
	// BackoffJittered is exponential with a random spread of ±jitter around each delay.
	BackoffJittered
	// BackoffDecorrelated picks each delay at random between the initial delay
	// and three times the previous one.
	BackoffDecorrelated
)

func (b BackoffType) String() string {
	switch b {
	case BackoffExponential:
		return "exponential"
	case BackoffJittered:
		return "jittered"
	case BackoffDecorrelated:
		return "decorrelated"
	default:
		return "unknown"
	}
}

// Backoff computes the pause before a retry.
//
// retry is 0 for the first retry after the initial failure. Implementations
// are safe for concurrent use.
type Backoff interface {
	Delay(retry int) time.Duration
	Reset()
}

// NewBackoff returns the Backoff for kind. Unknown kinds fall back to
// exponential. A maxDelay below initial is raised to initial.
func NewBackoff(kind BackoffType, initial, maxDelay time.Duration, jitter float64) Backoff {
	if initial < 0 {
		initial = 0
	}
	maxDelay = max(maxDelay, initial)

	switch kind {
	case BackoffJittered:
		return &jittered{
			base:   exponential{initial: initial, max: maxDelay},
			jitter: clamp(jitter, 0, 1),
			rng:    newRand(),
		}
	case BackoffDecorrelated:
		return &decorrelated{initial: initial, max: maxDelay, prev: initial, rng: newRand()}
	default:
		return exponential{initial: initial, max: maxDelay}
	}
}

type exponential struct {
	initial, max time.Duration
}

func (e exponential) Delay(retry int) time.Duration {
	if retry < 0 {
		return 0
	}
	if retry > maxShift {
		return e.max
	}

	d := e.initial * time.Duration(int64(1)<<uint(retry))
	if d < 0 || d > e.max || (e.initial != 0 && d/e.initial != time.Duration(int64(1)<<uint(retry))) {
		return e.max
	}
	return d
}

func (exponential) Reset() {}

type jittered struct {
	base   exponential
	jitter float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jittered) Delay(retry int) time.Duration {
	d := j.base.Delay(retry)
	if d == 0 || j.jitter == 0 {
		return d
	}

	j.mu.Lock()
	spread := (j.rng.Float64()*2 - 1) * j.jitter
	j.mu.Unlock()

	return clamp(time.Duration(float64(d)*(1+spread)), 0, j.base.max)
}

func (j *jittered) Reset() {}

// decorrelated follows "Exponential Backoff And Jitter" (Brooker, 2015):
// sleep = min(max, random(initial, prev*3)).
type decorrelated struct {
	initial, max time.Duration

	mu   sync.Mutex
	prev time.Duration
	rng  *rand.Rand
}

func (d *decorrelated) Delay(retry int) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if retry <= 0 {
		d.prev = d.initial
		return d.initial
	}

	upper := min(d.prev*3, d.max)
	span := upper - d.initial
	if span <= 0 {
		d.prev = d.initial
		return d.initial
	}

	d.prev = d.initial + time.Duration(d.rng.Int63n(int64(span)))
	return d.prev
}

func (d *decorrelated) Reset() {
	d.mu.Lock()
	d.prev = d.initial
	d.mu.Unlock()
}

func newRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano())) // #nosec G404 -- jitter does not need crypto rand
}

func clamp[T int | int64 | float64 | time.Duration](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
