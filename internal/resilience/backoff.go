// SPDX-License-Identifier: MIT

// Package resilience provides the standalone backoff and retry/fallback
// policy composed into the manager by delegation.
package resilience

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with bounded jitter. Jitter
// spreads simultaneous failures (e.g. a network drop failing a whole
// window of items at once) so their retries do not land in lockstep.
type Backoff struct {
	base   time.Duration
	max    time.Duration
	jitter time.Duration
	randFn func(n int64) int64
}

// BackoffOption configures a Backoff.
type BackoffOption func(*Backoff)

// WithRand overrides the jitter source. Intended for tests.
func WithRand(fn func(n int64) int64) BackoffOption {
	return func(b *Backoff) { b.randFn = fn }
}

// NewBackoff creates a backoff with the given base delay, delay cap, and
// maximum jitter addend. Non-positive arguments fall back to defaults
// (1s base, 30s cap, 500ms jitter).
func NewBackoff(base, max, jitter time.Duration, opts ...BackoffOption) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	if jitter < 0 {
		jitter = 500 * time.Millisecond
	}

	b := &Backoff{base: base, max: max, jitter: jitter, randFn: rand.Int63n}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Delay returns the wait before the attempt following the retryCount-th
// failure: min(max, base*2^(retryCount-1)) plus a uniform jitter addend.
// retryCount values below 1 are treated as 1.
func (b *Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}

	d := b.base
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= b.max {
			d = b.max
			break
		}
	}
	if d > b.max {
		d = b.max
	}

	if b.jitter > 0 {
		d += time.Duration(b.randFn(int64(b.jitter)))
	}
	if d > b.max {
		d = b.max
	}
	return d
}
