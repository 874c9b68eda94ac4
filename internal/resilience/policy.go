// SPDX-License-Identifier: MIT

package resilience

import (
	"time"

	"github.com/vinescroll/playman/internal/types"
)

// Verdict enumerates what happens after a classified load failure.
type Verdict string

const (
	// VerdictRetry schedules another ranged-stream attempt after a delay.
	VerdictRetry Verdict = "retry"

	// VerdictFallback switches the next attempt to whole-file prefetch,
	// immediately and without backoff.
	VerdictFallback Verdict = "fallback"

	// VerdictGiveUp marks the item permanently failed.
	VerdictGiveUp Verdict = "give_up"
)

// Decision is the policy outcome for a single failure.
type Decision struct {
	Verdict Verdict
	// After is the backoff delay; only meaningful for VerdictRetry.
	After time.Duration
}

// Policy turns a classified failure into a retry, fallback, or give-up
// decision. It is stateless across items; callers supply the per-item
// retry count and whether the fallback strategy was already consumed.
type Policy struct {
	maxRetries int
	backoff    *Backoff
}

// NewPolicy creates a policy with the given retry budget and backoff.
// maxRetries below 1 falls back to 5.
func NewPolicy(maxRetries int, backoff *Backoff) *Policy {
	if maxRetries < 1 {
		maxRetries = 5
	}
	if backoff == nil {
		backoff = NewBackoff(0, 0, -1)
	}
	return &Policy{maxRetries: maxRetries, backoff: backoff}
}

// MaxRetries returns the configured retry budget.
func (p *Policy) MaxRetries() int { return p.maxRetries }

// Decide returns the action for a failure of the given class, where
// retryCount counts this failure inclusive and fallbackUsed reports
// whether a whole-file prefetch was already attempted for the item.
//
// Range misconfiguration gets exactly one fallback attempt: the origin is
// assumed defective in a way backoff cannot fix. A failed fallback, or any
// structurally-unavailable class, is terminal.
func (p *Policy) Decide(class types.ErrorClass, retryCount int, fallbackUsed bool) Decision {
	if class.Fallback() {
		if fallbackUsed {
			return Decision{Verdict: VerdictGiveUp}
		}
		return Decision{Verdict: VerdictFallback}
	}
	if !class.Retryable() {
		return Decision{Verdict: VerdictGiveUp}
	}
	if fallbackUsed {
		// The fallback is a one-shot circuit: once taken, its failure is
		// final regardless of the error class it failed with.
		return Decision{Verdict: VerdictGiveUp}
	}
	if retryCount >= p.maxRetries {
		return Decision{Verdict: VerdictGiveUp}
	}
	return Decision{Verdict: VerdictRetry, After: p.backoff.Delay(retryCount)}
}
