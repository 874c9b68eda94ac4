// SPDX-License-Identifier: MIT

package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vinescroll/playman/internal/types"
)

func testPolicy() *Policy {
	return NewPolicy(5, NewBackoff(time.Second, 30*time.Second, 0, WithRand(noJitter)))
}

func TestDecideRetryableClasses(t *testing.T) {
	p := testPolicy()

	for _, class := range []types.ErrorClass{
		types.ErrClassTimeout,
		types.ErrClassNetwork,
		types.ErrClassServerError,
		types.ErrClassFormatError,
		types.ErrClassMedia,
		types.ErrClassUnknown,
	} {
		d := p.Decide(class, 1, false)
		assert.Equal(t, VerdictRetry, d.Verdict, "class %s", class)
		assert.Equal(t, time.Second, d.After)
	}
}

func TestDecideExhaustedRetries(t *testing.T) {
	p := testPolicy()

	d := p.Decide(types.ErrClassNetwork, 4, false)
	assert.Equal(t, VerdictRetry, d.Verdict)

	// Fifth consecutive failure exhausts the budget: no sixth attempt.
	d = p.Decide(types.ErrClassNetwork, 5, false)
	assert.Equal(t, VerdictGiveUp, d.Verdict)
}

func TestDecideNonRetryable(t *testing.T) {
	p := testPolicy()

	for _, class := range []types.ErrorClass{types.ErrClassNotFound, types.ErrClassForbidden} {
		d := p.Decide(class, 1, false)
		assert.Equal(t, VerdictGiveUp, d.Verdict, "class %s", class)
	}
}

func TestDecideServerConfigFallbackOnce(t *testing.T) {
	p := testPolicy()

	d := p.Decide(types.ErrClassServerConfig, 1, false)
	assert.Equal(t, VerdictFallback, d.Verdict)

	d = p.Decide(types.ErrClassServerConfig, 2, true)
	assert.Equal(t, VerdictGiveUp, d.Verdict)
}

func TestDecideFailureAfterFallbackIsTerminal(t *testing.T) {
	p := testPolicy()

	// Even a normally retryable class gives up once the fallback was spent.
	d := p.Decide(types.ErrClassNetwork, 2, true)
	assert.Equal(t, VerdictGiveUp, d.Verdict)
}

func TestBackoffDelaysGrowAcrossAttempts(t *testing.T) {
	p := testPolicy()

	var prev time.Duration
	for k := 1; k < 5; k++ {
		d := p.Decide(types.ErrClassTimeout, k, false)
		assert.Equal(t, VerdictRetry, d.Verdict)
		assert.GreaterOrEqual(t, d.After, prev)
		prev = d.After
	}
}
