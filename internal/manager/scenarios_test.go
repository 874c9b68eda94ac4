// SPDX-License-Identifier: MIT

package manager

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinescroll/playman/internal/player"
	"github.com/vinescroll/playman/internal/transport"
	"github.com/vinescroll/playman/internal/types"
)

func countStates(m *Manager, ids []string) map[types.PlaybackState]int {
	out := make(map[types.PlaybackState]int)
	for _, id := range ids {
		if rec, ok := m.State(id); ok {
			out[rec.State]++
		}
	}
	return out
}

func TestPreloadWindowLoadsNearestFirst(t *testing.T) {
	cfg := testConfig()
	cfg.PreloadBehind = 0
	m, _ := newTestManager(t, cfg, newFakeTransport(t))
	ids := admitN(t, m, 20)

	require.NoError(t, m.PreloadAround(0, 5))

	for _, id := range ids[:6] {
		waitState(t, m, id, types.StateReady)
	}
	assert.Equal(t, 6, m.Stats().PoolSize)

	// Items beyond the window were never touched.
	rec, _ := m.State(ids[6])
	assert.Equal(t, types.StateNotLoaded, rec.State)
}

func TestPoolBoundHoldsUnderWidePreload(t *testing.T) {
	cfg := testConfig()
	cfg.PreloadBehind = 0
	m, _ := newTestManager(t, cfg, newFakeTransport(t))
	ids := admitN(t, m, 20)

	require.NoError(t, m.PreloadAround(0, 19))

	require.Eventually(t, func() bool {
		counts := countStates(m, ids)
		return counts[types.StateReady] == cfg.MaxControllers &&
			counts[types.StateLoading] == 0
	}, 2*time.Second, 5*time.Millisecond)

	counts := countStates(m, ids)
	assert.Equal(t, cfg.MaxControllers, m.Stats().PoolSize)
	assert.Equal(t, 20-cfg.MaxControllers, counts[types.StateNotLoaded])
}

func TestScrollEvictsOutsideBufferedWindow(t *testing.T) {
	cfg := testConfig()
	cfg.PreloadBehind = 0
	cfg.EvictionBuffer = 0
	m, _ := newTestManager(t, cfg, newFakeTransport(t))
	ids := admitN(t, m, 20)

	require.NoError(t, m.PreloadAround(0, 2))
	for _, id := range ids[:3] {
		waitState(t, m, id, types.StateReady)
	}

	require.NoError(t, m.PreloadAround(10, 2))
	for _, id := range ids[10:13] {
		waitState(t, m, id, types.StateReady)
	}

	assert.Equal(t, 3, m.Stats().PoolSize)
	for _, id := range ids[:3] {
		rec, _ := m.State(id)
		assert.Equal(t, types.StateNotLoaded, rec.State, "item %s should be evicted", id)
		assert.Nil(t, m.Controller(id))
	}
}

func TestRetryBudgetExhaustionBecomesPermanent(t *testing.T) {
	tr := newFakeTransport(t)
	netErr := transport.Classified(types.ErrClassNetwork, errors.New("conn reset"))
	tr.failRanged("v00", netErr, netErr, netErr, netErr, netErr, netErr)

	m, clk := newTestManager(t, testConfig(), tr)
	ids := admitN(t, m, 1)

	require.NoError(t, m.PreloadAround(0))

	for attempt := 1; attempt < 5; attempt++ {
		waitFailedCount(t, m, ids[0], attempt)
		clk.Advance(time.Minute)
	}

	rec := waitState(t, m, ids[0], types.StatePermanentlyFailed)
	assert.Equal(t, 5, rec.RetryCount)
	assert.Equal(t, types.ErrClassNetwork, rec.ErrorClass)
	assert.Equal(t, 5, tr.openCount(ids[0]))
	assert.Zero(t, clk.pending())

	// No further attempts, no matter how much time passes.
	clk.Advance(time.Hour)
	assert.Equal(t, 5, tr.openCount(ids[0]))
	assert.False(t, m.store.BeginLoad(ids[0]))
}

func TestRangeMisconfigurationFallsBackToPrefetch(t *testing.T) {
	tr := newFakeTransport(t)
	tr.failRanged("v00", &transport.RangeError{URL: "u", Reason: "origin ignored Range header"})

	m, clk := newTestManager(t, testConfig(), tr)
	ids := admitN(t, m, 1)

	require.NoError(t, m.PreloadAround(0))

	rec := waitState(t, m, ids[0], types.StateReady)
	assert.True(t, rec.FallbackUsed)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, 1, tr.openCount(ids[0]))
	assert.Equal(t, 1, tr.downloadCount(ids[0]))
	assert.Zero(t, clk.pending(), "fallback must run immediately, not on a timer")

	ctrl := m.Controller(ids[0])
	require.NotNil(t, ctrl)
	assert.Equal(t, player.SourceLocalFile, ctrl.Kind())
}

func TestFailedFallbackIsPermanent(t *testing.T) {
	tr := newFakeTransport(t)
	tr.failRanged("v00", &transport.RangeError{URL: "u", Reason: "mismatched Content-Range"})
	tr.failDownload("v00", &transport.StatusError{Code: 503, URL: "u"})

	m, clk := newTestManager(t, testConfig(), tr)
	ids := admitN(t, m, 1)

	require.NoError(t, m.PreloadAround(0))

	rec := waitState(t, m, ids[0], types.StatePermanentlyFailed)
	assert.Equal(t, 2, rec.RetryCount)
	assert.True(t, rec.FallbackUsed)
	assert.Equal(t, types.ErrClassServerError, rec.ErrorClass)
	assert.Equal(t, 1, tr.openCount(ids[0]))
	assert.Equal(t, 1, tr.downloadCount(ids[0]))
	assert.Zero(t, clk.pending())

	// Exactly two attempts total: ranged, then the one-shot fallback.
	clk.Advance(time.Hour)
	assert.Equal(t, 1, tr.openCount(ids[0]))
	assert.Equal(t, 1, tr.downloadCount(ids[0]))
}

func TestNonRetryableClassesFailImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorClass
	}{
		{"forbidden", &transport.StatusError{Code: 403, URL: "u"}, types.ErrClassForbidden},
		{"not found", &transport.StatusError{Code: 404, URL: "u"}, types.ErrClassNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newFakeTransport(t)
			tr.failRanged("v00", tt.err)

			m, clk := newTestManager(t, testConfig(), tr)
			ids := admitN(t, m, 1)

			require.NoError(t, m.PreloadAround(0))

			rec := waitState(t, m, ids[0], types.StatePermanentlyFailed)
			assert.Equal(t, 1, rec.RetryCount)
			assert.Equal(t, tt.want, rec.ErrorClass)
			assert.Equal(t, 1, tr.openCount(ids[0]))
			assert.Zero(t, clk.pending())
		})
	}
}

func TestMemoryPressureTrimsTailFirst(t *testing.T) {
	tr := newFakeTransport(t)
	m, _ := newTestManager(t, testConfig(), tr)
	ids := admitN(t, m, 100)

	// Viewport is deep in the feed, so some trimmed items hold controllers.
	require.NoError(t, m.PreloadAround(97))
	for _, id := range ids[95:] {
		waitState(t, m, id, types.StateReady)
	}

	removed := m.HandlePressure()

	assert.Len(t, removed, 30)
	assert.ElementsMatch(t, ids[70:], removed)
	assert.Equal(t, ids[99], removed[0], "trim removes from the tail first")
	assert.Equal(t, 70, m.Stats().CatalogSize)
	assert.Zero(t, m.Stats().PoolSize)

	for _, id := range removed {
		_, tracked := m.State(id)
		assert.False(t, tracked)
		assert.Equal(t, 1, tr.removedCount(id))
	}
	for _, id := range ids[:70] {
		_, tracked := m.State(id)
		assert.True(t, tracked)
	}

	// A second trim at the same size is a no-op.
	assert.Empty(t, m.HandlePressure())
}

func TestRetryTimerSkipsRemovedItem(t *testing.T) {
	tr := newFakeTransport(t)
	tr.failRanged("v00", transport.Classified(types.ErrClassTimeout, errors.New("deadline")))

	m, clk := newTestManager(t, testConfig(), tr)
	ids := admitN(t, m, 1)

	require.NoError(t, m.PreloadAround(0))
	waitFailedCount(t, m, ids[0], 1)

	require.True(t, m.Remove(ids[0]))
	clk.Advance(time.Minute)

	assert.Equal(t, 1, tr.openCount(ids[0]))
}
