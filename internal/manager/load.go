// SPDX-License-Identifier: MIT

package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/metrics"
	"github.com/vinescroll/playman/internal/player"
	"github.com/vinescroll/playman/internal/resilience"
	"github.com/vinescroll/playman/internal/scheduler"
	"github.com/vinescroll/playman/internal/transport"
	"github.com/vinescroll/playman/internal/types"
)

// PreloadAround records the viewport position and schedules load attempts
// for not-yet-loaded items inside the keep-window, nearest first. Pool
// entries outside the buffered window are evicted before any attempt
// begins. An explicit ahead value overrides the configured preload-ahead
// span for this call. Scheduling is fire-and-forget; outcomes arrive as
// state changes on the bus.
func (m *Manager) PreloadAround(current int, ahead ...int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShutdown
	}
	m.current = current
	m.mu.Unlock()

	metrics.RecordPreloadRequest()

	size := m.catalog.Len()
	if size == 0 {
		return nil
	}

	aheadN := m.cfg.PreloadAhead
	if len(ahead) > 0 && ahead[0] >= 0 {
		aheadN = ahead[0]
	}

	keep := scheduler.Keep(current, m.cfg.PreloadBehind, aheadN, size)
	guard := keep.Expand(m.cfg.EvictionBuffer, size)

	evicted := m.pool.EvictOutside(func(id string) bool {
		idx := m.catalog.IndexOf(id)
		return idx >= 0 && guard.Contains(idx)
	})
	for _, id := range evicted {
		m.store.ResetNotLoaded(id)
	}

	scheduled := 0
	for _, idx := range scheduler.Order(current, keep, size) {
		item, ok := m.catalog.At(idx)
		if !ok {
			continue
		}
		rec, ok := m.store.Get(item.ID)
		if !ok || rec.State != types.StateNotLoaded || m.store.InFlight(item.ID) {
			continue
		}
		if m.startLoad(item, false) {
			scheduled++
		}
	}
	metrics.RecordPreloadScheduled(scheduled)
	return nil
}

// startLoad frees a pool slot, claims the in-flight lease, and runs the
// attempt asynchronously. Capacity is made before the attempt begins so
// the pool bound holds at every observable point.
func (m *Manager) startLoad(item catalog.VideoItem, fallback bool) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	current := m.current
	m.mu.Unlock()

	for _, id := range m.pool.EnsureCapacity(m.rank(current)) {
		m.store.ResetNotLoaded(id)
	}

	if !m.store.BeginLoad(item.ID) {
		return false
	}

	ctx := log.ContextWithItemID(m.baseCtx, item.ID)
	ctx = log.ContextWithAttemptID(ctx, uuid.NewString())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runAttempt(ctx, item, fallback)
	}()
	return true
}

func (m *Manager) runAttempt(ctx context.Context, item catalog.VideoItem, fallback bool) {
	var (
		ctrl player.Controller
		err  error
	)
	if fallback {
		var path string
		if path, err = m.tr.DownloadWholeFile(ctx, item); err == nil {
			ctrl, err = player.NewFileController(item.ID, path)
		}
	} else {
		ctrl, err = m.tr.OpenRangedStream(ctx, item)
	}

	if err != nil {
		metrics.RecordLoadAttempt("failure")
		if fallback {
			metrics.RecordFallbackAttempt("failure")
		}
		m.handleFailure(ctx, item, err, fallback)
		return
	}
	m.finishLoad(ctx, item, ctrl, fallback)
}

func (m *Manager) finishLoad(ctx context.Context, item catalog.VideoItem, ctrl player.Controller, fallback bool) {
	logger := log.WithComponentFromContext(ctx, "manager")

	// The lease is gone when the attempt was invalidated by eviction, stop,
	// or removal while the fetch ran. Discard the handle.
	if !m.store.InFlight(item.ID) {
		_ = ctrl.Close()
		return
	}

	m.mu.Lock()
	closed := m.closed
	current := m.current
	m.mu.Unlock()
	if closed {
		_ = ctrl.Close()
		return
	}

	// Insert before MarkReady so a ready state never precedes its pool entry.
	for _, id := range m.pool.Insert(item.ID, ctrl, m.rank(current)) {
		m.store.ResetNotLoaded(id)
	}
	if !m.store.MarkReady(item.ID) {
		m.pool.Release(item.ID)
		return
	}

	metrics.RecordLoadAttempt("success")
	if fallback {
		metrics.RecordFallbackAttempt("success")
	}
	logger.Debug().Str("kind", string(ctrl.Kind())).Msg("item ready")
}

// handleFailure classifies the error and applies the policy decision:
// backoff retry, one-shot whole-file fallback, or permanent failure.
func (m *Manager) handleFailure(ctx context.Context, item catalog.VideoItem, cause error, wasFallback bool) {
	logger := log.WithComponentFromContext(ctx, "manager")
	class := transport.Classify(cause)
	metrics.RecordLoadFailure(string(class))

	rec, ok := m.store.Get(item.ID)
	if !ok || !m.store.InFlight(item.ID) {
		// Invalidated while the attempt ran; nothing to record.
		return
	}

	fallbackUsed := rec.FallbackUsed || wasFallback
	decision := m.policy.Decide(class, rec.RetryCount+1, fallbackUsed)

	switch decision.Verdict {
	case resilience.VerdictRetry:
		count, ok := m.store.MarkFailed(item.ID, class, cause.Error())
		if !ok {
			return
		}
		metrics.RecordRetryScheduled(string(class))
		m.scheduleRetry(item, decision.After)
		logger.Warn().Err(cause).Str("class", string(class)).
			Int("retry_count", count).Dur("after", decision.After).
			Msg("load failed, retry scheduled")

	case resilience.VerdictFallback:
		if _, ok := m.store.MarkFailed(item.ID, class, cause.Error()); !ok {
			return
		}
		m.store.SetFallbackUsed(item.ID)
		logger.Warn().Err(cause).
			Msg("range misconfiguration, switching to whole-file prefetch")
		m.startLoad(item, true)

	default:
		if !m.store.MarkPermanentlyFailed(item.ID, class, cause.Error()) {
			return
		}
		metrics.RecordPermanentFailure(string(class))
		logger.Error().Err(cause).Str("class", string(class)).
			Msg("item permanently failed")
	}
}

func (m *Manager) scheduleRetry(item catalog.VideoItem, after time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if t, ok := m.timers[item.ID]; ok {
		t.Stop()
	}
	m.timers[item.ID] = m.clock.AfterFunc(after, func() { m.retryNow(item.ID) })
}

func (m *Manager) retryNow(id string) {
	m.mu.Lock()
	delete(m.timers, id)
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	// The item may have been removed, trimmed, or reset while the timer was
	// pending; retry only a still-admitted failed item.
	rec, ok := m.store.Get(id)
	if !ok || rec.State != types.StateFailed || !m.catalog.Contains(id) {
		return
	}
	m.startLoad(rec.Item, false)
}
