// SPDX-License-Identifier: MIT

// Package manager orchestrates the playback lifecycle of a scrolling video
// feed: it owns the catalog, the per-item state store, the bounded
// controller pool, and the retry/fallback policy, and drives preloads
// around the viewport position.
package manager

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vinescroll/playman/internal/bus"
	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/config"
	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/player"
	"github.com/vinescroll/playman/internal/pool"
	"github.com/vinescroll/playman/internal/resilience"
	"github.com/vinescroll/playman/internal/state"
	"github.com/vinescroll/playman/internal/transport"
	"github.com/vinescroll/playman/internal/types"
)

// ErrShutdown is returned by mutating operations after Shutdown.
var ErrShutdown = errors.New("manager: shut down")

// prefetchCleaner is implemented by transports that materialize whole-file
// prefetches and can discard them when an item leaves the catalog.
type prefetchCleaner interface {
	RemovePrefetch(itemID string)
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	bus       bus.Bus
	clock     Clock
	blocklist catalog.Blocklist
}

// WithBus replaces the default in-memory notification bus.
func WithBus(b bus.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithClock replaces the wall clock. Intended for tests.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithBlocklist installs the moderation collaborator consulted at
// admission time.
func WithBlocklist(bl catalog.Blocklist) Option {
	return func(o *options) { o.blocklist = bl }
}

// Manager is the single entry point for feed playback. All methods are
// safe for concurrent use.
type Manager struct {
	cfg     config.Config
	catalog *catalog.Catalog
	store   *state.Store
	pool    *pool.Pool
	tr      transport.Transport
	policy  *resilience.Policy
	bus     bus.Bus
	clock   Clock
	logger  zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	timers  map[string]Timer
	current int
	closed  bool
}

// New creates a manager loading media through tr. The configuration must
// already be validated.
func New(cfg config.Config, tr transport.Transport, opts ...Option) *Manager {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.bus == nil {
		o.bus = bus.NewMemoryBus()
	}
	if o.clock == nil {
		o.clock = realClock{}
	}

	backoff := resilience.NewBackoff(cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.RetryJitterMax)
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:     cfg,
		catalog: catalog.New(o.blocklist),
		store:   state.New(o.bus, o.clock),
		pool:    pool.New(cfg.MaxControllers),
		tr:      tr,
		policy:  resilience.NewPolicy(cfg.MaxRetries, backoff),
		bus:     o.bus,
		clock:   o.clock,
		logger:  log.WithComponent("manager"),
		baseCtx: ctx,
		cancel:  cancel,
		timers:  make(map[string]Timer),
	}
}

// Admit adds the item to the catalog and initializes its lifecycle record.
// Duplicates and blocklisted authors are reported as not admitted without
// error.
func (m *Manager) Admit(item catalog.VideoItem) (bool, error) {
	if m.isClosed() {
		return false, ErrShutdown
	}
	admitted, err := m.catalog.Admit(item)
	if err != nil || !admitted {
		return false, err
	}
	m.store.Init(item)
	return true, nil
}

// SetPriorityAuthors replaces the priority-author set used to route future
// admissions into the primary list.
func (m *Manager) SetPriorityAuthors(authors []string) {
	if m.isClosed() {
		return
	}
	m.catalog.SetPriorityAuthors(authors)
}

// Remove deletes the item and cascades: its retry timer is cancelled, the
// in-flight attempt (if any) is invalidated, the controller is closed, and
// any prefetched local copy is discarded.
func (m *Manager) Remove(id string) bool {
	if m.isClosed() {
		return false
	}
	m.cancelTimer(id)
	removed := m.catalog.Remove(id)
	m.pool.Release(id)
	m.store.Remove(id)
	m.removePrefetch(id)
	return removed
}

// State returns a snapshot of the item's lifecycle record.
func (m *Manager) State(id string) (state.Record, bool) {
	return m.store.Get(id)
}

// Controller returns the live playback controller for id, or nil. Non-nil
// only while the item is ready.
func (m *Manager) Controller(id string) player.Controller {
	rec, ok := m.store.Get(id)
	if !ok || rec.State != types.StateReady {
		return nil
	}
	return m.pool.Get(id)
}

// Pause suspends playback for id, reporting whether a controller existed.
func (m *Manager) Pause(id string) bool {
	ctrl := m.pool.Get(id)
	if ctrl == nil {
		return false
	}
	ctrl.Pause()
	return true
}

// Resume continues playback for id, reporting whether a controller existed.
func (m *Manager) Resume(id string) bool {
	ctrl := m.pool.Get(id)
	if ctrl == nil {
		return false
	}
	ctrl.Resume()
	return true
}

// PauseAll suspends every live controller. Used during scroll flings, when
// nothing on screen should play.
func (m *Manager) PauseAll() {
	for _, id := range m.pool.IDs() {
		if ctrl := m.pool.Get(id); ctrl != nil {
			ctrl.Pause()
		}
	}
}

// StopAll cancels every pending retry, releases every controller, and
// returns all non-terminal items to not_loaded. In-flight attempts are
// invalidated; their late completions are discarded. Permanent failures
// survive, so a later reload does not retry dead items.
func (m *Manager) StopAll() {
	if m.isClosed() {
		return
	}
	m.cancelAllTimers()
	m.pool.ReleaseAll()
	for _, item := range m.catalog.Merged() {
		m.store.ResetNotLoaded(item.ID)
	}
	m.logger.Info().Msg("all playback stopped")
}

// HandlePressure trims the catalog, tail first, to the configured keep
// fraction of the maximum size and cascades removal for every trimmed
// item. It returns the removed identities.
func (m *Manager) HandlePressure() []string {
	if m.isClosed() {
		return nil
	}
	keep := int(math.Floor(float64(m.cfg.MaxCatalogSize) * m.cfg.PressureKeepFraction))
	removed := m.catalog.TrimTo(keep)
	for _, id := range removed {
		m.cancelTimer(id)
		m.pool.Release(id)
		m.store.Remove(id)
		m.removePrefetch(id)
	}
	if len(removed) > 0 {
		m.logger.Warn().Int("removed", len(removed)).Int("keep", keep).
			Msg("memory pressure trim")
	}
	return removed
}

// Events subscribes to playback state change notifications. The
// subscription ends when ctx is done or the subscriber is closed.
func (m *Manager) Events(ctx context.Context) (bus.Subscriber, error) {
	if m.isClosed() {
		return nil, ErrShutdown
	}
	return m.bus.Subscribe(ctx, bus.TopicPlaybackState)
}

// Stats is a point-in-time view of resource usage.
type Stats struct {
	CatalogSize int
	PoolSize    int
}

// Stats returns current catalog and pool sizes.
func (m *Manager) Stats() Stats {
	return Stats{CatalogSize: m.catalog.Len(), PoolSize: m.pool.Len()}
}

// Shutdown disposes the manager: pending retries are cancelled, in-flight
// attempts are aborted and awaited, and every controller is closed. All
// mutating operations fail with ErrShutdown afterwards. Idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	timers := m.timers
	m.timers = make(map[string]Timer)
	m.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	m.cancel()
	m.wg.Wait()
	m.pool.ReleaseAll()
	m.logger.Info().Msg("manager shut down")
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) cancelTimer(id string) {
	m.mu.Lock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	m.mu.Unlock()
}

func (m *Manager) cancelAllTimers() {
	m.mu.Lock()
	timers := m.timers
	m.timers = make(map[string]Timer)
	m.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}

func (m *Manager) removePrefetch(id string) {
	if pc, ok := m.tr.(prefetchCleaner); ok {
		pc.RemovePrefetch(id)
	}
}

// rank scores pool entries for positional eviction: distance from the
// current viewport position, with items no longer in the catalog ranked
// worst of all.
func (m *Manager) rank(current int) pool.RankFunc {
	return func(id string) int {
		idx := m.catalog.IndexOf(id)
		if idx < 0 {
			return math.MaxInt
		}
		d := idx - current
		if d < 0 {
			d = -d
		}
		return d
	}
}
