// SPDX-License-Identifier: MIT

// Package pool owns the bounded set of live playback controllers.
//
// The pool exclusively owns every handle it holds: eviction and release
// close the controller, and no other component may retain one across
// either. Victim selection is positional, not temporal: the caller ranks
// entries by distance from the current viewport position so scroll
// reversals do not thrash nearby items.
package pool

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/metrics"
	"github.com/vinescroll/playman/internal/player"
)

// DefaultMaxControllers is the hard cap on concurrently open controllers.
const DefaultMaxControllers = 15

// RankFunc scores an entry for eviction: higher means farther from the
// viewport and a better victim. Entries no longer in the catalog should
// rank highest of all.
type RankFunc func(itemID string) int

// Pool is the bounded controller set keyed by item identity.
type Pool struct {
	mu      sync.Mutex
	max     int
	entries map[string]player.Controller
	logger  zerolog.Logger
}

// New creates a pool with the given capacity. Non-positive capacities use
// DefaultMaxControllers.
func New(max int) *Pool {
	if max <= 0 {
		max = DefaultMaxControllers
	}
	return &Pool{
		max:     max,
		entries: make(map[string]player.Controller),
		logger:  log.WithComponent("pool"),
	}
}

// Max returns the configured capacity.
func (p *Pool) Max() int { return p.max }

// Len returns the current number of live controllers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Get returns the controller for id, or nil.
func (p *Pool) Get(id string) player.Controller {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[id]
}

// IDs returns the identities of all live controllers.
func (p *Pool) IDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.entries))
	for id := range p.entries {
		out = append(out, id)
	}
	return out
}

// EnsureCapacity evicts worst-ranked entries until one slot is free, and
// returns the evicted identities. Called before a load attempt begins so
// the capacity bound holds at every observable point, never transiently.
func (p *Pool) EnsureCapacity(rank RankFunc) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ensureCapacityLocked(rank)
}

// Insert adds the controller, evicting as needed to stay under capacity.
// An existing entry for the same identity is closed and replaced. Returns
// the identities evicted to make room.
func (p *Pool) Insert(id string, ctrl player.Controller, rank RankFunc) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.entries[id]; ok {
		p.closeLocked(id, old, "replace")
	}
	evicted := p.ensureCapacityLocked(rank)
	p.entries[id] = ctrl
	metrics.SetPoolSize(len(p.entries))
	return evicted
}

// Release closes and removes the entry for id, reporting whether it existed.
// State cleanup is left to the caller.
func (p *Pool) Release(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctrl, ok := p.entries[id]
	if !ok {
		return false
	}
	p.closeLocked(id, ctrl, "release")
	metrics.SetPoolSize(len(p.entries))
	return true
}

// EvictOutside closes every entry for which keep reports false and returns
// the evicted identities. Used by the scheduler with the buffered
// keep-window.
func (p *Pool) EvictOutside(keep func(itemID string) bool) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var evicted []string
	for id, ctrl := range p.entries {
		if keep(id) {
			continue
		}
		p.closeLocked(id, ctrl, "window")
		metrics.RecordEviction("window")
		evicted = append(evicted, id)
	}
	metrics.SetPoolSize(len(p.entries))
	return evicted
}

// ReleaseAll closes every entry and returns the released identities.
func (p *Pool) ReleaseAll() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, 0, len(p.entries))
	for id, ctrl := range p.entries {
		p.closeLocked(id, ctrl, "stop")
		out = append(out, id)
	}
	metrics.SetPoolSize(0)
	return out
}

func (p *Pool) ensureCapacityLocked(rank RankFunc) []string {
	var evicted []string
	for len(p.entries) >= p.max {
		victim, ok := p.victimLocked(rank)
		if !ok {
			break
		}
		p.closeLocked(victim, p.entries[victim], "capacity")
		metrics.RecordEviction("capacity")
		evicted = append(evicted, victim)
	}
	metrics.SetPoolSize(len(p.entries))
	return evicted
}

// victimLocked picks the highest-ranked entry. Equal ranks break toward
// the lexicographically larger identity so selection is deterministic.
func (p *Pool) victimLocked(rank RankFunc) (string, bool) {
	if rank == nil {
		rank = func(string) int { return 0 }
	}
	var (
		victim string
		best   int
		found  bool
	)
	for id := range p.entries {
		r := rank(id)
		if !found || r > best || (r == best && id > victim) {
			victim, best, found = id, r, true
		}
	}
	return victim, found
}

func (p *Pool) closeLocked(id string, ctrl player.Controller, reason string) {
	delete(p.entries, id)
	if err := ctrl.Close(); err != nil {
		p.logger.Warn().Err(err).Str("item_id", id).Str("reason", reason).
			Msg("controller close failed")
	}
}
