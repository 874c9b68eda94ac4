// SPDX-License-Identifier: MIT

// Package state is the system-of-record for per-item playback lifecycle.
//
// Design intent:
//   - All transitions go through guarded Mark* methods; invalid transitions
//     are rejected, not applied.
//   - The explicit in-flight set, not the loading state, is the sole guard
//     against duplicate load attempts.
//   - Every applied transition is published on the bus.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vinescroll/playman/internal/bus"
	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/types"
)

const publishTimeout = 250 * time.Millisecond

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Record is the lifecycle state of one admitted item.
type Record struct {
	Item         catalog.VideoItem
	State        types.PlaybackState
	ErrorClass   types.ErrorClass
	ErrorMessage string
	RetryCount   int
	FallbackUsed bool
	UpdatedAt    time.Time
}

// Change is the bus payload published for every applied transition.
type Change struct {
	ItemID       string
	From         types.PlaybackState
	To           types.PlaybackState
	ErrorClass   types.ErrorClass
	ErrorMessage string
	RetryCount   int
	At           time.Time
}

// Store maps item identity to its Record plus the in-flight load set.
type Store struct {
	mu       sync.Mutex
	records  map[string]*Record
	inflight map[string]struct{}
	bus      bus.Bus
	clock    Clock
	logger   zerolog.Logger
}

// New creates an empty store publishing changes to b. A nil bus disables
// notifications; a nil clock uses the wall clock.
func New(b bus.Bus, clock Clock) *Store {
	if clock == nil {
		clock = RealClock{}
	}
	return &Store{
		records:  make(map[string]*Record),
		inflight: make(map[string]struct{}),
		bus:      b,
		clock:    clock,
		logger:   log.WithComponent("state"),
	}
}

// Init creates the not_loaded record for a freshly admitted item. The
// retry count starts at zero only here, never on later attempts.
func (s *Store) Init(item catalog.VideoItem) {
	s.mu.Lock()
	if _, exists := s.records[item.ID]; exists {
		s.mu.Unlock()
		return
	}
	s.records[item.ID] = &Record{
		Item:      item,
		State:     types.StateNotLoaded,
		UpdatedAt: s.clock.Now(),
	}
	s.mu.Unlock()

	s.emit(Change{ItemID: item.ID, To: types.StateNotLoaded, At: s.clock.Now()})
}

// Get returns a snapshot of the record.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// InFlight reports whether a load attempt is currently active for id.
func (s *Store) InFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[id]
	return ok
}

// BeginLoad transitions not_loaded/failed to loading and claims the
// in-flight slot. It returns false when the item is unknown, terminal,
// already ready, or already in flight.
func (s *Store) BeginLoad(id string) bool {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || !r.State.IsLoadable() {
		s.mu.Unlock()
		return false
	}
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		return false
	}
	from := r.State
	r.State = types.StateLoading
	r.UpdatedAt = s.clock.Now()
	s.inflight[id] = struct{}{}
	change := s.changeLocked(r, from)
	s.mu.Unlock()

	s.emit(change)
	return true
}

// MarkReady transitions loading to ready and releases the in-flight slot.
// The caller must have inserted the controller into the pool first so the
// ready state never precedes the pool entry.
func (s *Store) MarkReady(id string) bool {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || r.State != types.StateLoading {
		s.mu.Unlock()
		return false
	}
	from := r.State
	r.State = types.StateReady
	r.ErrorClass = ""
	r.ErrorMessage = ""
	r.UpdatedAt = s.clock.Now()
	delete(s.inflight, id)
	change := s.changeLocked(r, from)
	s.mu.Unlock()

	s.emit(change)
	return true
}

// MarkFailed transitions loading to failed, records the classified error,
// increments the retry count, and releases the in-flight slot. It returns
// the updated retry count.
func (s *Store) MarkFailed(id string, class types.ErrorClass, msg string) (int, bool) {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || r.State != types.StateLoading {
		s.mu.Unlock()
		return 0, false
	}
	from := r.State
	r.State = types.StateFailed
	r.ErrorClass = class
	r.ErrorMessage = msg
	r.RetryCount++
	r.UpdatedAt = s.clock.Now()
	delete(s.inflight, id)
	count := r.RetryCount
	change := s.changeLocked(r, from)
	s.mu.Unlock()

	s.emit(change)
	return count, true
}

// MarkPermanentlyFailed moves a loading or failed item to the terminal
// state. From loading the failure is recorded (retry count incremented,
// in-flight slot released) exactly as MarkFailed would.
func (s *Store) MarkPermanentlyFailed(id string, class types.ErrorClass, msg string) bool {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || (r.State != types.StateLoading && r.State != types.StateFailed) {
		s.mu.Unlock()
		return false
	}
	from := r.State
	if from == types.StateLoading {
		r.RetryCount++
		delete(s.inflight, id)
	}
	r.State = types.StatePermanentlyFailed
	r.ErrorClass = class
	r.ErrorMessage = msg
	r.UpdatedAt = s.clock.Now()
	change := s.changeLocked(r, from)
	s.mu.Unlock()

	s.emit(change)
	return true
}

// SetFallbackUsed flags the item as having consumed its one whole-file
// fallback attempt.
func (s *Store) SetFallbackUsed(id string) {
	s.mu.Lock()
	if r, ok := s.records[id]; ok {
		r.FallbackUsed = true
	}
	s.mu.Unlock()
}

// ResetNotLoaded returns a non-terminal item to not_loaded (eviction and
// stop paths). A loading item loses its in-flight slot, which invalidates
// the outcome of the attempt still running.
func (s *Store) ResetNotLoaded(id string) bool {
	s.mu.Lock()
	r, ok := s.records[id]
	if !ok || r.State.IsTerminal() || r.State == types.StateNotLoaded {
		s.mu.Unlock()
		return false
	}
	from := r.State
	r.State = types.StateNotLoaded
	r.ErrorClass = ""
	r.ErrorMessage = ""
	r.UpdatedAt = s.clock.Now()
	delete(s.inflight, id)
	change := s.changeLocked(r, from)
	s.mu.Unlock()

	s.emit(change)
	return true
}

// Remove deletes the record and any in-flight claim.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.records, id)
	delete(s.inflight, id)
	s.mu.Unlock()
}

// Len returns the number of tracked records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// IDsInState returns the identities currently in the given state.
func (s *Store) IDsInState(state types.PlaybackState) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, r := range s.records {
		if r.State == state {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) changeLocked(r *Record, from types.PlaybackState) Change {
	return Change{
		ItemID:       r.Item.ID,
		From:         from,
		To:           r.State,
		ErrorClass:   r.ErrorClass,
		ErrorMessage: r.ErrorMessage,
		RetryCount:   r.RetryCount,
		At:           r.UpdatedAt,
	}
}

func (s *Store) emit(change Change) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, bus.TopicPlaybackState, change); err != nil {
		s.logger.Warn().Err(err).Str("item_id", change.ItemID).Msg("state change notification dropped")
	}
}
