// SPDX-License-Identifier: MIT

package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinescroll/playman/internal/bus"
	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/types"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func testStore() *Store {
	return New(nil, &fakeClock{now: time.Unix(1000, 0)})
}

func admit(t *testing.T, s *Store, id string) {
	t.Helper()
	s.Init(catalog.VideoItem{ID: id, URL: "https://cdn.example/" + id})
}

func TestInitCreatesNotLoaded(t *testing.T) {
	s := testStore()
	admit(t, s, "a")

	r, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, types.StateNotLoaded, r.State)
	assert.Zero(t, r.RetryCount)

	// Re-init of an existing identity is a no-op.
	s.Init(catalog.VideoItem{ID: "a", URL: "other"})
	r, _ = s.Get("a")
	assert.Equal(t, "https://cdn.example/a", r.Item.URL)
}

func TestBeginLoadGuards(t *testing.T) {
	s := testStore()
	admit(t, s, "a")

	require.True(t, s.BeginLoad("a"))
	assert.True(t, s.InFlight("a"))

	// Duplicate attempt rejected while in flight.
	assert.False(t, s.BeginLoad("a"))

	// Unknown identity rejected.
	assert.False(t, s.BeginLoad("ghost"))
}

func TestLoadingToReady(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	require.True(t, s.BeginLoad("a"))
	require.True(t, s.MarkReady("a"))

	r, _ := s.Get("a")
	assert.Equal(t, types.StateReady, r.State)
	assert.False(t, s.InFlight("a"))

	// ready is not loadable.
	assert.False(t, s.BeginLoad("a"))
	// MarkReady outside loading is rejected.
	assert.False(t, s.MarkReady("a"))
}

func TestFailureIncrementsRetryCount(t *testing.T) {
	s := testStore()
	admit(t, s, "a")

	for want := 1; want <= 3; want++ {
		require.True(t, s.BeginLoad("a"))
		count, ok := s.MarkFailed("a", types.ErrClassNetwork, "conn reset")
		require.True(t, ok)
		assert.Equal(t, want, count)
	}

	r, _ := s.Get("a")
	assert.Equal(t, types.StateFailed, r.State)
	assert.Equal(t, types.ErrClassNetwork, r.ErrorClass)
	assert.Equal(t, "conn reset", r.ErrorMessage)
}

func TestPermanentFailureFromLoadingRecordsAttempt(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	require.True(t, s.BeginLoad("a"))

	require.True(t, s.MarkPermanentlyFailed("a", types.ErrClassForbidden, "403"))

	r, _ := s.Get("a")
	assert.Equal(t, types.StatePermanentlyFailed, r.State)
	assert.Equal(t, 1, r.RetryCount)
	assert.False(t, s.InFlight("a"))
}

func TestPermanentFailureIsTerminal(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	require.True(t, s.BeginLoad("a"))
	require.True(t, s.MarkPermanentlyFailed("a", types.ErrClassNotFound, "404"))

	assert.False(t, s.BeginLoad("a"))
	assert.False(t, s.ResetNotLoaded("a"))
	assert.False(t, s.MarkPermanentlyFailed("a", types.ErrClassNotFound, "404"))

	r, _ := s.Get("a")
	assert.Equal(t, types.StatePermanentlyFailed, r.State)
}

func TestResetNotLoadedFromReady(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	require.True(t, s.BeginLoad("a"))
	require.True(t, s.MarkReady("a"))

	require.True(t, s.ResetNotLoaded("a"))
	r, _ := s.Get("a")
	assert.Equal(t, types.StateNotLoaded, r.State)

	// Reloadable again after eviction.
	assert.True(t, s.BeginLoad("a"))
}

func TestResetNotLoadedInvalidatesInFlightAttempt(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	require.True(t, s.BeginLoad("a"))

	require.True(t, s.ResetNotLoaded("a"))
	assert.False(t, s.InFlight("a"))

	// The stale attempt's completion is now rejected.
	assert.False(t, s.MarkReady("a"))
	_, ok := s.MarkFailed("a", types.ErrClassNetwork, "late")
	assert.False(t, ok)
}

func TestFallbackFlag(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	s.SetFallbackUsed("a")

	r, _ := s.Get("a")
	assert.True(t, r.FallbackUsed)
}

func TestRemove(t *testing.T) {
	s := testStore()
	admit(t, s, "a")
	require.True(t, s.BeginLoad("a"))

	s.Remove("a")
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.False(t, s.InFlight("a"))
	assert.Zero(t, s.Len())
}

func TestTransitionsArePublished(t *testing.T) {
	b := bus.NewMemoryBus()
	sub, err := b.Subscribe(context.Background(), bus.TopicPlaybackState)
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	s := New(b, &fakeClock{now: time.Unix(1000, 0)})
	s.Init(catalog.VideoItem{ID: "a"})
	require.True(t, s.BeginLoad("a"))
	_, ok := s.MarkFailed("a", types.ErrClassTimeout, "deadline")
	require.True(t, ok)

	var changes []Change
	timeout := time.After(time.Second)
	for len(changes) < 3 {
		select {
		case msg := <-sub.C():
			changes = append(changes, msg.(Change))
		case <-timeout:
			t.Fatalf("expected 3 changes, got %d", len(changes))
		}
	}

	assert.Equal(t, types.StateNotLoaded, changes[0].To)
	assert.Equal(t, types.StateLoading, changes[1].To)
	assert.Equal(t, types.StateFailed, changes[2].To)
	assert.Equal(t, types.ErrClassTimeout, changes[2].ErrorClass)
	assert.Equal(t, 1, changes[2].RetryCount)
}
