// SPDX-License-Identifier: MIT
package types

import (
	"encoding/json"
	"fmt"
)

// PlaybackState represents the lifecycle state of a feed item's playback resource.
type PlaybackState string

// Playback state constants define all possible states of an admitted item.
const (
	// StateNotLoaded indicates no playback resource exists for the item.
	StateNotLoaded PlaybackState = "not_loaded"

	// StateLoading indicates a load attempt is in flight.
	StateLoading PlaybackState = "loading"

	// StateReady indicates a live controller exists in the pool.
	StateReady PlaybackState = "ready"

	// StateFailed indicates the last load attempt failed but may be retried.
	StateFailed PlaybackState = "failed"

	// StatePermanentlyFailed indicates the item is abandoned and never retried.
	StatePermanentlyFailed PlaybackState = "permanently_failed"
)

// String implements fmt.Stringer.
func (s PlaybackState) String() string {
	return string(s)
}

// IsValid checks whether the playback state is valid.
func (s PlaybackState) IsValid() bool {
	switch s {
	case StateNotLoaded, StateLoading, StateReady, StateFailed, StatePermanentlyFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state admits no further transitions
// short of removal from the catalog.
func (s PlaybackState) IsTerminal() bool {
	return s == StatePermanentlyFailed
}

// IsLoadable reports whether a new load attempt may start from this state.
func (s PlaybackState) IsLoadable() bool {
	return s == StateNotLoaded || s == StateFailed
}

// MarshalJSON implements json.Marshaler.
func (s PlaybackState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PlaybackState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := PlaybackState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid playback state: %q", str)
	}

	*s = state
	return nil
}

// ParsePlaybackState parses a string into a PlaybackState.
func ParsePlaybackState(s string) (PlaybackState, error) {
	state := PlaybackState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid playback state: %q", s)
	}
	return state, nil
}

// AllPlaybackStates returns all defined playback states.
func AllPlaybackStates() []PlaybackState {
	return []PlaybackState{
		StateNotLoaded,
		StateLoading,
		StateReady,
		StateFailed,
		StatePermanentlyFailed,
	}
}
