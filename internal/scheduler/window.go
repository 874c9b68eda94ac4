// SPDX-License-Identifier: MIT

// Package scheduler computes keep-windows and preload priority orders over
// the merged feed position space.
package scheduler

// Window is an inclusive range of merged-order feed positions.
type Window struct {
	Lo int
	Hi int
}

// Contains reports whether index falls inside the window.
func (w Window) Contains(index int) bool {
	return index >= w.Lo && index <= w.Hi
}

// Keep computes the keep-window [current-behind, current+ahead] clamped to
// [0, size). An empty catalog yields an empty window with Hi < Lo.
func Keep(current, behind, ahead, size int) Window {
	if size <= 0 {
		return Window{Lo: 0, Hi: -1}
	}
	lo := current - behind
	if lo < 0 {
		lo = 0
	}
	hi := current + ahead
	if hi > size-1 {
		hi = size - 1
	}
	if lo > hi {
		// Current position is outside catalog bounds; clamp to nearest edge.
		if current < 0 {
			lo, hi = 0, 0
		} else {
			lo, hi = size-1, size-1
		}
	}
	return Window{Lo: lo, Hi: hi}
}

// Expand widens the window by buffer on both sides, clamped to [0, size).
// The expanded window protects entries that would otherwise be evicted and
// immediately re-requested on a small scroll reversal.
func (w Window) Expand(buffer, size int) Window {
	if size <= 0 || w.Hi < w.Lo {
		return w
	}
	lo := w.Lo - buffer
	if lo < 0 {
		lo = 0
	}
	hi := w.Hi + buffer
	if hi > size-1 {
		hi = size - 1
	}
	return Window{Lo: lo, Hi: hi}
}

// Order returns the priority order of indices to load inside the window
// around current: current first, then alternating next/previous at
// increasing offsets. Indices outside the window or catalog bounds are
// skipped.
func Order(current int, w Window, size int) []int {
	if size <= 0 || w.Hi < w.Lo {
		return nil
	}
	if current < 0 {
		current = 0
	}
	if current > size-1 {
		current = size - 1
	}

	out := make([]int, 0, w.Hi-w.Lo+1)
	if w.Contains(current) {
		out = append(out, current)
	}
	for offset := 1; ; offset++ {
		next := current + offset
		prev := current - offset
		if next > w.Hi && prev < w.Lo {
			break
		}
		if next <= w.Hi && next < size {
			out = append(out, next)
		}
		if prev >= w.Lo && prev >= 0 {
			out = append(out, prev)
		}
	}
	return out
}
