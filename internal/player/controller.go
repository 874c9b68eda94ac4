// SPDX-License-Identifier: MIT

// Package player defines the playback controller handle owned by the pool.
package player

import (
	"errors"
	"io"
	"os"
	"sync"
)

// SourceKind describes how a controller reads its media bytes.
type SourceKind string

const (
	// SourceRangedStream reads directly from the origin via ranged requests.
	SourceRangedStream SourceKind = "ranged_stream"

	// SourceLocalFile reads a fully prefetched local copy.
	SourceLocalFile SourceKind = "local_file"
)

// ErrClosed is returned by operations on a disposed controller.
var ErrClosed = errors.New("player: controller closed")

// Controller is the opaque, resource-backed playback handle. The pool
// exclusively owns it; no other component may retain one across eviction.
type Controller interface {
	// ItemID returns the identity of the item this controller plays.
	ItemID() string
	// Kind reports the transport strategy backing this controller.
	Kind() SourceKind
	// Pause suspends playback. Idempotent.
	Pause()
	// Resume continues playback. Idempotent.
	Resume()
	// Paused reports whether playback is suspended.
	Paused() bool
	// Close releases the underlying resource. Safe to call twice.
	Close() error
}

type base struct {
	itemID string
	kind   SourceKind

	mu     sync.Mutex
	paused bool
	closed bool
}

func (b *base) ItemID() string   { return b.itemID }
func (b *base) Kind() SourceKind { return b.kind }

func (b *base) Pause() {
	b.mu.Lock()
	b.paused = true
	b.mu.Unlock()
}

func (b *base) Resume() {
	b.mu.Lock()
	b.paused = false
	b.mu.Unlock()
}

func (b *base) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

// markClosed flips the closed flag, reporting whether this call won.
func (b *base) markClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	return true
}

// streamController plays from a live ranged stream.
type streamController struct {
	base
	rc io.ReadCloser
}

// NewStreamController wraps an open ranged stream as a playback controller.
func NewStreamController(itemID string, rc io.ReadCloser) Controller {
	return &streamController{
		base: base{itemID: itemID, kind: SourceRangedStream},
		rc:   rc,
	}
}

func (c *streamController) Close() error {
	if !c.markClosed() {
		return nil
	}
	return c.rc.Close()
}

// fileController plays from a fully prefetched local copy.
type fileController struct {
	base
	f *os.File
}

// NewFileController opens the local copy at path as a playback controller.
func NewFileController(itemID, path string) (Controller, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileController{
		base: base{itemID: itemID, kind: SourceLocalFile},
		f:    f,
	}, nil
}

func (c *fileController) Close() error {
	if !c.markClosed() {
		return nil
	}
	return c.f.Close()
}
