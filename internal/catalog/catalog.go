// SPDX-License-Identifier: MIT

// Package catalog holds the ordered feed of admitted video items.
package catalog

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/metrics"
)

// VideoItem is the immutable description of a feed entry, supplied by the
// ingestion collaborator. The manager never mutates it.
type VideoItem struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title,omitempty"`
}

// Blocklist is the moderation collaborator. It is consulted at admission
// time only; later blocklist changes do not retroactively remove items.
type Blocklist interface {
	IsBlocked(authorID string) bool
}

// List identifies which of the two ordered lists holds an item.
type List string

const (
	ListPrimary   List = "primary"
	ListDiscovery List = "discovery"
)

// ErrEmptyID is returned when an item without an identity is admitted.
var ErrEmptyID = errors.New("catalog: item has empty identity")

// Catalog keeps two append-only ordered lists, deduplicated by identity
// across both. The merged order (primary then discovery) is the canonical
// feed position every other component ranks against.
type Catalog struct {
	mu        sync.RWMutex
	primary   []VideoItem
	discovery []VideoItem
	byID      map[string]List
	priority  map[string]struct{}
	blocklist Blocklist
	logger    zerolog.Logger
}

// New creates an empty catalog. blocklist may be nil, in which case no
// author is ever vetoed.
func New(blocklist Blocklist) *Catalog {
	return &Catalog{
		byID:      make(map[string]List),
		priority:  make(map[string]struct{}),
		blocklist: blocklist,
		logger:    log.WithComponent("catalog"),
	}
}

// Admit appends the item to primary or discovery depending on the current
// priority-author set. It reports false for duplicates and vetoed authors,
// and errors only on the empty-identity contract violation.
func (c *Catalog) Admit(item VideoItem) (bool, error) {
	if item.ID == "" {
		return false, ErrEmptyID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[item.ID]; exists {
		metrics.RecordAdmission("duplicate")
		return false, nil
	}
	if c.blocklist != nil && c.blocklist.IsBlocked(item.AuthorID) {
		metrics.RecordAdmission("vetoed")
		c.logger.Debug().Str("item_id", item.ID).Str("author_id", item.AuthorID).
			Msg("admission vetoed by blocklist")
		return false, nil
	}

	list := ListDiscovery
	if _, ok := c.priority[item.AuthorID]; ok {
		list = ListPrimary
	}

	switch list {
	case ListPrimary:
		c.primary = append(c.primary, item)
	default:
		c.discovery = append(c.discovery, item)
	}
	c.byID[item.ID] = list

	metrics.RecordAdmission("admitted")
	c.publishSizes()
	return true, nil
}

// SetPriorityAuthors replaces the priority-author set. Already admitted
// items stay in their list; only future admissions are affected.
func (c *Catalog) SetPriorityAuthors(authors []string) {
	set := lo.SliceToMap(authors, func(a string) (string, struct{}) {
		return a, struct{}{}
	})

	c.mu.Lock()
	c.priority = set
	c.mu.Unlock()
}

// Remove deletes the item from whichever list holds it. It returns true
// when the item existed. Cascading state/pool cleanup is the caller's job.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(id, "explicit")
}

func (c *Catalog) removeLocked(id, reason string) bool {
	list, ok := c.byID[id]
	if !ok {
		return false
	}
	drop := func(items []VideoItem) []VideoItem {
		return lo.Reject(items, func(it VideoItem, _ int) bool { return it.ID == id })
	}
	if list == ListPrimary {
		c.primary = drop(c.primary)
	} else {
		c.discovery = drop(c.discovery)
	}
	delete(c.byID, id)

	metrics.RecordRemoval(reason)
	c.publishSizes()
	return true
}

// TrimTo removes every item beyond keep in merged order, tail first, and
// returns the removed identities. Used by the memory-pressure path.
func (c *Catalog) TrimTo(keep int) []string {
	if keep < 0 {
		keep = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	merged := c.mergedLocked()
	if len(merged) <= keep {
		return nil
	}

	removed := make([]string, 0, len(merged)-keep)
	for i := len(merged) - 1; i >= keep; i-- {
		id := merged[i].ID
		if c.removeLocked(id, "pressure") {
			removed = append(removed, id)
		}
	}
	return removed
}

// Merged returns a snapshot of the canonical feed order: primary then
// discovery.
func (c *Catalog) Merged() []VideoItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mergedLocked()
}

func (c *Catalog) mergedLocked() []VideoItem {
	out := make([]VideoItem, 0, len(c.primary)+len(c.discovery))
	out = append(out, c.primary...)
	out = append(out, c.discovery...)
	return out
}

// IndexOf returns the merged-order position of the item, or -1.
func (c *Catalog) IndexOf(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list, ok := c.byID[id]
	if !ok {
		return -1
	}
	if list == ListPrimary {
		for i, it := range c.primary {
			if it.ID == id {
				return i
			}
		}
		return -1
	}
	for i, it := range c.discovery {
		if it.ID == id {
			return len(c.primary) + i
		}
	}
	return -1
}

// At returns the item at the given merged-order index.
func (c *Catalog) At(index int) (VideoItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index < 0 {
		return VideoItem{}, false
	}
	if index < len(c.primary) {
		return c.primary[index], true
	}
	index -= len(c.primary)
	if index < len(c.discovery) {
		return c.discovery[index], true
	}
	return VideoItem{}, false
}

// Contains reports whether the identity is admitted.
func (c *Catalog) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[id]
	return ok
}

// Len returns the total number of admitted items.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.primary) + len(c.discovery)
}

func (c *Catalog) publishSizes() {
	metrics.SetCatalogSize(string(ListPrimary), len(c.primary))
	metrics.SetCatalogSize(string(ListDiscovery), len(c.discovery))
}
