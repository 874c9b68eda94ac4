// SPDX-License-Identifier: MIT

// Package transport performs the actual media fetches: ranged streaming
// for normal playback and whole-file prefetch for the fallback strategy.
package transport

import (
	"context"
	"fmt"

	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/player"
)

// Transport is the collaborator the manager loads media through. Both
// operations may fail with errors covered by Classify.
type Transport interface {
	// OpenRangedStream opens a playback controller reading the locator via
	// ranged requests.
	OpenRangedStream(ctx context.Context, item catalog.VideoItem) (player.Controller, error)

	// DownloadWholeFile fetches the entire resource to local storage and
	// returns the local path. Used only by the fallback strategy.
	DownloadWholeFile(ctx context.Context, item catalog.VideoItem) (string, error)
}

// StatusError reports a non-success upstream HTTP status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transport: upstream status %d for %s", e.Code, e.URL)
}

// RangeError reports an origin that rejects ranged reads or answers with
// mismatched byte ranges. This is the server-misconfiguration signature
// that triggers the whole-file fallback.
type RangeError struct {
	URL    string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("transport: range misconfiguration for %s: %s", e.URL, e.Reason)
}
