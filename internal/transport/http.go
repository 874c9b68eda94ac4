// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/player"
)

const downloadChunkSize = 32 * 1024

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// PrefetchDir receives whole-file downloads. Defaults to a playman
	// subdirectory of the OS temp dir.
	PrefetchDir string
	// RequestTimeout bounds a single ranged-stream handshake. Defaults to 15s.
	RequestTimeout time.Duration
	// DownloadBytesPerSec throttles whole-file downloads. Zero disables
	// throttling.
	DownloadBytesPerSec int
}

// HTTP fetches media over plain HTTP(S).
type HTTP struct {
	client      *http.Client
	prefetchDir string
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

// NewHTTP creates the HTTP transport. The prefetch directory is created
// eagerly so download failures surface as transport errors, not fs errors.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	dir := cfg.PrefetchDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "playman-prefetch")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("transport: create prefetch dir: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.DownloadBytesPerSec > 0 {
		burst := cfg.DownloadBytesPerSec
		if burst < downloadChunkSize {
			burst = downloadChunkSize
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.DownloadBytesPerSec), burst)
	}

	return &HTTP{
		client:      &http.Client{Timeout: timeout},
		prefetchDir: dir,
		limiter:     limiter,
		logger:      log.WithComponent("transport"),
	}, nil
}

// OpenRangedStream issues a ranged GET and validates the origin actually
// honors ranges. A 200 reply to a range request, or a Content-Range that
// does not match the requested offset, is the misconfiguration signature.
func (t *HTTP) OpenRangedStream(ctx context.Context, item catalog.VideoItem) (player.Controller, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Range", "bytes=0-")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		cr := resp.Header.Get("Content-Range")
		if !strings.HasPrefix(cr, "bytes 0-") {
			_ = resp.Body.Close()
			return nil, &RangeError{URL: item.URL, Reason: fmt.Sprintf("mismatched Content-Range %q", cr)}
		}
		return player.NewStreamController(item.ID, resp.Body), nil
	case http.StatusOK:
		_ = resp.Body.Close()
		return nil, &RangeError{URL: item.URL, Reason: "origin ignored Range header"}
	case http.StatusRequestedRangeNotSatisfiable:
		_ = resp.Body.Close()
		return nil, &RangeError{URL: item.URL, Reason: "range not satisfiable at offset 0"}
	default:
		code := resp.StatusCode
		_ = resp.Body.Close()
		return nil, &StatusError{Code: code, URL: item.URL}
	}
}

// DownloadWholeFile fetches the entire resource into the prefetch dir and
// returns the local path. The file becomes visible atomically.
func (t *HTTP) DownloadWholeFile(ctx context.Context, item catalog.VideoItem) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return "", fmt.Errorf("transport: build request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, URL: item.URL}
	}

	dst := t.PrefetchPath(item.ID)
	pending, err := renameio.TempFile("", dst)
	if err != nil {
		return "", fmt.Errorf("transport: stage prefetch file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	n, err := t.copyThrottled(ctx, pending, resp.Body)
	if err != nil {
		return "", fmt.Errorf("transport: download %s: %w", item.ID, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("transport: finalize prefetch file: %w", err)
	}

	t.logger.Debug().
		Str("item_id", item.ID).
		Int64("bytes", n).
		Str("path", dst).
		Msg("whole-file prefetch complete")
	return dst, nil
}

// PrefetchPath returns the local path a whole-file download materializes at.
func (t *HTTP) PrefetchPath(itemID string) string {
	sum := sha256.Sum256([]byte(itemID))
	return filepath.Join(t.prefetchDir, hex.EncodeToString(sum[:8])+".media")
}

// RemovePrefetch deletes the prefetched copy for the item, if present.
func (t *HTTP) RemovePrefetch(itemID string) {
	if err := os.Remove(t.PrefetchPath(itemID)); err != nil && !os.IsNotExist(err) {
		t.logger.Warn().Err(err).Str("item_id", itemID).Msg("prefetch cleanup failed")
	}
}

func (t *HTTP) copyThrottled(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, downloadChunkSize)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if t.limiter != nil {
				if werr := t.limiter.WaitN(ctx, n); werr != nil {
					return total, werr
				}
			}
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

var _ Transport = (*HTTP)(nil)
