// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// origin is the synthetic media server the simulation loads from. Each
// route models one origin behavior the manager has to survive: correct
// ranged serving, a misconfigured origin that ignores Range headers,
// transient 503s, and hard 403/404 failures.
type origin struct {
	payload []byte

	mu    sync.Mutex
	flaky map[string]int
}

func newOrigin(payloadSize int, seed int64) *origin {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- deterministic test payload
	payload := make([]byte, payloadSize)
	rng.Read(payload)
	return &origin{payload: payload, flaky: make(map[string]int)}
}

// setFlaky makes the item answer 503 the given number of times before it
// starts serving normally.
func (o *origin) setFlaky(id string, failures int) {
	o.mu.Lock()
	o.flaky[id] = failures
	o.mu.Unlock()
}

func (o *origin) router(requestsPerMinute int) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))

	r.Get("/media/{id}", o.serveRanged)
	r.Get("/broken/{id}", o.serveIgnoringRange)
	r.Get("/flaky/{id}", o.serveFlaky)
	r.Get("/forbidden/{id}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (o *origin) serveRanged(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "id") + ".media"
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(o.payload))
}

// serveIgnoringRange always answers 200 with the full body, the classic
// misconfigured-origin signature that forces the whole-file fallback.
func (o *origin) serveIgnoringRange(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(o.payload)
}

func (o *origin) serveFlaky(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o.mu.Lock()
	n, ok := o.flaky[id]
	if !ok {
		n = 2
	}
	if n > 0 {
		o.flaky[id] = n - 1
	}
	o.mu.Unlock()

	if n > 0 {
		http.Error(w, "try later", http.StatusServiceUnavailable)
		return
	}
	o.serveRanged(w, r)
}
