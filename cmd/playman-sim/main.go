// SPDX-License-Identifier: MIT

// Package main implements the playman-sim harness. It runs a synthetic
// media origin with a mix of healthy and misbehaving items, drives a
// scripted scroll session against the playback manager, and prints a JSON
// report of where every item ended up.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vinescroll/playman/internal/catalog"
	"github.com/vinescroll/playman/internal/config"
	"github.com/vinescroll/playman/internal/log"
	"github.com/vinescroll/playman/internal/manager"
	"github.com/vinescroll/playman/internal/state"
	"github.com/vinescroll/playman/internal/transport"
)

var version = "v0.1.0"

// Report is the JSON output schema for a simulation run.
type Report struct {
	Seed            int64          `json:"seed"`
	Items           int            `json:"items"`
	DurationSeconds float64        `json:"duration_s"`
	Transitions     int64          `json:"transitions"`
	FinalStates     map[string]int `json:"final_states"`
	CatalogSize     int            `json:"catalog_size"`
	PoolSize        int            `json:"pool_size"`
}

type simConfig struct {
	Listen         string
	ConfigPath     string
	Items          int
	Duration       time.Duration
	ScrollInterval time.Duration
	PayloadBytes   int
	Seed           int64
	Pressure       bool
}

func parseFlags() simConfig {
	var sc simConfig
	flag.StringVar(&sc.Listen, "listen", "127.0.0.1:0", "origin listen address")
	flag.StringVar(&sc.ConfigPath, "config", "", "path to config file (YAML)")
	flag.IntVar(&sc.Items, "items", 60, "feed items to admit")
	flag.DurationVar(&sc.Duration, "duration", 30*time.Second, "simulation duration")
	flag.DurationVar(&sc.ScrollInterval, "scroll-interval", 500*time.Millisecond, "time between scroll steps")
	flag.IntVar(&sc.PayloadBytes, "payload-bytes", 256<<10, "media payload size")
	flag.Int64Var(&sc.Seed, "seed", 0, "random seed (0=random)")
	flag.BoolVar(&sc.Pressure, "pressure", true, "trigger a memory-pressure trim mid-run")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("playman-sim %s\n", version)
		os.Exit(0)
	}
	if sc.Seed == 0 {
		sc.Seed = time.Now().UnixNano()
	}
	return sc
}

func main() {
	sc := parseFlags()

	cfg, err := config.Load(sc.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "playman-sim",
		Version: version,
	})
	logger := log.WithComponent("sim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := run(ctx, sc, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("simulation failed")
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("marshal report")
	}
	fmt.Println(string(out))
}

func run(ctx context.Context, sc simConfig, cfg config.Config) (Report, error) {
	logger := log.WithComponent("sim")

	org := newOrigin(sc.PayloadBytes, sc.Seed)
	ln, err := net.Listen("tcp", sc.Listen)
	if err != nil {
		return Report{}, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           org.router(100_000),
		ReadHeaderTimeout: 5 * time.Second,
	}
	base := "http://" + ln.Addr().String()
	logger.Info().Str("addr", base).Msg("origin listening")

	if cfg.PrefetchDir == "" {
		cfg.PrefetchDir = filepath.Join(os.TempDir(), fmt.Sprintf("playman-sim-%d", sc.Seed))
	}
	tr, err := transport.NewHTTP(transport.HTTPConfig{
		PrefetchDir:         cfg.PrefetchDir,
		RequestTimeout:      cfg.RequestTimeout,
		DownloadBytesPerSec: cfg.DownloadBytesPerSec,
	})
	if err != nil {
		return Report{}, err
	}

	mgr := manager.New(cfg, tr)
	defer mgr.Shutdown()

	mgr.SetPriorityAuthors([]string{"author-0"})
	items := buildFeed(org, base, sc.Items, sc.Seed)
	for _, item := range items {
		if _, err := mgr.Admit(item); err != nil {
			return Report{}, fmt.Errorf("admit %s: %w", item.ID, err)
		}
	}

	runCtx, cancelRun := context.WithTimeout(ctx, sc.Duration)
	defer cancelRun()
	started := time.Now()

	var transitions int64
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Event consumer: every state change the manager publishes.
	g.Go(func() error {
		sub, err := mgr.Events(gctx)
		if err != nil {
			return err
		}
		defer func() { _ = sub.Close() }()
		for {
			select {
			case msg := <-sub.C():
				change, ok := msg.(state.Change)
				if !ok {
					continue
				}
				transitions++
				logger.Debug().
					Str("item_id", change.ItemID).
					Str("from", string(change.From)).
					Str("to", string(change.To)).
					Int("retry_count", change.RetryCount).
					Msg("state change")
			case <-gctx.Done():
				return nil
			}
		}
	})

	// Scroll driver: walk the feed forward with occasional jumps back, the
	// way a viewer flicks through and revisits.
	g.Go(func() error {
		rng := rand.New(rand.NewSource(sc.Seed + 1)) // #nosec G404 -- scripted session
		ticker := time.NewTicker(sc.ScrollInterval)
		defer ticker.Stop()

		pos := 0
		for {
			select {
			case <-ticker.C:
				size := mgr.Stats().CatalogSize
				if size == 0 {
					continue
				}
				switch {
				case rng.Float64() < 0.15 && pos > 3:
					pos -= rng.Intn(3) + 1
				default:
					pos++
				}
				if pos >= size {
					pos = 0
				}
				if err := mgr.PreloadAround(pos); err != nil {
					return err
				}
				if item, ok := itemAt(items, pos); ok {
					mgr.Resume(item.ID)
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	if sc.Pressure {
		g.Go(func() error {
			select {
			case <-time.After(sc.Duration / 2):
				removed := mgr.HandlePressure()
				logger.Info().Int("removed", len(removed)).Msg("pressure trim")
			case <-gctx.Done():
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{
		Seed:            sc.Seed,
		Items:           sc.Items,
		DurationSeconds: time.Since(started).Seconds(),
		Transitions:     transitions,
		FinalStates:     make(map[string]int),
		CatalogSize:     mgr.Stats().CatalogSize,
		PoolSize:        mgr.Stats().PoolSize,
	}
	for _, item := range items {
		if rec, ok := mgr.State(item.ID); ok {
			report.FinalStates[string(rec.State)]++
		}
	}
	return report, nil
}

// buildFeed generates the item mix: mostly healthy ranged items, plus a
// slice of misconfigured, transiently failing, and dead ones.
func buildFeed(org *origin, base string, n int, seed int64) []catalog.VideoItem {
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- deterministic feed
	items := make([]catalog.VideoItem, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("item-%03d", i)
		var route string
		switch roll := rng.Float64(); {
		case roll < 0.70:
			route = "media"
		case roll < 0.80:
			route = "broken"
		case roll < 0.90:
			route = "flaky"
			org.setFlaky(id, rng.Intn(3)+1)
		case roll < 0.95:
			route = "forbidden"
		default:
			route = "missing"
		}
		items = append(items, catalog.VideoItem{
			ID:       id,
			URL:      fmt.Sprintf("%s/%s/%s", base, route, id),
			AuthorID: fmt.Sprintf("author-%d", i%7),
			Title:    fmt.Sprintf("clip %d via %s", i, route),
		})
	}
	return items
}

func itemAt(items []catalog.VideoItem, pos int) (catalog.VideoItem, bool) {
	if pos < 0 || pos >= len(items) {
		return catalog.VideoItem{}, false
	}
	return items[pos], true
}
