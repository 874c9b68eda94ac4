// SPDX-License-Identifier: MIT

// Package config holds the playback manager configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. Build one with Default()
// and optionally merge a YAML file and PLAYMAN_* environment overrides.
type Config struct {
	// MaxControllers caps concurrently open playback controllers.
	MaxControllers int
	// PreloadAhead / PreloadBehind span the keep-window around the
	// current viewport position.
	PreloadAhead  int
	PreloadBehind int
	// EvictionBuffer widens the keep-window for eviction only, so small
	// scroll reversals do not thrash the pool.
	EvictionBuffer int
	// MaxRetries bounds backoff retries per failure chain.
	MaxRetries int
	// Retry delays: base doubles per attempt up to max, plus jitter.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryJitterMax time.Duration
	// MaxCatalogSize and PressureKeepFraction drive memory-pressure trims.
	MaxCatalogSize       int
	PressureKeepFraction float64
	// Transport settings.
	PrefetchDir         string
	RequestTimeout      time.Duration
	DownloadBytesPerSec int
	// LogLevel is passed to the logger bootstrap.
	LogLevel string
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		MaxControllers:       15,
		PreloadAhead:         3,
		PreloadBehind:        2,
		EvictionBuffer:       2,
		MaxRetries:           5,
		RetryBaseDelay:       time.Second,
		RetryMaxDelay:        30 * time.Second,
		RetryJitterMax:       500 * time.Millisecond,
		MaxCatalogSize:       100,
		PressureKeepFraction: 0.7,
		RequestTimeout:       15 * time.Second,
		LogLevel:             "info",
	}
}

// fileConfig is the YAML shape. Durations are strings ("1s", "500ms").
type fileConfig struct {
	MaxControllers       *int     `yaml:"maxControllers,omitempty"`
	PreloadAhead         *int     `yaml:"preloadAhead,omitempty"`
	PreloadBehind        *int     `yaml:"preloadBehind,omitempty"`
	EvictionBuffer       *int     `yaml:"evictionBuffer,omitempty"`
	MaxRetries           *int     `yaml:"maxRetries,omitempty"`
	RetryBaseDelay       string   `yaml:"retryBaseDelay,omitempty"`
	RetryMaxDelay        string   `yaml:"retryMaxDelay,omitempty"`
	RetryJitterMax       string   `yaml:"retryJitterMax,omitempty"`
	MaxCatalogSize       *int     `yaml:"maxCatalogSize,omitempty"`
	PressureKeepFraction *float64 `yaml:"pressureKeepFraction,omitempty"`
	PrefetchDir          string   `yaml:"prefetchDir,omitempty"`
	RequestTimeout       string   `yaml:"requestTimeout,omitempty"`
	DownloadBytesPerSec  *int     `yaml:"downloadBytesPerSec,omitempty"`
	LogLevel             string   `yaml:"logLevel,omitempty"`
}

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides, then
// validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if err := fc.apply(&cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&cfg.MaxControllers, fc.MaxControllers)
	setInt(&cfg.PreloadAhead, fc.PreloadAhead)
	setInt(&cfg.PreloadBehind, fc.PreloadBehind)
	setInt(&cfg.EvictionBuffer, fc.EvictionBuffer)
	setInt(&cfg.MaxRetries, fc.MaxRetries)
	setInt(&cfg.MaxCatalogSize, fc.MaxCatalogSize)
	setInt(&cfg.DownloadBytesPerSec, fc.DownloadBytesPerSec)
	if fc.PressureKeepFraction != nil {
		cfg.PressureKeepFraction = *fc.PressureKeepFraction
	}
	if fc.PrefetchDir != "" {
		cfg.PrefetchDir = fc.PrefetchDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.RetryBaseDelay, &cfg.RetryBaseDelay, "retryBaseDelay"},
		{fc.RetryMaxDelay, &cfg.RetryMaxDelay, "retryMaxDelay"},
		{fc.RetryJitterMax, &cfg.RetryJitterMax, "retryJitterMax"},
		{fc.RequestTimeout, &cfg.RequestTimeout, "requestTimeout"},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.key, d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config) error {
	for _, e := range []struct {
		key string
		dst *int
	}{
		{"PLAYMAN_MAX_CONTROLLERS", &cfg.MaxControllers},
		{"PLAYMAN_PRELOAD_AHEAD", &cfg.PreloadAhead},
		{"PLAYMAN_PRELOAD_BEHIND", &cfg.PreloadBehind},
		{"PLAYMAN_MAX_RETRIES", &cfg.MaxRetries},
		{"PLAYMAN_MAX_CATALOG_SIZE", &cfg.MaxCatalogSize},
	} {
		raw := os.Getenv(e.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: invalid %s=%q: %w", e.key, raw, err)
		}
		*e.dst = v
	}

	if v := os.Getenv("PLAYMAN_PREFETCH_DIR"); v != "" {
		cfg.PrefetchDir = v
	}
	if v := os.Getenv("PLAYMAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// Validate rejects configurations the manager cannot run with.
func (c Config) Validate() error {
	if c.MaxControllers < 1 {
		return fmt.Errorf("config: maxControllers must be >= 1, got %d", c.MaxControllers)
	}
	if c.PreloadAhead < 0 || c.PreloadBehind < 0 {
		return fmt.Errorf("config: preload window must not be negative (ahead=%d behind=%d)",
			c.PreloadAhead, c.PreloadBehind)
	}
	if c.EvictionBuffer < 0 {
		return fmt.Errorf("config: evictionBuffer must not be negative, got %d", c.EvictionBuffer)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("config: maxRetries must be >= 1, got %d", c.MaxRetries)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("config: retry delays invalid (base=%s max=%s)",
			c.RetryBaseDelay, c.RetryMaxDelay)
	}
	if c.MaxCatalogSize < 1 {
		return fmt.Errorf("config: maxCatalogSize must be >= 1, got %d", c.MaxCatalogSize)
	}
	if c.PressureKeepFraction <= 0 || c.PressureKeepFraction > 1 {
		return fmt.Errorf("config: pressureKeepFraction must be in (0,1], got %g",
			c.PressureKeepFraction)
	}
	return nil
}
