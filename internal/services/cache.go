package services

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc loads the dataset stored at path.
type LoadFunc func(ctx context.Context, path string) (*Dataset, error)

// Observer receives dataset and snapshot timings.
type Observer interface {
	DatasetLoaded(path string, records int, duration time.Duration, err error)
	SnapshotComputed(records int, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) DatasetLoaded(string, int, time.Duration, error) {}
func (nopObserver) SnapshotComputed(int, time.Duration)             {}

type cacheEntry struct {
	dataset *Dataset
	size    int64
	modTime time.Time
}

// Cache holds loaded datasets keyed by absolute file path. A dataset is
// reloaded only when the file's size or modification time changes;
// concurrent requests for the same path share a single load. Failed loads
// are never stored.
type Cache struct {
	load        LoadFunc
	logger      *slog.Logger
	observer    Observer
	loadTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

type CacheOption func(*Cache)

func WithObserver(o Observer) CacheOption {
	return func(c *Cache) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLoadTimeout bounds a single dataset load independently of the
// requests waiting on it.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.loadTimeout = d
	}
}

func NewCache(load LoadFunc, logger *slog.Logger, opts ...CacheOption) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		load:     load,
		logger:   logger.With("component", "dataset_cache"),
		observer: nopObserver{},
		entries:  make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(ctx context.Context, path string) (*Dataset, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "resolve path", Err: err}
	}
	info, err := os.Stat(key)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: "stat file", Err: err}
	}

	c.mu.RLock()
	entry := c.entries[key]
	c.mu.RUnlock()

	if entry != nil && entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		c.hits.Add(1)
		return entry.dataset, nil
	}
	c.misses.Add(1)

	// The shared load ignores the first caller's cancellation; each caller
	// stops waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		if c.loadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
			defer cancel()
		}

		start := time.Now()
		ds, err := c.load(loadCtx, key)
		duration := time.Since(start)
		c.observer.DatasetLoaded(key, ds.Len(), duration, err)
		if err != nil {
			c.logger.Error("dataset load failed", "path", key, "error", err)
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = &cacheEntry{dataset: ds, size: info.Size(), modTime: info.ModTime()}
		c.mu.Unlock()

		c.logger.Info("dataset loaded",
			"path", key,
			"records", ds.Len(),
			"skipped_rows", ds.SkippedRows,
			"duration", duration,
			"rate", ratePerSecond(ds.Len(), duration),
		)
		return ds, nil
	})

	select {
	case <-ctx.Done():
		return nil, &LoadError{Path: path, Reason: "cancelled", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("dataset load shared", "path", key)
		}
		return res.Val.(*Dataset), nil
	}
}

func (c *Cache) Invalidate(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]any{
		"entries": len(c.entries),
		"hits":    c.hits.Load(),
		"misses":  c.misses.Load(),
	}
}

func ratePerSecond(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
