// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package dbcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"zombiezen.com/go/sqlite"

	"github.com/apify/apify-storage-local-js/lib/sqlitepool"
)

// ErrDirectoryNotFound is returned by Open when the parent directory
// of the requested database file does not exist. Callers (the request
// queue client) map this to a queue-not-found error carrying the
// queue's name.
var ErrDirectoryNotFound = errors.New("dbcache: parent directory does not exist")

// Handle is a cached, open connection pool for one database file.
type Handle struct {
	Pool *sqlitepool.Pool
	Path string
}

// OpenOptions customizes a single Open call. Ignored if the path is
// already cached — the existing handle's configuration wins, since the
// contract is "one handle per file, shared by every opener."
type OpenOptions struct {
	// PoolSize overrides the cache's default pool size for this file.
	PoolSize int

	// OnConnect runs once per underlying connection, after standard
	// pragmas are applied. Request queue callers use this to create
	// the per-queue schema.
	OnConnect func(conn *sqlite.Conn) error
}

// Cache is a process-wide mapping from database file path to an open
// sqlitepool.Pool. See the package doc for why this exists.
//
// Cache is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	handles    map[string]*Handle
	disableWAL bool
	poolSize   int
	logger     *slog.Logger
}

// Config configures a new Cache.
type Config struct {
	// PoolSize is the default pool size for newly opened handles.
	// Per-call OpenOptions.PoolSize overrides it. Zero uses
	// sqlitepool's own default.
	PoolSize int

	// Logger receives lifecycle messages (handle opened/closed).
	Logger *slog.Logger
}

// New creates an empty Cache. Most callers should use Default instead;
// New exists for tests that want isolation from other tests' handles.
func New(cfg Config) *Cache {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{
		handles:  make(map[string]*Handle),
		poolSize: cfg.PoolSize,
		logger:   logger,
	}
}

var (
	defaultOnce  sync.Once
	defaultCache *Cache
)

// Default returns the process-wide Cache instance, creating it on
// first call.
func Default() *Cache {
	defaultOnce.Do(func() {
		defaultCache = New(Config{})
	})
	return defaultCache
}

// SetWalMode sets whether newly opened handles use write-ahead logging
// (the default) or the rollback journal. Handles already open are
// unaffected — this only governs future Open calls.
func (c *Cache) SetWalMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disableWAL = !enabled
}

// Open returns the cached handle for path if one is already open,
// otherwise opens it, applies the standard pragmas (WAL or rollback
// journal per the current SetWalMode setting, foreign_keys=ON), caches
// it, and returns it.
//
// Open fails with an error wrapping ErrDirectoryNotFound if path's
// parent directory does not exist.
func (c *Cache) Open(ctx context.Context, path string, opts OpenOptions) (*Handle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("dbcache: resolving %s: %w", path, err)
	}

	c.mu.Lock()
	if h, ok := c.handles[abs]; ok {
		c.mu.Unlock()
		return h, nil
	}
	disableWAL := c.disableWAL
	poolSize := c.poolSize
	c.mu.Unlock()

	if _, err := os.Stat(filepath.Dir(abs)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dbcache: opening %s: %w", abs, ErrDirectoryNotFound)
		}
		return nil, fmt.Errorf("dbcache: stat %s: %w", filepath.Dir(abs), err)
	}

	if opts.PoolSize > 0 {
		poolSize = opts.PoolSize
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        abs,
		PoolSize:    poolSize,
		DisableWAL:  disableWAL,
		ForeignKeys: true,
		Logger:      c.logger,
		OnConnect:   opts.OnConnect,
	})
	if err != nil {
		return nil, fmt.Errorf("dbcache: opening %s: %w", abs, err)
	}

	handle := &Handle{Pool: pool, Path: abs}

	c.mu.Lock()
	if existing, ok := c.handles[abs]; ok {
		// Lost a race with a concurrent Open for the same path; keep
		// the winner, discard ours.
		c.mu.Unlock()
		pool.Close()
		return existing, nil
	}
	c.handles[abs] = handle
	c.mu.Unlock()

	c.logger.Info("database handle opened", "path", abs)
	return handle, nil
}

// Close closes and evicts the handle for path, if cached. A no-op if
// path is not currently open.
func (c *Cache) Close(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("dbcache: resolving %s: %w", path, err)
	}

	c.mu.Lock()
	handle, ok := c.handles[abs]
	if ok {
		delete(c.handles, abs)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	if err := handle.Pool.Close(); err != nil {
		return fmt.Errorf("dbcache: closing %s: %w", abs, err)
	}
	c.logger.Info("database handle closed", "path", abs)
	return nil
}

// CloseAll closes every cached handle. Returns the first error
// encountered, if any, after attempting to close them all.
func (c *Cache) CloseAll() error {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*Handle)
	c.mu.Unlock()

	var firstErr error
	for path, handle := range handles {
		if err := handle.Pool.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("dbcache: closing %s: %w", path, err)
		}
	}
	return firstErr
}
