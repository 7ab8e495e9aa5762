// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apify/apify-storage-local-js/dataset"
	"github.com/apify/apify-storage-local-js/keyvaluestore"
	"github.com/apify/apify-storage-local-js/requestqueue"
)

const (
	requestQueuesFamily  = "request_queues"
	keyValueStoresFamily = "key_value_stores"
	datasetsFamily       = "datasets"
)

// Root is the entry point for the local storage emulator: one root
// directory containing the three storage families, each created lazily
// the first time a client for it is requested.
type Root struct {
	opts resolvedOptions

	mu          sync.Mutex
	familyReady map[string]bool
	datasets    map[string]*dataset.Client
	kvStores    map[string]*keyvaluestore.Client
	queues      map[string]*requestqueue.Client
}

// NewRoot creates a Root over the resolved options. It creates the
// root directory itself if absent; family subdirectories are created
// lazily on first access, per spec.md §6.
func NewRoot(opts Options) (*Root, error) {
	resolved, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(resolved.rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating root %s: %w", resolved.rootDir, err)
	}

	resolved.cache.SetWalMode(resolved.enableWAL)

	resolved.logger.Info("storage root opened", "root", resolved.rootDir, "wal_mode", resolved.enableWAL)

	return &Root{
		opts:        resolved,
		familyReady: make(map[string]bool),
		datasets:    make(map[string]*dataset.Client),
		kvStores:    make(map[string]*keyvaluestore.Client),
		queues:      make(map[string]*requestqueue.Client),
	}, nil
}

func (r *Root) familyDir(family string) string {
	return filepath.Join(r.opts.rootDir, family)
}

// ensureFamilyDir creates the family's directory if absent, and on the
// first access within this Root's lifetime, warns if the directory
// already contains per-item subdirectories with leftover content — a
// crawler resuming against a storage root from a previous run.
func (r *Root) ensureFamilyDir(family string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir := r.familyDir(family)
	if r.familyReady[family] {
		return dir, nil
	}

	_, statErr := os.Stat(dir)
	existedBefore := statErr == nil

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: creating %s directory: %w", family, err)
	}

	if existedBefore {
		r.warnIfNonEmpty(family, dir)
	}

	r.familyReady[family] = true
	return dir, nil
}

// warnIfNonEmpty logs, at Warn level, the names of any per-item
// subdirectory beneath dir that still holds files. In the key-value
// family, a lone file named InputRecordKey (any extension) does not
// count — that's the reserved record Purge is required to preserve,
// not leftover crawl output.
func (r *Root) warnIfNonEmpty(family, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var populated []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		itemDir := filepath.Join(dir, entry.Name())
		items, err := os.ReadDir(itemDir)
		if err != nil {
			continue
		}
		for _, item := range items {
			if item.IsDir() {
				continue
			}
			if family == keyValueStoresFamily && isReservedKeyValueFile(item.Name()) {
				continue
			}
			populated = append(populated, entry.Name())
			break
		}
	}

	if len(populated) > 0 {
		r.opts.logger.Warn("storage directory is not empty",
			"family", family, "directories", populated)
	}
}

func isReservedKeyValueFile(name string) bool {
	base := name
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	return base == keyvaluestore.InputRecordKey || metadataBasename(name) != ""
}

func metadataBasename(name string) string {
	// __metadata__.json and __records__.json are bookkeeping files this
	// package itself writes, never crawl output; treat them as reserved
	// too so a freshly reopened store never trips the warning on its own
	// files.
	switch name {
	case "__metadata__.json", "__records__.json":
		return name
	default:
		return ""
	}
}

// Dataset returns the dataset client named name, opening it if needed.
func (r *Root) Dataset(name string) (*dataset.Client, error) {
	dir, err := r.ensureFamilyDir(datasetsFamily)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.datasets[name]; ok {
		return c, nil
	}

	c, err := dataset.GetOrCreate(dir, name, r.opts.clock, r.opts.logger)
	if err != nil {
		return nil, err
	}
	r.datasets[name] = c
	return c, nil
}

// KeyValueStore returns the key-value store client named name, opening
// it if needed.
func (r *Root) KeyValueStore(name string) (*keyvaluestore.Client, error) {
	dir, err := r.ensureFamilyDir(keyValueStoresFamily)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.kvStores[name]; ok {
		return c, nil
	}

	c, err := keyvaluestore.GetOrCreate(dir, name, r.opts.clock, r.opts.logger)
	if err != nil {
		return nil, err
	}
	r.kvStores[name] = c
	return c, nil
}

// RequestQueue returns the request queue client named name, opening it
// if needed.
func (r *Root) RequestQueue(ctx context.Context, name string) (*requestqueue.Client, error) {
	dir, err := r.ensureFamilyDir(requestQueuesFamily)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.queues[name]; ok {
		return c, nil
	}

	c, err := requestqueue.GetOrCreate(ctx, r.opts.cache, r.opts.clock, r.opts.logger, dir, name)
	if err != nil {
		return nil, err
	}
	r.queues[name] = c
	return c, nil
}

// Purge empties the three default containers: the default dataset, the
// default request queue, and the default key-value store (preserving
// any file there named InputRecordKey). Non-default containers are
// untouched.
func (r *Root) Purge(ctx context.Context) error {
	ds, err := r.Dataset(r.opts.datasetName)
	if err != nil {
		return fmt.Errorf("storage: Purge: %w", err)
	}
	if err := ds.Clear(); err != nil {
		return fmt.Errorf("storage: Purge: %w", err)
	}

	kv, err := r.KeyValueStore(r.opts.kvName)
	if err != nil {
		return fmt.Errorf("storage: Purge: %w", err)
	}
	if err := kv.Purge(); err != nil {
		return fmt.Errorf("storage: Purge: %w", err)
	}

	rq, err := r.RequestQueue(ctx, r.opts.queueName)
	if err != nil {
		return fmt.Errorf("storage: Purge: %w", err)
	}
	if err := rq.Clear(ctx); err != nil {
		return fmt.Errorf("storage: Purge: %w", err)
	}

	r.opts.logger.Info("storage root purged",
		"dataset", r.opts.datasetName, "key_value_store", r.opts.kvName, "request_queue", r.opts.queueName)
	return nil
}
