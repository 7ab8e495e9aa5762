// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/apify/apify-storage-local-js/lib/clock"
)

// Client is the public surface for one dataset: an append-only,
// ordered log of JSON items, one file per item.
//
// Client serializes its own writes with an internal mutex; it does
// not coordinate with other processes the way the request queue's
// SQLite handle does, since concurrent dataset writers racing on item
// numbering is out of scope (see spec's Non-goals on multi-process
// coordination).
type Client struct {
	mu     sync.Mutex
	dir    string
	name   string
	clock  clock.Clock
	logger *slog.Logger
}

// GetOrCreate opens (creating if necessary) the dataset named name
// under baseDir.
func GetOrCreate(baseDir, name string, clk clock.Clock, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real()
	}
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: creating directory for %q: %w", name, err)
	}

	c := &Client{dir: dir, name: name, clock: clk, logger: logger}

	if _, err := os.Stat(filepath.Join(dir, metadataFileName)); os.IsNotExist(err) {
		now := clk.Now().UTC()
		if err := c.writeMetadata(metadataFile{CreatedAt: now, ModifiedAt: now, AccessedAt: now}); err != nil {
			return nil, fmt.Errorf("dataset: initializing %q: %w", name, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("dataset: stat metadata for %q: %w", name, err)
	}

	return c, nil
}

func (c *Client) metadataPath() string {
	return filepath.Join(c.dir, metadataFileName)
}

func (c *Client) readMetadata() (metadataFile, error) {
	data, err := os.ReadFile(c.metadataPath())
	if err != nil {
		return metadataFile{}, fmt.Errorf("dataset: reading metadata: %w", err)
	}
	var m metadataFile
	if err := json.Unmarshal(data, &m); err != nil {
		return metadataFile{}, fmt.Errorf("dataset: parsing metadata: %w", err)
	}
	return m, nil
}

func (c *Client) writeMetadata(m metadataFile) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("dataset: encoding metadata: %w", err)
	}
	if err := os.WriteFile(c.metadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("dataset: writing metadata: %w", err)
	}
	return nil
}

func itemFilename(index int) string {
	return fmt.Sprintf("%0*d.json", itemFilenameDigits, index)
}

// PushItems appends each item to the dataset as a new numbered JSON
// file, in order. items mirrors the remote client's overload: pass one
// item or many, object-shaped or not — each is serialized verbatim.
func (c *Client) PushItems(items ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, err := c.readMetadata()
	if err != nil {
		return err
	}

	for _, item := range items {
		meta.ItemCount++
		data, err := json.MarshalIndent(item, "", "  ")
		if err != nil {
			return fmt.Errorf("dataset: encoding item %d: %w", meta.ItemCount, err)
		}
		path := filepath.Join(c.dir, itemFilename(meta.ItemCount))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("dataset: writing item %d: %w", meta.ItemCount, err)
		}
	}

	now := c.clock.Now().UTC()
	meta.ModifiedAt = now
	meta.AccessedAt = now
	if err := c.writeMetadata(meta); err != nil {
		return err
	}

	c.logger.Info("dataset items pushed", "name", c.name, "count", len(items))
	return nil
}

// ListItems returns a page of items in insertion order.
func (c *Client) ListItems(opts ListItemsOptions) (ListItemsResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return ListItemsResult{}, fmt.Errorf("dataset: listing %q: %w", c.name, err)
	}

	indexes := make([]int, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == metadataFileName || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		indexes = append(indexes, n)
	}
	sort.Ints(indexes)

	total := len(indexes)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}

	items := make([]map[string]any, 0, end-offset)
	for _, n := range indexes[offset:end] {
		data, err := os.ReadFile(filepath.Join(c.dir, itemFilename(n)))
		if err != nil {
			return ListItemsResult{}, fmt.Errorf("dataset: reading item %d: %w", n, err)
		}
		var item map[string]any
		if err := json.Unmarshal(data, &item); err != nil {
			return ListItemsResult{}, fmt.Errorf("dataset: parsing item %d: %w", n, err)
		}
		items = append(items, item)
	}

	if err := c.touchAccessed(); err != nil {
		return ListItemsResult{}, err
	}

	return ListItemsResult{
		Items:  items,
		Total:  total,
		Offset: offset,
		Limit:  opts.Limit,
		Count:  len(items),
	}, nil
}

func (c *Client) touchAccessed() error {
	meta, err := c.readMetadata()
	if err != nil {
		return err
	}
	meta.AccessedAt = c.clock.Now().UTC()
	return c.writeMetadata(meta)
}

// GetInfo returns the dataset's current state, bumping accessedAt.
func (c *Client) GetInfo() (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	meta, err := c.readMetadata()
	if err != nil {
		return Info{}, err
	}
	meta.AccessedAt = c.clock.Now().UTC()
	if err := c.writeMetadata(meta); err != nil {
		return Info{}, err
	}

	return Info{
		ID:         c.name,
		Name:       c.name,
		ItemCount:  meta.ItemCount,
		CreatedAt:  meta.CreatedAt,
		ModifiedAt: meta.ModifiedAt,
		AccessedAt: meta.AccessedAt,
	}, nil
}

// Drop removes the dataset's directory entirely.
func (c *Client) Drop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("dataset: dropping %q: %w", c.name, err)
	}
	c.logger.Info("dataset dropped", "name", c.name)
	return nil
}

// Clear empties the dataset's contents (all items) but keeps the
// directory and resets the metadata, without removing the directory
// itself. Used by the storage root's Purge for the default dataset.
func (c *Client) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("dataset: clearing %q: %w", c.name, err)
	}
	for _, entry := range entries {
		if entry.Name() == metadataFileName {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("dataset: clearing %q: removing %s: %w", c.name, entry.Name(), err)
		}
	}

	now := c.clock.Now().UTC()
	return c.writeMetadata(metadataFile{CreatedAt: now, ModifiedAt: now, AccessedAt: now})
}
