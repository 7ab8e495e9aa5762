// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package keyvaluestore

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/apify/apify-storage-local-js/lib/clock"
)

// Client is the public surface for one key-value store.
//
// Like dataset.Client, Client serializes its own writes with an
// internal mutex rather than an embedded database; concurrent
// multi-process writers racing on the same key is out of scope.
type Client struct {
	mu     sync.Mutex
	dir    string
	name   string
	clock  clock.Clock
	logger *slog.Logger
}

// GetOrCreate opens (creating if necessary) the key-value store named
// name under baseDir.
func GetOrCreate(baseDir, name string, clk clock.Clock, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real()
	}
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("keyvaluestore: creating directory for %q: %w", name, err)
	}

	c := &Client{dir: dir, name: name, clock: clk, logger: logger}

	if _, err := os.Stat(filepath.Join(dir, metadataFileName)); os.IsNotExist(err) {
		now := clk.Now().UTC()
		if err := c.writeMetadata(metadataFile{CreatedAt: now, ModifiedAt: now, AccessedAt: now}); err != nil {
			return nil, fmt.Errorf("keyvaluestore: initializing %q: %w", name, err)
		}
		if err := c.writeRecords(recordsFile{Records: map[string]keyRecord{}}); err != nil {
			return nil, fmt.Errorf("keyvaluestore: initializing %q: %w", name, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("keyvaluestore: stat metadata for %q: %w", name, err)
	}

	return c, nil
}

func (c *Client) metadataPath() string { return filepath.Join(c.dir, metadataFileName) }
func (c *Client) recordsPath() string  { return filepath.Join(c.dir, recordsFileName) }

func (c *Client) readMetadata() (metadataFile, error) {
	data, err := os.ReadFile(c.metadataPath())
	if err != nil {
		return metadataFile{}, fmt.Errorf("keyvaluestore: reading metadata: %w", err)
	}
	var m metadataFile
	if err := json.Unmarshal(data, &m); err != nil {
		return metadataFile{}, fmt.Errorf("keyvaluestore: parsing metadata: %w", err)
	}
	return m, nil
}

func (c *Client) writeMetadata(m metadataFile) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("keyvaluestore: encoding metadata: %w", err)
	}
	if err := os.WriteFile(c.metadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("keyvaluestore: writing metadata: %w", err)
	}
	return nil
}

func (c *Client) readRecords() (recordsFile, error) {
	data, err := os.ReadFile(c.recordsPath())
	if err != nil {
		return recordsFile{}, fmt.Errorf("keyvaluestore: reading records: %w", err)
	}
	var r recordsFile
	if err := json.Unmarshal(data, &r); err != nil {
		return recordsFile{}, fmt.Errorf("keyvaluestore: parsing records: %w", err)
	}
	if r.Records == nil {
		r.Records = map[string]keyRecord{}
	}
	return r, nil
}

func (c *Client) writeRecords(r recordsFile) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("keyvaluestore: encoding records: %w", err)
	}
	if err := os.WriteFile(c.recordsPath(), data, 0o644); err != nil {
		return fmt.Errorf("keyvaluestore: writing records: %w", err)
	}
	return nil
}

func (c *Client) valuePath(key string, ext string) string {
	return filepath.Join(c.dir, key+ext)
}

// SetValue stores value under key, replacing any prior value and
// extension. An empty contentType is treated as
// "application/octet-stream".
func (c *Client) SetValue(key string, value []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ext := extensionForContentType(contentType)

	records, err := c.readRecords()
	if err != nil {
		return err
	}
	if old, ok := records.Records[key]; ok && old.Extension != ext {
		if err := os.Remove(c.valuePath(key, old.Extension)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("keyvaluestore: removing stale value for key %q: %w", key, err)
		}
	}

	if err := os.WriteFile(c.valuePath(key, ext), value, 0o644); err != nil {
		return fmt.Errorf("keyvaluestore: writing key %q: %w", key, err)
	}

	records.Records[key] = keyRecord{ContentType: contentType, Extension: ext}
	if err := c.writeRecords(records); err != nil {
		return err
	}

	return c.touchModified()
}

// GetValue returns the value stored under key. found is false if no
// such key exists.
func (c *Client) GetValue(key string) (value Value, found bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readRecords()
	if err != nil {
		return Value{}, false, err
	}
	record, ok := records.Records[key]
	if !ok {
		return Value{}, false, nil
	}

	body, err := os.ReadFile(c.valuePath(key, record.Extension))
	if err != nil {
		if os.IsNotExist(err) {
			return Value{}, false, nil
		}
		return Value{}, false, fmt.Errorf("keyvaluestore: reading key %q: %w", key, err)
	}

	if err := c.touchAccessed(); err != nil {
		return Value{}, false, err
	}

	return Value{Key: key, Body: body, ContentType: record.ContentType}, true, nil
}

// DeleteValue removes the value stored under key, if any. existed
// reports whether the key was present.
func (c *Client) DeleteValue(key string) (existed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readRecords()
	if err != nil {
		return false, err
	}
	record, ok := records.Records[key]
	if !ok {
		return false, nil
	}

	if err := os.Remove(c.valuePath(key, record.Extension)); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("keyvaluestore: deleting key %q: %w", key, err)
	}
	delete(records.Records, key)
	if err := c.writeRecords(records); err != nil {
		return false, err
	}

	if err := c.touchModified(); err != nil {
		return false, err
	}
	return true, nil
}

// ListKeys returns a page of keys in lexicographic order.
func (c *Client) ListKeys(opts ListKeysOptions) (ListKeysResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readRecords()
	if err != nil {
		return ListKeysResult{}, err
	}

	keys := make([]string, 0, len(records.Records))
	for k := range records.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if opts.ExclusiveStartKey != "" {
		start = sort.SearchStrings(keys, opts.ExclusiveStartKey)
		if start < len(keys) && keys[start] == opts.ExclusiveStartKey {
			start++
		}
	}
	keys = keys[start:]

	truncated := false
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
		truncated = true
	}

	result := ListKeysResult{
		Keys:        make([]KeyInfo, 0, len(keys)),
		Count:       len(keys),
		Limit:       opts.Limit,
		IsTruncated: truncated,
	}
	for _, k := range keys {
		record := records.Records[k]
		size := 0
		if info, err := os.Stat(c.valuePath(k, record.Extension)); err == nil {
			size = int(info.Size())
		}
		result.Keys = append(result.Keys, KeyInfo{Key: k, Size: size})
	}
	if truncated {
		result.NextExclusiveStartKey = keys[len(keys)-1]
	}

	if err := c.touchAccessed(); err != nil {
		return ListKeysResult{}, err
	}

	return result, nil
}

// GetInfo returns the store's current state, bumping accessedAt.
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
		CreatedAt:  meta.CreatedAt,
		ModifiedAt: meta.ModifiedAt,
		AccessedAt: meta.AccessedAt,
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

func (c *Client) touchModified() error {
	meta, err := c.readMetadata()
	if err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	meta.ModifiedAt = now
	meta.AccessedAt = now
	return c.writeMetadata(meta)
}

// Drop removes the store's directory entirely.
func (c *Client) Drop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("keyvaluestore: dropping %q: %w", c.name, err)
	}
	c.logger.Info("key-value store dropped", "name", c.name)
	return nil
}

// Purge removes every value except the reserved INPUT record, without
// removing the store's directory.
func (c *Client) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.readRecords()
	if err != nil {
		return err
	}

	kept := map[string]keyRecord{}
	for key, record := range records.Records {
		if strings.EqualFold(key, InputRecordKey) {
			kept[key] = record
			continue
		}
		if err := os.Remove(c.valuePath(key, record.Extension)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("keyvaluestore: purging key %q: %w", key, err)
		}
	}

	if err := c.writeRecords(recordsFile{Records: kept}); err != nil {
		return err
	}
	return c.touchModified()
}
