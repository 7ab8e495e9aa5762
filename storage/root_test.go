// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apify/apify-storage-local-js/dbcache"
	"github.com/apify/apify-storage-local-js/lib/clock"
	"github.com/apify/apify-storage-local-js/requestqueue"
)

func newTestRoot(t *testing.T) (*Root, *bytes.Buffer) {
	t.Helper()
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	root, err := NewRoot(Options{
		RootDir: t.TempDir(),
		Clock:   clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Cache:   dbcache.New(dbcache.Config{}),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root, &logBuf
}

func TestNewRootDoesNotCreateFamilyDirsEagerly(t *testing.T) {
	root, _ := newTestRoot(t)

	for _, family := range []string{requestQueuesFamily, keyValueStoresFamily, datasetsFamily} {
		if _, err := os.Stat(root.familyDir(family)); !os.IsNotExist(err) {
			t.Fatalf("family dir %s should not exist before first access, stat err = %v", family, err)
		}
	}
}

func TestDatasetCreatesFamilyDirOnFirstAccess(t *testing.T) {
	root, _ := newTestRoot(t)

	if _, err := root.Dataset("default"); err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if _, err := os.Stat(root.familyDir(datasetsFamily)); err != nil {
		t.Fatalf("expected datasets family dir to exist: %v", err)
	}
}

func TestDatasetIsCachedAcrossCalls(t *testing.T) {
	root, _ := newTestRoot(t)

	a, err := root.Dataset("default")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	b, err := root.Dataset("default")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if a != b {
		t.Fatal("expected the same *dataset.Client instance on repeated access")
	}
}

func TestKeyValueStoreAndRequestQueueOpenIndependently(t *testing.T) {
	root, _ := newTestRoot(t)
	ctx := context.Background()

	if _, err := root.KeyValueStore("default"); err != nil {
		t.Fatalf("KeyValueStore: %v", err)
	}
	if _, err := root.RequestQueue(ctx, "default"); err != nil {
		t.Fatalf("RequestQueue: %v", err)
	}

	if _, err := os.Stat(root.familyDir(keyValueStoresFamily)); err != nil {
		t.Fatalf("expected key_value_stores family dir: %v", err)
	}
	if _, err := os.Stat(root.familyDir(requestQueuesFamily)); err != nil {
		t.Fatalf("expected request_queues family dir: %v", err)
	}
}

func TestWarnsOnPreexistingNonEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	// Simulate a previous run having left crawl output behind, before
	// this Root ever opens the family.
	leftover := filepath.Join(dir, keyValueStoresFamily, "default")
	if err := os.MkdirAll(leftover, 0o755); err != nil {
		t.Fatalf("seeding leftover dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(leftover, "result-1.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("seeding leftover file: %v", err)
	}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	root, err := NewRoot(Options{RootDir: dir, Cache: dbcache.New(dbcache.Config{}), Logger: logger})
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	if _, err := root.KeyValueStore("default"); err != nil {
		t.Fatalf("KeyValueStore: %v", err)
	}

	if !bytes.Contains(logBuf.Bytes(), []byte("not empty")) {
		t.Fatalf("expected a non-empty-storage warning in logs, got: %s", logBuf.String())
	}
}

func TestWarnsButNotOnSoleInputRecord(t *testing.T) {
	dir := t.TempDir()

	defaultDir := filepath.Join(dir, keyValueStoresFamily, "default")
	if err := os.MkdirAll(defaultDir, 0o755); err != nil {
		t.Fatalf("seeding default dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(defaultDir, "INPUT.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("seeding INPUT file: %v", err)
	}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	root, err := NewRoot(Options{RootDir: dir, Cache: dbcache.New(dbcache.Config{}), Logger: logger})
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	if _, err := root.KeyValueStore("default"); err != nil {
		t.Fatalf("KeyValueStore: %v", err)
	}

	if bytes.Contains(logBuf.Bytes(), []byte("not empty")) {
		t.Fatalf("a lone INPUT record should not trigger the warning, got: %s", logBuf.String())
	}
}

func TestPurgeEmptiesDefaultContainersButKeepsInput(t *testing.T) {
	root, _ := newTestRoot(t)
	ctx := context.Background()

	ds, err := root.Dataset("default")
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if err := ds.PushItems(map[string]any{"n": 1}); err != nil {
		t.Fatalf("PushItems: %v", err)
	}

	kv, err := root.KeyValueStore("default")
	if err != nil {
		t.Fatalf("KeyValueStore: %v", err)
	}
	if err := kv.SetValue("INPUT", []byte("seed"), "application/json"); err != nil {
		t.Fatalf("SetValue INPUT: %v", err)
	}
	if err := kv.SetValue("result", []byte("x"), "text/plain"); err != nil {
		t.Fatalf("SetValue result: %v", err)
	}

	rq, err := root.RequestQueue(ctx, "default")
	if err != nil {
		t.Fatalf("RequestQueue: %v", err)
	}
	seed := requestqueue.Request{URL: "https://example.com/", UniqueKey: "https://example.com/"}
	if _, err := rq.AddRequest(ctx, seed, requestqueue.AddRequestOptions{}); err != nil {
		t.Fatalf("AddRequest: %v", err)
	}

	if err := root.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	dsInfo, err := ds.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo dataset: %v", err)
	}
	if dsInfo.ItemCount != 0 {
		t.Fatalf("dataset ItemCount = %d, want 0 after Purge", dsInfo.ItemCount)
	}

	_, found, err := kv.GetValue("INPUT")
	if err != nil {
		t.Fatalf("GetValue INPUT: %v", err)
	}
	if !found {
		t.Fatal("INPUT record must survive Purge")
	}
	_, found, err = kv.GetValue("result")
	if err != nil {
		t.Fatalf("GetValue result: %v", err)
	}
	if found {
		t.Fatal("non-INPUT key should be gone after Purge")
	}

	qInfo, err := rq.Get(ctx)
	if err != nil {
		t.Fatalf("Get queue: %v", err)
	}
	if qInfo.PendingRequestCount != 0 {
		t.Fatalf("pending request count = %d, want 0 after Purge", qInfo.PendingRequestCount)
	}
}
