// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package keyvaluestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apify/apify-storage-local-js/lib/clock"
)

func newTestClient(t *testing.T) (*Client, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c, err := GetOrCreate(t.TempDir(), "default", clk, nil)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return c, clk
}

func TestSetAndGetValueRoundTrips(t *testing.T) {
	c, _ := newTestClient(t)

	if err := c.SetValue("greeting", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	v, found, err := c.GetValue("greeting")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if string(v.Body) != "hello" {
		t.Fatalf("Body = %q, want %q", v.Body, "hello")
	}
	if v.ContentType != "text/plain" {
		t.Fatalf("ContentType = %q, want %q", v.ContentType, "text/plain")
	}

	if _, err := os.Stat(filepath.Join(c.dir, "greeting.txt")); err != nil {
		t.Fatalf("expected greeting.txt on disk: %v", err)
	}
}

func TestSetValueUnknownContentTypeDefaultsToBin(t *testing.T) {
	c, _ := newTestClient(t)

	if err := c.SetValue("blob", []byte{1, 2, 3}, "application/x-made-up"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if _, err := os.Stat(filepath.Join(c.dir, "blob.bin")); err != nil {
		t.Fatalf("expected blob.bin on disk: %v", err)
	}
}

func TestSetValueEmptyContentTypeDefaultsToOctetStream(t *testing.T) {
	c, _ := newTestClient(t)

	if err := c.SetValue("blob", []byte{1}, ""); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	v, found, err := c.GetValue("blob")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !found {
		t.Fatal("expected key to be found")
	}
	if v.ContentType != "application/octet-stream" {
		t.Fatalf("ContentType = %q, want application/octet-stream", v.ContentType)
	}
}

func TestSetValueOverwritesPriorExtension(t *testing.T) {
	c, _ := newTestClient(t)

	if err := c.SetValue("item", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("SetValue json: %v", err)
	}
	if err := c.SetValue("item", []byte("plain"), "text/plain"); err != nil {
		t.Fatalf("SetValue plain: %v", err)
	}

	if _, err := os.Stat(filepath.Join(c.dir, "item.json")); !os.IsNotExist(err) {
		t.Fatalf("stale item.json should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "item.txt")); err != nil {
		t.Fatalf("expected item.txt on disk: %v", err)
	}
}

func TestGetValueMissingKeyNotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, found, err := c.GetValue("missing")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if found {
		t.Fatal("expected key to be not found")
	}
}

func TestDeleteValueRemovesKey(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.SetValue("k", []byte("v"), "text/plain"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	existed, err := c.DeleteValue("k")
	if err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if !existed {
		t.Fatal("expected existed=true")
	}

	_, found, err := c.GetValue("k")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if found {
		t.Fatal("key should be gone after DeleteValue")
	}

	existed, err = c.DeleteValue("k")
	if err != nil {
		t.Fatalf("DeleteValue second call: %v", err)
	}
	if existed {
		t.Fatal("expected existed=false on second delete")
	}
}

func TestListKeysOrdersLexicographicallyAndPaginates(t *testing.T) {
	c, _ := newTestClient(t)
	for _, k := range []string{"c", "a", "b"} {
		if err := c.SetValue(k, []byte(k), "text/plain"); err != nil {
			t.Fatalf("SetValue %q: %v", k, err)
		}
	}

	result, err := c.ListKeys(ListKeysOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(result.Keys) != 2 || result.Keys[0].Key != "a" || result.Keys[1].Key != "b" {
		t.Fatalf("unexpected first page: %+v", result.Keys)
	}
	if !result.IsTruncated {
		t.Fatal("expected IsTruncated=true")
	}

	next, err := c.ListKeys(ListKeysOptions{ExclusiveStartKey: result.NextExclusiveStartKey})
	if err != nil {
		t.Fatalf("ListKeys second page: %v", err)
	}
	if len(next.Keys) != 1 || next.Keys[0].Key != "c" {
		t.Fatalf("unexpected second page: %+v", next.Keys)
	}
	if next.IsTruncated {
		t.Fatal("expected IsTruncated=false on final page")
	}
}

func TestPurgeKeepsInputRecord(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.SetValue(InputRecordKey, []byte("seed"), "application/json"); err != nil {
		t.Fatalf("SetValue INPUT: %v", err)
	}
	if err := c.SetValue("result-1", []byte("x"), "text/plain"); err != nil {
		t.Fatalf("SetValue result-1: %v", err)
	}

	if err := c.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	_, found, err := c.GetValue(InputRecordKey)
	if err != nil {
		t.Fatalf("GetValue INPUT: %v", err)
	}
	if !found {
		t.Fatal("INPUT record must survive Purge")
	}

	_, found, err = c.GetValue("result-1")
	if err != nil {
		t.Fatalf("GetValue result-1: %v", err)
	}
	if found {
		t.Fatal("non-INPUT keys must be removed by Purge")
	}

	if _, err := os.Stat(c.dir); err != nil {
		t.Fatalf("store directory should survive Purge: %v", err)
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	dir := t.TempDir()

	c1, err := GetOrCreate(dir, "default", clk, nil)
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	if err := c1.SetValue("k", []byte("v"), "text/plain"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	clk.Advance(time.Hour)
	c2, err := GetOrCreate(dir, "default", clk, nil)
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}

	_, found, err := c2.GetValue("k")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !found {
		t.Fatal("reopening must not lose existing keys")
	}
}

func TestDropRemovesDirectory(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.SetValue("k", []byte("v"), "text/plain"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	if err := c.Drop(); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	if _, err := os.Stat(c.dir); !os.IsNotExist(err) {
		t.Fatalf("directory still exists after Drop: err=%v", err)
	}
}

func TestGetInfoBumpsAccessedAt(t *testing.T) {
	c, clk := newTestClient(t)

	before, err := c.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}

	clk.Advance(time.Minute)
	after, err := c.GetInfo()
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if !after.AccessedAt.After(before.AccessedAt) {
		t.Fatalf("AccessedAt did not advance: before=%v after=%v", before.AccessedAt, after.AccessedAt)
	}
}
