// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package requestqueue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/apify/apify-storage-local-js/dbcache"
	"github.com/apify/apify-storage-local-js/lib/clock"
	"github.com/apify/apify-storage-local-js/lib/storageerr"
	"github.com/apify/apify-storage-local-js/requestqueue"
)

func newTestClient(t *testing.T, clk clock.Clock, baseDir, name string) *requestqueue.Client {
	t.Helper()
	cache := dbcache.New(dbcache.Config{})
	t.Cleanup(func() { cache.CloseAll() })

	c, err := requestqueue.GetOrCreate(context.Background(), cache, clk, nil, baseDir, name)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	return c
}

func TestGetOrCreateThenGetReturnsInfo(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "my-queue")

	info, err := c.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.Name != "my-queue" {
		t.Errorf("Name = %q, want %q", info.Name, "my-queue")
	}
	if info.TotalRequestCount != 0 || info.PendingRequestCount != 0 {
		t.Errorf("fresh queue has non-zero counts: %+v", info)
	}
}

func TestAddRequestRejectsCallerSuppliedID(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")

	_, err := c.AddRequest(context.Background(), requestqueue.Request{
		ID:        "whatever",
		URL:       "https://example.com",
		UniqueKey: "k1",
	}, requestqueue.AddRequestOptions{})
	if !errors.Is(err, storageerr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestAddRequestRequiresURLAndUniqueKey(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	if _, err := c.AddRequest(ctx, requestqueue.Request{UniqueKey: "k1"}, requestqueue.AddRequestOptions{}); !errors.Is(err, storageerr.ErrInvalidArgument) {
		t.Errorf("missing url: err = %v, want ErrInvalidArgument", err)
	}
	if _, err := c.AddRequest(ctx, requestqueue.Request{URL: "https://example.com"}, requestqueue.AddRequestOptions{}); !errors.Is(err, storageerr.ErrInvalidArgument) {
		t.Errorf("missing uniqueKey: err = %v, want ErrInvalidArgument", err)
	}
}

func TestAddRequestThenDuplicateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	req := requestqueue.Request{URL: "https://example.com/a", UniqueKey: "k1"}

	first, err := c.AddRequest(ctx, req, requestqueue.AddRequestOptions{})
	if err != nil {
		t.Fatalf("AddRequest: %v", err)
	}
	if first.WasAlreadyPresent {
		t.Errorf("first add reported WasAlreadyPresent")
	}

	second, err := c.AddRequest(ctx, req, requestqueue.AddRequestOptions{})
	if err != nil {
		t.Fatalf("AddRequest (dup): %v", err)
	}
	if !second.WasAlreadyPresent {
		t.Errorf("duplicate add did not report WasAlreadyPresent")
	}
	if second.RequestID != first.RequestID {
		t.Errorf("RequestID changed between calls: %q vs %q", first.RequestID, second.RequestID)
	}
}

func TestAddRequestForefrontOrdersBeforeTail(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.Fake(base)
	dir := t.TempDir()
	c := newTestClient(t, fake, dir, "q")
	ctx := context.Background()

	if _, err := c.AddRequest(ctx, requestqueue.Request{URL: "https://example.com/tail", UniqueKey: "tail"}, requestqueue.AddRequestOptions{}); err != nil {
		t.Fatalf("AddRequest (tail): %v", err)
	}
	fake.Advance(time.Second)
	if _, err := c.AddRequest(ctx, requestqueue.Request{URL: "https://example.com/front", UniqueKey: "front"}, requestqueue.AddRequestOptions{Forefront: true}); err != nil {
		t.Fatalf("AddRequest (front): %v", err)
	}

	result, err := c.ListHead(ctx, 10)
	if err != nil {
		t.Fatalf("ListHead: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(result.Items))
	}
	if result.Items[0].UniqueKey != "front" {
		t.Errorf("Items[0].UniqueKey = %q, want %q", result.Items[0].UniqueKey, "front")
	}
}

func TestUpdateRequestRequiresMatchingID(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	_, err := c.UpdateRequest(ctx, requestqueue.Request{
		ID:        "not-the-derived-id",
		URL:       "https://example.com",
		UniqueKey: "k1",
	}, requestqueue.AddRequestOptions{})
	if !errors.Is(err, storageerr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestUpdateRequestMarksHandled(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	req := requestqueue.Request{URL: "https://example.com/a", UniqueKey: "k1"}
	added, err := c.AddRequest(ctx, req, requestqueue.AddRequestOptions{})
	if err != nil {
		t.Fatalf("AddRequest: %v", err)
	}

	stored, found, err := c.GetRequest(ctx, added.RequestID)
	if err != nil || !found {
		t.Fatalf("GetRequest: %v, found=%v", err, found)
	}

	now := time.Now().UTC()
	stored.HandledAt = &now
	result, err := c.UpdateRequest(ctx, stored, requestqueue.AddRequestOptions{})
	if err != nil {
		t.Fatalf("UpdateRequest: %v", err)
	}
	if result.WasAlreadyHandled {
		t.Errorf("WasAlreadyHandled = true, want false (was pending before this call)")
	}

	info, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if info.HandledRequestCount != 1 {
		t.Errorf("HandledRequestCount = %d, want 1", info.HandledRequestCount)
	}

	headAfter, err := c.ListHead(ctx, 10)
	if err != nil {
		t.Fatalf("ListHead: %v", err)
	}
	if len(headAfter.Items) != 0 {
		t.Errorf("len(Items) = %d, want 0 once handled", len(headAfter.Items))
	}
}

func TestUserDataRoundTrips(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	added, err := c.AddRequest(ctx, requestqueue.Request{
		URL:       "https://example.com/a",
		UniqueKey: "k1",
		UserData:  map[string]any{"depth": float64(2), "label": "seed"},
	}, requestqueue.AddRequestOptions{})
	if err != nil {
		t.Fatalf("AddRequest: %v", err)
	}

	stored, found, err := c.GetRequest(ctx, added.RequestID)
	if err != nil || !found {
		t.Fatalf("GetRequest: %v, found=%v", err, found)
	}
	userData, ok := stored.UserData.(map[string]any)
	if !ok {
		t.Fatalf("UserData = %#v, want map[string]any", stored.UserData)
	}
	if userData["label"] != "seed" {
		t.Errorf("UserData[\"label\"] = %v, want %q", userData["label"], "seed")
	}
	if userData["depth"] != float64(2) {
		t.Errorf("UserData[\"depth\"] = %v, want 2", userData["depth"])
	}
}

func TestUserDataRoundTripsNonObjectShapes(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	cases := []struct {
		name      string
		uniqueKey string
		userData  any
	}{
		{"array", "arr", []any{"a", "b", float64(3)}},
		{"string", "str", "plain-string-payload"},
		{"number", "num", float64(42)},
		{"bool", "bool", true},
		{"null", "null", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			added, err := c.AddRequest(ctx, requestqueue.Request{
				URL:       "https://example.com/" + tc.name,
				UniqueKey: tc.uniqueKey,
				UserData:  tc.userData,
			}, requestqueue.AddRequestOptions{})
			if err != nil {
				t.Fatalf("AddRequest: %v", err)
			}

			stored, found, err := c.GetRequest(ctx, added.RequestID)
			if err != nil || !found {
				t.Fatalf("GetRequest: %v, found=%v", err, found)
			}
			if !reflect.DeepEqual(stored.UserData, tc.userData) {
				t.Errorf("UserData = %#v, want %#v", stored.UserData, tc.userData)
			}
		})
	}
}

func TestUpdateRenamesDirectoryAndRow(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "old-name")
	ctx := context.Background()

	info, err := c.Update(ctx, "new-name")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if info.Name != "new-name" {
		t.Errorf("Name = %q, want %q", info.Name, "new-name")
	}
	if _, err := os.Stat(filepath.Join(dir, "new-name")); err != nil {
		t.Errorf("renamed directory missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "old-name")); !os.IsNotExist(err) {
		t.Errorf("old directory still exists")
	}
}

func TestUpdateFailsOnNameConflict(t *testing.T) {
	dir := t.TempDir()
	cache := dbcache.New(dbcache.Config{})
	t.Cleanup(func() { cache.CloseAll() })
	ctx := context.Background()

	if _, err := requestqueue.GetOrCreate(ctx, cache, nil, nil, dir, "taken"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	c, err := requestqueue.GetOrCreate(ctx, cache, nil, nil, dir, "mover")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	_, err = c.Update(ctx, "taken")
	if !errors.Is(err, storageerr.ErrNameConflict) {
		t.Fatalf("err = %v, want ErrNameConflict", err)
	}
}

func TestDeleteRemovesDirectory(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	if err := c.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "q")); !os.IsNotExist(err) {
		t.Errorf("directory still exists after Delete")
	}
}

func TestListAndLockHeadThenProlongAndRelease(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fake := clock.Fake(base)
	dir := t.TempDir()
	c := newTestClient(t, fake, dir, "q")
	ctx := context.Background()

	if _, err := c.AddRequest(ctx, requestqueue.Request{URL: "https://example.com/a", UniqueKey: "k1"}, requestqueue.AddRequestOptions{}); err != nil {
		t.Fatalf("AddRequest: %v", err)
	}

	locked, err := c.ListAndLockHead(ctx, 10, 30)
	if err != nil {
		t.Fatalf("ListAndLockHead: %v", err)
	}
	if len(locked.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(locked.Items))
	}
	id := locked.Items[0].ID

	if _, err := c.ProlongRequestLock(ctx, id, 60, requestqueue.LockOptions{}); err != nil {
		t.Fatalf("ProlongRequestLock: %v", err)
	}

	if err := c.DeleteRequestLock(ctx, id, requestqueue.LockOptions{}); err != nil {
		t.Fatalf("DeleteRequestLock: %v", err)
	}

	afterRelease, err := c.ListHead(ctx, 10)
	if err != nil {
		t.Fatalf("ListHead: %v", err)
	}
	if len(afterRelease.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1 after releasing the lock", len(afterRelease.Items))
	}
}

func TestBatchAddRequestsReportsPerItemPresence(t *testing.T) {
	dir := t.TempDir()
	c := newTestClient(t, nil, dir, "q")
	ctx := context.Background()

	if _, err := c.AddRequest(ctx, requestqueue.Request{URL: "https://example.com/a", UniqueKey: "k1"}, requestqueue.AddRequestOptions{}); err != nil {
		t.Fatalf("AddRequest: %v", err)
	}

	result, err := c.BatchAddRequests(ctx, []requestqueue.Request{
		{URL: "https://example.com/a", UniqueKey: "k1"},
		{URL: "https://example.com/b", UniqueKey: "k2"},
	}, requestqueue.AddRequestOptions{})
	if err != nil {
		t.Fatalf("BatchAddRequests: %v", err)
	}
	if len(result.Processed) != 2 {
		t.Fatalf("len(Processed) = %d, want 2", len(result.Processed))
	}
	if !result.Processed[0].WasAlreadyPresent {
		t.Errorf("Processed[0].WasAlreadyPresent = false, want true")
	}
	if result.Processed[1].WasAlreadyPresent {
		t.Errorf("Processed[1].WasAlreadyPresent = true, want false")
	}
	if result.Unprocessed == nil || len(result.Unprocessed) != 0 {
		t.Errorf("Unprocessed = %v, want empty non-nil slice", result.Unprocessed)
	}
}
