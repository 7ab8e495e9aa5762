// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package requestqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/apify/apify-storage-local-js/dbcache"
	"github.com/apify/apify-storage-local-js/internal/queuedb"
	"github.com/apify/apify-storage-local-js/lib/clock"
	"github.com/apify/apify-storage-local-js/lib/storageerr"
)

const defaultListLimit = 100

// Client is the public surface for one request queue. Every method
// runs a synchronous, atomic transaction against the queue's database
// file; there is no user-visible suspension in the middle of one.
type Client struct {
	cache   *dbcache.Cache
	handle  *dbcache.Handle
	engine  *queuedb.Engine
	clock   clock.Clock
	name    string
	baseDir string // parent of every queue's directory, e.g. <root>/request_queues
	logger  *slog.Logger
}

func dbPath(dir string) string {
	return filepath.Join(dir, "db.sqlite")
}

// GetOrCreate opens (creating if necessary) the queue named name under
// baseDir, ensuring both its directory and its database row exist.
func GetOrCreate(ctx context.Context, cache *dbcache.Cache, clk clock.Clock, logger *slog.Logger, baseDir, name string) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clk == nil {
		clk = clock.Real()
	}
	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("requestqueue: creating directory for queue %q: %w", name, err)
	}

	handle, err := cache.Open(ctx, dbPath(dir), dbcache.OpenOptions{OnConnect: queuedb.OnConnect})
	if err != nil {
		return nil, fmt.Errorf("requestqueue: opening queue %q: %w", name, err)
	}

	engine := queuedb.New(handle.Pool, clk)
	if _, err := engine.GetOrCreateQueue(ctx, name); err != nil {
		return nil, fmt.Errorf("requestqueue: initializing queue %q: %w", name, err)
	}

	logger.Info("request queue opened", "name", name, "path", handle.Path)

	return &Client{
		cache:   cache,
		handle:  handle,
		engine:  engine,
		clock:   clk,
		name:    name,
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

func queueNotFound(name string) error {
	return fmt.Errorf("%w: Request queue with id: %s does not exist.", storageerr.ErrQueueNotFound, name)
}

func toQueueInfo(row queuedb.QueueRow) QueueInfo {
	return QueueInfo{
		ID:                  row.Name,
		Name:                row.Name,
		CreatedAt:           row.CreatedAt,
		ModifiedAt:          row.ModifiedAt,
		AccessedAt:          row.AccessedAt,
		TotalRequestCount:   row.TotalRequestCount,
		HandledRequestCount: row.HandledRequestCount,
		PendingRequestCount: row.PendingRequestCount(),
	}
}

// Get returns the queue's current info, bumping accessedAt.
func (c *Client) Get(ctx context.Context) (QueueInfo, error) {
	row, found, err := c.engine.GetQueue(ctx)
	if err != nil {
		return QueueInfo{}, fmt.Errorf("requestqueue: Get: %w", err)
	}
	if !found {
		return QueueInfo{}, queueNotFound(c.name)
	}
	if err := c.engine.TouchAccessed(ctx); err != nil {
		return QueueInfo{}, fmt.Errorf("requestqueue: Get: %w", err)
	}
	return toQueueInfo(row), nil
}

// Update renames the queue: disconnects the handle, renames the
// directory, reconnects, and updates the row. Fails with
// storageerr.ErrNameConflict if a queue named newName already exists.
func (c *Client) Update(ctx context.Context, newName string) (QueueInfo, error) {
	if newName == "" {
		return QueueInfo{}, fmt.Errorf("%w: name is required", storageerr.ErrInvalidArgument)
	}
	if newName == c.name {
		return c.Get(ctx)
	}

	oldDir := filepath.Join(c.baseDir, c.name)
	newDir := filepath.Join(c.baseDir, newName)

	if _, err := os.Stat(newDir); err == nil {
		return QueueInfo{}, fmt.Errorf("%w: Request queue name is not unique.", storageerr.ErrNameConflict)
	} else if !os.IsNotExist(err) {
		return QueueInfo{}, fmt.Errorf("requestqueue: Update: checking target directory: %w", err)
	}

	if err := c.cache.Close(dbPath(oldDir)); err != nil {
		return QueueInfo{}, fmt.Errorf("requestqueue: Update: disconnecting: %w", err)
	}

	if err := os.Rename(oldDir, newDir); err != nil {
		return QueueInfo{}, fmt.Errorf("requestqueue: Update: renaming directory: %w", err)
	}

	handle, err := c.cache.Open(ctx, dbPath(newDir), dbcache.OpenOptions{OnConnect: queuedb.OnConnect})
	if err != nil {
		return QueueInfo{}, fmt.Errorf("requestqueue: Update: reconnecting: %w", err)
	}

	c.handle = handle
	c.engine = queuedb.New(handle.Pool, c.clock)

	row, err := c.engine.RenameQueue(ctx, newName)
	if err != nil {
		return QueueInfo{}, fmt.Errorf("requestqueue: Update: %w", err)
	}

	c.logger.Info("request queue renamed", "old_name", c.name, "new_name", newName)
	c.name = newName

	return toQueueInfo(row), nil
}

// Delete disconnects the handle and removes the queue's directory.
func (c *Client) Delete(ctx context.Context) error {
	dir := filepath.Join(c.baseDir, c.name)
	if err := c.cache.Close(dbPath(dir)); err != nil {
		return fmt.Errorf("requestqueue: Delete: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("requestqueue: Delete: %w", err)
	}
	c.logger.Info("request queue deleted", "name", c.name)
	return nil
}

// Clear removes every request from the queue but leaves the queue
// itself (and its name) in place. Used by the storage root's Purge for
// the default queue, which spec.md §6 requires to be emptied rather
// than deleted.
func (c *Client) Clear(ctx context.Context) error {
	if err := c.engine.ClearRequests(ctx); err != nil {
		return fmt.Errorf("requestqueue: Clear: %w", err)
	}
	c.logger.Info("request queue cleared", "name", c.name)
	return nil
}

// ListHead returns the limit lowest-order, available, pending requests
// in ascending order. limit==0 genuinely returns no items (spec.md
// §8); a negative limit means "not specified" and defaults to 100.
func (c *Client) ListHead(ctx context.Context, limit int) (ListHeadResult, error) {
	if limit < 0 {
		limit = defaultListLimit
	}

	jsons, err := c.engine.ListHead(ctx, limit)
	if err != nil {
		return ListHeadResult{}, fmt.Errorf("requestqueue: ListHead: %w", err)
	}

	items, err := unmarshalRequests(jsons)
	if err != nil {
		return ListHeadResult{}, fmt.Errorf("requestqueue: ListHead: %w", err)
	}

	row, found, err := c.engine.GetQueue(ctx)
	if err != nil {
		return ListHeadResult{}, fmt.Errorf("requestqueue: ListHead: %w", err)
	}
	if !found {
		return ListHeadResult{}, queueNotFound(c.name)
	}

	return ListHeadResult{
		Items:              items,
		Limit:              limit,
		QueueModifiedAt:    row.ModifiedAt,
		HadMultipleClients: false,
	}, nil
}

func unmarshalRequests(jsons []string) ([]Request, error) {
	items := make([]Request, 0, len(jsons))
	for _, j := range jsons {
		r, err := unmarshalRequest(j)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, nil
}

// orderNoFor computes the order key for a fresh or updated request: a
// handled request (HandledAt set) gets nil; otherwise a signed
// millisecond timestamp, negative for forefront.
func (c *Client) orderNoFor(r Request, forefront bool) *int64 {
	if r.HandledAt != nil {
		return nil
	}
	t := c.clock.Now().UnixMilli()
	if forefront {
		t = -t
	}
	return &t
}

func (c *Client) toModel(r Request, id string, orderNo *int64) (queuedb.RequestModel, error) {
	r.ID = id
	r.Method = methodOrDefault(r.Method)
	jsonText, err := marshalRequest(r)
	if err != nil {
		return queuedb.RequestModel{}, err
	}
	return queuedb.RequestModel{
		ID:         id,
		OrderNo:    orderNo,
		URL:        r.URL,
		UniqueKey:  r.UniqueKey,
		Method:     r.Method,
		RetryCount: r.RetryCount,
		JSON:       jsonText,
	}, nil
}

func methodOrDefault(method string) string {
	if method == "" {
		return "GET"
	}
	return method
}

// AddRequest validates req, derives its id and order key, and inserts
// it. A caller-supplied id is rejected.
func (c *Client) AddRequest(ctx context.Context, req Request, opts AddRequestOptions) (AddRequestResult, error) {
	id, err := prepareNewRequest(req)
	if err != nil {
		return AddRequestResult{}, err
	}

	model, err := c.toModel(req, id, c.orderNoFor(req, opts.Forefront))
	if err != nil {
		return AddRequestResult{}, fmt.Errorf("requestqueue: AddRequest: %w", err)
	}

	result, err := c.engine.AddRequest(ctx, model)
	if err != nil {
		if errors.Is(err, queuedb.ErrQueueRowMissing) {
			return AddRequestResult{}, queueNotFound(c.name)
		}
		return AddRequestResult{}, fmt.Errorf("requestqueue: AddRequest: %w", err)
	}

	return AddRequestResult{
		RequestID:         result.RequestID,
		WasAlreadyPresent: result.WasAlreadyPresent,
		WasAlreadyHandled: result.WasAlreadyHandled,
	}, nil
}

// BatchAddRequests validates and adds every request in one
// transaction. Unprocessed is always empty — see BatchAddRequestsResult.
func (c *Client) BatchAddRequests(ctx context.Context, reqs []Request, opts AddRequestOptions) (BatchAddRequestsResult, error) {
	models := make([]queuedb.RequestModel, 0, len(reqs))
	for _, req := range reqs {
		id, err := prepareNewRequest(req)
		if err != nil {
			return BatchAddRequestsResult{}, err
		}
		model, err := c.toModel(req, id, c.orderNoFor(req, opts.Forefront))
		if err != nil {
			return BatchAddRequestsResult{}, fmt.Errorf("requestqueue: BatchAddRequests: %w", err)
		}
		models = append(models, model)
	}

	result, err := c.engine.BatchAddRequests(ctx, models)
	if err != nil {
		if errors.Is(err, queuedb.ErrQueueRowMissing) {
			return BatchAddRequestsResult{}, queueNotFound(c.name)
		}
		return BatchAddRequestsResult{}, fmt.Errorf("requestqueue: BatchAddRequests: %w", err)
	}

	processed := make([]ProcessedRequest, 0, len(result.Processed))
	for _, p := range result.Processed {
		processed = append(processed, ProcessedRequest{
			RequestID:         p.RequestID,
			UniqueKey:         p.UniqueKey,
			WasAlreadyPresent: p.WasAlreadyPresent,
			WasAlreadyHandled: p.WasAlreadyHandled,
		})
	}

	return BatchAddRequestsResult{Processed: processed, Unprocessed: []Request{}}, nil
}

// GetRequest returns the request with the given id, or found=false
// if it doesn't exist. Bumps accessedAt.
func (c *Client) GetRequest(ctx context.Context, id string) (req Request, found bool, err error) {
	jsonText, found, err := c.engine.GetRequestJSON(ctx, id)
	if err != nil {
		return Request{}, false, fmt.Errorf("requestqueue: GetRequest: %w", err)
	}
	if !found {
		return Request{}, false, nil
	}
	req, err = unmarshalRequest(jsonText)
	if err != nil {
		return Request{}, false, fmt.Errorf("requestqueue: GetRequest: %w", err)
	}
	return req, true, nil
}

// UpdateRequest validates req (id required, must match uniqueKey) and
// applies the §4.4 update transaction.
func (c *Client) UpdateRequest(ctx context.Context, req Request, opts AddRequestOptions) (AddRequestResult, error) {
	id, err := prepareExistingRequest(req)
	if err != nil {
		return AddRequestResult{}, err
	}

	model, err := c.toModel(req, id, c.orderNoFor(req, opts.Forefront))
	if err != nil {
		return AddRequestResult{}, fmt.Errorf("requestqueue: UpdateRequest: %w", err)
	}

	result, _, err := c.engine.UpdateRequest(ctx, model)
	if err != nil {
		if errors.Is(err, queuedb.ErrQueueRowMissing) {
			return AddRequestResult{}, queueNotFound(c.name)
		}
		return AddRequestResult{}, fmt.Errorf("requestqueue: UpdateRequest: %w", err)
	}

	return AddRequestResult{
		RequestID:         result.RequestID,
		WasAlreadyPresent: result.WasAlreadyPresent,
		WasAlreadyHandled: result.WasAlreadyHandled,
	}, nil
}

// ListAndLockHead atomically selects and locks up to limit head
// requests for lockSeconds. limit==0 genuinely locks nothing (spec.md
// §8); a negative limit means "not specified" and defaults to 100.
func (c *Client) ListAndLockHead(ctx context.Context, limit, lockSeconds int) (ListHeadResult, error) {
	if limit < 0 {
		limit = defaultListLimit
	}

	jsons, err := c.engine.ListAndLockHead(ctx, limit, lockSeconds)
	if err != nil {
		return ListHeadResult{}, fmt.Errorf("requestqueue: ListAndLockHead: %w", err)
	}

	items, err := unmarshalRequests(jsons)
	if err != nil {
		return ListHeadResult{}, fmt.Errorf("requestqueue: ListAndLockHead: %w", err)
	}

	row, found, err := c.engine.GetQueue(ctx)
	if err != nil {
		return ListHeadResult{}, fmt.Errorf("requestqueue: ListAndLockHead: %w", err)
	}
	if !found {
		return ListHeadResult{}, queueNotFound(c.name)
	}

	return ListHeadResult{
		Items:              items,
		Limit:              limit,
		QueueModifiedAt:    row.ModifiedAt,
		HadMultipleClients: false,
	}, nil
}

// ProlongRequestLock extends a held lock and returns its new unlock
// time (milliseconds since the Unix epoch). Fails with
// storageerr.ErrNotLockedOrMissing if id is absent or handled.
func (c *Client) ProlongRequestLock(ctx context.Context, id string, lockSeconds int, opts LockOptions) (unlockAtMillis int64, err error) {
	unlockAtMillis, err = c.engine.ProlongRequestLock(ctx, id, lockSeconds, opts.Forefront)
	if err != nil {
		return 0, fmt.Errorf("requestqueue: ProlongRequestLock: %w", err)
	}
	return unlockAtMillis, nil
}

// DeleteRequestLock releases a held lock before expiry. Fails with
// storageerr.ErrNotLockedOrMissing unless id is currently locked.
func (c *Client) DeleteRequestLock(ctx context.Context, id string, opts LockOptions) error {
	if err := c.engine.DeleteRequestLock(ctx, id, opts.Forefront); err != nil {
		return fmt.Errorf("requestqueue: DeleteRequestLock: %w", err)
	}
	return nil
}
