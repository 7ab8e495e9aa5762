// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import (
	"context"
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/apify/apify-storage-local-js/lib/clock"
	"github.com/apify/apify-storage-local-js/lib/sqlitepool"
)

// ErrQueueRowMissing is returned when a request-table operation hits a
// foreign-key violation because the queue row (id = 1) does not exist
// yet in an otherwise-open database file. The requestqueue client
// translates this into a queue-not-found error carrying the queue's
// name.
var ErrQueueRowMissing = errors.New("queuedb: queue row does not exist")

// Engine owns one open database handle for one queue and implements
// every state-changing operation as an atomic transaction against it.
type Engine struct {
	pool  *sqlitepool.Pool
	clock clock.Clock
}

// New wraps an already-open, schema-initialized pool in an Engine.
// clk computes and compares order keys (insertion order, forefront
// placement, and lock expiry), which is what lets tests fake lock
// expiry without sleeping. It also supplies the queue row's initial
// timestamps and the accessed_at bumps made by read operations; the
// trigger-driven modified_at/accessed_at updates use SQLite's own clock.
func New(pool *sqlitepool.Pool, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real()
	}
	return &Engine{pool: pool, clock: clk}
}

func (e *Engine) nowMillis() int64 {
	return e.clock.Now().UnixMilli()
}

// GetOrCreateQueue returns the queue row, inserting it with the given
// name if the database file has no queue row yet. The queue row's id
// is always 1 — there is exactly one queue per database file.
func (e *Engine) GetOrCreateQueue(ctx context.Context, name string) (row QueueRow, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return QueueRow{}, fmt.Errorf("queuedb: GetOrCreateQueue: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return QueueRow{}, fmt.Errorf("queuedb: GetOrCreateQueue: begin: %w", err)
	}
	defer endTx(&err)

	existing, found, selErr := selectQueueRow(conn)
	if selErr != nil {
		err = fmt.Errorf("queuedb: GetOrCreateQueue: %w", selErr)
		return QueueRow{}, err
	}
	if found {
		return existing, nil
	}

	now := formatTimestamp(e.clock.Now())
	insErr := sqlitex.Execute(conn, `
		INSERT INTO queues (id, name, created_at, modified_at, accessed_at,
		                     total_request_count, handled_request_count)
		VALUES (1, ?, ?, ?, ?, 0, 0)`,
		&sqlitex.ExecOptions{Args: []any{name, now, now, now}},
	)
	if insErr != nil {
		err = fmt.Errorf("queuedb: GetOrCreateQueue: insert: %w", insErr)
		return QueueRow{}, err
	}

	created, _, selErr := selectQueueRow(conn)
	if selErr != nil {
		err = fmt.Errorf("queuedb: GetOrCreateQueue: reselect: %w", selErr)
		return QueueRow{}, err
	}
	return created, nil
}

// GetQueue returns the queue row if the database file has one.
func (e *Engine) GetQueue(ctx context.Context) (row QueueRow, found bool, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return QueueRow{}, false, fmt.Errorf("queuedb: GetQueue: %w", err)
	}
	defer e.pool.Put(conn)

	row, found, err = selectQueueRow(conn)
	if err != nil {
		return QueueRow{}, false, fmt.Errorf("queuedb: GetQueue: %w", err)
	}
	return row, found, nil
}

// RenameQueue updates the queue row's name column. The caller
// (requestqueue.Client.Update) is responsible for the filesystem
// rename and for disconnecting/reconnecting the handle around it —
// this only updates the row once the new path is already open.
func (e *Engine) RenameQueue(ctx context.Context, newName string) (row QueueRow, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return QueueRow{}, fmt.Errorf("queuedb: RenameQueue: %w", err)
	}
	defer e.pool.Put(conn)

	updateErr := sqlitex.Execute(conn, `UPDATE queues SET name = ? WHERE id = 1`,
		&sqlitex.ExecOptions{Args: []any{newName}},
	)
	if updateErr != nil {
		return QueueRow{}, fmt.Errorf("queuedb: RenameQueue: %w", updateErr)
	}

	row, _, selErr := selectQueueRow(conn)
	if selErr != nil {
		return QueueRow{}, fmt.Errorf("queuedb: RenameQueue: reselect: %w", selErr)
	}
	return row, nil
}

// TouchAccessed bumps the queue row's accessed_at column to now. Used
// by the client's Get, which doesn't otherwise touch the requests
// table and so wouldn't fire the bookkeeping triggers. (ListHead and
// GetRequestJSON bump accessed_at themselves on their own connection.)
func (e *Engine) TouchAccessed(ctx context.Context) error {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("queuedb: TouchAccessed: %w", err)
	}
	defer e.pool.Put(conn)

	now := formatTimestamp(e.clock.Now())
	err = sqlitex.Execute(conn, `UPDATE queues SET accessed_at = ? WHERE id = 1`,
		&sqlitex.ExecOptions{Args: []any{now}},
	)
	if err != nil {
		return fmt.Errorf("queuedb: TouchAccessed: %w", err)
	}
	return nil
}

func selectQueueRow(conn *sqlite.Conn) (row QueueRow, found bool, err error) {
	err = sqlitex.Execute(conn, `
		SELECT name, created_at, modified_at, accessed_at,
		       total_request_count, handled_request_count
		FROM queues WHERE id = 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				row.Name = stmt.ColumnText(0)
				row.TotalRequestCount = stmt.ColumnInt64(4)
				row.HandledRequestCount = stmt.ColumnInt64(5)

				var parseErr error
				if row.CreatedAt, parseErr = parseTimestamp(stmt.ColumnText(1)); parseErr != nil {
					return parseErr
				}
				if row.ModifiedAt, parseErr = parseTimestamp(stmt.ColumnText(2)); parseErr != nil {
					return parseErr
				}
				if row.AccessedAt, parseErr = parseTimestamp(stmt.ColumnText(3)); parseErr != nil {
					return parseErr
				}
				return nil
			},
		},
	)
	if err != nil {
		return QueueRow{}, false, err
	}
	return row, found, nil
}

func adjustCounts(conn *sqlite.Conn, deltaTotal, deltaHandled int64) error {
	return sqlitex.Execute(conn, `
		UPDATE queues
		SET total_request_count = total_request_count + ?,
		    handled_request_count = handled_request_count + ?
		WHERE id = 1`,
		&sqlitex.ExecOptions{Args: []any{deltaTotal, deltaHandled}},
	)
}
