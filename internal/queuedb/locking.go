// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/apify/apify-storage-local-js/lib/storageerr"
)

// lockedOrderNo encodes a lock expiring at expiresAtMillis for a
// request currently at position magnitude in the queue: negative for
// a forefront request, positive for a tail request. The sign of the
// input orderNo carries the forefront/tail distinction; its magnitude
// is discarded and replaced by the expiry timestamp, since once a
// request is locked its position no longer matters — only whether
// "now" has passed the expiry does.
func lockedOrderNo(orderNo int64, expiresAtMillis int64) int64 {
	if orderNo < 0 {
		return -expiresAtMillis
	}
	return expiresAtMillis
}

// ListAndLockHead selects up to limit available (pending, unlocked)
// requests ordered by position, and locks each of them for
// lockSeconds by rewriting its order_no to encode an expiry timestamp
// instead of a position. A request already locked by a previous,
// unexpired call is invisible to selectAvailableHead and so is never
// re-locked by a concurrent caller.
func (e *Engine) ListAndLockHead(ctx context.Context, limit int, lockSeconds int) (jsons []string, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("queuedb: ListAndLockHead: %w", err)
	}
	defer e.pool.Put(conn)

	if limit <= 0 {
		return []string{}, nil
	}

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("queuedb: ListAndLockHead: begin: %w", err)
	}
	defer endTx(&err)

	now := e.nowMillis()
	expiresAt := now + int64(lockSeconds)*1000

	ids, rowJSONs, orderNos, selErr := selectAvailableHead(conn, limit, now)
	if selErr != nil {
		err = fmt.Errorf("queuedb: ListAndLockHead: %w", selErr)
		return nil, err
	}

	for i, id := range ids {
		newOrderNo := lockedOrderNo(orderNos[i], expiresAt)
		updErr := sqlitex.Execute(conn, `UPDATE requests SET order_no = ? WHERE queue_id = 1 AND id = ?`,
			&sqlitex.ExecOptions{Args: []any{newOrderNo, id}},
		)
		if updErr != nil {
			err = fmt.Errorf("queuedb: ListAndLockHead: lock %s: %w", id, updErr)
			return nil, err
		}
	}

	if touchErr := sqlitex.Execute(conn, `UPDATE queues SET accessed_at = ? WHERE id = 1`,
		&sqlitex.ExecOptions{Args: []any{formatTimestamp(e.clock.Now())}},
	); touchErr != nil {
		err = fmt.Errorf("queuedb: ListAndLockHead: touch accessed_at: %w", touchErr)
		return nil, err
	}

	if rowJSONs == nil {
		rowJSONs = []string{}
	}
	return rowJSONs, nil
}

// ProlongRequestLock extends the expiry of id's order_no by
// lockSeconds, measured from its current magnitude (not from now):
// unlock = |orderNo| + lockSeconds*1000. forefront sets the sign of
// the rewritten order_no, independent of the sign it had before.
// Fails with ErrNotLockedOrMissing if the request does not exist or
// is handled (order_no is null) — a currently-available (unlocked but
// pending) row is a valid target, since prolonging it is how a caller
// re-locks a row it still holds past the point its original lock
// lapsed.
func (e *Engine) ProlongRequestLock(ctx context.Context, id string, lockSeconds int, forefront bool) (expiresAtMillis int64, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("queuedb: ProlongRequestLock: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("queuedb: ProlongRequestLock: begin: %w", err)
	}
	defer endTx(&err)

	orderNo, found, selErr := selectOrderNo(conn, id)
	if selErr != nil {
		err = fmt.Errorf("queuedb: ProlongRequestLock: %w", selErr)
		return 0, err
	}
	if !found || orderNo == nil {
		err = storageerr.ErrNotLockedOrMissing
		return 0, err
	}

	magnitude := *orderNo
	if magnitude < 0 {
		magnitude = -magnitude
	}
	newExpiry := magnitude + int64(lockSeconds)*1000

	newOrderNo := newExpiry
	if forefront {
		newOrderNo = -newExpiry
	}

	updErr := sqlitex.Execute(conn, `UPDATE requests SET order_no = ? WHERE queue_id = 1 AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{newOrderNo, id}},
	)
	if updErr != nil {
		err = fmt.Errorf("queuedb: ProlongRequestLock: %w", updErr)
		return 0, err
	}

	return newExpiry, nil
}

// DeleteRequestLock releases a lock on id, restoring it to immediate
// availability with the sign forefront specifies. Fails with
// ErrNotLockedOrMissing unless the row exists and is currently locked
// (order_no non-null with magnitude greater than now).
func (e *Engine) DeleteRequestLock(ctx context.Context, id string, forefront bool) (err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("queuedb: DeleteRequestLock: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("queuedb: DeleteRequestLock: begin: %w", err)
	}
	defer endTx(&err)

	now := e.nowMillis()

	orderNo, found, selErr := selectOrderNo(conn, id)
	if selErr != nil {
		err = fmt.Errorf("queuedb: DeleteRequestLock: %w", selErr)
		return err
	}
	if !found {
		err = storageerr.ErrNotLockedOrMissing
		return err
	}

	if _, locked := lockExpiry(orderNo, now); !locked {
		err = storageerr.ErrNotLockedOrMissing
		return err
	}

	newOrderNo := now
	if forefront {
		newOrderNo = -now
	}

	updErr := sqlitex.Execute(conn, `UPDATE requests SET order_no = ? WHERE queue_id = 1 AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{newOrderNo, id}},
	)
	if updErr != nil {
		err = fmt.Errorf("queuedb: DeleteRequestLock: %w", updErr)
		return err
	}

	return nil
}

// lockExpiry reports whether orderNo represents an active (unexpired)
// lock at time now, and if so its expiry timestamp in milliseconds. A
// null order_no (handled) or a magnitude at or before now (pending,
// available, or expired) is not a lock.
func lockExpiry(orderNo *int64, now int64) (expiresAtMillis int64, locked bool) {
	if orderNo == nil {
		return 0, false
	}
	magnitude := *orderNo
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude <= now {
		return 0, false
	}
	return magnitude, true
}
