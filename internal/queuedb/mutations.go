// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// AddRequest inserts model as a new row, or reports that it already
// exists if a row with the same derived id is already present. A
// foreign-key violation (the queue row is missing) surfaces as
// ErrQueueRowMissing.
func (e *Engine) AddRequest(ctx context.Context, model RequestModel) (result AddResult, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return AddResult{}, fmt.Errorf("queuedb: AddRequest: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return AddResult{}, fmt.Errorf("queuedb: AddRequest: begin: %w", err)
	}
	defer endTx(&err)

	result, err = addRequestLocked(conn, model)
	if err != nil {
		return AddResult{}, fmt.Errorf("queuedb: AddRequest: %w", err)
	}
	return result, nil
}

// addRequestLocked implements AddRequest's logic against a connection
// that already holds an open write transaction. BatchAddRequests calls
// this once per item inside one shared transaction.
func addRequestLocked(conn *sqlite.Conn, model RequestModel) (AddResult, error) {
	var deltaHandled int64
	if model.OrderNo == nil {
		deltaHandled = 1
	}

	insErr := insertRequestRow(conn, model)
	if insErr == nil {
		if adjErr := adjustCounts(conn, 1, deltaHandled); adjErr != nil {
			return AddResult{}, adjErr
		}
		return AddResult{RequestID: model.ID, WasAlreadyPresent: false, WasAlreadyHandled: false}, nil
	}

	if isForeignKeyConflict(insErr) {
		return AddResult{}, ErrQueueRowMissing
	}
	if !isPrimaryKeyConflict(insErr) {
		return AddResult{}, insErr
	}

	existingOrderNo, found, selErr := selectOrderNo(conn, model.ID)
	if selErr != nil {
		return AddResult{}, selErr
	}
	if !found {
		// Lost a race with a concurrent delete between the failed insert
		// and this select. Retry the insert once; a second failure is
		// reported as-is rather than looping forever.
		if retryErr := insertRequestRow(conn, model); retryErr != nil {
			return AddResult{}, retryErr
		}
		if adjErr := adjustCounts(conn, 1, deltaHandled); adjErr != nil {
			return AddResult{}, adjErr
		}
		return AddResult{RequestID: model.ID, WasAlreadyPresent: false, WasAlreadyHandled: false}, nil
	}

	return AddResult{
		RequestID:         model.ID,
		WasAlreadyPresent: true,
		WasAlreadyHandled: existingOrderNo == nil,
	}, nil
}

// BatchAddRequests adds every model in one transaction. The hosted
// service can split a batch across network calls and report a subset
// as unprocessed when capacity limits are hit; a local, unthrottled
// SQLite transaction never runs out of capacity, so Unprocessed is
// always empty here.
func (e *Engine) BatchAddRequests(ctx context.Context, models []RequestModel) (result BatchAddResult, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return BatchAddResult{}, fmt.Errorf("queuedb: BatchAddRequests: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return BatchAddResult{}, fmt.Errorf("queuedb: BatchAddRequests: begin: %w", err)
	}
	defer endTx(&err)

	processed := make([]ProcessedRequest, 0, len(models))
	for _, model := range models {
		var added AddResult
		added, err = addRequestLocked(conn, model)
		if err != nil {
			return BatchAddResult{}, fmt.Errorf("queuedb: BatchAddRequests: %w", err)
		}
		processed = append(processed, ProcessedRequest{
			RequestID:         added.RequestID,
			UniqueKey:         model.UniqueKey,
			WasAlreadyPresent: added.WasAlreadyPresent,
			WasAlreadyHandled: added.WasAlreadyHandled,
		})
	}

	return BatchAddResult{Processed: processed, Unprocessed: []UnprocessedRequest{}}, nil
}

// UpdateRequest overwrites the row matching model.ID, reporting the
// row's state before the update was applied. A foreign-key violation
// surfaces as ErrQueueRowMissing; a missing row is reported through
// found=false rather than as an error, since "update a request that
// doesn't exist yet" is a legitimate upsert path for callers that
// don't track whether they've already called AddRequest.
func (e *Engine) UpdateRequest(ctx context.Context, model RequestModel) (result AddResult, found bool, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return AddResult{}, false, fmt.Errorf("queuedb: UpdateRequest: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return AddResult{}, false, fmt.Errorf("queuedb: UpdateRequest: begin: %w", err)
	}
	defer endTx(&err)

	priorOrderNo, existed, selErr := selectOrderNo(conn, model.ID)
	if selErr != nil {
		err = fmt.Errorf("queuedb: UpdateRequest: %w", selErr)
		return AddResult{}, false, err
	}

	if !existed {
		added, addErr := addRequestLocked(conn, model)
		if addErr != nil {
			err = fmt.Errorf("queuedb: UpdateRequest: %w", addErr)
			return AddResult{}, false, err
		}
		return added, false, nil
	}

	wasHandledBefore := priorOrderNo == nil
	wasPendingBefore := !wasHandledBefore

	updErr := updateRequestRow(conn, model)
	if updErr != nil {
		if isForeignKeyConflict(updErr) {
			err = ErrQueueRowMissing
			return AddResult{}, false, err
		}
		err = fmt.Errorf("queuedb: UpdateRequest: %w", updErr)
		return AddResult{}, false, err
	}

	nowHandled := model.OrderNo == nil
	var deltaHandled int64
	switch {
	case wasPendingBefore && nowHandled:
		deltaHandled = 1
	case wasHandledBefore && !nowHandled:
		deltaHandled = -1
	}
	if deltaHandled != 0 {
		if adjErr := adjustCounts(conn, 0, deltaHandled); adjErr != nil {
			err = fmt.Errorf("queuedb: UpdateRequest: %w", adjErr)
			return AddResult{}, false, err
		}
	}

	return AddResult{
		RequestID:         model.ID,
		WasAlreadyPresent: true,
		WasAlreadyHandled: wasHandledBefore,
	}, true, nil
}

// DeleteRequestByID removes a request row outright, decrementing the
// queue's counters appropriately. Not exposed through the public
// requestqueue client — the hosted Apify API has no corresponding
// "delete a single request" operation, so this exists for internal use
// and to give tests a way to set up fixtures without going through the
// locking protocol. (DeleteRequestLock, despite its name, unlocks a
// request and does not call this.)
func (e *Engine) DeleteRequestByID(ctx context.Context, id string) (existed bool, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("queuedb: DeleteRequestByID: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return false, fmt.Errorf("queuedb: DeleteRequestByID: begin: %w", err)
	}
	defer endTx(&err)

	priorOrderNo, found, selErr := selectOrderNo(conn, id)
	if selErr != nil {
		err = fmt.Errorf("queuedb: DeleteRequestByID: %w", selErr)
		return false, err
	}
	if !found {
		return false, nil
	}

	if delErr := deleteRequestRow(conn, id); delErr != nil {
		err = fmt.Errorf("queuedb: DeleteRequestByID: %w", delErr)
		return false, err
	}

	var deltaHandled int64
	if priorOrderNo == nil {
		deltaHandled = -1
	}
	if adjErr := adjustCounts(conn, -1, deltaHandled); adjErr != nil {
		err = fmt.Errorf("queuedb: DeleteRequestByID: %w", adjErr)
		return false, err
	}

	return true, nil
}

// ClearRequests deletes every request row and resets both counters to
// zero, leaving the queue row itself (and its name) intact. Used by
// the storage root's Purge, which empties the default queue's contents
// rather than dropping the queue entirely.
func (e *Engine) ClearRequests(ctx context.Context) (err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("queuedb: ClearRequests: %w", err)
	}
	defer e.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("queuedb: ClearRequests: begin: %w", err)
	}
	defer endTx(&err)

	if delErr := sqlitex.Execute(conn, `DELETE FROM requests`, nil); delErr != nil {
		err = fmt.Errorf("queuedb: ClearRequests: %w", delErr)
		return err
	}
	if updErr := sqlitex.Execute(conn, `
		UPDATE queues SET total_request_count = 0, handled_request_count = 0 WHERE id = 1`,
		nil,
	); updErr != nil {
		err = fmt.Errorf("queuedb: ClearRequests: %w", updErr)
		return err
	}

	return nil
}
