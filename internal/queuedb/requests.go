// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// orderNoArg converts a nullable order_no into a bind argument.
func orderNoArg(orderNo *int64) any {
	if orderNo == nil {
		return nil
	}
	return *orderNo
}

func columnOrderNo(stmt *sqlite.Stmt, col int) *int64 {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	v := stmt.ColumnInt64(col)
	return &v
}

func insertRequestRow(conn *sqlite.Conn, model RequestModel) error {
	return sqlitex.Execute(conn, `
		INSERT INTO requests (queue_id, id, order_no, url, unique_key, method, retry_count, json)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				model.ID, orderNoArg(model.OrderNo), model.URL, model.UniqueKey,
				model.Method, model.RetryCount, model.JSON,
			},
		},
	)
}

func updateRequestRow(conn *sqlite.Conn, model RequestModel) error {
	return sqlitex.Execute(conn, `
		UPDATE requests
		SET order_no = ?, url = ?, unique_key = ?, method = ?, retry_count = ?, json = ?
		WHERE queue_id = 1 AND id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{
				orderNoArg(model.OrderNo), model.URL, model.UniqueKey,
				model.Method, model.RetryCount, model.JSON, model.ID,
			},
		},
	)
}

func deleteRequestRow(conn *sqlite.Conn, id string) error {
	return sqlitex.Execute(conn, `DELETE FROM requests WHERE queue_id = 1 AND id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}},
	)
}

func selectOrderNo(conn *sqlite.Conn, id string) (orderNo *int64, found bool, err error) {
	err = sqlitex.Execute(conn, `SELECT order_no FROM requests WHERE queue_id = 1 AND id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				orderNo = columnOrderNo(stmt, 0)
				return nil
			},
		},
	)
	if err != nil {
		return nil, false, err
	}
	return orderNo, found, nil
}

func selectJSON(conn *sqlite.Conn, id string) (json string, found bool, err error) {
	err = sqlitex.Execute(conn, `SELECT json FROM requests WHERE queue_id = 1 AND id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				json = stmt.ColumnText(0)
				return nil
			},
		},
	)
	if err != nil {
		return "", false, err
	}
	return json, found, nil
}

// selectAvailableHead returns the json payloads of the limit lowest
// order_no rows that are pending and not currently locked at time t
// (milliseconds): order_no is non-null and |order_no| <= t. This is
// the query both plain head listing and lock acquisition start from.
func selectAvailableHead(conn *sqlite.Conn, limit int, nowMillis int64) (ids []string, jsons []string, orderNos []int64, err error) {
	err = sqlitex.Execute(conn, `
		SELECT id, json, order_no FROM requests
		WHERE queue_id = 1 AND order_no IS NOT NULL AND order_no BETWEEN -? AND ?
		ORDER BY order_no ASC
		LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{nowMillis, nowMillis, limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, stmt.ColumnText(0))
				jsons = append(jsons, stmt.ColumnText(1))
				orderNos = append(orderNos, stmt.ColumnInt64(2))
				return nil
			},
		},
	)
	if err != nil {
		return nil, nil, nil, err
	}
	return ids, jsons, orderNos, nil
}

// GetRequestOrderNo returns the order_no of the request with the given
// id, or found=false if it doesn't exist.
func (e *Engine) GetRequestOrderNo(ctx context.Context, id string) (orderNo *int64, found bool, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("queuedb: GetRequestOrderNo: %w", err)
	}
	defer e.pool.Put(conn)

	orderNo, found, err = selectOrderNo(conn, id)
	if err != nil {
		return nil, false, fmt.Errorf("queuedb: GetRequestOrderNo: %w", err)
	}
	return orderNo, found, nil
}

// GetRequestJSON returns the stored json payload for the request with
// the given id, or found=false if it doesn't exist. Bumps accessed_at.
func (e *Engine) GetRequestJSON(ctx context.Context, id string) (json string, found bool, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return "", false, fmt.Errorf("queuedb: GetRequestJSON: %w", err)
	}
	defer e.pool.Put(conn)

	json, found, err = selectJSON(conn, id)
	if err != nil {
		return "", false, fmt.Errorf("queuedb: GetRequestJSON: %w", err)
	}
	if found {
		if touchErr := sqlitex.Execute(conn, `UPDATE queues SET accessed_at = ? WHERE id = 1`,
			&sqlitex.ExecOptions{Args: []any{formatTimestamp(e.clock.Now())}},
		); touchErr != nil {
			return "", false, fmt.Errorf("queuedb: GetRequestJSON: touch accessed_at: %w", touchErr)
		}
	}
	return json, found, nil
}

// ListHead returns the json payloads of the limit lowest-order_no
// pending, unlocked requests in ascending order. Bumps accessed_at.
func (e *Engine) ListHead(ctx context.Context, limit int) (jsons []string, err error) {
	conn, err := e.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("queuedb: ListHead: %w", err)
	}
	defer e.pool.Put(conn)

	if limit <= 0 {
		return []string{}, nil
	}

	_, jsons, _, err = selectAvailableHead(conn, limit, e.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("queuedb: ListHead: %w", err)
	}

	if touchErr := sqlitex.Execute(conn, `UPDATE queues SET accessed_at = ? WHERE id = 1`,
		&sqlitex.ExecOptions{Args: []any{formatTimestamp(e.clock.Now())}},
	); touchErr != nil {
		return nil, fmt.Errorf("queuedb: ListHead: touch accessed_at: %w", touchErr)
	}

	if jsons == nil {
		jsons = []string{}
	}
	return jsons, nil
}
