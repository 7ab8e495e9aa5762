// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import "zombiezen.com/go/sqlite"

// isPrimaryKeyConflict reports whether err is a SQLite constraint
// violation on the requests table's primary key — the signal that a
// request with this (queue_id, id, unique_key) already exists.
func isPrimaryKeyConflict(err error) bool {
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultConstraintPrimaryKey || code == sqlite.ResultConstraintUnique
}

// isForeignKeyConflict reports whether err is a SQLite foreign-key
// constraint violation — the signal that the queue row a request would
// belong to does not exist.
func isForeignKeyConflict(err error) bool {
	return sqlite.ErrCode(err) == sqlite.ResultConstraintForeignKey
}
