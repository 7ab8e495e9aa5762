// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package dbcache is the process-wide cache of open SQLite handles
// keyed by database file path.
//
// Every request queue is its own SQLite file, and every file has
// exactly one writer. Opening the same file twice from the same
// process would either double the connection count for no benefit or,
// with pool size 1, deadlock the second opener against the first. The
// cache makes "one handle per file, shared by every caller in this
// process" an invariant instead of a convention: Open returns the
// existing handle if the path has already been opened, and only
// touches the filesystem on the first call for a given path.
//
// A single process-wide instance is available via Default, which
// creates it on first call; CloseAll closes every handle it holds.
// There is no separate Initialize function: the first Default call is
// the initialization. Tests that want isolation from other tests
// construct their own Cache with New instead of using Default.
package dbcache
