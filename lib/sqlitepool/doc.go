// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides a standard SQLite connection pool for
// this module's embedded storage backends.
//
// Every client that needs local structured storage — principally the
// request queue's persistence engine — uses this package. It wraps
// zombiezen.com/go/sqlite with production-ready defaults: WAL journal
// mode, NORMAL synchronous for process-crash durability without
// fsync-per-commit overhead, and busy timeout to handle write
// contention gracefully.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use — each goroutine must hold its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL (unless Config.DisableWAL): write-ahead logging
//     for concurrent readers and a single writer. Reads never block
//     writes; writes never block reads.
//   - synchronous=NORMAL: transactions survive process crashes. Not
//     durable across OS crashes or power failure — acceptable for a
//     local crawl cache whose source of truth is the crawl itself.
//   - busy_timeout=5000: wait up to 5 seconds for a write lock instead
//     of returning SQLITE_BUSY immediately.
//   - foreign_keys=ON when Config.ForeignKeys is set: the request
//     queue schema relies on ON DELETE CASCADE from requests to their
//     parent queue row.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - temp_store=MEMORY: temporary tables and indexes in memory.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:        "/var/crawl/request_queues/default/db.sqlite",
//	    PoolSize:    4,
//	    ForeignKeys: true,
//	    Logger:      logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        // Create tables, triggers, indexes.
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// # Design
//
// This package is intentionally thin: it applies standard pragmas and
// exposes the underlying zombiezen types directly. There is no attempt
// to abstract away SQLite's connection model or invent a query builder.
// Callers write SQL, use sqlitex.Execute for cached statements, and
// manage transactions with sqlitex.ImmediateTransaction.
package sqlitepool
