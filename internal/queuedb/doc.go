// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package queuedb is the per-queue persistence engine: the schema,
// triggers, and transactions that give a request queue its ordering,
// deduplication, and locking behavior.
//
// Package requestqueue owns validation, ID derivation, and the public
// API; queuedb owns everything that happens inside a transaction
// against one queue's SQLite file. Every exported Engine method is a
// single, atomic, synchronous unit of work — there is no suspension
// point inside a transaction, only at the Take/Put boundary around it.
//
// # Schema
//
// Each database file holds exactly one queue row (id is always 1) and
// zero or more request rows. A request's order_no column does triple
// duty: NULL means handled, a negative value means pending-at-the-
// front (forefront), a positive value means pending-at-the-back, and
// the magnitude encodes either an insertion-order timestamp or, once
// the request is locked, a lock-expiry timestamp — see the doc
// comments on lockedOrderNo and ListAndLockHead for the locking
// encoding. A partial index
// on (queue_id, order_no) WHERE order_no IS NOT NULL answers "what's
// next" queries without scanning handled rows.
//
// Three triggers (AFTER INSERT/UPDATE/DELETE on requests) keep the
// parent queue row's modified_at and accessed_at columns current;
// calling code never sets modified_at directly on a path that also
// touches the requests table — the triggers exist precisely so the
// schema itself enforces freshness. Read-side operations
// (ListAndLockHead, ListHead, GetRequestJSON, TouchAccessed) do set
// accessed_at directly, from the Engine's clock.
package queuedb
