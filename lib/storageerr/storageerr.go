// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package storageerr declares the error taxonomy shared by the
// dataset, key-value store, and request queue clients: sentinel errors
// that callers can test for with errors.Is, wrapped with context
// ("%w") at each layer boundary so the sentinel survives.
package storageerr

import "errors"

var (
	// ErrInvalidArgument marks a caller-supplied argument as invalid:
	// a missing required field, a caller-supplied id that doesn't
	// match its uniqueKey, or an out-of-range option value.
	ErrInvalidArgument = errors.New("storage: invalid argument")

	// ErrQueueNotFound marks an operation attempted against a request
	// queue whose database file (and therefore queue row) does not
	// exist.
	ErrQueueNotFound = errors.New("storage: request queue does not exist")

	// ErrNameConflict marks a rename whose target name is already in
	// use.
	ErrNameConflict = errors.New("storage: name is not unique")

	// ErrNotLockedOrMissing marks a ProlongRequestLock or
	// DeleteRequestLock call against a request that is absent,
	// handled, or not currently locked.
	ErrNotLockedOrMissing = errors.New("storage: request is not locked or does not exist")
)
