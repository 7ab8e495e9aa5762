// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage is the top-level entry point for the local storage
// emulator: it owns the root directory, lazily creates the three
// family subdirectories (request_queues, key_value_stores, datasets)
// on first access, and routes callers to dataset, key-value store, and
// request queue clients scoped underneath it.
package storage
