// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package requestqueue implements the public client for one request
// queue: validation, request-id and order-key derivation, and JSON
// marshaling sit here; the transactional mechanics live one layer
// down in internal/queuedb.
package requestqueue
