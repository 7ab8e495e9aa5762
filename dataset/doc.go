// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataset implements the append-only ordered item log
// storage family: one directory per dataset, one numbered JSON file
// per item, plus a metadata file tracking item count and timestamps
// so GetInfo doesn't need to re-scan the directory on every call.
package dataset
