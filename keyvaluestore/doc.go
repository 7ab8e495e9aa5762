// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package keyvaluestore implements the blob storage family: one
// directory per store, one file per key, named by the key plus an
// extension inferred from the value's content-type.
package keyvaluestore
