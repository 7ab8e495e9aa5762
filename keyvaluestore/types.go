// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package keyvaluestore

import "time"

const metadataFileName = "__metadata__.json"

// InputRecordKey is the reserved record holding a crawler run's
// initial input. Purge never removes it from the default store.
const InputRecordKey = "INPUT"

// defaultExtension is used when a content-type has no entry in
// extensionByContentType and no extension known to the standard
// library's mime package either.
const defaultExtension = ".bin"

// Info describes a key-value store's current state, as returned by
// GetInfo.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	AccessedAt time.Time `json:"accessedAt"`
}

// metadataFile is the on-disk JSON shape of __metadata__.json.
type metadataFile struct {
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	AccessedAt time.Time `json:"accessedAt"`
}

// keyRecord tracks, per key, the content-type the value was stored
// with, since the on-disk filename extension alone is not always
// enough to recover it exactly (e.g. "application/octet-stream" and
// an unrecognized type both fall back to .bin).
type keyRecord struct {
	ContentType string `json:"contentType"`
	Extension   string `json:"extension"`
}

// recordsFile is the on-disk JSON shape of __records__.json, the
// key -> content-type index living alongside the value files.
type recordsFile struct {
	Records map[string]keyRecord `json:"records"`
}

const recordsFileName = "__records__.json"

// Value is a single key's content, as returned by GetValue.
type Value struct {
	Key         string
	Body        []byte
	ContentType string
}

// ListKeysOptions configures ListKeys.
type ListKeysOptions struct {
	// ExclusiveStartKey resumes listing after this key, in sorted
	// order. Empty means start from the beginning.
	ExclusiveStartKey string
	// Limit caps the number of keys returned. Zero or negative means
	// no limit.
	Limit int
}

// KeyInfo describes one key in a ListKeys page.
type KeyInfo struct {
	Key  string `json:"key"`
	Size int    `json:"size"`
}

// ListKeysResult is returned by ListKeys.
type ListKeysResult struct {
	Keys                  []KeyInfo `json:"items"`
	Count                 int       `json:"count"`
	Limit                 int       `json:"limit"`
	IsTruncated           bool      `json:"isTruncated"`
	NextExclusiveStartKey string    `json:"nextExclusiveStartKey,omitempty"`
}
