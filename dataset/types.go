// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import "time"

const metadataFileName = "__metadata__.json"

// itemFilenameDigits is the zero-padded width of the 1-based item file
// name: 000000001.json, 000000002.json, and so on.
const itemFilenameDigits = 9

// Info describes a dataset's current state, as returned by GetInfo.
type Info struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ItemCount  int       `json:"itemCount"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	AccessedAt time.Time `json:"accessedAt"`
}

// metadataFile is the on-disk JSON shape of __metadata__.json.
type metadataFile struct {
	ItemCount  int       `json:"itemCount"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	AccessedAt time.Time `json:"accessedAt"`
}

// ListItemsOptions configures ListItems.
type ListItemsOptions struct {
	// Offset skips this many items from the start.
	Offset int
	// Limit caps the number of items returned. Zero or negative means
	// no limit.
	Limit int
}

// ListItemsResult is returned by ListItems.
type ListItemsResult struct {
	Items  []map[string]any `json:"items"`
	Total  int              `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
	Count  int              `json:"count"`
}
