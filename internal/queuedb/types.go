// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import "time"

const timestampLayout = "2006-01-02T15:04:05.000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// QueueRow is the single queue row stored in a queue's database file.
type QueueRow struct {
	Name                string
	CreatedAt           time.Time
	ModifiedAt          time.Time
	AccessedAt          time.Time
	TotalRequestCount   int64
	HandledRequestCount int64
}

// PendingRequestCount is the derived count of still-actionable
// requests: total minus handled.
func (q QueueRow) PendingRequestCount() int64 {
	return q.TotalRequestCount - q.HandledRequestCount
}

// RequestModel is the fully-computed request row the requestqueue
// client hands to the persistence engine: the caller's request fields
// plus the derived id and order_no.
type RequestModel struct {
	ID         string
	OrderNo    *int64 // nil means handled
	URL        string
	UniqueKey  string
	Method     string
	RetryCount int
	JSON       string
}

// AddResult is returned by AddRequest and UpdateRequest. Both report
// the pre-existing state of the row, which is why a fresh insert
// always has WasAlreadyHandled=false (it was never handled before it
// existed) while a duplicate add or an update reflects whatever the
// row's state was before the call.
type AddResult struct {
	RequestID         string
	WasAlreadyPresent bool
	WasAlreadyHandled bool
}

// ProcessedRequest is one entry of a BatchAddRequests result.
type ProcessedRequest struct {
	RequestID         string
	UniqueKey         string
	WasAlreadyPresent bool
	WasAlreadyHandled bool
}

// UnprocessedRequest is one entry of the unprocessed side of a
// BatchAddRequests result. This local engine never populates it — see
// the doc comment on Engine.BatchAddRequests — but the type exists so the
// field has somewhere to live for API parity with the hosted service.
type UnprocessedRequest struct {
	UniqueKey string
	URL       string
	Method    string
}

// BatchAddResult is returned by BatchAddRequests.
type BatchAddResult struct {
	Processed   []ProcessedRequest
	Unprocessed []UnprocessedRequest
}
