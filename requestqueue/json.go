// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package requestqueue

import (
	"encoding/json"
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// wireRequest mirrors Request but encodes HandledAt with millisecond
// precision instead of Go's default nanosecond RFC 3339, matching the
// timestamp format the rest of this storage emulator produces.
type wireRequest struct {
	ID         string  `json:"id"`
	URL        string  `json:"url"`
	UniqueKey  string  `json:"uniqueKey"`
	Method     string  `json:"method,omitempty"`
	RetryCount int     `json:"retryCount,omitempty"`
	HandledAt  *string `json:"handledAt,omitempty"`
	UserData   any     `json:"userData,omitempty"`
}

func marshalRequest(r Request) (string, error) {
	w := wireRequest{
		ID:         r.ID,
		URL:        r.URL,
		UniqueKey:  r.UniqueKey,
		Method:     r.Method,
		RetryCount: r.RetryCount,
		UserData:   r.UserData,
	}
	if r.HandledAt != nil {
		s := r.HandledAt.UTC().Format(timestampLayout)
		w.HandledAt = &s
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("requestqueue: marshaling request %s: %w", r.UniqueKey, err)
	}
	return string(data), nil
}

func unmarshalRequest(jsonText string) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal([]byte(jsonText), &w); err != nil {
		return Request{}, fmt.Errorf("requestqueue: unmarshaling request: %w", err)
	}
	r := Request{
		ID:         w.ID,
		URL:        w.URL,
		UniqueKey:  w.UniqueKey,
		Method:     w.Method,
		RetryCount: w.RetryCount,
		UserData:   w.UserData,
	}
	if w.HandledAt != nil {
		t, err := time.Parse(timestampLayout, *w.HandledAt)
		if err != nil {
			return Request{}, fmt.Errorf("requestqueue: parsing handledAt: %w", err)
		}
		r.HandledAt = &t
	}
	return r, nil
}
