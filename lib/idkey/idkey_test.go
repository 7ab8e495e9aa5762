// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package idkey_test

import (
	"testing"

	"github.com/apify/apify-storage-local-js/lib/idkey"
)

func TestDeriveLength(t *testing.T) {
	id := idkey.Derive("https://example.com/1")
	if len(id) != idkey.Length {
		t.Fatalf("len(Derive(...)) = %d, want %d", len(id), idkey.Length)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	a := idkey.Derive("https://example.com/1")
	b := idkey.Derive("https://example.com/1")
	if a != b {
		t.Fatalf("Derive is not deterministic: %q != %q", a, b)
	}
}

func TestDeriveDistinctKeys(t *testing.T) {
	a := idkey.Derive("https://example.com/1")
	b := idkey.Derive("https://example.com/2")
	if a == b {
		t.Fatalf("Derive produced the same ID for distinct keys: %q", a)
	}
}

func TestMatches(t *testing.T) {
	const key = "https://example.com/1"
	id := idkey.Derive(key)

	if !idkey.Matches(id, key) {
		t.Fatalf("Matches(%q, %q) = false, want true", id, key)
	}
	if idkey.Matches(id, "https://example.com/other") {
		t.Fatalf("Matches matched the wrong uniqueKey")
	}
}

func TestDeriveNoUnsafeBase64Chars(t *testing.T) {
	for _, key := range []string{"a", "b", "https://x.test/?q=1&r=2", ""} {
		id := idkey.Derive(key)
		for _, r := range id {
			if r == '+' || r == '/' || r == '=' {
				t.Fatalf("Derive(%q) = %q contains unsafe char %q", key, id, r)
			}
		}
	}
}
