// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package idkey derives request queue request IDs from their
// deduplication key.
//
// The derivation is mandated by the wire contract this storage emulator
// is compatible with: the first 15 characters of the standard base64
// encoding of SHA-256(uniqueKey), with '+', '/', and '=' stripped before
// truncation so the result is URL-safe. This is a correctness requirement, not a style choice —
// any other hash produces IDs that don't match what a caller talking to
// the remote service would see for the same uniqueKey.
package idkey

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Length is the fixed length of a derived request ID.
const Length = 15

// Derive computes the 15-character request ID for a uniqueKey.
func Derive(uniqueKey string) string {
	sum := sha256.Sum256([]byte(uniqueKey))
	encoded := base64.StdEncoding.EncodeToString(sum[:])
	encoded = strings.NewReplacer("+", "", "/", "", "=", "").Replace(encoded)
	if len(encoded) > Length {
		encoded = encoded[:Length]
	}
	return encoded
}

// Matches reports whether id is the ID derived from uniqueKey.
func Matches(id, uniqueKey string) bool {
	return id == Derive(uniqueKey)
}
