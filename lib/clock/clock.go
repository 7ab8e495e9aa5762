// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the single time operation this codebase needs.
// Production code injects Real(); tests inject Fake() for deterministic
// control over lock expiry.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
