// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock time for testability.
//
// The request queue's locking protocol (see package requestqueue) is
// entirely wall-clock based: a lock is an order key pushed past the
// current time, and it expires the instant real time passes that value
// again. There is no background sweep and no timer, so the only
// primitive this package needs is Now — which makes it trivial to fake
// in tests: advance the fake clock and a previously-locked request
// becomes available again without sleeping for real seconds.
//
// Production code accepts a Clock parameter instead of calling
// time.Now directly. Real() provides the standard library behavior;
// Fake() provides a deterministic clock that only advances when told to.
package clock
