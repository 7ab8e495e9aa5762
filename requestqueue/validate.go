// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package requestqueue

import (
	"fmt"

	"github.com/apify/apify-storage-local-js/lib/idkey"
	"github.com/apify/apify-storage-local-js/lib/storageerr"
)

// prepareNewRequest validates a caller-supplied request for
// AddRequest/BatchAddRequests, where a caller-supplied id is rejected
// outright, and returns the derived id.
func prepareNewRequest(r Request) (id string, err error) {
	if r.ID != "" {
		return "", fmt.Errorf("%w: id must not be supplied when adding a request", storageerr.ErrInvalidArgument)
	}
	return validateURLAndUniqueKey(r)
}

// prepareExistingRequest validates a caller-supplied request for
// UpdateRequest, where the id is required and must match its
// uniqueKey.
func prepareExistingRequest(r Request) (id string, err error) {
	if r.ID == "" {
		return "", fmt.Errorf("%w: id is required when updating a request", storageerr.ErrInvalidArgument)
	}
	derived, err := validateURLAndUniqueKey(r)
	if err != nil {
		return "", err
	}
	if r.ID != derived {
		return "", fmt.Errorf("%w: Request ID does not match its uniqueKey.", storageerr.ErrInvalidArgument)
	}
	return derived, nil
}

func validateURLAndUniqueKey(r Request) (id string, err error) {
	if r.URL == "" {
		return "", fmt.Errorf("%w: url is required", storageerr.ErrInvalidArgument)
	}
	if r.UniqueKey == "" {
		return "", fmt.Errorf("%w: uniqueKey is required", storageerr.ErrInvalidArgument)
	}
	return idkey.Derive(r.UniqueKey), nil
}
