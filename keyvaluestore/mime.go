// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package keyvaluestore

import (
	"mime"
	"strings"
)

// extensionByContentType covers the content-types a crawler actually
// stores day to day. It is consulted before falling back to the
// standard library's mime package, since mime.ExtensionsByType can
// return several plausible extensions (or, on a minimal container
// image with no /etc/mime.types, none at all) for the same type.
var extensionByContentType = map[string]string{
	"application/json":         ".json",
	"text/plain":               ".txt",
	"text/html":                ".html",
	"text/csv":                 ".csv",
	"text/xml":                 ".xml",
	"application/xml":          ".xml",
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"application/pdf":          ".pdf",
	"application/zip":          ".zip",
	"application/octet-stream": defaultExtension,
}

// extensionForContentType returns the filename extension, including
// the leading dot, used to persist a value stored with the given
// content-type. Unknown or empty content-types fall back to .bin, the
// same default the remote service uses.
func extensionForContentType(contentType string) string {
	base := contentType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ToLower(base))
	if base == "" {
		return defaultExtension
	}
	if ext, ok := extensionByContentType[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return defaultExtension
}
