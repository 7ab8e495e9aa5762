// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/apify/apify-storage-local-js/dbcache"
	"github.com/apify/apify-storage-local-js/lib/clock"
)

const (
	envStorageDir      = "APIFY_LOCAL_STORAGE_DIR"
	envEnableWALMode   = "APIFY_LOCAL_STORAGE_ENABLE_WAL_MODE"
	defaultRootDir     = "./apify_storage"
	defaultQueueName   = "default"
	defaultDatasetName = "default"
	defaultKVName      = "default"
)

// Options configures a Root. Zero value is valid: every field has a
// default, and APIFY_LOCAL_STORAGE_DIR / APIFY_LOCAL_STORAGE_ENABLE_WAL_MODE
// are consulted once, inside NewRoot, rather than on every access.
type Options struct {
	// RootDir is the storage root directory. Defaults to
	// "./apify_storage". Overridden unconditionally by
	// APIFY_LOCAL_STORAGE_DIR when that variable is set.
	RootDir string

	// EnableWALMode selects SQLite's write-ahead log for request queue
	// databases. Defaults to true. Overridden by
	// APIFY_LOCAL_STORAGE_ENABLE_WAL_MODE when that variable is set.
	EnableWALMode *bool

	// DefaultDatasetName, DefaultKeyValueStoreName, and
	// DefaultQueueName name the containers Purge operates on. All
	// default to "default".
	DefaultDatasetName       string
	DefaultKeyValueStoreName string
	DefaultQueueName         string

	// Clock is used for dataset and key-value store timestamps, for
	// request queue order keys and lock expiry, and for the request
	// queue's creation time and read-side accessedAt bumps. The request
	// queue's trigger-maintained modifiedAt/accessedAt updates use
	// SQLite's own clock instead. Defaults to clock.Real().
	Clock clock.Clock

	// Cache is the database connection cache used by request queue
	// clients. Defaults to dbcache.Default().
	Cache *dbcache.Cache

	// Logger receives lifecycle and warning messages. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// LoadOptionsFile reads an Options-shaped YAML file. This is additive
// to the environment-variable override path: a caller may populate
// Options from a file and still have APIFY_LOCAL_STORAGE_DIR win, since
// resolveOptions applies the environment layer after either source.
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("storage: reading options file %s: %w", path, err)
	}

	var doc struct {
		RootDir                  string `yaml:"rootDir"`
		EnableWALMode            *bool  `yaml:"enableWalMode"`
		DefaultDatasetName       string `yaml:"defaultDatasetName"`
		DefaultKeyValueStoreName string `yaml:"defaultKeyValueStoreName"`
		DefaultQueueName         string `yaml:"defaultQueueName"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Options{}, fmt.Errorf("storage: parsing options file %s: %w", path, err)
	}

	return Options{
		RootDir:                  doc.RootDir,
		EnableWALMode:            doc.EnableWALMode,
		DefaultDatasetName:       doc.DefaultDatasetName,
		DefaultKeyValueStoreName: doc.DefaultKeyValueStoreName,
		DefaultQueueName:         doc.DefaultQueueName,
	}, nil
}

// resolvedOptions is Options after defaults and environment overrides
// have been applied exactly once.
type resolvedOptions struct {
	rootDir     string
	enableWAL   bool
	datasetName string
	kvName      string
	queueName   string
	clock       clock.Clock
	cache       *dbcache.Cache
	logger      *slog.Logger
}

func resolveOptions(opts Options) (resolvedOptions, error) {
	r := resolvedOptions{
		rootDir:     opts.RootDir,
		enableWAL:   true,
		datasetName: opts.DefaultDatasetName,
		kvName:      opts.DefaultKeyValueStoreName,
		queueName:   opts.DefaultQueueName,
		clock:       opts.Clock,
		cache:       opts.Cache,
		logger:      opts.Logger,
	}

	if opts.EnableWALMode != nil {
		r.enableWAL = *opts.EnableWALMode
	}

	if r.rootDir == "" {
		r.rootDir = defaultRootDir
	}
	if v := os.Getenv(envStorageDir); v != "" {
		r.rootDir = v
	}

	if v := os.Getenv(envEnableWALMode); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return resolvedOptions{}, fmt.Errorf("storage: %s=%q is not a valid boolean: %w", envEnableWALMode, v, err)
		}
		r.enableWAL = enabled
	}

	if r.datasetName == "" {
		r.datasetName = defaultDatasetName
	}
	if r.kvName == "" {
		r.kvName = defaultKVName
	}
	if r.queueName == "" {
		r.queueName = defaultQueueName
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.cache == nil {
		r.cache = dbcache.Default()
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return r, nil
}
