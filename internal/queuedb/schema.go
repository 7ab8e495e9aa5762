// Copyright 2026 The apify-storage-local Authors
// SPDX-License-Identifier: Apache-2.0

package queuedb

import (
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS queues (
	id                     INTEGER PRIMARY KEY CHECK (id = 1),
	name                   TEXT NOT NULL UNIQUE,
	created_at             TEXT NOT NULL,
	modified_at            TEXT NOT NULL,
	accessed_at            TEXT NOT NULL,
	total_request_count    INTEGER NOT NULL DEFAULT 0,
	handled_request_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS requests (
	queue_id    INTEGER NOT NULL REFERENCES queues ( id ) ON DELETE CASCADE,
	id          TEXT NOT NULL,
	order_no    INTEGER,
	url         TEXT NOT NULL,
	unique_key  TEXT NOT NULL,
	method      TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	json        TEXT NOT NULL,
	PRIMARY KEY ( queue_id, id, unique_key )
);

CREATE INDEX IF NOT EXISTS requests_head_idx
	ON requests ( queue_id, order_no )
	WHERE order_no IS NOT NULL;

CREATE TRIGGER IF NOT EXISTS requests_after_insert AFTER INSERT ON requests BEGIN
	UPDATE queues
	SET modified_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'),
	    accessed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	WHERE id = NEW.queue_id;
END;

CREATE TRIGGER IF NOT EXISTS requests_after_update AFTER UPDATE ON requests BEGIN
	UPDATE queues
	SET modified_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'),
	    accessed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	WHERE id = NEW.queue_id;
END;

CREATE TRIGGER IF NOT EXISTS requests_after_delete AFTER DELETE ON requests BEGIN
	UPDATE queues
	SET modified_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'),
	    accessed_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
	WHERE id = OLD.queue_id;
END;
`

// OnConnect creates the schema idempotently. Pass it as
// dbcache.OpenOptions.OnConnect when opening a queue's database file.
func OnConnect(conn *sqlite.Conn) error {
	return sqlitex.ExecuteScript(conn, schemaSQL, nil)
}
