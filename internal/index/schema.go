// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

const (
	// SchemaVersion tracks the on-disk format. Indexes written with another
	// version are reported as unavailable and must be rebuilt.
	SchemaVersion = 1

	// FileName is the index file inside the index directory.
	FileName = "index.db"
)

// Schema stores passages with their embeddings. Rows are only ever appended
// by a single build, so id order is insertion order.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS passages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,       -- path relative to the documents root
    page INTEGER NOT NULL,      -- 1-based PDF page, 0 for plain text
    chunk INTEGER NOT NULL,     -- chunk ordinal within source/page
    content TEXT NOT NULL,
    embedding BLOB NOT NULL     -- little-endian float32 vector
);

CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
