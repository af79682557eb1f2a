package store

// Schema contains the complete DDL for the anchor store.
const Schema = `
-- Documents whose selections are persisted. source is a file path or URL.
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

-- Serialized selections. descriptor holds the validated wire JSON.
CREATE TABLE IF NOT EXISTS selections (
    id                TEXT PRIMARY KEY,
    document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    type              TEXT NOT NULL DEFAULT '',
    text              TEXT NOT NULL,
    descriptor        TEXT NOT NULL,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,
    last_layer        TEXT NOT NULL DEFAULT '',
    restore_failures  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_selections_document ON selections(document_id, created_at);
CREATE INDEX IF NOT EXISTS idx_selections_layer ON selections(last_layer);
`
