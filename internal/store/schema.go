package store

// Schema contains the complete DDL for the locator cache.
const Schema = `
-- Locator cache: one row per healed expression, oldest first per key (seq)
CREATE TABLE IF NOT EXISTS locator_entries (
    id              TEXT PRIMARY KEY,
    logical_key     TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    expression      TEXT NOT NULL,
    replaced        TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    superseded_by   TEXT NOT NULL DEFAULT '',
    UNIQUE (logical_key, seq)
);
-- At most one current (unsuperseded) entry per key
CREATE UNIQUE INDEX IF NOT EXISTS idx_locator_current
    ON locator_entries(logical_key) WHERE superseded_by = '';
CREATE INDEX IF NOT EXISTS idx_locator_created ON locator_entries(created_at DESC);
`
