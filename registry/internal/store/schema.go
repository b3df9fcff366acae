package store

// Schema contains the complete DDL for the registry tables.
const Schema = `
-- Page maps: one row per normalized URL, elements stored as JSON.
-- Maps are immutable once created; usage_count is the only mutable column
-- besides the staleness-tracking fields reserved for future validation.
CREATE TABLE IF NOT EXISTS maps (
    id                TEXT PRIMARY KEY,
    domain            TEXT NOT NULL,
    url               TEXT NOT NULL UNIQUE,
    page_type         TEXT NOT NULL DEFAULT '',
    elements          TEXT NOT NULL,
    usage_count       INTEGER NOT NULL DEFAULT 0,
    validation_status TEXT NOT NULL DEFAULT 'unvalidated',
    last_validated    INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_maps_domain ON maps(domain);
CREATE INDEX IF NOT EXISTS idx_maps_usage ON maps(usage_count DESC);

-- Analytics counters: monotonically incremented, upsert by metric name.
CREATE TABLE IF NOT EXISTS analytics (
    metric     TEXT PRIMARY KEY,
    value      INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
`
