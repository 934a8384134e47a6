package database

// Schema contains all SQL statements for creating tables and indexes
const Schema = `
-- Sessions table: one authenticated Garmin Connect session per account.
-- Activity data is never stored here.
CREATE TABLE IF NOT EXISTS sessions (
    username TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,

    access_token TEXT NOT NULL,
    refresh_token TEXT NOT NULL DEFAULT '',
    expires_at INTEGER NOT NULL,  -- Unix timestamp

    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
`
