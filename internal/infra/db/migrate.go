package db

import "database/sql"

// MigrateUp creates the durable feed cache schema.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feed_cache (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	// Supports the periodic purge of expired rows.
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_feed_cache_expires_at ON feed_cache(expires_at)`); err != nil {
		return err
	}

	return nil
}

// MigrateDown drops the durable feed cache schema.
// Use with caution: this deletes all cached feed data.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_feed_cache_expires_at`,
		`DROP TABLE IF EXISTS feed_cache`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
