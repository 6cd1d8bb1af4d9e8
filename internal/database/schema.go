package database

import (
	"context"
	"fmt"
)

// schema is written in the subset of SQL both Postgres and SQLite accept
var schema = []string{
	`CREATE TABLE IF NOT EXISTS site_time (
		site       TEXT      NOT NULL,
		day        TEXT      NOT NULL,
		ms         BIGINT    NOT NULL DEFAULT 0 CHECK (ms >= 0),
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (site, day)
	)`,
	`CREATE INDEX IF NOT EXISTS site_time_day_idx ON site_time (day)`,
	`CREATE TABLE IF NOT EXISTS blocked_sites (
		site       TEXT      PRIMARY KEY,
		position   BIGINT    NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS site_categories (
		site       TEXT      PRIMARY KEY,
		category   TEXT      NOT NULL CHECK (category IN ('productive', 'distracting')),
		position   BIGINT    NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		config_key TEXT      PRIMARY KEY,
		value      TEXT      NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
