package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

var sqliteMigrations = []Migration{
	{Version: "1.0.0", Up: sqliteV1Up, Down: sqliteV1Down},
	{Version: "1.1.0", Up: v11Up, Down: v11Down},
}

var postgresMigrations = []Migration{
	{Version: "1.0.0", Up: postgresV1Up, Down: postgresV1Down},
	{Version: "1.1.0", Up: v11Up, Down: v11Down},
}

const sqliteV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS snippets (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    code TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    framework TEXT,
    complexity TEXT,
    is_public BOOLEAN NOT NULL DEFAULT 0,
    is_favorite BOOLEAN NOT NULL DEFAULT 0,
    usage_count INTEGER NOT NULL DEFAULT 0,
    last_used_at TIMESTAMP,
    embedding TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snippets_user ON snippets(user_id);
`

const sqliteV1Down = `
DROP TABLE IF EXISTS snippets;
DROP TABLE IF EXISTS schema_version;
`

const postgresV1Up = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snippets (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    code TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    framework TEXT,
    complexity TEXT,
    is_public BOOLEAN NOT NULL DEFAULT FALSE,
    is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
    usage_count INTEGER NOT NULL DEFAULT 0,
    last_used_at TIMESTAMPTZ,
    embedding TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snippets_user ON snippets(user_id);
`

const postgresV1Down = `
DROP TABLE IF EXISTS snippets;
DROP TABLE IF EXISTS schema_version;
`

// Ordered listing and candidate loading both walk (user_id, created_at).
const v11Up = `
CREATE INDEX IF NOT EXISTS idx_snippets_user_created ON snippets(user_id, created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_snippets_user_language ON snippets(user_id, language);
`

const v11Down = `
DROP INDEX IF EXISTS idx_snippets_user_language;
DROP INDEX IF EXISTS idx_snippets_user_created;
`

// currentVersion returns the highest applied schema version, or 0.0.0 on a
// fresh database.
func currentVersion(ctx context.Context, db *sql.DB, d dialect) (*semver.Version, error) {
	var tableName string
	err := db.QueryRowContext(ctx, d.rebind(d.tableExistsSQL), "schema_version").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return semver.MustParse("0.0.0"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", s, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// applyMigrations runs all pending migrations for the dialect
func applyMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	current, err := currentVersion(ctx, db, d)
	if err != nil {
		return err
	}

	for _, migration := range d.migrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, d.rebind("INSERT INTO schema_version (version) VALUES (?)"), migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		current = migrationVersion
	}

	return nil
}

// rollbackMigration rolls back the most recent migration
func rollbackMigration(ctx context.Context, db *sql.DB, d dialect) error {
	current, err := currentVersion(ctx, db, d)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return errors.New("no migrations to rollback")
	}

	var migration *Migration
	for i := range d.migrations {
		v, err := semver.NewVersion(d.migrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &d.migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	// The first migration drops schema_version itself.
	var tableName string
	err = db.QueryRowContext(ctx, d.rebind(d.tableExistsSQL), "schema_version").Scan(&tableName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if _, err := db.ExecContext(ctx, d.rebind("DELETE FROM schema_version WHERE version = ?"), migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}
