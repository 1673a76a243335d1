package storage

import (
	"fmt"
	"time"
)

// currentSchemaVersion is the current database schema version.
// Increment this when making schema changes and add migration logic.
const currentSchemaVersion = 2

// initSchema brings the database up to currentSchemaVersion.
func (s *SQLiteStore) initSchema() error {
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	return nil
}

// migrateToV1 creates the invocations table.
func (s *SQLiteStore) migrateToV1() error {
	s.log.Info().Msg("applying migration to schema version 1")

	// Timestamps are RFC3339 strings so the file stays readable with the sqlite3 CLI.
	const invocationsTable = `
		CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			prompt TEXT NOT NULL,
			focus_path TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			exit_code INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			timed_out INTEGER NOT NULL DEFAULT 0,
			stdout_bytes INTEGER NOT NULL DEFAULT 0,
			stderr_bytes INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
	`
	if _, err := s.db.Exec(invocationsTable); err != nil {
		return fmt.Errorf("create invocations table: %w", err)
	}
	return s.recordVersion(1)
}

// migrateToV2 adds the classified error code of each invocation.
func (s *SQLiteStore) migrateToV2() error {
	s.log.Info().Msg("applying migration to schema version 2")

	if _, err := s.db.Exec(`ALTER TABLE invocations ADD COLUMN error_code TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("add error_code column: %w", err)
	}
	return s.recordVersion(2)
}

func (s *SQLiteStore) recordVersion(v int) error {
	_, err := s.db.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		v, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record schema version %d: %w", v, err)
	}
	return nil
}
