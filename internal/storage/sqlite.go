// Package storage persists the invocation history in SQLite.
package storage

import (
	"database/sql"
	"sync"

	"github.com/rs/zerolog"

	// SQLite driver, registered for side effects. modernc.org/sqlite is pure
	// Go, so the binary cross-compiles without CGO.
	_ "modernc.org/sqlite"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements InvocationStore on SQLite.
type SQLiteStore struct {
	db  *sql.DB      // Database connection handle.
	mu  sync.RWMutex // Serializes writers against readers.
	log zerolog.Logger
}

// NewSQLiteStore opens or creates the database at path and applies any
// pending migrations. Use MemoryPath for a throwaway store.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	log = log.With().Str("component", "storage").Logger()
	log.Info().Str("path", path).Msg("opening database")

	// busy_timeout covers a second devbridge process sharing the file.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "open database", err)
	}
	if path == MemoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "ping database", err)
	}

	store := &SQLiteStore{db: db, log: log}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "init schema", err)
	}

	log.Info().Int("schema_version", currentSchemaVersion).Msg("database ready")
	return store, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	s.log.Debug().Msg("closing database")
	return s.db.Close()
}
