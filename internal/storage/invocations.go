package storage

// invocations.go contains SQLiteStore methods for the invocation history.

import (
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

// timeLayout has fixed-width fractions so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultListLimit is used when a caller asks for a non-positive number of rows.
const DefaultListLimit = 20

// Invocation is one finished agent run.
type Invocation struct {
	ID          string        `json:"id"`
	Prompt      string        `json:"prompt"`
	FocusPath   string        `json:"focusPath,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"-"`
	DurationMS  int64         `json:"durationMs"`
	ExitCode    int           `json:"exitCode"`
	Succeeded   bool          `json:"succeeded"`
	TimedOut    bool          `json:"timedOut"`
	StdoutBytes int           `json:"stdoutBytes"`
	StderrBytes int           `json:"stderrBytes"`

	// ErrorCode is the classified failure code, empty on success.
	ErrorCode string `json:"errorCode,omitempty"`
}

// InvocationStore records and lists invocations.
type InvocationStore interface {
	SaveInvocation(inv *Invocation) error
	ListInvocations(limit int) ([]*Invocation, error)
	GetInvocation(id string) (*Invocation, error)
}

// ErrInvocationNotFound is returned when an invocation lookup fails.
var ErrInvocationNotFound = errors.New("invocation not found")

var _ InvocationStore = (*SQLiteStore)(nil)

// SaveInvocation inserts inv, replacing any row with the same ID.
func (s *SQLiteStore) SaveInvocation(inv *Invocation) error {
	if inv == nil {
		return apperrors.New(apperrors.CodeStorageSaveFailed, "invocation cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	const query = `
		INSERT OR REPLACE INTO invocations
			(id, prompt, focus_path, started_at, duration_ms, exit_code, succeeded, timed_out,
			 stdout_bytes, stderr_bytes, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		inv.ID,
		inv.Prompt,
		inv.FocusPath,
		inv.StartedAt.UTC().Format(timeLayout),
		inv.Duration.Milliseconds(),
		inv.ExitCode,
		inv.Succeeded,
		inv.TimedOut,
		inv.StdoutBytes,
		inv.StderrBytes,
		inv.ErrorCode,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageSaveFailed, "save invocation", err)
	}

	s.log.Debug().Str("invocation_id", inv.ID).Int("exit_code", inv.ExitCode).Msg("invocation saved")
	return nil
}

const invocationColumns = `
	id, prompt, focus_path, started_at, duration_ms, exit_code, succeeded, timed_out,
	stdout_bytes, stderr_bytes, error_code`

// ListInvocations returns up to limit invocations, newest first.
// A non-positive limit means DefaultListLimit.
func (s *SQLiteStore) ListInvocations(limit int) ([]*Invocation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT `+invocationColumns+`
		FROM invocations
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "query invocations", err)
	}
	defer rows.Close()

	invocations := []*Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "scan invocation", err)
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "iterate invocations", err)
	}
	return invocations, nil
}

// GetInvocation returns the invocation with the given ID, or
// ErrInvocationNotFound.
func (s *SQLiteStore) GetInvocation(id string) (*Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+invocationColumns+` FROM invocations WHERE id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvocationNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageQueryFailed, "get invocation", err)
	}
	return inv, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row scanner) (*Invocation, error) {
	var (
		inv       Invocation
		startedAt string
	)
	err := row.Scan(
		&inv.ID,
		&inv.Prompt,
		&inv.FocusPath,
		&startedAt,
		&inv.DurationMS,
		&inv.ExitCode,
		&inv.Succeeded,
		&inv.TimedOut,
		&inv.StdoutBytes,
		&inv.StderrBytes,
		&inv.ErrorCode,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, err
	}
	inv.StartedAt = t
	inv.Duration = time.Duration(inv.DurationMS) * time.Millisecond
	return &inv, nil
}
