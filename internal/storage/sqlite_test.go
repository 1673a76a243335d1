package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(MemoryPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestNewSQLiteStore verifies that an in-memory store starts empty.
func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)

	invs, err := store.ListInvocations(0)
	if err != nil {
		t.Fatalf("ListInvocations failed: %v", err)
	}
	if len(invs) != 0 {
		t.Errorf("expected empty list, got %d", len(invs))
	}
}

// TestSchemaVersion verifies every migration is recorded once.
func TestSchemaVersion(t *testing.T) {
	store := newTestStore(t)

	var version, count int
	if err := store.db.QueryRow("SELECT MAX(version), COUNT(*) FROM schema_version").Scan(&version, &count); err != nil {
		t.Fatalf("query schema_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("version = %d, want %d", version, currentSchemaVersion)
	}
	if count != currentSchemaVersion {
		t.Errorf("recorded %d migrations, want %d", count, currentSchemaVersion)
	}
}

// TestReopenKeepsData verifies a file-backed store survives a reopen without
// re-running migrations.
func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := NewSQLiteStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.SaveInvocation(&Invocation{ID: "a", Prompt: "p", StartedAt: time.Now()}); err != nil {
		t.Fatalf("SaveInvocation: %v", err)
	}
	store.Close()

	store, err = NewSQLiteStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	if _, err := store.GetInvocation("a"); err != nil {
		t.Fatalf("GetInvocation after reopen: %v", err)
	}
}

// TestSaveAndGetInvocation verifies every field round-trips.
func TestSaveAndGetInvocation(t *testing.T) {
	store := newTestStore(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	want := &Invocation{
		ID:          "inv-1",
		Prompt:      "add a button\n\nFocus path: src/App.jsx",
		FocusPath:   "src/App.jsx",
		StartedAt:   started,
		Duration:    1500 * time.Millisecond,
		ExitCode:    -2,
		TimedOut:    true,
		StdoutBytes: 42,
		StderrBytes: 7,
		ErrorCode:   apperrors.CodeAgentTimeout,
	}
	if err := store.SaveInvocation(want); err != nil {
		t.Fatalf("SaveInvocation failed: %v", err)
	}

	got, err := store.GetInvocation("inv-1")
	if err != nil {
		t.Fatalf("GetInvocation failed: %v", err)
	}
	if got.Prompt != want.Prompt || got.FocusPath != want.FocusPath {
		t.Errorf("prompt/focus mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.DurationMS != 1500 || got.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %d ms / %v", got.DurationMS, got.Duration)
	}
	if got.ExitCode != -2 || got.Succeeded || !got.TimedOut {
		t.Errorf("outcome mismatch: %+v", got)
	}
	if got.StdoutBytes != 42 || got.StderrBytes != 7 {
		t.Errorf("sizes = %d/%d", got.StdoutBytes, got.StderrBytes)
	}
	if got.ErrorCode != apperrors.CodeAgentTimeout {
		t.Errorf("ErrorCode = %q", got.ErrorCode)
	}
}

// TestGetInvocationNotFound verifies the sentinel error.
func TestGetInvocationNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetInvocation("missing")
	if !errors.Is(err, ErrInvocationNotFound) {
		t.Errorf("expected ErrInvocationNotFound, got %v", err)
	}
}

// TestSaveNilInvocation verifies nil is rejected with a storage code.
func TestSaveNilInvocation(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveInvocation(nil)
	if !apperrors.IsCode(err, apperrors.CodeStorageSaveFailed) {
		t.Errorf("expected %s, got %v", apperrors.CodeStorageSaveFailed, err)
	}
}

// TestListInvocationsNewestFirst verifies ordering and the limit.
func TestListInvocationsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		inv := &Invocation{
			ID:        id,
			Prompt:    id,
			StartedAt: base.Add(time.Duration(i) * 500 * time.Millisecond),
			Succeeded: true,
		}
		if err := store.SaveInvocation(inv); err != nil {
			t.Fatalf("SaveInvocation(%s): %v", id, err)
		}
	}

	all, err := store.ListInvocations(10)
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d invocations, want 3", len(all))
	}
	for i, want := range []string{"third", "second", "first"} {
		if all[i].ID != want {
			t.Errorf("all[%d] = %s, want %s", i, all[i].ID, want)
		}
	}
	if !all[0].Succeeded {
		t.Errorf("Succeeded not preserved")
	}

	limited, err := store.ListInvocations(2)
	if err != nil {
		t.Fatalf("ListInvocations(2): %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "third" {
		t.Errorf("limited = %v", limited)
	}
}

// TestListInvocationsDefaultLimit verifies non-positive limits fall back.
func TestListInvocationsDefaultLimit(t *testing.T) {
	store := newTestStore(t)

	base := time.Now()
	for i := 0; i < DefaultListLimit+5; i++ {
		inv := &Invocation{ID: time.Duration(i).String(), Prompt: "p", StartedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.SaveInvocation(inv); err != nil {
			t.Fatalf("SaveInvocation: %v", err)
		}
	}

	got, err := store.ListInvocations(-1)
	if err != nil {
		t.Fatalf("ListInvocations: %v", err)
	}
	if len(got) != DefaultListLimit {
		t.Errorf("got %d, want %d", len(got), DefaultListLimit)
	}
}
