package actions

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

type fakeRestorer struct {
	calls []string
	err   error
}

func (f *fakeRestorer) Restore(_ context.Context, path string) error {
	f.calls = append(f.calls, path)
	return f.err
}

func TestRevert_Success(t *testing.T) {
	restorer := &fakeRestorer{}
	r := NewReverter(restorer, t.TempDir(), zerolog.Nop())

	var notified []string
	r.SetRevertedCallback(func(file string) { notified = append(notified, file) })

	require.NoError(t, r.Revert(context.Background(), "src/app.js"))
	assert.Equal(t, []string{"src/app.js"}, restorer.calls)
	assert.Equal(t, []string{"src/app.js"}, notified)
}

func TestRevert_MissingFilenameSkipsVCS(t *testing.T) {
	restorer := &fakeRestorer{}
	r := NewReverter(restorer, t.TempDir(), zerolog.Nop())

	err := r.Revert(context.Background(), "")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationMissingField))
	assert.Equal(t, "Filename is required", apperrors.GetMessage(err))
	assert.Empty(t, restorer.calls)
}

func TestRevert_RejectsPathsOutsideRoot(t *testing.T) {
	for _, name := range []string{"../secret", "/etc/passwd", "a/../../b"} {
		restorer := &fakeRestorer{}
		r := NewReverter(restorer, t.TempDir(), zerolog.Nop())

		err := r.Revert(context.Background(), name)

		require.Error(t, err, name)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeValidationInvalidPath), name)
		assert.Empty(t, restorer.calls, name)
	}
}

func TestRevert_VCSFailurePropagates(t *testing.T) {
	restorer := &fakeRestorer{err: apperrors.VCSFailed("error: pathspec 'x' did not match", nil)}
	r := NewReverter(restorer, t.TempDir(), zerolog.Nop())
	notified := false
	r.SetRevertedCallback(func(string) { notified = true })

	err := r.Revert(context.Background(), "x")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVCSFailed))
	assert.Contains(t, apperrors.GetMessage(err), "did not match")
	assert.False(t, notified)
}

func TestValidateFilePath(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, validateFilePath(root, "a.txt"))
	assert.NoError(t, validateFilePath(root, "dir/sub/b.txt"))
	assert.NoError(t, validateFilePath(root, "dir/../c.txt"))
	assert.Error(t, validateFilePath(root, ".."))
	assert.Error(t, validateFilePath(root, ""))
}

func TestRevertedMessage(t *testing.T) {
	assert.Equal(t, "File a.txt has been reverted.", RevertedMessage("a.txt"))
}
