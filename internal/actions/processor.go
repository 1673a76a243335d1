package actions

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

// Restorer discards working tree changes to one file. *vcs.Client implements it.
type Restorer interface {
	Restore(ctx context.Context, path string) error
}

// RevertedCallback is called after a file was restored successfully.
type RevertedCallback func(file string)

// Reverter rolls individual files back to their last committed state.
type Reverter struct {
	// restorer runs the version-control restore.
	restorer Restorer

	// projectRoot bounds which paths may be reverted.
	projectRoot string

	// onReverted is notified after each successful revert. Optional.
	onReverted RevertedCallback

	log zerolog.Logger
}

// NewReverter creates a Reverter for the work tree at projectRoot.
func NewReverter(restorer Restorer, projectRoot string, log zerolog.Logger) *Reverter {
	return &Reverter{
		restorer:    restorer,
		projectRoot: projectRoot,
		log:         log.With().Str("component", "actions").Logger(),
	}
}

// SetRevertedCallback sets the callback run after a successful revert.
func (r *Reverter) SetRevertedCallback(cb RevertedCallback) {
	r.onReverted = cb
}

func (r *Reverter) notifyReverted(file string) {
	if r.onReverted != nil {
		r.onReverted(file)
	}
}

// validateFilePath checks that a file path is safe to use within the project.
// It rejects absolute paths, paths that climb out through "..", and anything
// that resolves outside the project root.
func validateFilePath(projectRoot, file string) error {
	local := filepath.FromSlash(file)
	if !filepath.IsLocal(local) {
		return apperrors.InvalidPath(file, "must be relative to the project root")
	}

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return apperrors.Internal("failed to resolve project root", err)
	}
	absRoot = filepath.Clean(absRoot)
	resolved := filepath.Clean(filepath.Join(absRoot, local))

	if !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) && resolved != absRoot {
		return apperrors.InvalidPath(file, fmt.Sprintf("escapes %s", absRoot))
	}
	return nil
}
