package actions

import (
	"context"
	"fmt"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
)

// Revert restores filename from the last commit.
//
// Returns a CodedError:
//   - validation.missing_field if filename is empty
//   - validation.invalid_path if filename leaves the project root
//   - vcs.failed carrying the tool's stderr if the restore exited non-zero
func (r *Reverter) Revert(ctx context.Context, filename string) error {
	if filename == "" {
		return apperrors.MissingField("Filename is required")
	}
	if err := validateFilePath(r.projectRoot, filename); err != nil {
		r.log.Warn().Str("file", filename).Err(err).Msg("revert rejected")
		return err
	}

	if err := r.restorer.Restore(ctx, filename); err != nil {
		r.log.Error().Str("file", filename).Err(err).Msg("revert failed")
		return err
	}

	r.log.Info().Str("file", filename).Msg("file reverted")
	r.notifyReverted(filename)
	return nil
}

// RevertedMessage is the confirmation shown after a successful revert.
func RevertedMessage(filename string) string {
	return fmt.Sprintf("File %s has been reverted.", filename)
}
