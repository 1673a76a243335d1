// Package actions applies user decisions about agent edits back to the
// working tree.
//
// This package is organized into several files:
//   - actions.go: Package entry point (this file)
//   - processor.go: Reverter struct, constructor, setters and path validation
//   - revert.go: Single-file rollback (Revert)
package actions
