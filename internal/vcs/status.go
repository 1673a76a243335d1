package vcs

import "strings"

// Human-readable names for name-status letters.
const (
	StatusModified = "Modified"
	StatusAdded    = "Added"
	StatusDeleted  = "Deleted"
	StatusRenamed  = "Renamed"
	StatusCopied   = "Copied"
	StatusUnknown  = "Unknown"
)

// Change is one line of `diff --name-status` output.
type Change struct {
	// Status is the first letter of the status field ("M", "A", ...).
	// Empty when the line could not be parsed.
	Status string

	// StatusText is the readable form of Status.
	StatusText string

	// Path is the file the change applies to. For renames and copies it is
	// the destination.
	Path string

	// OldPath is the source of a rename or copy.
	OldPath string
}

// StatusText maps a name-status field to its readable name using only its
// first letter, so scored statuses like "R100" resolve to Renamed.
func StatusText(status string) string {
	if status == "" {
		return StatusUnknown
	}
	switch status[0] {
	case 'M':
		return StatusModified
	case 'A':
		return StatusAdded
	case 'D':
		return StatusDeleted
	case 'R':
		return StatusRenamed
	case 'C':
		return StatusCopied
	default:
		return StatusUnknown
	}
}

// ParseNameStatus parses `<status>\t<path>[\t<path>]` lines, skipping blanks.
// A line without a tab is kept as an Unknown change whose path is the
// trimmed line.
func ParseNameStatus(out string) []Change {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	changes := make([]Change, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			changes = append(changes, Change{StatusText: StatusUnknown, Path: line})
			continue
		}

		status := fields[0]
		ch := Change{
			Status:     status[:1],
			StatusText: StatusText(status),
			Path:       fields[len(fields)-1],
		}
		if len(fields) > 2 {
			ch.OldPath = fields[1]
		}
		changes = append(changes, ch)
	}
	return changes
}
