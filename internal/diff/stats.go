package diff

import (
	"regexp"
	"strings"
)

// Stats describes the content of one file's unified diff.
//
// Binary files appear with a "Binary files ... differ" marker instead of a
// hunk header, so they never count lines.
type Stats struct {
	Hunks     int
	Additions int
	Deletions int
	Binary    bool
}

// hunkHeaderRegex matches hunk headers like:
// @@ -1,5 +1,7 @@
// @@ -0,0 +1,10 @@ (new file)
var hunkHeaderRegex = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// binaryFileRegex matches the binary marker git prints in place of hunks.
var binaryFileRegex = regexp.MustCompile(`^Binary files .+ and .+ differ`)

// ParseStats counts hunks and changed lines in a unified diff. The "---" and
// "+++" file headers are not counted; only lines inside a hunk are.
func ParseStats(text string) Stats {
	var s Stats
	inHunk := false

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			inHunk = false
		case hunkHeaderRegex.MatchString(line):
			s.Hunks++
			inHunk = true
		case binaryFileRegex.MatchString(line):
			s.Binary = true
		case !inHunk:
		case strings.HasPrefix(line, "+"):
			s.Additions++
		case strings.HasPrefix(line, "-"):
			s.Deletions++
		}
	}
	return s
}
