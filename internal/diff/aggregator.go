// Package diff aggregates the working tree changes left behind by agent
// invocations into one report: the change listing plus a unified diff for
// every listed file.
package diff

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/pseudocoder/devbridge/internal/errors"
	"github.com/pseudocoder/devbridge/internal/vcs"
)

// Marker says why a report has the files it has.
type Marker string

const (
	// MarkerNotChecked means no agent invocation happened yet, so the
	// version-control tool was not consulted.
	MarkerNotChecked Marker = "not_checked"
	// MarkerNoChanges means the listing came back empty.
	MarkerNoChanges Marker = "no_changes"
	// MarkerChanges means at least one file changed.
	MarkerChanges Marker = "changes"
)

// ErrorPrefix starts the diff text of a file whose diff could not be read.
const ErrorPrefix = "Error: "

// Source lists changes and produces per-file diffs. *vcs.Client implements it.
type Source interface {
	ListChanges(ctx context.Context) ([]vcs.Change, error)
	FileDiff(ctx context.Context, path string) (string, error)
}

// Flag reports whether there is anything worth inspecting.
type Flag interface {
	IsDirty() bool
}

// File is one changed file with its diff.
type File struct {
	Status      string `json:"status"`
	StatusText  string `json:"statusText"`
	Filename    string `json:"filename"`
	OldFilename string `json:"oldFilename,omitempty"`
	Diff        string `json:"diff"`

	// Line counts parsed from Diff. Zero when the diff failed.
	Additions int  `json:"additions"`
	Deletions int  `json:"deletions"`
	Binary    bool `json:"binary,omitempty"`

	// Err is the per-file failure, if any. Diff then holds the placeholder.
	Err error `json:"-"`
}

// Summary counts files by status.
type Summary struct {
	TotalFiles int `json:"totalFiles"`
	Modified   int `json:"modified"`
	Added      int `json:"added"`
	Deleted    int `json:"deleted"`
	Renamed    int `json:"renamed"`
	Copied     int `json:"copied"`
	Unknown    int `json:"unknown"`

	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// Report is the result of one Collect call.
type Report struct {
	Marker  Marker
	Files   []File
	Summary Summary
}

// HasChanges reports whether the report lists any file.
func (r *Report) HasChanges() bool {
	return len(r.Files) > 0
}

// Failed returns how many files carry an error placeholder.
func (r *Report) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Config configures an Aggregator.
type Config struct {
	// MaxParallel bounds concurrent per-file diff calls. Zero or less starts
	// them all at once.
	MaxParallel int
}

// Aggregator builds Reports.
type Aggregator struct {
	source      Source
	flag        Flag
	maxParallel int
	log         zerolog.Logger
}

// NewAggregator creates an Aggregator reading from source, gated by flag.
func NewAggregator(source Source, flag Flag, cfg Config, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		source:      source,
		flag:        flag,
		maxParallel: cfg.MaxParallel,
		log:         log.With().Str("component", "diff").Logger(),
	}
}

// Collect lists the changed files and fetches every file's diff concurrently.
//
// Only a failed listing is an error. A failed per-file diff is recorded in that
// file's entry and the rest of the batch still completes; files keep the order
// the listing returned.
func (a *Aggregator) Collect(ctx context.Context) (*Report, error) {
	if !a.flag.IsDirty() {
		return &Report{Marker: MarkerNotChecked, Files: []File{}}, nil
	}

	changes, err := a.source.ListChanges(ctx)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return &Report{Marker: MarkerNoChanges, Files: []File{}}, nil
	}

	start := time.Now()
	files := make([]File, len(changes))

	// Workers never return an error, so no sibling is ever canceled.
	var g errgroup.Group
	if a.maxParallel > 0 {
		g.SetLimit(a.maxParallel)
	}
	for i, ch := range changes {
		i, ch := i, ch
		g.Go(func() error {
			files[i] = a.fileEntry(ctx, ch)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Marker: MarkerChanges, Files: files, Summary: summarize(files)}
	a.log.Debug().
		Int("files", len(files)).
		Int("failed", report.Failed()).
		Dur("duration", time.Since(start)).
		Msg("diff collected")
	return report, nil
}

func (a *Aggregator) fileEntry(ctx context.Context, ch vcs.Change) File {
	f := File{
		Status:      ch.Status,
		StatusText:  ch.StatusText,
		Filename:    ch.Path,
		OldFilename: ch.OldPath,
	}
	text, err := a.source.FileDiff(ctx, ch.Path)
	if err != nil {
		a.log.Warn().Err(err).Str("file", ch.Path).Msg("file diff failed")
		f.Err = err
		f.Diff = ErrorPrefix + apperrors.GetMessage(err)
		return f
	}
	f.Diff = text
	st := ParseStats(text)
	f.Additions, f.Deletions, f.Binary = st.Additions, st.Deletions, st.Binary
	return f
}

func summarize(files []File) Summary {
	s := Summary{TotalFiles: len(files)}
	for _, f := range files {
		s.Additions += f.Additions
		s.Deletions += f.Deletions
		switch f.StatusText {
		case vcs.StatusModified:
			s.Modified++
		case vcs.StatusAdded:
			s.Added++
		case vcs.StatusDeleted:
			s.Deleted++
		case vcs.StatusRenamed:
			s.Renamed++
		case vcs.StatusCopied:
			s.Copied++
		default:
			s.Unknown++
		}
	}
	return s
}
