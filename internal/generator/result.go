package generator

import (
	"fmt"
	"strings"
)

// EventKind classifies what happened to one output file.
type EventKind string

// Event kinds.
const (
	EventStarted   EventKind = "started"
	EventGenerated EventKind = "generated"
	EventSkipped   EventKind = "skipped"
	EventFailed    EventKind = "failed"
)

// Event reports progress for a single output path.
type Event struct {
	Kind EventKind
	Path string
	Err  error
}

// Result summarises a generation run.
type Result struct {
	Success   bool
	RunID     string
	OutputDir string
	DryRun    bool
	Generated []string
	Skipped   []string
	Errors    []string
}

// Summary returns a one-line description of the run.
func (r *Result) Summary() string {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("dry run: ")
	}
	b.WriteString(plural(len(r.Generated), "file") + " generated, ")
	b.WriteString(plural(len(r.Skipped), "file") + " skipped")
	if len(r.Errors) > 0 {
		b.WriteString(", " + plural(len(r.Errors), "error"))
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n != 1 {
		noun += "s"
	}
	return fmt.Sprintf("%d %s", n, noun)
}
