package components

import (
	"fmt"
	"strings"
)

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Generated int
	Skipped   int
	Failed    int
	DryRun    bool
	Finished  bool
	Cancelled bool
	Errors    []string
}

// Summary renders a textual generation summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	d := s.data
	var lines []string
	if d.Generated+d.Skipped+d.Failed > 0 {
		verb := "generated"
		if d.DryRun {
			verb = "would be generated"
		}
		lines = append(lines, fmt.Sprintf("Files: %d %s, %d skipped, %d failed", d.Generated, verb, d.Skipped, d.Failed))
	}

	switch {
	case d.Cancelled:
		lines = append(lines, "Generation cancelled")
	case d.Finished && (d.Failed > 0 || len(d.Errors) > 0):
		lines = append(lines, "Generation finished with errors")
	case d.Finished:
		lines = append(lines, "Generation finished successfully")
	}

	if len(d.Errors) > 0 {
		lines = append(lines, "Errors:")
		for _, e := range d.Errors {
			lines = append(lines, "  ✗ "+e)
		}
	}

	return strings.Join(lines, "\n")
}
