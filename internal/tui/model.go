package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/apipack/internal/generator"
	"github.com/alexisbeaulieu97/apipack/internal/tui/components"
)

// EventMsg carries one generator progress event.
type EventMsg struct {
	Event generator.Event
}

// DoneMsg reports that generation returned.
type DoneMsg struct {
	Result *generator.Result
	Err    error
}

// Model contains the Bubbletea state for a generation run.
type Model struct {
	title     string
	outputDir string
	dryRun    bool
	spinner   spinner.Model

	files     map[string]components.FileEntry
	order     []string
	generated int
	skipped   int
	failed    int

	result    *generator.Result
	err       error
	finished  bool
	cancelled bool
}

// NewModel constructs a model for the generation run named title writing into outputDir.
func NewModel(title, outputDir string, dryRun bool) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	return Model{
		title:     title,
		outputDir: outputDir,
		dryRun:    dryRun,
		spinner:   s,
		files:     make(map[string]components.FileEntry),
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// IsFinished reports whether generation has returned or was cancelled.
func (m Model) IsFinished() bool {
	return m.finished
}

// Cancelled reports whether the user interrupted the run.
func (m Model) Cancelled() bool {
	return m.cancelled
}

// Counts returns the generated, skipped and failed totals seen so far.
func (m Model) Counts() (generated, skipped, failed int) {
	return m.generated, m.skipped, m.failed
}

func (m *Model) track(e generator.Event) {
	entry, seen := m.files[e.Path]
	if !seen {
		m.order = append(m.order, e.Path)
	}
	switch e.Kind {
	case generator.EventStarted:
		entry.Status = components.StatusRunning
	case generator.EventGenerated:
		entry.Status = components.StatusGenerated
		m.generated++
	case generator.EventSkipped:
		entry.Status = components.StatusSkipped
		entry.Message = "exists"
		m.skipped++
	case generator.EventFailed:
		entry.Status = components.StatusFailed
		if e.Err != nil {
			entry.Message = e.Err.Error()
		}
		m.failed++
	}
	m.files[e.Path] = entry
}
