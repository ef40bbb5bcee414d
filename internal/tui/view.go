package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/apipack/internal/tui/components"
)

// maxVisibleFiles bounds the file list so long runs keep a stable height.
const maxVisibleFiles = 15

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	title := titleStyle.Render(fmt.Sprintf("apipack • %s", m.heading()))
	sections = append(sections, title)

	if !m.finished {
		sections = append(sections, fmt.Sprintf("%s %s", m.spinner.View(), m.status()))
	}

	entries, hidden := components.NewFileList(m.outputDir, m.order, m.files).Tail(maxVisibleFiles)
	if len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Files"))
		if hidden > 0 {
			sections = append(sections, skippedStyle.Render(fmt.Sprintf(" … %d earlier", hidden)))
		}
		sections = append(sections, renderFileEntries(entries))
	}

	data := components.SummaryData{
		Generated: m.generated,
		Skipped:   m.skipped,
		Failed:    m.failed,
		DryRun:    m.dryRun,
		Finished:  m.finished,
		Cancelled: m.cancelled,
	}
	if m.result != nil {
		data.Errors = m.result.Errors
	} else if m.err != nil {
		data.Errors = []string{m.err.Error()}
	}
	summary := components.NewSummary(data).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func renderFileEntries(entries []components.FileEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		line := fmt.Sprintf(" %s %s", StatusIcon(entry.Status), entry.Path)
		if strings.TrimSpace(entry.Message) != "" {
			line = fmt.Sprintf("%s (%s)", line, entry.Message)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) heading() string {
	if strings.TrimSpace(m.title) != "" {
		return m.title
	}
	return "Generation"
}

func (m Model) status() string {
	if m.dryRun {
		return fmt.Sprintf("Rendering (dry run), %d files so far", len(m.order))
	}
	return fmt.Sprintf("Generating, %d files so far", len(m.order))
}

// StatusIcon returns the glyph representing a file status.
func StatusIcon(status string) string {
	switch status {
	case components.StatusGenerated:
		return successStyle.Render("✓")
	case components.StatusRunning:
		return runningStyle.Render("⏳")
	case components.StatusFailed:
		return failureStyle.Render("✗")
	case components.StatusSkipped:
		return skippedStyle.Render("⊘")
	default:
		return pendingStyle.Render("…")
	}
}
