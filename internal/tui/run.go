package tui

import (
	"context"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/alexisbeaulieu97/apipack/internal/generator"
	"github.com/alexisbeaulieu97/apipack/internal/tui/components"
)

// GenerateFunc runs one generation, reporting progress through onEvent.
type GenerateFunc func(ctx context.Context, onEvent func(generator.Event)) (*generator.Result, error)

// Run drives gen behind the interactive progress view. Ctrl+C cancels the
// context handed to gen; Run still waits for gen to return.
func Run(ctx context.Context, m Model, gen GenerateFunc, opts ...tea.ProgramOption) (*generator.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, opts...)
	done := make(chan DoneMsg, 1)
	go func() {
		res, err := gen(ctx, func(e generator.Event) { p.Send(EventMsg{Event: e}) })
		msg := DoneMsg{Result: res, Err: err}
		done <- msg
		p.Send(msg)
	}()

	final, runErr := p.Run()
	if fm, ok := final.(Model); ok && fm.Cancelled() {
		cancel()
	}

	msg := <-done
	if msg.Err == nil && runErr != nil {
		return msg.Result, fmt.Errorf("progress display: %w", runErr)
	}
	return msg.Result, msg.Err
}

// PlainReporter returns an event sink that prints one line per finished
// file, for non-interactive output.
func PlainReporter(w io.Writer, root string) func(generator.Event) {
	var mu sync.Mutex
	return func(e generator.Event) {
		var status string
		switch e.Kind {
		case generator.EventGenerated:
			status = components.StatusGenerated
		case generator.EventSkipped:
			status = components.StatusSkipped
		case generator.EventFailed:
			status = components.StatusFailed
		default:
			return
		}

		entry := components.NewFileList(root, []string{e.Path}, nil).Entries()[0]
		line := fmt.Sprintf("%-9s %s", status, entry.Path)
		if e.Err != nil {
			line += ": " + e.Err.Error()
		}

		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}
}
