package plugin

import (
	"context"
	"fmt"

	"github.com/alexisbeaulieu97/apipack/pkg/diff"
)

// Hook names an extension point.
type Hook string

// Hooks invoked by the generation pipeline.
const (
	HookGenerateStart Hook = "on_generate_start"
	HookGenerateEnd   Hook = "on_generate_end"
	HookGenerateError Hook = "on_generate_error"
	HookFileGenerate  Hook = "on_file_generate"
	HookFileWritten   Hook = "on_file_written"
)

var hookNames = map[Hook]struct{}{
	HookGenerateStart: {},
	HookGenerateEnd:   {},
	HookGenerateError: {},
	HookFileGenerate:  {},
	HookFileWritten:   {},
}

// AllHooks lists every hook in pipeline order.
func AllHooks() []Hook {
	return []Hook{HookGenerateStart, HookFileGenerate, HookFileWritten, HookGenerateEnd, HookGenerateError}
}

// Valid reports whether h is a known hook.
func (h Hook) Valid() bool {
	_, ok := hookNames[h]
	return ok
}

// Observational reports whether errors from h are isolated from the caller.
func (h Hook) Observational() bool {
	return h != HookFileGenerate
}

// Payload carries hook arguments. For HookFileGenerate, Content is replaced
// by the folded result.
type Payload struct {
	Spec    Spec
	Context RunContext
	Err     error
	Path    string
	Content string
}

// Dispatch invokes hook on every enabled plugin in priority order.
//
// Errors and panics from observational hooks are logged and never returned.
// HookFileGenerate folds content through the plugins, each receiving the
// previous output; the first failure stops the chain and is returned.
func (m *Manager) Dispatch(ctx context.Context, hook Hook, p *Payload) error {
	if !hook.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownHook, hook)
	}
	if p == nil {
		p = &Payload{}
	}

	for _, inst := range m.snapshot(true) {
		name := inst.desc.Name
		plug := inst.plugin

		if hook == HookFileGenerate {
			var (
				override string
				changed  bool
			)
			err := guard(func() error {
				var hookErr error
				override, changed, hookErr = plug.OnFileGenerate(ctx, p.Path, p.Content, p.Context)
				return hookErr
			})
			if err != nil {
				dispatchErr := &HookDispatchError{Hook: hook, Plugin: name, Err: err}
				m.logger.ForPlugin(name).WithFields(map[string]any{"hook": string(hook), "path": p.Path}).
					Error(dispatchErr, "content hook failed")
				return dispatchErr
			}
			if changed {
				m.logOverride(name, p.Path, p.Content, override)
				p.Content = override
			}
			continue
		}

		err := guard(func() error { return observe(ctx, plug, hook, p) })
		if err != nil {
			dispatchErr := &HookDispatchError{Hook: hook, Plugin: name, Err: err}
			m.logger.ForPlugin(name).WithFields(map[string]any{"hook": string(hook)}).
				WarnErr(dispatchErr, "hook failed")
		}
	}

	return nil
}

func observe(ctx context.Context, plug Plugin, hook Hook, p *Payload) error {
	switch hook {
	case HookGenerateStart:
		return plug.OnGenerateStart(ctx, p.Spec, p.Context)
	case HookGenerateEnd:
		return plug.OnGenerateEnd(ctx, p.Spec, p.Context)
	case HookGenerateError:
		return plug.OnGenerateError(ctx, p.Err, p.Spec, p.Context)
	case HookFileWritten:
		return plug.OnFileWritten(ctx, p.Path, p.Context)
	}
	return fmt.Errorf("%w: %q", ErrUnknownHook, hook)
}

func (m *Manager) logOverride(name, path, before, after string) {
	log := m.logger.ForPlugin(name)
	if !log.DebugEnabled() {
		return
	}
	stats := diff.Summarize([]byte(before), []byte(after))
	log.WithFields(map[string]any{
		"path":    path,
		"changes": stats.String(),
		"diff":    diff.GenerateUnifiedDiff([]byte(before), []byte(after), path, path+" ("+name+")"),
	}).Debug("content overridden")
}

// GenerateStart dispatches HookGenerateStart.
func (m *Manager) GenerateStart(ctx context.Context, spec Spec, rc RunContext) {
	_ = m.Dispatch(ctx, HookGenerateStart, &Payload{Spec: spec, Context: rc})
}

// GenerateEnd dispatches HookGenerateEnd.
func (m *Manager) GenerateEnd(ctx context.Context, spec Spec, rc RunContext) {
	_ = m.Dispatch(ctx, HookGenerateEnd, &Payload{Spec: spec, Context: rc})
}

// GenerateError dispatches HookGenerateError with the failure that ended the run.
func (m *Manager) GenerateError(ctx context.Context, genErr error, spec Spec, rc RunContext) {
	_ = m.Dispatch(ctx, HookGenerateError, &Payload{Err: genErr, Spec: spec, Context: rc})
}

// FileGenerate folds content through every enabled plugin and returns the result.
func (m *Manager) FileGenerate(ctx context.Context, path, content string, rc RunContext) (string, error) {
	p := &Payload{Path: path, Content: content, Context: rc}
	if err := m.Dispatch(ctx, HookFileGenerate, p); err != nil {
		return content, err
	}
	return p.Content, nil
}

// FileWritten dispatches HookFileWritten.
func (m *Manager) FileWritten(ctx context.Context, path string, rc RunContext) {
	_ = m.Dispatch(ctx, HookFileWritten, &Payload{Path: path, Context: rc})
}
