// Package external runs plugins declared by manifest files as child
// processes that exchange one JSON document per hook call.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/apipack/internal/execx"
	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

func init() {
	plugin.DefineManifestKind(plugin.DefaultManifestKind, Build)
}

// SchemaVersion is sent with every request.
const SchemaVersion = 1

// DefaultTimeout bounds a hook call when the manifest sets none.
const DefaultTimeout = 30 * time.Second

// Request is written to the command's stdin.
type Request struct {
	SchemaVersion int            `json:"schema_version"`
	Plugin        string         `json:"plugin"`
	Hook          string         `json:"hook"`
	Spec          map[string]any `json:"spec,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	Path          string         `json:"path,omitempty"`
	Content       *string        `json:"content,omitempty"`
	Error         string         `json:"error,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}

// Response is read from the command's stdout. Empty output is an empty
// response.
type Response struct {
	Error string `json:"error,omitempty"`

	// Content replaces the file content when set.
	Content *string `json:"content,omitempty"`

	// Context entries are merged into the run context.
	Context map[string]any `json:"context,omitempty"`
}

// Config is the per-run configuration of a command plugin.
type Config struct {
	plugin.Settings `yaml:",inline"`

	// Options are forwarded verbatim in every request.
	Options map[string]any    `yaml:"options"`
	Env     map[string]string `yaml:"env"`
}

// CommandPlugin adapts a manifest-declared executable to the plugin contract.
type CommandPlugin struct {
	plugin.Base
	manifest plugin.Manifest
	hooks    map[plugin.Hook]bool
	cfg      Config
}

// Build turns a command manifest into a discovery candidate.
func Build(m plugin.Manifest) (plugin.Candidate, error) {
	if len(m.Command) == 0 {
		return plugin.Candidate{}, fmt.Errorf("manifest %s has no command", m.Name)
	}
	for _, h := range m.Hooks {
		if !plugin.Hook(h).Valid() {
			return plugin.Candidate{}, fmt.Errorf("%w: %q", plugin.ErrUnknownHook, h)
		}
	}

	return plugin.Candidate{
		Name:        m.Name,
		Description: m.Description,
		Type:        reflect.TypeFor[*CommandPlugin](),
		New:         func() any { return newCommandPlugin(m) },
	}, nil
}

func newCommandPlugin(m plugin.Manifest) *CommandPlugin {
	p := &CommandPlugin{manifest: m, hooks: make(map[plugin.Hook]bool)}
	p.manifest.Command = append([]string(nil), m.Command...)
	if abs, err := filepath.Abs(m.Dir); err == nil {
		p.manifest.Dir = abs
	}
	if first := m.Command[0]; !filepath.IsAbs(first) && strings.ContainsRune(first, filepath.Separator) {
		p.manifest.Command[0] = filepath.Join(p.manifest.Dir, first)
	}
	if len(m.Hooks) == 0 {
		for _, h := range plugin.AllHooks() {
			p.hooks[h] = true
		}
	}
	for _, h := range m.Hooks {
		p.hooks[plugin.Hook(h)] = true
	}
	return p
}

func (p *CommandPlugin) ConfigSchema() any { return &p.cfg }

func (p *CommandPlugin) Capabilities() []plugin.Capability {
	caps := make([]plugin.Capability, 0, len(p.manifest.Capabilities))
	for _, c := range p.manifest.Capabilities {
		caps = append(caps, plugin.Capability(c))
	}
	return caps
}

// Handles reports whether the manifest subscribes to h.
func (p *CommandPlugin) Handles(h plugin.Hook) bool { return p.hooks[h] }

// Initialize checks that the command can be started.
func (p *CommandPlugin) Initialize(context.Context) error {
	program := p.manifest.Command[0]
	if strings.ContainsRune(program, filepath.Separator) {
		info, err := os.Stat(program)
		if err != nil {
			return err
		}
		if info.IsDir() || info.Mode()&0o111 == 0 {
			return fmt.Errorf("%s is not executable", program)
		}
		return nil
	}
	_, err := exec.LookPath(program)
	return err
}

func (p *CommandPlugin) OnGenerateStart(ctx context.Context, spec plugin.Spec, rc plugin.RunContext) error {
	_, err := p.call(ctx, plugin.HookGenerateStart, Request{Spec: spec}, rc)
	return err
}

func (p *CommandPlugin) OnGenerateEnd(ctx context.Context, spec plugin.Spec, rc plugin.RunContext) error {
	_, err := p.call(ctx, plugin.HookGenerateEnd, Request{Spec: spec}, rc)
	return err
}

func (p *CommandPlugin) OnGenerateError(ctx context.Context, genErr error, spec plugin.Spec, rc plugin.RunContext) error {
	req := Request{Spec: spec}
	if genErr != nil {
		req.Error = genErr.Error()
	}
	_, err := p.call(ctx, plugin.HookGenerateError, req, rc)
	return err
}

func (p *CommandPlugin) OnFileGenerate(ctx context.Context, path, content string, rc plugin.RunContext) (string, bool, error) {
	resp, err := p.call(ctx, plugin.HookFileGenerate, Request{Path: path, Content: &content}, rc)
	if err != nil || resp.Content == nil {
		return content, false, err
	}
	return *resp.Content, *resp.Content != content, nil
}

func (p *CommandPlugin) OnFileWritten(ctx context.Context, path string, rc plugin.RunContext) error {
	_, err := p.call(ctx, plugin.HookFileWritten, Request{Path: path}, rc)
	return err
}

func (p *CommandPlugin) call(ctx context.Context, hook plugin.Hook, req Request, rc plugin.RunContext) (Response, error) {
	if !p.hooks[hook] {
		return Response{}, nil
	}

	req.SchemaVersion = SchemaVersion
	req.Plugin = p.Name()
	req.Hook = string(hook)
	req.Context = rc
	req.Options = p.cfg.Options

	input, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	timeout := p.manifest.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	env := make(map[string]string, len(p.manifest.Env)+len(p.cfg.Env)+2)
	for k, v := range p.manifest.Env {
		env[k] = v
	}
	for k, v := range p.cfg.Env {
		env[k] = v
	}
	env["APIPACK_PLUGIN"] = p.Name()
	env["APIPACK_HOOK"] = string(hook)

	res, err := execx.Run(ctx, execx.Command{
		Args:    p.manifest.Command,
		Dir:     p.manifest.Dir,
		Env:     env,
		Stdin:   bytes.NewReader(input),
		Timeout: timeout,
	})
	if res.Stderr != "" {
		p.Logger().WithFields(map[string]any{"hook": string(hook), "stderr": res.Stderr}).Debug("plugin stderr")
	}
	if err != nil {
		return Response{}, err
	}

	var resp Response
	if strings.TrimSpace(res.Stdout) != "" {
		if err := json.Unmarshal([]byte(res.Stdout), &resp); err != nil {
			return Response{}, fmt.Errorf("decode response: %w", err)
		}
	}
	if resp.Error != "" {
		return Response{}, errors.New(resp.Error)
	}
	if rc != nil {
		for k, v := range resp.Context {
			rc[k] = v
		}
	}
	return resp, nil
}
