package plugin

import (
	"context"
)

// Spec is the generation spec handed to hooks as a plain mapping.
type Spec map[string]any

// RunContext carries shared state across every hook call of one generation
// run. The same map is passed to every hook so plugins can communicate
// through agreed keys.
type RunContext map[string]any

// BuiltinSource is the discovery location of the plugins compiled into apipack.
const BuiltinSource = "apipack/plugins"

// RunContext keys set by the generator.
const (
	ContextRunID     = "run_id"
	ContextSpecName  = "spec_name"
	ContextOutputDir = "output_dir"
	ContextDryRun    = "dry_run"
)

// String returns the string stored under key, or "".
func (rc RunContext) String(key string) string {
	s, _ := rc[key].(string)
	return s
}

// Bool returns the bool stored under key, or false.
func (rc RunContext) Bool(key string) bool {
	b, _ := rc[key].(bool)
	return b
}

// Hooks lists the extension points invoked by the generation pipeline.
// Every method has a no-op default on Base.
type Hooks interface {
	OnGenerateStart(ctx context.Context, spec Spec, rc RunContext) error
	OnGenerateEnd(ctx context.Context, spec Spec, rc RunContext) error
	OnGenerateError(ctx context.Context, genErr error, spec Spec, rc RunContext) error

	// OnFileGenerate may rewrite the content of a file before it is written.
	// Returning changed=false leaves content untouched.
	OnFileGenerate(ctx context.Context, path, content string, rc RunContext) (override string, changed bool, err error)

	OnFileWritten(ctx context.Context, path string, rc RunContext) error
}

// Plugin defines the contract every apipack extension satisfies.
//
// Implementations embed Base, which supplies the default lifecycle and hook
// bodies, and override only what they need:
//
//	type HeaderPlugin struct {
//		plugin.Base
//		cfg headerConfig
//	}
type Plugin interface {
	// Name returns the identity bound when the plugin was loaded.
	Name() string

	// ConfigSchema returns a pointer to a struct embedding Settings. The
	// manager decodes the caller's configuration into it and validates it
	// with `validate` tags before Initialize runs.
	ConfigSchema() any

	// Initialize prepares external resources. A returned error or panic
	// prevents the plugin from being stored.
	Initialize(ctx context.Context) error

	// Cleanup releases resources. Errors are logged and never propagated.
	Cleanup(ctx context.Context) error

	Hooks

	base() *Base
}

// Capability names a set of plugins that can be queried together.
type Capability string

// Built-in capability sets.
const (
	CapabilityObserve   Capability = "observe"
	CapabilityTransform Capability = "transform"
	CapabilityPublish   Capability = "publish"
)

// Capable is implemented by plugins that declare capability membership.
type Capable interface {
	Capabilities() []Capability
}

// HasCapability reports whether p declares c.
func HasCapability(p Plugin, c Capability) bool {
	capable, ok := p.(Capable)
	if !ok {
		return false
	}
	for _, declared := range capable.Capabilities() {
		if declared == c {
			return true
		}
	}
	return false
}
