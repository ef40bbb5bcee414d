package plugin

import (
	"context"

	"github.com/alexisbeaulieu97/apipack/internal/logger"
)

// Base provides the default implementation of the Plugin contract. The
// manager owns its fields; plugins read them through the accessors.
type Base struct {
	name        string
	settings    Settings
	state       State
	initialized bool
	log         *logger.Logger
}

func (b *Base) base() *Base { return b }

// Name returns the name the plugin was loaded under.
func (b *Base) Name() string { return b.name }

// Settings returns the common settings decoded at load.
func (b *Base) Settings() Settings { return b.settings }

// Logger returns a logger tagged with the plugin name. It is nil-safe before load.
func (b *Base) Logger() *logger.Logger { return b.log }

// Initialized reports whether Initialize has completed and Cleanup has not yet run.
func (b *Base) Initialized() bool { return b.initialized }

// ConfigSchema accepts only the common settings.
func (b *Base) ConfigSchema() any { return &b.settings }

func (b *Base) Initialize(context.Context) error { return nil }

func (b *Base) Cleanup(context.Context) error { return nil }

func (b *Base) OnGenerateStart(context.Context, Spec, RunContext) error { return nil }

func (b *Base) OnGenerateEnd(context.Context, Spec, RunContext) error { return nil }

func (b *Base) OnGenerateError(context.Context, error, Spec, RunContext) error { return nil }

func (b *Base) OnFileGenerate(_ context.Context, _, content string, _ RunContext) (string, bool, error) {
	return content, false, nil
}

func (b *Base) OnFileWritten(context.Context, string, RunContext) error { return nil }
