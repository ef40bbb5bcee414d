package format

import (
	"context"
	"fmt"
	"go/format"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

func init() {
	plugin.DefineSource(plugin.BuiltinSource, plugin.Static("format", plugin.Provide(New)))
}

// Config controls which generated files are run through gofmt.
type Config struct {
	plugin.Settings `yaml:",inline"`

	// Strict fails generation on unparsable Go source instead of writing
	// the file unformatted.
	Strict bool `yaml:"strict"`

	// Exclude holds glob patterns matched against the output path.
	Exclude []string `yaml:"exclude" validate:"omitempty,dive,glob"`
}

// FormatPlugin formats generated Go files. It runs late so it sees the
// output of every other transform.
type FormatPlugin struct {
	plugin.Base
	cfg Config
}

// New returns a format plugin that runs after the default priority.
func New() *FormatPlugin {
	p := &FormatPlugin{}
	p.cfg.Settings = plugin.DefaultSettings()
	p.cfg.Priority = 900
	return p
}

func (p *FormatPlugin) ConfigSchema() any { return &p.cfg }

func (p *FormatPlugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapabilityTransform}
}

func (p *FormatPlugin) OnFileGenerate(_ context.Context, path, content string, _ plugin.RunContext) (string, bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".go") || p.excluded(path) {
		return content, false, nil
	}

	out, err := format.Source([]byte(content))
	if err != nil {
		if p.cfg.Strict {
			return content, false, fmt.Errorf("format %s: %w", path, err)
		}
		p.Logger().WithFields(map[string]any{"path": path}).WarnErr(err, "left unformatted")
		return content, false, nil
	}

	formatted := string(out)
	return formatted, formatted != content, nil
}

func (p *FormatPlugin) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range p.cfg.Exclude {
		if ok, _ := filepath.Match(pattern, slashed); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(slashed)); ok {
			return true
		}
	}
	return false
}
