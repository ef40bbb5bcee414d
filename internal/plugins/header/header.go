package header

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

func init() {
	plugin.DefineSource(plugin.BuiltinSource, plugin.Static("header", plugin.Provide(New)))
}

// DefaultText is written when no text is configured.
const DefaultText = "Code generated by apipack. DO NOT EDIT."

var commentPrefixes = map[string]string{
	".go":    "// ",
	".js":    "// ",
	".ts":    "// ",
	".java":  "// ",
	".rs":    "// ",
	".proto": "// ",
	".py":    "# ",
	".sh":    "# ",
	".yaml":  "# ",
	".yml":   "# ",
	".toml":  "# ",
	".sql":   "-- ",
}

// Config controls the header text and which files receive it.
type Config struct {
	plugin.Settings `yaml:",inline"`
	Text            string   `yaml:"text" validate:"required"`
	Extensions      []string `yaml:"extensions" validate:"omitempty,dive,startswith=."`
}

// HeaderPlugin prepends a generated-code banner to every file whose
// extension has a known comment syntax.
type HeaderPlugin struct {
	plugin.Base
	cfg Config
}

// New returns a header plugin with the default text.
func New() *HeaderPlugin {
	return &HeaderPlugin{cfg: Config{Text: DefaultText}}
}

func (p *HeaderPlugin) ConfigSchema() any { return &p.cfg }

func (p *HeaderPlugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapabilityTransform}
}

func (p *HeaderPlugin) OnFileGenerate(_ context.Context, path, content string, _ plugin.RunContext) (string, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !p.applies(ext) {
		return content, false, nil
	}
	prefix, ok := commentPrefixes[ext]
	if !ok {
		return content, false, nil
	}

	banner := render(prefix, p.cfg.Text)
	if strings.HasPrefix(content, banner) {
		return content, false, nil
	}
	return banner + "\n" + content, true, nil
}

func (p *HeaderPlugin) applies(ext string) bool {
	if len(p.cfg.Extensions) == 0 {
		return true
	}
	for _, allowed := range p.cfg.Extensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func render(prefix, text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(strings.TrimRight(prefix+line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
