package generator

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

// TemplateSuffix marks files under a template directory that are rendered
// rather than copied. It is stripped from the output name.
const TemplateSuffix = ".tmpl"

// ErrTemplateNotFound is returned when no template directory holds a template.
var ErrTemplateNotFound = errors.New("template not found")

var funcs = template.FuncMap{
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
	"join":    joinAny,
	"snake":   plugin.SnakeCase,
	"default": func(fallback, value any) any {
		if value == nil || value == "" {
			return fallback
		}
		return value
	},
}

func joinAny(sep string, items []any) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprint(item))
	}
	return strings.Join(parts, sep)
}

// locate finds name in the first template directory that contains it.
func (g *Generator) locate(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return name, nil
	}
	for _, dir := range g.opts.TemplateDirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrTemplateNotFound, name, strings.Join(g.opts.TemplateDirs, ", "))
}

// render executes the template file at path. Missing keys are errors.
func render(path string, data map[string]any) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(filepath.Base(path)).
		Option("missingkey=error").
		Funcs(funcs).
		Parse(string(src))
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// mergeContext layers override on top of base without mutating either.
func mergeContext(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
