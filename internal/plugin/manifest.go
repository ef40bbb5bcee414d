package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/apipack/internal/config"
)

// DefaultManifestKind is used when a manifest omits kind.
const DefaultManifestKind = "command"

var (
	manifestValidatorOnce sync.Once
	pluginNamePattern     = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Manifest describes a plugin that lives outside the binary. Each *.yaml
// file in a discovered directory holds one manifest.
type Manifest struct {
	Name         string            `yaml:"name" validate:"required,plugin_name"`
	Kind         string            `yaml:"kind"`
	Description  string            `yaml:"description"`
	Command      []string          `yaml:"command" validate:"required,min=1,dive,required"`
	Hooks        []string          `yaml:"hooks" validate:"omitempty,dive,hook_name"`
	Capabilities []string          `yaml:"capabilities"`
	Env          map[string]string `yaml:"env"`
	Timeout      time.Duration     `yaml:"timeout" validate:"gte=0"`

	// Dir is the directory holding the manifest; relative commands resolve against it.
	Dir string `yaml:"-"`
}

// ParseManifest decodes and validates a manifest file.
func ParseManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, fmt.Errorf("manifest is empty")
		}
		return Manifest{}, err
	}

	if m.Kind == "" {
		m.Kind = DefaultManifestKind
	}
	m.Dir = filepath.Dir(path)

	if err := manifestValidator().Struct(&m); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return Manifest{}, fmt.Errorf("%s failed validation for tag '%s'", SnakeCase(ves[0].Field()), ves[0].Tag())
		}
		return Manifest{}, err
	}

	return m, nil
}

func manifestValidator() *validator.Validate {
	manifestValidatorOnce.Do(func() {
		v := config.GetValidator()
		_ = v.RegisterValidation("plugin_name", func(fl validator.FieldLevel) bool {
			return pluginNamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("hook_name", func(fl validator.FieldLevel) bool {
			_, ok := hookNames[Hook(fl.Field().String())]
			return ok
		})
	})
	return config.GetValidator()
}

// manifestUnits lists one unit per manifest file in dir, sorted by file name.
func (r *Registry) manifestUnits(dir string) ([]Unit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	units := make([]Unit, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		units = append(units, Unit{
			Name: name,
			Load: func() ([]Candidate, error) {
				m, err := ParseManifest(path)
				if err != nil {
					return nil, err
				}
				build, ok := r.catalog.manifestKind(m.Kind)
				if !ok {
					return nil, fmt.Errorf("unknown manifest kind %q", m.Kind)
				}
				c, err := build(m)
				if err != nil {
					return nil, err
				}
				if c.Name == "" {
					c.Name = m.Name
				}
				if c.Description == "" {
					c.Description = m.Description
				}
				return []Candidate{c}, nil
			},
		})
	}
	return units, nil
}
