package plugin

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/apipack/internal/config"
)

// Default values for the common settings.
const (
	DefaultPriority = 100
	DefaultEnabled  = true
)

// Settings holds the configuration every plugin accepts. Plugin schema
// structs embed it inline:
//
//	type headerConfig struct {
//		plugin.Settings `yaml:",inline"`
//		Text string `yaml:"text" validate:"required"`
//	}
type Settings struct {
	Enabled  bool `yaml:"enabled"`
	Priority int  `yaml:"priority"`
}

// DefaultSettings returns enabled=true, priority=100.
func DefaultSettings() Settings {
	return Settings{Enabled: DefaultEnabled, Priority: DefaultPriority}
}

func (s *Settings) settings() *Settings { return s }

type settingsHolder interface {
	settings() *Settings
}

// decodeSchema applies defaults unless the constructor already set them, decodes raw into schema rejecting unknown
// keys, then runs validator tags. It returns the decoded common settings.
func decodeSchema(name string, schema any, raw map[string]any) (Settings, error) {
	holder, ok := schema.(settingsHolder)
	if !ok || reflect.ValueOf(schema).Kind() != reflect.Pointer || reflect.ValueOf(schema).IsNil() {
		return Settings{}, &PluginConfigError{
			Plugin: name,
			Err:    fmt.Errorf("config schema %T must be a non-nil pointer to a struct embedding plugin.Settings", schema),
		}
	}

	// Constructors may preset their own defaults.
	if s := holder.settings(); *s == (Settings{}) {
		*s = DefaultSettings()
	}

	if len(raw) > 0 {
		data, err := yaml.Marshal(raw)
		if err != nil {
			return Settings{}, &PluginConfigError{Plugin: name, Err: err}
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(schema); err != nil {
			return Settings{}, &PluginConfigError{Plugin: name, Err: err}
		}
	}

	if err := config.GetValidator().Struct(schema); err != nil {
		return Settings{}, convertSchemaError(name, err)
	}

	return *holder.settings(), nil
}

func convertSchemaError(name string, err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		field := yamlFieldPath(fe)
		return &PluginConfigError{
			Plugin: name,
			Field:  field,
			Err:    fmt.Errorf("%s failed validation for tag '%s'", field, fe.Tag()),
		}
	}
	return &PluginConfigError{Plugin: name, Err: err}
}

func yamlFieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, part := range parts {
		if part == "Settings" {
			continue
		}
		out = append(out, SnakeCase(part))
	}
	return strings.Join(out, ".")
}
