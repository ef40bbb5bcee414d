package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	apipackerrors "github.com/alexisbeaulieu97/apipack/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// LoadSettings builds the effective settings: defaults, then the file at path
// (when non-empty), then APIPACK_ environment overrides from environ.
func LoadSettings(path string, environ []string) (*Settings, error) {
	settings := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apipackerrors.NewParseError(path, 0, err)
		}
		if err := decodeStrict(data, settings); err != nil {
			return nil, apipackerrors.NewParseError(path, extractLine(err), err)
		}
	}

	if err := ApplyEnv(settings, environ); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// ParseSpec loads a generation spec from disk and validates it.
func ParseSpec(path string) (*GenerationSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apipackerrors.NewParseError(path, 0, err)
	}

	var spec GenerationSpec
	if err := decodeStrict(data, &spec); err != nil {
		return nil, apipackerrors.NewParseError(path, extractLine(err), err)
	}

	if err := ValidateSpec(&spec); err != nil {
		return nil, err
	}

	return &spec, nil
}

// decodeStrict rejects unknown keys. An empty document leaves out untouched.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
