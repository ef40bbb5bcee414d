package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apipackerrors "github.com/alexisbeaulieu97/apipack/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	logLevels     = map[string]struct{}{"debug": {}, "info": {}, "warn": {}, "error": {}}
	deployTargets = map[string]struct{}{"local": {}, "none": {}}
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("log_level", func(fl validator.FieldLevel) bool {
			_, ok := logLevels[strings.ToLower(fl.Field().String())]
			return ok
		})

		_ = v.RegisterValidation("deploy_target", func(fl validator.FieldLevel) bool {
			_, ok := deployTargets[fl.Field().String()]
			return ok
		})

		_ = v.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
			p := fl.Field().String()
			if p == "" {
				return true
			}
			if strings.Contains(p, "\x00") || filepath.IsAbs(p) {
				return false
			}
			clean := path.Clean(filepath.ToSlash(p))
			return clean != ".." && !strings.HasPrefix(clean, "../")
		})

		_ = v.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
			_, err := filepath.Match(fl.Field().String(), "")
			return err == nil
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns the shared validator for use outside the config package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

// ValidateSettings checks the settings document.
func ValidateSettings(s *Settings) error {
	if s == nil {
		return apipackerrors.NewValidationError("settings", "settings are nil", nil)
	}
	if err := validatorInstance().Struct(s); err != nil {
		return convertValidationError(err)
	}
	for name := range s.Plugins.Config {
		if strings.TrimSpace(name) == "" {
			return apipackerrors.NewValidationError("plugins.config", "plugin name must not be empty", nil)
		}
	}
	return nil
}

// ValidateSpec checks a generation spec.
func ValidateSpec(spec *GenerationSpec) error {
	if spec == nil {
		return apipackerrors.NewValidationError("spec", "spec is nil", nil)
	}
	if err := validatorInstance().Struct(spec); err != nil {
		return convertValidationError(err)
	}
	if len(spec.Files) == 0 && len(spec.Directories) == 0 {
		return apipackerrors.NewValidationError("spec", "spec declares no files or directories", nil)
	}

	outputs := make(map[string]int, len(spec.Files))
	for i, f := range spec.Files {
		key := path.Clean(filepath.ToSlash(f.Output))
		if prev, ok := outputs[key]; ok {
			return apipackerrors.NewValidationError(
				fmt.Sprintf("files[%d].output", i),
				fmt.Sprintf("output %q already produced by files[%d]", f.Output, prev),
				nil,
			)
		}
		outputs[key] = i
	}
	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return apipackerrors.NewValidationError(field, msg, err)
	}

	return apipackerrors.NewValidationError("config", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, part := range parts {
		parts[i] = snake(part)
	}
	return strings.Join(parts, ".")
}

// snake lowers a Go field name into its yaml key, keeping any [n] index.
func snake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && name[i-1] != '[' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
