package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	apipackerrors "github.com/alexisbeaulieu97/apipack/pkg/errors"
)

const (
	// EnvPrefix starts every settings override variable.
	EnvPrefix = "APIPACK_"
	// EnvNestedDelimiter separates a section from its field.
	EnvNestedDelimiter = "__"
)

// ApplyEnv overrides settings from environ entries of the form
// APIPACK_<SECTION>__<FIELD>=value. List fields take comma-separated values.
// Unknown variables under the prefix are ignored.
func ApplyEnv(s *Settings, environ []string) error {
	if s == nil {
		return nil
	}

	fields := make(map[string]reflect.Value)
	collectEnvFields(reflect.ValueOf(s).Elem(), "", fields)

	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		name := strings.ToUpper(strings.TrimPrefix(key, EnvPrefix))
		field, known := fields[name]
		if !known {
			continue
		}

		if err := setFromString(field, value); err != nil {
			return apipackerrors.NewValidationError(key, err.Error(), err)
		}
	}

	return nil
}

func collectEnvFields(v reflect.Value, prefix string, out map[string]reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
		if tag == "" || tag == "-" {
			continue
		}

		name := prefix + strings.ToUpper(tag)
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			collectEnvFields(fv, name+EnvNestedDelimiter, out)
			continue
		}
		out[name] = fv
	}
}

func setFromString(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", raw)
		}
		field.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(int64(n))
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", field.Type())
		}
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("cannot be set from the environment")
	}
	return nil
}
