package plugin

import (
	"reflect"
	"strings"
	"unicode"
)

const pluginSuffix = "Plugin"

// DeriveName computes the registry name for a plugin type: the type
// identifier without a trailing "Plugin", in snake case. Runs of capitals
// stay together, so HTTPHeaderPlugin becomes http_header.
func DeriveName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}

	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if name != pluginSuffix {
		name = strings.TrimSuffix(name, pluginSuffix)
	}
	return SnakeCase(name)
}

// SnakeCase converts a CamelCase identifier to lower snake case.
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
