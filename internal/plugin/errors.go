package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicatePlugin is returned when a name is already bound to another type or source.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrUnknownHook is returned when dispatch is asked for a hook that does not exist.
	ErrUnknownHook = errors.New("unknown hook")

	// ErrInvalidCandidate is returned for types that cannot be registered as plugins.
	ErrInvalidCandidate = errors.New("invalid plugin candidate")
)

// DiscoveryError reports a discovery unit or location that could not be loaded.
type DiscoveryError struct {
	Location string
	Unit     string
	Err      error
}

func (e *DiscoveryError) Error() string {
	if e.Unit != "" {
		return fmt.Sprintf("discovery of %s (%s) failed: %v", e.Location, e.Unit, e.Err)
	}
	return fmt.Sprintf("discovery of %s failed: %v", e.Location, e.Err)
}

// Unwrap exposes the underlying error.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// PluginNotFoundError is returned when a load is requested for an unregistered name.
type PluginNotFoundError struct {
	Name string
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin '%s' not found in registry\nHint: add its source or manifest directory to plugins.discover", e.Name)
}

// PluginConfigError is returned when configuration does not match the plugin's schema.
type PluginConfigError struct {
	Plugin string
	Field  string
	Err    error
}

func (e *PluginConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for plugin '%s' at %s: %v", e.Plugin, e.Field, e.Err)
	}
	return fmt.Sprintf("invalid configuration for plugin '%s': %v", e.Plugin, e.Err)
}

// Unwrap exposes the underlying error.
func (e *PluginConfigError) Unwrap() error { return e.Err }

// PluginInitError is returned when a plugin cannot be constructed or initialized.
type PluginInitError struct {
	Plugin string
	Err    error
}

func (e *PluginInitError) Error() string {
	return fmt.Sprintf("plugin '%s' failed to initialize: %v", e.Plugin, e.Err)
}

// Unwrap exposes the underlying error.
func (e *PluginInitError) Unwrap() error { return e.Err }

// HookDispatchError wraps an error or panic raised by a plugin hook.
type HookDispatchError struct {
	Hook   Hook
	Plugin string
	Err    error
}

func (e *HookDispatchError) Error() string {
	return fmt.Sprintf("hook %s failed in plugin '%s': %v", e.Hook, e.Plugin, e.Err)
}

// Unwrap exposes the underlying error.
func (e *HookDispatchError) Unwrap() error { return e.Err }

// PanicError carries a value recovered from plugin code.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// guard runs fn and converts a panic into a PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
