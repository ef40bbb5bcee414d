package plugin

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/alexisbeaulieu97/apipack/internal/logger"
)

var (
	pluginInterface = reflect.TypeFor[Plugin]()
	baseType        = reflect.TypeFor[Base]()
	basePtrType     = reflect.TypeFor[*Base]()
)

// Descriptor records a registered plugin type. It is immutable once stored.
type Descriptor struct {
	Name        string
	Description string
	Type        reflect.Type
	Source      string
	Unit        string
	// Order is the registration sequence number used to break priority ties.
	Order int

	newFn func() any
}

// Registry maps plugin names to descriptors populated by discovery.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Descriptor
	names   []string
	seq     int
	catalog *Catalog
	logger  *logger.Logger
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithCatalog resolves discovery locations against c instead of the default catalog.
func WithCatalog(c *Catalog) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.catalog = c
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		byName:  make(map[string]Descriptor),
		catalog: defaultCatalog,
		logger:  log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates c and binds it under its name. The first registration
// of a name wins. A repeat registration of the same type from the same
// source and unit is a silent no-op; any other clash returns an error
// wrapping ErrDuplicatePlugin and leaves the existing entry untouched.
func (r *Registry) Register(source, unit string, c Candidate) (Descriptor, error) {
	if err := checkCandidate(c); err != nil {
		return Descriptor{}, err
	}

	name := c.Name
	if name == "" {
		name = DeriveName(c.Type)
	}
	if name == "" {
		return Descriptor{}, fmt.Errorf("%w: %s has no name", ErrInvalidCandidate, c.Type)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		if existing.Type == c.Type && existing.Source == source && existing.Unit == unit {
			return existing, nil
		}
		return existing, fmt.Errorf("%w: %q from %s (%s) conflicts with %s (%s)",
			ErrDuplicatePlugin, name, source, unit, existing.Source, existing.Unit)
	}

	r.seq++
	desc := Descriptor{
		Name:        name,
		Description: c.Description,
		Type:        c.Type,
		Source:      source,
		Unit:        unit,
		Order:       r.seq,
		newFn:       c.New,
	}
	r.byName[name] = desc
	r.names = append(r.names, name)
	return desc, nil
}

func checkCandidate(c Candidate) error {
	t := c.Type
	switch {
	case t == nil:
		return fmt.Errorf("%w: missing type", ErrInvalidCandidate)
	case t == pluginInterface || t == baseType || t == basePtrType:
		return fmt.Errorf("%w: %s is the plugin contract itself", ErrInvalidCandidate, t)
	case t.Kind() == reflect.Interface:
		return fmt.Errorf("%w: %s is an interface", ErrInvalidCandidate, t)
	case !t.Implements(pluginInterface):
		return fmt.Errorf("%w: %s does not implement plugin.Plugin", ErrInvalidCandidate, t)
	case c.New == nil:
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidCandidate, t)
	}
	return nil
}

// Discover resolves each location against the catalog's in-process sources,
// falling back to a directory of manifests. Failures are logged and
// returned but never stop the scan.
func (r *Registry) Discover(ctx context.Context, locations ...string) []error {
	var issues []error

	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			issues = append(issues, &DiscoveryError{Location: location, Err: err})
			break
		}

		units, err := r.resolve(location)
		if err != nil {
			derr := &DiscoveryError{Location: location, Err: err}
			r.logger.WithFields(map[string]any{"location": location}).WarnErr(derr, "skipping discovery location")
			issues = append(issues, derr)
			continue
		}

		for _, unit := range units {
			issues = append(issues, r.discoverUnit(location, unit)...)
		}
	}

	return issues
}

func (r *Registry) resolve(location string) ([]Unit, error) {
	if units, ok := r.catalog.units(location); ok {
		return units, nil
	}

	info, err := os.Stat(location)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no plugin source or directory named %q", location)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", location)
	}
	return r.manifestUnits(location)
}

func (r *Registry) discoverUnit(location string, unit Unit) []error {
	log := r.logger.WithFields(map[string]any{"location": location, "unit": unit.Name})

	var candidates []Candidate
	err := guard(func() error {
		if unit.Load == nil {
			return fmt.Errorf("unit has no loader")
		}
		var loadErr error
		candidates, loadErr = unit.Load()
		return loadErr
	})
	if err != nil {
		derr := &DiscoveryError{Location: location, Unit: unit.Name, Err: err}
		log.WarnErr(derr, "skipping plugin source unit")
		return []error{derr}
	}

	var issues []error
	for _, c := range candidates {
		desc, err := r.Register(location, unit.Name, c)
		if err != nil {
			log.WithFields(map[string]any{"type": fmt.Sprint(c.Type)}).WarnErr(err, "plugin not registered")
			issues = append(issues, &DiscoveryError{Location: location, Unit: unit.Name, Err: err})
			continue
		}
		log.WithFields(map[string]any{"plugin": desc.Name}).Debug("plugin registered")
	}
	return issues
}

// Lookup returns the descriptor bound to name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.byName[name]
	return desc, ok
}

// Names lists registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Descriptors lists registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// Reset clears all registrations so discovery can run from scratch.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = make(map[string]Descriptor)
	r.names = nil
	r.seq = 0
}

// construct builds a fresh instance from the descriptor.
func (d Descriptor) construct() (Plugin, error) {
	var value any
	if err := guard(func() error {
		value = d.newFn()
		return nil
	}); err != nil {
		return nil, err
	}

	p, ok := value.(Plugin)
	if !ok || isNil(p) {
		return nil, fmt.Errorf("constructor returned %T, not a plugin", value)
	}
	if p.base() == nil {
		return nil, fmt.Errorf("%T does not embed plugin.Base", p)
	}
	return p, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
