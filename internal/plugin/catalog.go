package plugin

import (
	"reflect"
	"sort"
	"sync"
)

// Candidate is a type offered by a discovery unit. Registration checks that
// it satisfies Plugin, is not Base itself, and can be constructed.
type Candidate struct {
	// Name overrides the derived name. Manifest-backed plugins share a Go
	// type and rely on it.
	Name        string
	Description string
	Type        reflect.Type
	New         func() any
}

// Provide builds a Candidate for T. A nil factory marks the type as abstract.
func Provide[T any](factory func() T) Candidate {
	c := Candidate{Type: reflect.TypeFor[T]()}
	if factory != nil {
		c.New = func() any { return factory() }
	}
	return c
}

// Unit is one independently loaded member of a source, the equivalent of a
// module in a package or a manifest file in a directory.
type Unit struct {
	Name string
	Load func() ([]Candidate, error)
}

// Static returns a Unit that always yields the given candidates.
func Static(name string, candidates ...Candidate) Unit {
	return Unit{
		Name: name,
		Load: func() ([]Candidate, error) { return candidates, nil },
	}
}

// ManifestBuilder turns a parsed manifest into a Candidate.
type ManifestBuilder func(m Manifest) (Candidate, error)

// Catalog holds the in-process sources and manifest kinds that discovery
// can resolve locations against.
type Catalog struct {
	mu      sync.RWMutex
	sources map[string][]Unit
	kinds   map[string]ManifestBuilder
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		sources: make(map[string][]Unit),
		kinds:   make(map[string]ManifestBuilder),
	}
}

var defaultCatalog = NewCatalog()

// DefaultCatalog returns the process catalog populated by DefineSource and
// DefineManifestKind from package init functions.
func DefaultCatalog() *Catalog { return defaultCatalog }

// DefineSource appends units to an in-process source on the default catalog.
func DefineSource(location string, units ...Unit) {
	defaultCatalog.DefineSource(location, units...)
}

// DefineManifestKind binds a manifest kind on the default catalog.
func DefineManifestKind(kind string, build ManifestBuilder) {
	defaultCatalog.DefineManifestKind(kind, build)
}

// DefineSource appends units to the source at location.
func (c *Catalog) DefineSource(location string, units ...Unit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[location] = append(c.sources[location], units...)
}

// DefineManifestKind binds kind to build. Later definitions replace earlier ones.
func (c *Catalog) DefineManifestKind(kind string, build ManifestBuilder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[kind] = build
}

// Sources lists the in-process source locations in sorted order.
func (c *Catalog) Sources() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.sources))
	for location := range c.sources {
		out = append(out, location)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) units(location string) ([]Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	units, ok := c.sources[location]
	if !ok {
		return nil, false
	}
	return append([]Unit(nil), units...), true
}

func (c *Catalog) manifestKind(kind string) (ManifestBuilder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	build, ok := c.kinds[kind]
	return build, ok
}
