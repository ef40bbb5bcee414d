package plugin

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/apipack/internal/logger"
)

type instance struct {
	plugin  Plugin
	desc    Descriptor
	loadSeq int
}

// Manager owns the live plugin instances of one generation pipeline. It
// loads plugins from a Registry, dispatches hooks to them in priority order,
// and tears them down.
type Manager struct {
	mu        sync.RWMutex
	registry  *Registry
	instances map[string]*instance
	unloaded  map[string]bool
	loadSeq   int
	logger    *logger.Logger
}

// NewManager returns a Manager backed by reg. Callers should defer Close;
// a finalizer unloads anything left behind as a last resort.
func NewManager(reg *Registry, log *logger.Logger) *Manager {
	if reg == nil {
		reg = NewRegistry(log)
	}
	m := &Manager{
		registry:  reg,
		instances: make(map[string]*instance),
		unloaded:  make(map[string]bool),
		logger:    log,
	}
	runtime.SetFinalizer(m, func(m *Manager) {
		m.UnloadAll(context.Background())
	})
	return m
}

// Registry returns the registry the manager loads from.
func (m *Manager) Registry() *Registry { return m.registry }

// Discover populates the registry from the given locations.
func (m *Manager) Discover(ctx context.Context, locations ...string) []error {
	return m.registry.Discover(ctx, locations...)
}

// Load returns the instance for name, constructing, configuring and
// initializing it on first use. Failures are logged and returned with a nil
// plugin so callers can carry on without it.
func (m *Manager) Load(ctx context.Context, name string, raw map[string]any) (Plugin, error) {
	if p, ok := m.Get(name); ok {
		return p, nil
	}

	log := m.logger.ForPlugin(name)

	desc, ok := m.registry.Lookup(name)
	if !ok {
		err := &PluginNotFoundError{Name: name}
		log.WarnErr(err, "plugin not loaded")
		return nil, err
	}

	p, err := desc.construct()
	if err != nil {
		initErr := &PluginInitError{Plugin: name, Err: err}
		log.Error(initErr, "plugin not loaded")
		return nil, initErr
	}

	var schema any
	if err := guard(func() error { schema = p.ConfigSchema(); return nil }); err != nil {
		cfgErr := &PluginConfigError{Plugin: name, Err: err}
		log.Error(cfgErr, "plugin not loaded")
		return nil, cfgErr
	}

	settings, err := decodeSchema(name, schema, raw)
	if err != nil {
		log.Error(err, "plugin not loaded")
		return nil, err
	}

	b := p.base()
	b.name = name
	b.settings = settings
	b.log = log
	b.state = StateLoaded

	if err := initialize(ctx, p); err != nil {
		initErr := &PluginInitError{Plugin: name, Err: err}
		log.Error(initErr, "plugin not loaded")
		return nil, initErr
	}

	m.mu.Lock()
	if existing, ok := m.instances[name]; ok {
		m.mu.Unlock()
		m.teardown(ctx, name, p)
		return existing.plugin, nil
	}
	m.loadSeq++
	m.instances[name] = &instance{plugin: p, desc: desc, loadSeq: m.loadSeq}
	delete(m.unloaded, name)
	m.mu.Unlock()

	log.WithFields(map[string]any{
		"priority": settings.Priority,
		"enabled":  settings.Enabled,
		"source":   desc.Source,
	}).Info("plugin loaded")

	return p, nil
}

// LoadMany loads every configured plugin whose enabled field is not false
// and returns the loaded set ordered by priority, ties broken by
// registration order. A nil configuration loads with defaults. Failed loads
// are logged and left out.
func (m *Manager) LoadMany(ctx context.Context, configs map[string]map[string]any) []Plugin {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	m.sortByRegistration(names)

	loaded := make([]*instance, 0, len(names))
	for _, name := range names {
		raw := configs[name]
		if disabled(raw) {
			m.logger.ForPlugin(name).Debug("plugin disabled, skipping")
			continue
		}
		if _, err := m.Load(ctx, name, raw); err != nil {
			continue
		}
		m.mu.RLock()
		inst, ok := m.instances[name]
		m.mu.RUnlock()
		if ok {
			loaded = append(loaded, inst)
		}
	}

	sortByPriority(loaded)
	return plugins(loaded)
}

// Unload removes name from the store and runs its cleanup. Cleanup errors
// and panics are logged, never returned.
func (m *Manager) Unload(ctx context.Context, name string) {
	m.mu.Lock()
	inst, ok := m.instances[name]
	if ok {
		delete(m.instances, name)
		m.unloaded[name] = true
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.teardown(ctx, name, inst.plugin)
	m.logger.ForPlugin(name).Debug("plugin unloaded")
}

// UnloadAll unloads every loaded plugin. Order is unspecified. Calling it on
// an empty store does nothing.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		m.Unload(ctx, name)
	}
}

// Close unloads all plugins. It is safe to call more than once.
func (m *Manager) Close() error {
	m.UnloadAll(context.Background())
	return nil
}

// Get returns the loaded instance for name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[name]
	if !ok {
		return nil, false
	}
	return inst.plugin, true
}

// Loaded lists loaded names in priority order.
func (m *Manager) Loaded() []string {
	ordered := m.snapshot(false)
	names := make([]string, 0, len(ordered))
	for _, inst := range ordered {
		names = append(names, inst.desc.Name)
	}
	return names
}

// State reports where name is in its lifecycle.
func (m *Manager) State(name string) State {
	m.mu.RLock()
	inst, loaded := m.instances[name]
	wasUnloaded := m.unloaded[name]
	m.mu.RUnlock()

	switch {
	case loaded:
		return inst.plugin.base().state
	case wasUnloaded:
		return StateUnloaded
	}
	if _, ok := m.registry.Lookup(name); ok {
		return StateRegistered
	}
	return StateUnregistered
}

// ByCapability returns loaded plugins declaring c, in load order.
func (m *Manager) ByCapability(c Capability) []Plugin {
	var out []Plugin
	for _, inst := range m.byLoadOrder() {
		if HasCapability(inst.plugin, c) {
			out = append(out, inst.plugin)
		}
	}
	return out
}

// Instances returns loaded plugins implementing T, in load order.
func Instances[T any](m *Manager) []T {
	var out []T
	for _, inst := range m.byLoadOrder() {
		if v, ok := inst.plugin.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func (m *Manager) byLoadOrder() []*instance {
	m.mu.RLock()
	out := make([]*instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].loadSeq < out[j].loadSeq })
	return out
}

// snapshot copies the store in priority order, optionally keeping only
// enabled instances. Hooks run against the copy outside the lock.
func (m *Manager) snapshot(enabledOnly bool) []*instance {
	m.mu.RLock()
	out := make([]*instance, 0, len(m.instances))
	for _, inst := range m.instances {
		if enabledOnly && !inst.plugin.base().settings.Enabled {
			continue
		}
		out = append(out, inst)
	}
	m.mu.RUnlock()

	sortByPriority(out)
	return out
}

func (m *Manager) sortByRegistration(names []string) {
	order := func(name string) (int, bool) {
		desc, ok := m.registry.Lookup(name)
		return desc.Order, ok
	}
	sort.SliceStable(names, func(i, j int) bool {
		oi, iok := order(names[i])
		oj, jok := order(names[j])
		if iok != jok {
			return iok
		}
		if !iok {
			return names[i] < names[j]
		}
		return oi < oj
	})
}

func (m *Manager) teardown(ctx context.Context, name string, p Plugin) {
	if err := cleanup(ctx, p); err != nil {
		m.logger.ForPlugin(name).WarnErr(err, "plugin cleanup failed")
	}
}

// initialize runs Initialize once. Repeated calls are no-ops.
func initialize(ctx context.Context, p Plugin) error {
	b := p.base()
	if b.initialized {
		return nil
	}
	if err := guard(func() error { return p.Initialize(ctx) }); err != nil {
		return err
	}
	b.initialized = true
	b.state = StateInitialized
	return nil
}

// cleanup runs Cleanup if the plugin is initialized and always leaves it
// unloaded. Repeated calls are no-ops.
func cleanup(ctx context.Context, p Plugin) error {
	b := p.base()
	if !b.initialized {
		b.state = StateUnloaded
		return nil
	}
	b.initialized = false
	b.state = StateUnloaded
	return guard(func() error { return p.Cleanup(ctx) })
}

func disabled(raw map[string]any) bool {
	v, ok := raw["enabled"]
	if !ok {
		return false
	}
	enabled, isBool := v.(bool)
	return isBool && !enabled
}

func sortByPriority(list []*instance) {
	sort.SliceStable(list, func(i, j int) bool {
		pi := list[i].plugin.base().settings.Priority
		pj := list[j].plugin.base().settings.Priority
		if pi != pj {
			return pi < pj
		}
		return list[i].desc.Order < list[j].desc.Order
	})
}

func plugins(list []*instance) []Plugin {
	out := make([]Plugin, 0, len(list))
	for _, inst := range list {
		out = append(out, inst.plugin)
	}
	return out
}
