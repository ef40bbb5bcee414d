package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTwiceReturnsSameInstance(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t, recorderCandidate("alpha", calls))
	ctx := context.Background()

	first, err := m.Load(ctx, "alpha", map[string]any{"priority": 3})
	require.NoError(t, err)
	second, err := m.Load(ctx, "alpha", map[string]any{"priority": 3})
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, calls.count("alpha:new"))
	require.Equal(t, 1, calls.count("alpha:initialize"))
	require.Equal(t, StateInitialized, m.State("alpha"))
	require.Equal(t, 3, first.(*recorder).Settings().Priority)
}

func TestLoadAppliesDefaultsAndPluginFields(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, recorderCandidate("alpha", &callLog{}), recorderCandidate("beta", &callLog{}))
	ctx := context.Background()

	p, err := m.Load(ctx, "alpha", nil)
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), p.(*recorder).Settings())
	require.Equal(t, "alpha", p.Name())

	p, err = m.Load(ctx, "beta", map[string]any{"label": "tagged", "retries": 2})
	require.NoError(t, err)
	rec := p.(*recorder)
	require.Equal(t, "tagged", rec.cfg.Label)
	require.Equal(t, 2, rec.cfg.Retries)
	require.True(t, rec.Settings().Enabled)
	require.Equal(t, DefaultPriority, rec.Settings().Priority)
	require.True(t, rec.Initialized())
}

func TestLoadUnknownPluginReturnsNil(t *testing.T) {
	t.Parallel()

	m, buf := newTestManager(t)

	p, err := m.Load(context.Background(), "ghost", nil)
	require.Nil(t, p)
	var notFound *PluginNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "ghost", notFound.Name)
	require.Contains(t, buf.String(), "plugin not loaded")
	require.Equal(t, StateUnregistered, m.State("ghost"))
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{name: "unknown key", raw: map[string]any{"colour": "blue"}},
		{name: "wrong type", raw: map[string]any{"priority": "high"}},
		{name: "validator tag", raw: map[string]any{"retries": 9}, field: "retries"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			calls := &callLog{}
			m, _ := newTestManager(t, recorderCandidate("alpha", calls))

			p, err := m.Load(context.Background(), "alpha", tc.raw)
			require.Nil(t, p)
			var cfgErr *PluginConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, "alpha", cfgErr.Plugin)
			if tc.field != "" {
				require.Equal(t, tc.field, cfgErr.Field)
			}
			require.Zero(t, calls.count("alpha:initialize"))
			require.Empty(t, m.Loaded())
		})
	}
}

func TestInitFailureIsNotStoredAndCanBeRetried(t *testing.T) {
	t.Parallel()

	failures := 1
	calls := &callLog{}
	m, _ := newTestManager(t, recorderCandidate("alpha", calls, withSharedInitFailures(&failures)))
	ctx := context.Background()

	p, err := m.Load(ctx, "alpha", nil)
	require.Nil(t, p)
	var initErr *PluginInitError
	require.ErrorAs(t, err, &initErr)
	require.Contains(t, initErr.Error(), "resource unavailable")
	_, loaded := m.Get("alpha")
	require.False(t, loaded)
	require.Equal(t, StateRegistered, m.State("alpha"))

	p, err = m.Load(ctx, "alpha", nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, []string{"alpha"}, m.Loaded())
	require.Equal(t, 2, calls.count("alpha:new"))
}

func TestInitPanicIsRecovered(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, recorderCandidate("alpha", &callLog{}, withInitPanic()))

	var p Plugin
	var err error
	require.NotPanics(t, func() { p, err = m.Load(context.Background(), "alpha", nil) })
	require.Nil(t, p)

	var initErr *PluginInitError
	require.ErrorAs(t, err, &initErr)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	require.Equal(t, "init exploded", panicErr.Value)
}

func TestConstructorPanicIsRecovered(t *testing.T) {
	t.Parallel()

	c := recorderCandidate("alpha", &callLog{})
	c.New = func() any { panic("no constructor today") }
	m, _ := newTestManager(t, c)

	p, err := m.Load(context.Background(), "alpha", nil)
	require.Nil(t, p)
	var initErr *PluginInitError
	require.ErrorAs(t, err, &initErr)
}

func TestLoadManyOrdersByPriorityThenRegistration(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t,
		recorderCandidate("a", calls),
		recorderCandidate("b", calls),
		recorderCandidate("c", calls),
	)

	loaded := m.LoadMany(context.Background(), map[string]map[string]any{
		"a": {"priority": 5},
		"b": {"priority": 1},
		"c": {"priority": 5},
	})

	require.Equal(t, []string{"b", "a", "c"}, names(loaded))
	require.Equal(t, []string{"b", "a", "c"}, m.Loaded())
}

func TestLoadManySkipsDisabledWithoutConstructing(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t, recorderCandidate("x", calls), recorderCandidate("y", calls))

	loaded := m.LoadMany(context.Background(), map[string]map[string]any{
		"x": {"enabled": false},
		"y": nil,
	})

	require.Equal(t, []string{"y"}, names(loaded))
	require.Zero(t, calls.count("x:new"))
	require.Zero(t, calls.count("x:initialize"))
	require.Equal(t, StateRegistered, m.State("x"))
}

func TestLoadManyLeavesOutFailures(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t,
		recorderCandidate("good", calls),
		recorderCandidate("broken", calls, withInitFailures(1)),
	)

	loaded := m.LoadMany(context.Background(), map[string]map[string]any{
		"good":    nil,
		"broken":  nil,
		"missing": {"priority": 1},
	})

	require.Equal(t, []string{"good"}, names(loaded))
}

func TestUnloadAllEmptiesStoreAndIsRepeatable(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t,
		recorderCandidate("a", calls),
		recorderCandidate("b", calls, withCleanupError(errors.New("disk gone"))),
		recorderCandidate("c", calls, withCleanupPanic()),
	)
	ctx := context.Background()
	m.LoadMany(ctx, map[string]map[string]any{"a": nil, "b": nil, "c": nil})
	require.Len(t, m.Loaded(), 3)

	require.NotPanics(t, func() { m.UnloadAll(ctx) })
	require.Empty(t, m.Loaded())
	for _, name := range []string{"a", "b", "c"} {
		require.Equal(t, 1, calls.count(name+":cleanup"))
		require.Equal(t, StateUnloaded, m.State(name))
	}

	require.NotPanics(t, func() { m.UnloadAll(ctx) })
	require.NoError(t, m.Close())
	require.Equal(t, 1, calls.count("a:cleanup"))
}

func TestUnloadIsSafeForUnknownNames(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	require.NotPanics(t, func() { m.Unload(context.Background(), "nobody") })
}

func TestUnloadedPluginCanBeLoadedAgain(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t, recorderCandidate("alpha", calls))
	ctx := context.Background()

	first, err := m.Load(ctx, "alpha", nil)
	require.NoError(t, err)
	m.Unload(ctx, "alpha")
	require.False(t, first.(*recorder).Initialized())

	second, err := m.Load(ctx, "alpha", nil)
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, StateInitialized, m.State("alpha"))
}

func TestInitializeAndCleanupAreIdempotent(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t, recorderCandidate("alpha", calls))
	ctx := context.Background()

	p, err := m.Load(ctx, "alpha", nil)
	require.NoError(t, err)

	require.NoError(t, initialize(ctx, p))
	require.Equal(t, 1, calls.count("alpha:initialize"))

	require.NoError(t, cleanup(ctx, p))
	require.NoError(t, cleanup(ctx, p))
	require.Equal(t, 1, calls.count("alpha:cleanup"))
}

func TestByCapabilityUsesLoadOrder(t *testing.T) {
	t.Parallel()

	calls := &callLog{}
	m, _ := newTestManager(t,
		recorderCandidate("late", calls, withCapabilities(CapabilityTransform)),
		recorderCandidate("early", calls, withCapabilities(CapabilityTransform, CapabilityObserve)),
		recorderCandidate("plain", calls),
	)
	ctx := context.Background()

	for _, name := range []string{"early", "plain", "late"} {
		_, err := m.Load(ctx, name, map[string]any{"priority": len(name)})
		require.NoError(t, err)
	}

	require.Equal(t, []string{"early", "late"}, names(m.ByCapability(CapabilityTransform)))
	require.Equal(t, []string{"early"}, names(m.ByCapability(CapabilityObserve)))
	require.Empty(t, m.ByCapability(CapabilityPublish))

	capable := Instances[Capable](m)
	require.Len(t, capable, 3)
	require.Len(t, Instances[*recorder](m), 3)
}

func names(list []Plugin) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Name())
	}
	return out
}

func TestManagerLogsPluginName(t *testing.T) {
	t.Parallel()

	m, buf := newTestManager(t, recorderCandidate("alpha", &callLog{}))
	_, err := m.Load(context.Background(), "alpha", nil)
	require.NoError(t, err)
	require.True(t, strings.Contains(buf.String(), `"plugin":"alpha"`))
	require.Contains(t, buf.String(), "plugin loaded")
}
