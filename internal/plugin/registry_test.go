package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type notAPlugin struct{}

type extendedPlugin interface {
	Plugin
	Extra()
}

type FormatPlugin struct{ Base }

func firstFoo() Candidate {
	type FooPlugin struct{ Base }
	return Provide(func() *FooPlugin { return &FooPlugin{} })
}

func secondFoo() Candidate {
	type FooPlugin struct {
		Base
		second bool
	}
	return Provide(func() *FooPlugin { return &FooPlugin{second: true} })
}

func newTestRegistry(t *testing.T, catalog *Catalog) *Registry {
	t.Helper()
	log, _ := newTestLogger(t)
	return NewRegistry(log, WithCatalog(catalog))
}

func TestDiscoverFirstRegistrationWins(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	catalog.DefineSource("src/one", Static("foo.go", firstFoo()))
	catalog.DefineSource("src/two", Static("foo.go", secondFoo()))

	log, buf := newTestLogger(t)
	reg := NewRegistry(log, WithCatalog(catalog))

	issues := reg.Discover(context.Background(), "src/one", "src/two")
	require.Len(t, issues, 1)
	require.ErrorIs(t, issues[0], ErrDuplicatePlugin)
	require.Contains(t, buf.String(), "plugin not registered")

	desc, ok := reg.Lookup("foo")
	require.True(t, ok)
	require.Equal(t, "src/one", desc.Source)
	require.Equal(t, firstFoo().Type, desc.Type)
	require.Equal(t, []string{"foo"}, reg.Names())
}

func TestRediscoveryIsIdempotent(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	catalog.DefineSource("apipack/plugins",
		Static("format.go", Provide(func() *FormatPlugin { return &FormatPlugin{} })),
		Static("foo.go", firstFoo()),
	)
	reg := newTestRegistry(t, catalog)
	ctx := context.Background()

	require.Empty(t, reg.Discover(ctx, "apipack/plugins"))
	require.Empty(t, reg.Discover(ctx, "apipack/plugins", "apipack/plugins"))
	require.Equal(t, []string{"format", "foo"}, reg.Names())

	descs := reg.Descriptors()
	require.Equal(t, 1, descs[0].Order)
	require.Equal(t, 2, descs[1].Order)
}

func TestDiscoverSkipsBrokenUnits(t *testing.T) {
	t.Parallel()

	catalog := NewCatalog()
	catalog.DefineSource("src",
		Unit{Name: "broken.go", Load: func() ([]Candidate, error) { return nil, errors.New("syntax error") }},
		Unit{Name: "panics.go", Load: func() ([]Candidate, error) { panic("import cycle") }},
		Unit{Name: "empty.go"},
		Static("format.go", Provide(func() *FormatPlugin { return &FormatPlugin{} })),
	)
	reg := newTestRegistry(t, catalog)

	issues := reg.Discover(context.Background(), "src")
	require.Len(t, issues, 3)
	for _, issue := range issues {
		var derr *DiscoveryError
		require.ErrorAs(t, issue, &derr)
		require.Equal(t, "src", derr.Location)
	}
	require.Equal(t, []string{"format"}, reg.Names())
}

func TestDiscoverRejectsInvalidCandidates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		candidate Candidate
	}{
		{name: "not a plugin", candidate: Provide(func() notAPlugin { return notAPlugin{} })},
		{name: "contract interface", candidate: Provide(func() Plugin { return &FormatPlugin{} })},
		{name: "base itself", candidate: Provide(func() *Base { return &Base{} })},
		{name: "other interface", candidate: Provide[extendedPlugin](nil)},
		{name: "abstract", candidate: Provide[*FormatPlugin](nil)},
		{name: "missing type", candidate: Candidate{New: func() any { return &FormatPlugin{} }}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			catalog := NewCatalog()
			catalog.DefineSource("src", Static("unit.go", tc.candidate))
			reg := newTestRegistry(t, catalog)

			issues := reg.Discover(context.Background(), "src")
			require.Len(t, issues, 1)
			require.ErrorIs(t, issues[0], ErrInvalidCandidate)
			require.Empty(t, reg.Names())
		})
	}
}

func TestDiscoverUnknownLocation(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, NewCatalog())
	missing := filepath.Join(t.TempDir(), "nope")

	issues := reg.Discover(context.Background(), missing)
	require.Len(t, issues, 1)
	var derr *DiscoveryError
	require.ErrorAs(t, issues[0], &derr)
	require.Equal(t, missing, derr.Location)
}

func TestDiscoverManifestDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("a_lint.yaml", "name: lint\nkind: test\ndescription: runs a linter\ncommand: [./lint.sh]\nhooks: [on_file_written]\ntimeout: 30s\n")
	write("b_broken.yaml", "name: [unterminated\n")
	write("c_unknown_kind.yml", "name: notify\nkind: webhook\ncommand: [curl]\n")
	write("d_bad_hook.yaml", "name: bad_hook\nkind: test\ncommand: [x]\nhooks: [on_deploy]\n")
	write("e_no_command.yaml", "name: idle\nkind: test\n")
	write("notes.txt", "not a manifest")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	var built []Manifest
	calls := &callLog{}
	catalog := NewCatalog()
	catalog.DefineManifestKind("test", func(m Manifest) (Candidate, error) {
		built = append(built, m)
		return recorderCandidate(m.Name, calls), nil
	})
	reg := newTestRegistry(t, catalog)

	issues := reg.Discover(context.Background(), dir)
	require.Len(t, issues, 4)
	require.Equal(t, []string{"lint"}, reg.Names())

	desc, ok := reg.Lookup("lint")
	require.True(t, ok)
	require.Equal(t, "runs a linter", desc.Description)
	require.Equal(t, "a_lint.yaml", desc.Unit)
	require.Equal(t, reflect.TypeFor[*recorder](), desc.Type)

	require.Len(t, built, 1)
	require.Equal(t, dir, built[0].Dir)
	require.Equal(t, []string{"on_file_written"}, built[0].Hooks)
	require.Equal(t, "30s", built[0].Timeout.String())

	require.Len(t, reg.Discover(context.Background(), dir), 4)
	require.Equal(t, []string{"lint"}, reg.Names())
}

func TestRegistryReset(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, NewCatalog())
	_, err := reg.Register("src", "unit", Provide(func() *FormatPlugin { return &FormatPlugin{} }))
	require.NoError(t, err)

	reg.Reset()
	require.Empty(t, reg.Names())
	_, ok := reg.Lookup("format")
	require.False(t, ok)
}

func TestDefaultCatalogSources(t *testing.T) {
	DefineSource("registry_test/source", Static("format.go", Provide(func() *FormatPlugin { return &FormatPlugin{} })))
	require.Contains(t, DefaultCatalog().Sources(), "registry_test/source")

	reg := NewRegistry(nil)
	require.Empty(t, reg.Discover(context.Background(), "registry_test/source"))
	require.Equal(t, []string{"format"}, reg.Names())
}
