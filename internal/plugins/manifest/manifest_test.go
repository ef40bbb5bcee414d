package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/apipack/internal/logger"
	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

func load(t *testing.T, raw map[string]any) (*plugin.Manager, *ManifestPlugin) {
	t.Helper()
	reg := plugin.NewRegistry(logger.Nop())
	require.Empty(t, reg.Discover(context.Background(), plugin.BuiltinSource))
	m := plugin.NewManager(reg, logger.Nop())
	t.Cleanup(func() { _ = m.Close() })

	p, err := m.Load(context.Background(), "manifest", raw)
	require.NoError(t, err)
	mp := p.(*ManifestPlugin)
	mp.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m, mp
}

func readDocument(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, yaml.Unmarshal(data, &doc))
	return doc
}

func runContext(dir string) plugin.RunContext {
	return plugin.RunContext{
		plugin.ContextRunID:     "run-1",
		plugin.ContextSpecName:  "petstore",
		plugin.ContextOutputDir: dir,
	}
}

func TestManifestListsWrittenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, _ := load(t, nil)
	ctx := context.Background()
	rc := runContext(dir)

	m.GenerateStart(ctx, plugin.Spec{"name": "petstore"}, rc)
	m.FileWritten(ctx, filepath.Join(dir, "src", "main.go"), rc)
	m.FileWritten(ctx, filepath.Join(dir, "README.md"), rc)
	m.GenerateEnd(ctx, plugin.Spec{"name": "petstore"}, rc)

	doc := readDocument(t, filepath.Join(dir, DefaultFilename))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, "petstore", doc.Spec)
	assert.Equal(t, "success", doc.Status)
	assert.Empty(t, doc.Error)
	assert.Equal(t, []string{"README.md", "src/main.go"}, doc.Files)
	assert.True(t, doc.GeneratedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestManifestRecordsFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, _ := load(t, map[string]any{"filename": "meta/run.yaml"})
	ctx := context.Background()
	rc := runContext(dir)

	m.GenerateStart(ctx, nil, rc)
	m.GenerateError(ctx, errors.New("template exploded"), nil, rc)

	doc := readDocument(t, filepath.Join(dir, "meta", "run.yaml"))
	assert.Equal(t, "failed", doc.Status)
	assert.Equal(t, "template exploded", doc.Error)
	assert.Empty(t, doc.Files)
}

func TestManifestStartResetsFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, p := load(t, nil)
	ctx := context.Background()
	rc := runContext(dir)

	m.FileWritten(ctx, filepath.Join(dir, "stale.txt"), rc)
	require.Len(t, p.Files(), 1)

	m.GenerateStart(ctx, nil, rc)
	assert.Empty(t, p.Files())
}

func TestManifestDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, _ := load(t, nil)
	rc := runContext(dir)
	rc[plugin.ContextDryRun] = true

	m.GenerateEnd(context.Background(), nil, rc)

	_, err := os.Stat(filepath.Join(dir, DefaultFilename))
	assert.True(t, os.IsNotExist(err))
}

func TestManifestWithoutOutputDirIsIsolated(t *testing.T) {
	t.Parallel()

	m, p := load(t, nil)
	require.Error(t, p.OnGenerateEnd(context.Background(), nil, plugin.RunContext{}))
	assert.NotPanics(t, func() { m.GenerateEnd(context.Background(), nil, plugin.RunContext{}) })
}

func TestManifestRejectsAbsoluteFilename(t *testing.T) {
	t.Parallel()

	reg := plugin.NewRegistry(logger.Nop())
	require.Empty(t, reg.Discover(context.Background(), plugin.BuiltinSource))
	m := plugin.NewManager(reg, logger.Nop())
	t.Cleanup(func() { _ = m.Close() })

	_, err := m.Load(context.Background(), "manifest", map[string]any{"filename": "/etc/manifest.yaml"})
	var cfgErr *plugin.PluginConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "filename", cfgErr.Field)
}
