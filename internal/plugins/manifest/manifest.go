package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

func init() {
	plugin.DefineSource(plugin.BuiltinSource, plugin.Static("manifest", plugin.Provide(New)))
}

// DefaultFilename is written at the root of the output directory.
const DefaultFilename = "apipack-manifest.yaml"

// Config controls where the manifest is written.
type Config struct {
	plugin.Settings `yaml:",inline"`
	Filename        string `yaml:"filename" validate:"required,relpath"`
}

// Document is the on-disk manifest layout.
type Document struct {
	RunID       string    `yaml:"run_id"`
	Spec        string    `yaml:"spec"`
	Status      string    `yaml:"status"`
	Error       string    `yaml:"error,omitempty"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Files       []string  `yaml:"files"`
}

// ManifestPlugin records every written file and lists them in a YAML
// document once generation finishes.
type ManifestPlugin struct {
	plugin.Base
	cfg Config

	mu    sync.Mutex
	files []string
	now   func() time.Time
}

// New returns a manifest plugin writing DefaultFilename.
func New() *ManifestPlugin {
	return &ManifestPlugin{cfg: Config{Filename: DefaultFilename}, now: time.Now}
}

func (p *ManifestPlugin) ConfigSchema() any { return &p.cfg }

func (p *ManifestPlugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapabilityObserve, plugin.CapabilityPublish}
}

func (p *ManifestPlugin) OnGenerateStart(context.Context, plugin.Spec, plugin.RunContext) error {
	p.mu.Lock()
	p.files = nil
	p.mu.Unlock()
	return nil
}

func (p *ManifestPlugin) OnFileWritten(_ context.Context, path string, rc plugin.RunContext) error {
	if root := rc.String(plugin.ContextOutputDir); root != "" {
		if rel, err := filepath.Rel(root, path); err == nil {
			path = rel
		}
	}
	p.mu.Lock()
	p.files = append(p.files, filepath.ToSlash(path))
	p.mu.Unlock()
	return nil
}

func (p *ManifestPlugin) OnGenerateEnd(_ context.Context, _ plugin.Spec, rc plugin.RunContext) error {
	return p.write(rc, "success", nil)
}

func (p *ManifestPlugin) OnGenerateError(_ context.Context, genErr error, _ plugin.Spec, rc plugin.RunContext) error {
	return p.write(rc, "failed", genErr)
}

// Files returns the paths recorded for the current run.
func (p *ManifestPlugin) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.files...)
}

func (p *ManifestPlugin) write(rc plugin.RunContext, status string, genErr error) error {
	if rc.Bool(plugin.ContextDryRun) {
		p.Logger().Debug("dry run, manifest not written")
		return nil
	}
	root := rc.String(plugin.ContextOutputDir)
	if root == "" {
		return fmt.Errorf("run context has no %s", plugin.ContextOutputDir)
	}

	files := p.Files()
	sort.Strings(files)
	doc := Document{
		RunID:       rc.String(plugin.ContextRunID),
		Spec:        rc.String(plugin.ContextSpecName),
		Status:      status,
		GeneratedAt: p.now().UTC(),
		Files:       files,
	}
	if genErr != nil {
		doc.Error = genErr.Error()
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	target := filepath.Join(root, p.cfg.Filename)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	p.Logger().WithFields(map[string]any{"path": target, "files": len(files)}).Info("manifest written")
	return nil
}
