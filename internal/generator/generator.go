// Package generator renders a generation spec into an output directory and
// drives the plugin hooks around every file it emits.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/apipack/internal/config"
	"github.com/alexisbeaulieu97/apipack/internal/logger"
	"github.com/alexisbeaulieu97/apipack/internal/plugin"
	apipackerrors "github.com/alexisbeaulieu97/apipack/pkg/errors"
)

// Hooks is the subset of the plugin manager the pipeline calls.
type Hooks interface {
	GenerateStart(ctx context.Context, spec plugin.Spec, rc plugin.RunContext)
	GenerateEnd(ctx context.Context, spec plugin.Spec, rc plugin.RunContext)
	GenerateError(ctx context.Context, genErr error, spec plugin.Spec, rc plugin.RunContext)
	FileGenerate(ctx context.Context, path, content string, rc plugin.RunContext) (string, error)
	FileWritten(ctx context.Context, path string, rc plugin.RunContext)
}

// Options configures a Generator.
type Options struct {
	TemplateDirs []string
	OutputDir    string
	Overwrite    bool
	DryRun       bool

	// OnEvent, when set, receives per-file progress.
	OnEvent func(Event)
}

// Generator renders specs. A Generator is not safe for concurrent runs.
type Generator struct {
	hooks  Hooks
	logger *logger.Logger
	opts   Options
	newID  func() string
}

// New returns a Generator. A nil hooks value runs without plugins.
func New(hooks Hooks, log *logger.Logger, opts Options) *Generator {
	if len(opts.TemplateDirs) == 0 {
		opts.TemplateDirs = []string{"."}
	}
	return &Generator{
		hooks:  hooks,
		logger: log,
		opts:   opts,
		newID:  uuid.NewString,
	}
}

// run carries the state of one Generate call.
type run struct {
	*Generator
	ctx    context.Context
	rc     plugin.RunContext
	root   string
	result *Result
	log    *logger.Logger
}

// Generate renders every file and directory in spec. Per-file failures are
// collected in the result; the returned error is reserved for failures that
// stop the run before or during setup, or context cancellation.
func (g *Generator) Generate(ctx context.Context, spec *config.GenerationSpec) (*Result, error) {
	if spec == nil {
		return nil, errors.New("generation spec is nil")
	}

	root, err := filepath.Abs(g.opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	runID := g.newID()
	r := &run{
		Generator: g,
		ctx:       ctx,
		root:      root,
		rc: plugin.RunContext{
			plugin.ContextRunID:     runID,
			plugin.ContextSpecName:  spec.Name,
			plugin.ContextOutputDir: root,
			plugin.ContextDryRun:    g.opts.DryRun,
		},
		result: &Result{RunID: runID, OutputDir: root, DryRun: g.opts.DryRun},
		log: g.logger.WithFields(map[string]any{
			"run_id": runID,
			"spec":   spec.Name,
		}),
	}
	specMap := plugin.Spec(spec.AsMap())

	r.log.WithFields(map[string]any{"output_dir": root, "dry_run": g.opts.DryRun}).Info("generation started")
	g.startHook(ctx, specMap, r.rc)

	if err := r.execute(spec); err != nil {
		r.result.Errors = append(r.result.Errors, err.Error())
		r.finish(specMap, err)
		return r.result, err
	}

	var genErr error
	if len(r.result.Errors) > 0 {
		genErr = fmt.Errorf("generation failed: %s", strings.Join(r.result.Errors, "; "))
	}
	r.finish(specMap, genErr)
	return r.result, nil
}

func (r *run) execute(spec *config.GenerationSpec) error {
	if !r.opts.DryRun {
		if err := os.MkdirAll(r.root, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	for _, f := range spec.Files {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		data := mergeContext(spec.Context, f.Context)
		if err := r.renderFile(f, data); err != nil {
			r.fail(filepath.Join(r.root, f.Output), fmt.Errorf("file %s: %w", f.Template, err))
		}
	}

	for _, d := range spec.Directories {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if err := r.walkDirectory(d, mergeContext(spec.Context, d.Context)); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.fail(filepath.Join(r.root, d.Destination), fmt.Errorf("directory %s: %w", d.Source, err))
		}
	}
	return nil
}

func (r *run) finish(spec plugin.Spec, genErr error) {
	r.result.Success = genErr == nil
	if genErr != nil {
		r.log.Error(genErr, "generation failed")
		r.errorHook(spec, genErr)
		return
	}
	r.log.WithFields(map[string]any{
		"generated": len(r.result.Generated),
		"skipped":   len(r.result.Skipped),
	}).Info("generation finished")
	r.endHook(spec)
}

func (r *run) renderFile(f config.FileSpec, data map[string]any) error {
	src, err := r.locate(f.Template)
	if err != nil {
		return err
	}
	target := filepath.Join(r.root, filepath.FromSlash(f.Output))
	if r.skip(target) {
		return nil
	}
	r.emit(Event{Kind: EventStarted, Path: target})

	content, err := render(src, data)
	if err != nil {
		return err
	}
	return r.write(target, content)
}

func (r *run) walkDirectory(d config.DirectorySpec, data map[string]any) error {
	src := d.Source
	if !filepath.IsAbs(src) {
		if found, err := r.locateDir(src); err == nil {
			src = found
		}
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	dest := filepath.Join(r.root, filepath.FromSlash(d.Destination))

	return filepath.WalkDir(src, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := r.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil || rel == "." {
			return err
		}
		if excluded(rel, d.Exclude) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}

		target := filepath.Join(dest, rel)
		if strings.HasSuffix(p, TemplateSuffix) {
			target = strings.TrimSuffix(target, TemplateSuffix)
			if r.skip(target) {
				return nil
			}
			r.emit(Event{Kind: EventStarted, Path: target})
			content, err := render(p, data)
			if err != nil {
				r.fail(target, fmt.Errorf("render %s: %w", rel, err))
				return nil
			}
			if err := r.write(target, content); err != nil {
				r.fail(target, err)
			}
			return nil
		}

		if r.skip(target) {
			return nil
		}
		r.emit(Event{Kind: EventStarted, Path: target})
		if err := r.copyFile(p, target); err != nil {
			r.fail(target, fmt.Errorf("copy %s: %w", rel, err))
		}
		return nil
	})
}

func (r *run) locateDir(name string) (string, error) {
	for _, dir := range r.opts.TemplateDirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// write passes content through the plugins and writes it unless the run is
// a dry run. A content hook failure leaves the file unwritten.
func (r *run) write(target, content string) error {
	content, err := r.fileHook(target, content)
	if err != nil {
		return err
	}
	if !r.opts.DryRun {
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return err
		}
	}
	r.generated(target)
	return nil
}

// copyFile copies src verbatim. Copied files skip the content hook.
func (r *run) copyFile(src, target string) error {
	if !r.opts.DryRun {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, info.Mode().Perm()); err != nil {
			return err
		}
	}
	r.generated(target)
	return nil
}

// skip records target as skipped when it exists and overwrite is off.
func (r *run) skip(target string) bool {
	if r.opts.Overwrite {
		return false
	}
	if _, err := os.Stat(target); err != nil {
		return false
	}
	r.result.Skipped = append(r.result.Skipped, target)
	r.log.WithFields(map[string]any{"path": target}).Debug("skipping existing file")
	r.emit(Event{Kind: EventSkipped, Path: target})
	return true
}

func (r *run) generated(target string) {
	r.result.Generated = append(r.result.Generated, target)
	r.log.WithFields(map[string]any{"path": target}).Debug("file generated")
	r.emit(Event{Kind: EventGenerated, Path: target})
	if !r.opts.DryRun && r.hooks != nil {
		r.hooks.FileWritten(r.ctx, target, r.rc)
	}
}

func (r *run) fail(target string, err error) {
	r.result.Errors = append(r.result.Errors, err.Error())
	r.log.WithFields(map[string]any{"path": target}).Error(err, "file not generated")
	r.emit(Event{Kind: EventFailed, Path: target, Err: err})
}

func (r *run) emit(e Event) {
	if r.opts.OnEvent != nil {
		r.opts.OnEvent(e)
	}
}

func (r *run) fileHook(target, content string) (string, error) {
	if r.hooks == nil {
		return content, nil
	}
	out, err := r.hooks.FileGenerate(r.ctx, target, content, r.rc)
	var dispatchErr *plugin.HookDispatchError
	if errors.As(err, &dispatchErr) {
		return content, apipackerrors.NewPluginError(dispatchErr.Plugin, err)
	}
	return out, err
}

func (g *Generator) startHook(ctx context.Context, spec plugin.Spec, rc plugin.RunContext) {
	if g.hooks != nil {
		g.hooks.GenerateStart(ctx, spec, rc)
	}
}

func (r *run) endHook(spec plugin.Spec) {
	if r.hooks != nil {
		r.hooks.GenerateEnd(r.ctx, spec, r.rc)
	}
}

func (r *run) errorHook(spec plugin.Spec, err error) {
	if r.hooks != nil {
		r.hooks.GenerateError(r.ctx, err, spec, r.rc)
	}
}

// excluded matches patterns against the slash-separated relative path and
// each of its trailing segments.
func excluded(rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	segments := strings.Split(rel, "/")
	for _, pattern := range patterns {
		for i := range segments {
			if ok, _ := path.Match(pattern, strings.Join(segments[i:], "/")); ok {
				return true
			}
		}
	}
	return false
}
