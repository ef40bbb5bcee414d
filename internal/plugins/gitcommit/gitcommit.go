package gitcommit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

func init() {
	plugin.DefineSource(plugin.BuiltinSource, plugin.Static("gitcommit", plugin.Provide(New)))
}

// ContextCommit is the RunContext key holding the hash of the commit made
// for the run.
const ContextCommit = "git_commit_hash"

// Defaults applied when the configuration omits them.
const (
	DefaultMessage     = "Regenerate {spec_name}"
	DefaultAuthorName  = "apipack"
	DefaultAuthorEmail = "apipack@example.com"
)

// Config controls how the output directory is committed.
type Config struct {
	plugin.Settings `yaml:",inline"`

	// Message may reference {spec_name} and {run_id}.
	Message     string `yaml:"message" validate:"required"`
	AuthorName  string `yaml:"author_name" validate:"required"`
	AuthorEmail string `yaml:"author_email" validate:"required,email"`

	// Init creates a repository when the output directory has none.
	Init bool `yaml:"init"`
}

// GitCommitPlugin commits the generated tree once a run succeeds.
type GitCommitPlugin struct {
	plugin.Base
	cfg Config
	now func() time.Time
}

// New returns a gitcommit plugin that runs after the default priority so
// the tree is final.
func New() *GitCommitPlugin {
	p := &GitCommitPlugin{
		cfg: Config{
			Message:     DefaultMessage,
			AuthorName:  DefaultAuthorName,
			AuthorEmail: DefaultAuthorEmail,
			Init:        true,
		},
		now: time.Now,
	}
	p.cfg.Settings = plugin.Settings{Enabled: true, Priority: 1000}
	return p
}

func (p *GitCommitPlugin) ConfigSchema() any { return &p.cfg }

func (p *GitCommitPlugin) Capabilities() []plugin.Capability {
	return []plugin.Capability{plugin.CapabilityPublish}
}

func (p *GitCommitPlugin) OnGenerateEnd(_ context.Context, _ plugin.Spec, rc plugin.RunContext) error {
	log := p.Logger()
	if rc.Bool(plugin.ContextDryRun) {
		log.Debug("dry run, nothing committed")
		return nil
	}

	root := rc.String(plugin.ContextOutputDir)
	if root == "" {
		return fmt.Errorf("run context has no %s", plugin.ContextOutputDir)
	}

	repo, err := git.PlainOpen(root)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if !p.cfg.Init {
			log.WithFields(map[string]any{"path": root}).Warn("output directory is not a git repository")
			return nil
		}
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return fmt.Errorf("open repository %s: %w", root, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		log.Info("generated tree unchanged, nothing to commit")
		return nil
	}

	hash, err := wt.Commit(p.message(rc), &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.cfg.AuthorName,
			Email: p.cfg.AuthorEmail,
			When:  p.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	rc[ContextCommit] = hash.String()
	log.WithFields(map[string]any{"commit": hash.String()[:7], "files": len(status)}).Info("generated tree committed")
	return nil
}

func (p *GitCommitPlugin) message(rc plugin.RunContext) string {
	return strings.NewReplacer(
		"{spec_name}", rc.String(plugin.ContextSpecName),
		"{run_id}", rc.String(plugin.ContextRunID),
	).Replace(p.cfg.Message)
}
