// Package deployer publishes a generated tree.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/alexisbeaulieu97/apipack/internal/config"
	"github.com/alexisbeaulieu97/apipack/internal/execx"
	"github.com/alexisbeaulieu97/apipack/internal/logger"
	apipackerrors "github.com/alexisbeaulieu97/apipack/pkg/errors"
)

// Target names.
const (
	TargetLocal = "local"
	TargetNone  = "none"
)

// ErrNoCommand is returned by the local target when no command is configured.
var ErrNoCommand = errors.New("deploy.command is empty")

// Deployer publishes the contents of a directory.
type Deployer interface {
	Name() string
	Deploy(ctx context.Context, dir string) error
}

// Options carries the writers that receive live command output.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
}

type factory func(settings config.DeploySettings, log *logger.Logger, opts Options) Deployer

var targets = map[string]factory{
	TargetLocal: func(s config.DeploySettings, log *logger.Logger, opts Options) Deployer {
		return &Local{Command: s.Command, Env: s.Env, Stdout: opts.Stdout, Stderr: opts.Stderr, logger: log}
	},
	TargetNone: func(_ config.DeploySettings, log *logger.Logger, _ Options) Deployer {
		return &None{logger: log}
	},
}

// Targets lists the known target names.
func Targets() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns the deployer for settings.Target.
func New(settings config.DeploySettings, log *logger.Logger, opts Options) (Deployer, error) {
	build, ok := targets[settings.Target]
	if !ok {
		return nil, apipackerrors.NewValidationError("deploy.target",
			fmt.Sprintf("unknown target %q", settings.Target), nil)
	}
	return build(settings, log.WithFields(map[string]any{"target": settings.Target}), opts), nil
}

// Local runs a command inside the generated directory.
type Local struct {
	Command []string
	Env     map[string]string
	Stdout  io.Writer
	Stderr  io.Writer

	logger *logger.Logger
}

func (l *Local) Name() string { return TargetLocal }

func (l *Local) Deploy(ctx context.Context, dir string) error {
	if err := checkDir(dir); err != nil {
		return apipackerrors.NewExecutionError(TargetLocal, err)
	}
	if len(l.Command) == 0 {
		return apipackerrors.NewExecutionError(TargetLocal, ErrNoCommand)
	}

	l.logger.WithFields(map[string]any{"dir": dir, "command": l.Command}).Info("deploying")
	if _, err := execx.Run(ctx, execx.Command{
		Args:   l.Command,
		Dir:    dir,
		Env:    l.Env,
		Stdout: l.Stdout,
		Stderr: l.Stderr,
	}); err != nil {
		return apipackerrors.NewExecutionError(TargetLocal, err)
	}
	l.logger.Info("deploy finished")
	return nil
}

// None accepts any existing directory and does nothing.
type None struct {
	logger *logger.Logger
}

func (n *None) Name() string { return TargetNone }

func (n *None) Deploy(_ context.Context, dir string) error {
	if err := checkDir(dir); err != nil {
		return apipackerrors.NewExecutionError(TargetNone, err)
	}
	n.logger.WithFields(map[string]any{"dir": dir}).Info("deploy target is none, nothing to do")
	return nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
