package main

import (
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/alexisbeaulieu97/apipack/internal/config"
	"github.com/alexisbeaulieu97/apipack/internal/logger"
	"github.com/alexisbeaulieu97/apipack/internal/plugin"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = "apipack.yaml"

// appContext bundles the services one command invocation needs.
type appContext struct {
	Settings *config.Settings
	Logger   *logger.Logger
	Plugins  *plugin.Manager
}

// newAppContext loads settings, builds the logger and discovers plugins.
// Callers own the returned manager and must Close it.
func newAppContext(ctx context.Context, flags *rootFlags, logOut io.Writer) (*appContext, error) {
	path, err := resolveConfigPath(flags.configPath)
	if err != nil {
		return nil, newCommandError("load settings", "locating configuration", err, "Pass --config with an existing file.")
	}

	settings, err := config.LoadSettings(path, os.Environ())
	if err != nil {
		return nil, newCommandError("load settings", path, err, "Fix the reported field and try again.")
	}

	level := settings.LogLevel
	if flags.verbose || settings.Debug {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true, Writer: logOut})
	if err != nil {
		return nil, err
	}

	registry := plugin.NewRegistry(log)
	mgr := plugin.NewManager(registry, log)
	// Discovery problems are logged by the registry and never fatal.
	mgr.Discover(ctx, settings.Plugins.Discover...)

	return &appContext{Settings: settings, Logger: log, Plugins: mgr}, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", errors.New(path + " is a directory")
		}
		return path, nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}
