package deployer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/apipack/internal/config"
	"github.com/alexisbeaulieu97/apipack/internal/logger"
	apipackerrors "github.com/alexisbeaulieu97/apipack/pkg/errors"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell assumptions do not hold on Windows")
	}
}

func TestNewSelectsTarget(t *testing.T) {
	t.Parallel()

	d, err := New(config.DeploySettings{Target: TargetLocal}, logger.Nop(), Options{})
	require.NoError(t, err)
	assert.Equal(t, TargetLocal, d.Name())

	d, err = New(config.DeploySettings{Target: TargetNone}, logger.Nop(), Options{})
	require.NoError(t, err)
	assert.Equal(t, TargetNone, d.Name())

	_, err = New(config.DeploySettings{Target: "docker"}, logger.Nop(), Options{})
	var validationErr *apipackerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "deploy.target", validationErr.Field)

	assert.Equal(t, []string{TargetLocal, TargetNone}, Targets())
}

func TestLocalRunsCommandInDirectory(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	dir := t.TempDir()
	var stdout bytes.Buffer
	d, err := New(config.DeploySettings{
		Target:  TargetLocal,
		Command: []string{"sh", "-c", "echo \"$DEPLOY_ENV\" > deployed.txt; echo done"},
		Env:     map[string]string{"DEPLOY_ENV": "staging"},
	}, logger.Nop(), Options{Stdout: &stdout})
	require.NoError(t, err)

	require.NoError(t, d.Deploy(context.Background(), dir))

	data, err := os.ReadFile(filepath.Join(dir, "deployed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "staging\n", string(data))
	assert.Equal(t, "done\n", stdout.String())
}

func TestLocalCommandFailure(t *testing.T) {
	skipOnWindows(t)
	t.Parallel()

	d, err := New(config.DeploySettings{
		Target:  TargetLocal,
		Command: []string{"sh", "-c", "echo 'no Makefile' >&2; exit 2"},
	}, logger.Nop(), Options{})
	require.NoError(t, err)

	err = d.Deploy(context.Background(), t.TempDir())
	var execErr *apipackerrors.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, TargetLocal, execErr.Target)
	assert.Contains(t, err.Error(), "no Makefile")
}

func TestLocalRequiresCommand(t *testing.T) {
	t.Parallel()

	d, err := New(config.DeploySettings{Target: TargetLocal}, logger.Nop(), Options{})
	require.NoError(t, err)
	require.ErrorIs(t, d.Deploy(context.Background(), t.TempDir()), ErrNoCommand)
}

func TestDeployRequiresDirectory(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, target := range Targets() {
		d, err := New(config.DeploySettings{Target: target, Command: []string{"true"}}, logger.Nop(), Options{})
		require.NoError(t, err)

		err = d.Deploy(context.Background(), filepath.Join(t.TempDir(), "missing"))
		var execErr *apipackerrors.ExecutionError
		require.ErrorAs(t, err, &execErr, target)

		err = d.Deploy(context.Background(), file)
		require.ErrorAs(t, err, &execErr, target)
	}
}

func TestNoneSucceeds(t *testing.T) {
	t.Parallel()

	d, err := New(config.DeploySettings{Target: TargetNone}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, d.Deploy(context.Background(), t.TempDir()))
}
