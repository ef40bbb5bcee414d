package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/apipack/internal/deployer"
)

type deployOptions struct {
	Path   string
	Target string
}

func newDeployCmd(root *rootFlags) *cobra.Command {
	opts := deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a generated directory with the configured target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", "", "Directory to deploy (defaults to generation.output_dir)")
	cmd.Flags().StringVarP(&opts.Target, "target", "t", "", "Deploy target (local|none), overrides deploy.target")

	return cmd
}

func runDeploy(cmd *cobra.Command, root *rootFlags, opts deployOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newAppContext(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Plugins.Close() //nolint:errcheck

	settings := app.Settings.Deploy
	if opts.Target != "" {
		settings.Target = opts.Target
	}
	path := opts.Path
	if path == "" {
		path = app.Settings.Generation.OutputDir
	}

	d, err := deployer.New(settings, app.Logger, deployer.Options{
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	})
	if err != nil {
		return newCommandError("deploy", "selecting target", err, "Known targets: "+strings.Join(deployer.Targets(), ", ")+".")
	}

	if err := d.Deploy(ctx, path); err != nil {
		return newCommandError("deploy", path, err, "Check deploy.command in apipack.yaml.")
	}
	return nil
}
