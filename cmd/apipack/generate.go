package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/apipack/internal/config"
	"github.com/alexisbeaulieu97/apipack/internal/generator"
	"github.com/alexisbeaulieu97/apipack/internal/tui"
)

type generateOptions struct {
	SpecPath  string
	OutputDir string
	Overwrite bool
	DryRun    bool
}

func newGenerateCmd(root *rootFlags) *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a generation spec into the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.SpecPath, "spec", "s", "", "Path to the generation spec")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Output directory (overrides generation.output_dir)")
	cmd.Flags().BoolVar(&opts.Overwrite, "overwrite", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Render and run content hooks without writing files")
	cmd.MarkFlagRequired("spec") //nolint:errcheck

	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootFlags, opts generateOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	spec, err := config.ParseSpec(opts.SpecPath)
	if err != nil {
		return newCommandError("generate", "reading spec "+opts.SpecPath, err, "Check the generation spec against the documented format.")
	}

	app, err := newAppContext(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Plugins.Close() //nolint:errcheck

	app.Plugins.LoadMany(ctx, app.Settings.Plugins.Config)

	genOpts := generator.Options{
		TemplateDirs: app.Settings.Templates.TemplateDirs,
		OutputDir:    app.Settings.Generation.OutputDir,
		Overwrite:    app.Settings.Generation.Overwrite || opts.Overwrite,
		DryRun:       opts.DryRun,
	}
	if opts.OutputDir != "" {
		genOpts.OutputDir = opts.OutputDir
	}

	displayDir, err := filepath.Abs(genOpts.OutputDir)
	if err != nil {
		displayDir = genOpts.OutputDir
	}

	generate := func(ctx context.Context, onEvent func(generator.Event)) (*generator.Result, error) {
		o := genOpts
		o.OnEvent = onEvent
		return generator.New(app.Plugins, app.Logger, o).Generate(ctx, spec)
	}

	var res *generator.Result
	if isTerminal(cmd.OutOrStdout()) && !root.verbose {
		res, err = tui.Run(ctx, tui.NewModel(spec.Name, displayDir, opts.DryRun), generate)
	} else {
		res, err = generate(ctx, tui.PlainReporter(cmd.OutOrStdout(), displayDir))
	}
	if err != nil {
		return newCommandError("generate", spec.Name, err, "")
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
	if !res.Success {
		return newCommandError("generate", spec.Name, fmt.Errorf("%d errors during generation", len(res.Errors)),
			"Run with --verbose to see the full log.")
	}
	return nil
}
