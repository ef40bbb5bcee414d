package main

// Blank imports ensure plugin init() registration runs for the CLI binary.
import (
	_ "github.com/alexisbeaulieu97/apipack/internal/plugins/external"
	_ "github.com/alexisbeaulieu97/apipack/internal/plugins/format"
	_ "github.com/alexisbeaulieu97/apipack/internal/plugins/gitcommit"
	_ "github.com/alexisbeaulieu97/apipack/internal/plugins/header"
	_ "github.com/alexisbeaulieu97/apipack/internal/plugins/manifest"
)
