package config

// Settings represents the apipack.yaml document.
type Settings struct {
	LogLevel   string             `yaml:"log_level" validate:"log_level"`
	Debug      bool               `yaml:"debug"`
	Templates  TemplateSettings   `yaml:"templates"`
	Generation GenerationSettings `yaml:"generation"`
	Plugins    PluginSettings     `yaml:"plugins"`
	Deploy     DeploySettings     `yaml:"deploy"`
}

// TemplateSettings lists the directories searched for templates.
type TemplateSettings struct {
	TemplateDirs []string `yaml:"template_dirs" validate:"omitempty,dive,required"`
}

// GenerationSettings controls where and how files are written.
type GenerationSettings struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
	Overwrite bool   `yaml:"overwrite"`
}

// PluginSettings names the discovery locations and per-plugin configuration.
// A nil mapping under Config loads the plugin with its defaults.
type PluginSettings struct {
	Discover []string                  `yaml:"discover" validate:"omitempty,dive,required"`
	Config   map[string]map[string]any `yaml:"config"`
}

// DeploySettings configures the deploy command.
type DeploySettings struct {
	Target  string            `yaml:"target" validate:"deploy_target"`
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
}

// DefaultSettings returns the settings used when no file is supplied.
func DefaultSettings() *Settings {
	return &Settings{
		LogLevel: "info",
		Templates: TemplateSettings{
			TemplateDirs: []string{"templates"},
		},
		Generation: GenerationSettings{
			OutputDir: "generated",
		},
		Plugins: PluginSettings{
			Discover: []string{"apipack/plugins"},
		},
		Deploy: DeploySettings{
			Target: "local",
		},
	}
}

// GenerationSpec describes one generation run.
type GenerationSpec struct {
	Name        string          `yaml:"name"`
	Context     map[string]any  `yaml:"context"`
	Files       []FileSpec      `yaml:"files" validate:"omitempty,dive"`
	Directories []DirectorySpec `yaml:"directories" validate:"omitempty,dive"`
}

// FileSpec renders a single template to an output path.
type FileSpec struct {
	Template string         `yaml:"template" validate:"required"`
	Output   string         `yaml:"output" validate:"required,relpath"`
	Context  map[string]any `yaml:"context"`
}

// DirectorySpec renders or copies every file under Source into Destination.
type DirectorySpec struct {
	Source      string         `yaml:"source" validate:"required"`
	Destination string         `yaml:"destination" validate:"omitempty,relpath"`
	Exclude     []string       `yaml:"exclude" validate:"omitempty,dive,glob"`
	Context     map[string]any `yaml:"context"`
}

// AsMap exposes the generation spec as the plain mapping handed to plugin hooks.
func (s *GenerationSpec) AsMap() map[string]any {
	if s == nil {
		return map[string]any{}
	}

	files := make([]any, 0, len(s.Files))
	for _, f := range s.Files {
		files = append(files, map[string]any{
			"template": f.Template,
			"output":   f.Output,
			"context":  f.Context,
		})
	}

	dirs := make([]any, 0, len(s.Directories))
	for _, d := range s.Directories {
		dirs = append(dirs, map[string]any{
			"source":      d.Source,
			"destination": d.Destination,
			"exclude":     d.Exclude,
			"context":     d.Context,
		})
	}

	return map[string]any{
		"name":        s.Name,
		"context":     s.Context,
		"files":       files,
		"directories": dirs,
	}
}
