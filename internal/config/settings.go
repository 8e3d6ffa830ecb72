package config

import (
	"path/filepath"
	"strings"

	"github.com/latchhq/latch/internal/task"
	"github.com/latchhq/latch/pkg/versioning"
	"github.com/spf13/viper"
)

// Settings are tool defaults read from .latch/config.yaml and LATCH_*
// environment variables. They tune how the built-in tasks run; which tasks
// run, and when, is the manifest's job.
type Settings struct {
	Verbose            bool              `mapstructure:"verbose"`
	ConcurrencyPercent int               `mapstructure:"concurrency_percent"`
	Format             FormatSettings    `mapstructure:"format"`
	Build              CommandSettings   `mapstructure:"build"`
	Test               CommandSettings   `mapstructure:"test"`
	Unused             UnusedSettings    `mapstructure:"unused"`
	Duplicates         DuplicateSettings `mapstructure:"duplicates"`
	VersionSync        VersionSettings   `mapstructure:"version_sync"`
}

// FormatSettings tune the format task.
type FormatSettings struct {
	Tool     string   `mapstructure:"tool"`
	Blocking bool     `mapstructure:"blocking"`
	Patterns []string `mapstructure:"patterns"`
}

// CommandSettings tune a plain tool-and-args task (build, test).
type CommandSettings struct {
	Tool     string   `mapstructure:"tool"`
	Args     []string `mapstructure:"args"`
	Required bool     `mapstructure:"required"`
}

// UnusedSettings tune the unused-code task.
type UnusedSettings struct {
	Tool     string   `mapstructure:"tool"`
	Args     []string `mapstructure:"args"`
	Blocking bool     `mapstructure:"blocking"`
	Strict   bool     `mapstructure:"strict"`
}

// DuplicateSettings tune the duplicate-code task.
type DuplicateSettings struct {
	Tool      string   `mapstructure:"tool"`
	Args      []string `mapstructure:"args"`
	Threshold float64  `mapstructure:"threshold"`
	Blocking  bool     `mapstructure:"blocking"`
}

// VersionSettings tune the version-sync task.
type VersionSettings struct {
	Source   string   `mapstructure:"source"`
	Scheme   string   `mapstructure:"scheme"`
	Sources  []string `mapstructure:"sources"`
	Blocking bool     `mapstructure:"blocking"`
}

// LoadSettings reads tool settings for the project rooted at root. A missing
// config file is fine; defaults and environment variables still apply.
func LoadSettings(root string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("verbose", false)
	v.SetDefault("concurrency_percent", 100)
	v.SetDefault("format.blocking", true)
	v.SetDefault("build.required", true)
	v.SetDefault("test.required", true)
	v.SetDefault("unused.blocking", false)
	v.SetDefault("duplicates.threshold", 0)
	v.SetDefault("duplicates.blocking", false)
	v.SetDefault("version_sync.source", "VERSION")
	v.SetDefault("version_sync.scheme", string(versioning.SchemeSemver))
	v.SetDefault("version_sync.blocking", true)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(root, ".latch"))

	v.SetEnvPrefix("LATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FormatConfig maps the settings onto the format task's configuration.
func (s *Settings) FormatConfig() task.FormatConfig {
	return task.FormatConfig{Tool: s.Format.Tool, Blocking: s.Format.Blocking, Patterns: s.Format.Patterns}
}

// BuildConfig maps the settings onto the build task's configuration.
func (s *Settings) BuildConfig() task.BuildConfig {
	return task.BuildConfig{Tool: s.Build.Tool, Args: s.Build.Args, Required: s.Build.Required}
}

// TestConfig maps the settings onto the test task's configuration.
func (s *Settings) TestConfig() task.TestConfig {
	return task.TestConfig{Tool: s.Test.Tool, Args: s.Test.Args, Required: s.Test.Required}
}

// UnusedConfig maps the settings onto the unused-code task's configuration.
func (s *Settings) UnusedConfig() task.UnusedConfig {
	return task.UnusedConfig{Tool: s.Unused.Tool, Args: s.Unused.Args, Blocking: s.Unused.Blocking, Strict: s.Unused.Strict}
}

// DuplicatesConfig maps the settings onto the duplicate-code task's configuration.
func (s *Settings) DuplicatesConfig() task.DuplicatesConfig {
	return task.DuplicatesConfig{Tool: s.Duplicates.Tool, Args: s.Duplicates.Args, Threshold: s.Duplicates.Threshold, Blocking: s.Duplicates.Blocking}
}

// VersionSyncConfig maps the settings onto the version-sync task's configuration.
func (s *Settings) VersionSyncConfig() task.VersionSyncConfig {
	return task.VersionSyncConfig{
		Source:   s.VersionSync.Source,
		Scheme:   versioning.Scheme(s.VersionSync.Scheme),
		Sources:  s.VersionSync.Sources,
		Blocking: s.VersionSync.Blocking,
	}
}
