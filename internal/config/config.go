// Package config handles configuration loading for tfvalidate.
// It supports XDG config paths, project-level overrides, environment
// variables and command-line flags.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/tfvalidate/internal/apk"
	"github.com/ShayCichocki/tfvalidate/internal/logging"
	"github.com/ShayCichocki/tfvalidate/internal/report"
)

const (
	// ProjectFileName is the per-project config file searched for upwards
	// from the working directory.
	ProjectFileName = ".tfvalidate.yaml"
	// EnvPrefix prefixes environment overrides, e.g. TFVALIDATE_COMPILER_PATH.
	EnvPrefix = "TFVALIDATE"
)

// Config holds all configuration for tfvalidate.
type Config struct {
	Compiler   CompilerConfig   `mapstructure:"compiler" yaml:"compiler"`
	Artifacts  ArtifactsConfig  `mapstructure:"artifacts" yaml:"artifacts"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Report     ReportConfig     `mapstructure:"report" yaml:"report"`
}

// CompilerConfig selects and tunes the schema compiler.
type CompilerConfig struct {
	// Path is the protoc binary.
	Path string `mapstructure:"path" yaml:"path"`
	// Timeout bounds a single compiler run. Zero disables it.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// Output is the -o target protoc writes the descriptor set to.
	Output string `mapstructure:"output" yaml:"output"`
	// Builtin uses the in-process parser instead of protoc.
	Builtin bool `mapstructure:"builtin" yaml:"builtin"`
}

// ArtifactsConfig describes where tuning-fork assets live in an archive.
type ArtifactsConfig struct {
	Schema             string `mapstructure:"schema" yaml:"schema"`
	Settings           string `mapstructure:"settings" yaml:"settings"`
	DevFidelityPattern string `mapstructure:"dev_fidelity_pattern" yaml:"dev_fidelity_pattern"`
	// Duplicates is "warn" or "reject".
	Duplicates string `mapstructure:"duplicates" yaml:"duplicates"`
}

// ValidationConfig holds optional strictness switches.
type ValidationConfig struct {
	RejectUnknownFields bool `mapstructure:"reject_unknown_fields" yaml:"reject_unknown_fields"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	// Format is text, json or yaml.
	Format string `mapstructure:"format" yaml:"format"`
	Color  bool   `mapstructure:"color" yaml:"color"`
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigFile is an explicit config file merged over user and project files.
	ConfigFile string
	// Flags are bound by FlagKeys; only flags the user set take effect.
	Flags *pflag.FlagSet
	// WorkDir is where the project config search starts. Defaults to the
	// current directory.
	WorkDir string
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"protoc":     "compiler.path",
	"timeout":    "compiler.timeout",
	"builtin":    "compiler.builtin",
	"format":     "report.format",
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

// Load builds the effective configuration.
// Precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables (TFVALIDATE_*)
// 3. Explicit config file (--config)
// 4. Project config (.tfvalidate.yaml in the work dir or a parent)
// 5. User config ($XDG_CONFIG_HOME/tfvalidate/config.yaml)
// 6. Built-in defaults
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	if projectConfig := findProjectConfig(workDir); projectConfig != "" {
		if err := mergeFile(v, projectConfig); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		if err := mergeFile(v, opts.ConfigFile); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
		if f := opts.Flags.Lookup("no-color"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("report.color", false)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Compiler.Path = expandEnv(cfg.Compiler.Path)

	return cfg, nil
}

// LoadFromPath loads configuration from a single file over the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Compiler.Path = expandEnv(cfg.Compiler.Path)

	return cfg, nil
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	if c.Compiler.Timeout < 0 {
		return fmt.Errorf("compiler.timeout must not be negative, got %s", c.Compiler.Timeout)
	}
	if c.Compiler.Output == "" {
		return fmt.Errorf("compiler.output must not be empty")
	}
	if _, err := c.Matcher(); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return fmt.Errorf("report.format: %w", err)
	}
	return nil
}

// Matcher builds the artifact matcher described by the config.
func (c *Config) Matcher() (*apk.Matcher, error) {
	return apk.NewMatcher(c.Artifacts.Schema, c.Artifacts.Settings, c.Artifacts.DevFidelityPattern, c.Artifacts.Duplicates)
}

// WriteYAML writes the configuration as YAML.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	if err := cfg.WriteYAML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file for the current
// directory, or "" if there is none.
func GetProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfig(cwd)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Compiler: CompilerConfig{
			Timeout: 30 * time.Second,
			Output:  "/dev/stdout",
		},
		Artifacts: ArtifactsConfig{
			Schema:             apk.DefaultSchemaEntry,
			Settings:           apk.DefaultSettingsEntry,
			DevFidelityPattern: apk.DefaultDevFidelityPattern,
			Duplicates:         string(apk.DuplicateWarn),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Report: ReportConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("compiler.path", d.Compiler.Path)
	v.SetDefault("compiler.timeout", d.Compiler.Timeout.String())
	v.SetDefault("compiler.output", d.Compiler.Output)
	v.SetDefault("compiler.builtin", d.Compiler.Builtin)

	v.SetDefault("artifacts.schema", d.Artifacts.Schema)
	v.SetDefault("artifacts.settings", d.Artifacts.Settings)
	v.SetDefault("artifacts.dev_fidelity_pattern", d.Artifacts.DevFidelityPattern)
	v.SetDefault("artifacts.duplicates", d.Artifacts.Duplicates)

	v.SetDefault("validation.reject_unknown_fields", d.Validation.RejectUnknownFields)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("report.format", d.Report.Format)
	v.SetDefault("report.color", d.Report.Color)
}

// mergeFile reads a config file and merges it over v.
func mergeFile(v *viper.Viper, path string) error {
	fv := viper.New()
	fv.SetConfigFile(path)
	if err := fv.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(fv.AllSettings())
}

// getUserConfigDir returns the XDG config directory for tfvalidate.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tfvalidate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "tfvalidate")
	}
	return filepath.Join(home, ".config", "tfvalidate")
}

// findProjectConfig searches for ProjectFileName in dir and its parents.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
