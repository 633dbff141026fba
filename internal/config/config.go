// Package config handles the loading and management of testkit configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by testkit.
const EnvPrefix = "TESTKIT"

// ConfigName is the name of the optional config file (without extension)
// looked up in the base directory.
const ConfigName = "testkit"

type Layout struct {
	Target    string `mapstructure:"target"`
	Testing   string `mapstructure:"testing"`
	Resources string `mapstructure:"resources"`
}

type Paths struct {
	Database string `mapstructure:"database"`
	LogsFile string `mapstructure:"logs_file"`
}

type Config struct {
	BaseDir   string `mapstructure:"basedir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Layout    Layout `mapstructure:"layout"`
	Paths     Paths  `mapstructure:"paths"`
}

var C Config

// TargetDir returns the absolute build output directory.
func (c Config) TargetDir() string {
	return resolve(c.BaseDir, c.Layout.Target)
}

// TestingDir returns the absolute scratch directory.
func (c Config) TestingDir() string {
	return resolve(c.TargetDir(), c.Layout.Testing)
}

// ResourcesDir returns the absolute test resources directory.
func (c Config) ResourcesDir() string {
	return resolve(c.BaseDir, c.Layout.Resources)
}

func resolve(base, p string) string {
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// DefaultConfig returns the default configuration file content as a string.
func DefaultConfig() string {
	return `# testkit configuration file
# Values can be overridden by TESTKIT_* environment variables or command-line flags.
# Relative layout paths are resolved against the base directory (target-relative for layout.testing).

layout:
  target: target
  testing: tests
  resources: testdata

log_level: info
log_format: console
`
}

// ConfigFile returns the default config file location for the given base directory.
func ConfigFile(baseDir string) string {
	return filepath.Join(baseDir, ConfigName+".yaml")
}

// Read resolves configuration from defaults, an optional config file and
// environment variables without touching package state.
func Read(configFilePath ...string) (Config, error) {
	v := viper.New()

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	baseDir := v.GetString("basedir")
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("failed to determine working directory: %w", err)
		}
		baseDir = wd
	}
	baseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	// Defaults
	v.SetDefault("basedir", baseDir)
	v.SetDefault("layout.target", "target")
	v.SetDefault("layout.testing", "tests")
	v.SetDefault("layout.resources", "testdata")
	v.SetDefault("paths.database", "")
	v.SetDefault("paths.logs_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Config file
	v.AddConfigPath(baseDir)
	v.SetConfigName(ConfigName)

	if len(configFilePath) > 0 && configFilePath[0] != "" {
		v.SetConfigFile(configFilePath[0])
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", configFilePath[0], err)
		}
	} else if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if !filepath.IsAbs(cfg.BaseDir) {
		cfg.BaseDir = filepath.Join(baseDir, cfg.BaseDir)
	}
	if cfg.Paths.Database == "" {
		cfg.Paths.Database = filepath.Join(cfg.TargetDir(), "testkit.db")
	}
	if cfg.Paths.LogsFile == "" {
		cfg.Paths.LogsFile = filepath.Join(cfg.TargetDir(), "testkit.log")
	}

	return cfg, nil
}

// Load reads configuration into C.
func Load(configFilePath ...string) error {
	cfg, err := Read(configFilePath...)
	if err != nil {
		return err
	}
	C = cfg
	return nil
}
