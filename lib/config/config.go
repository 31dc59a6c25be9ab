// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/datazip/lib/compress"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "DATAZIP_CONFIG"

// Config is the datazip command configuration.
type Config struct {
	// Archive holds defaults for archives the command writes.
	Archive ArchiveConfig `yaml:"archive"`

	// Log configures the command's logger.
	Log LogConfig `yaml:"log"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`
}

// ArchiveConfig holds archive write defaults.
type ArchiveConfig struct {
	// Compression is the image compression: none, lz4, zstd or auto.
	Compression string `yaml:"compression"`

	// ZstdEntries writes JSON entries with the zstd zip method
	// instead of deflate. Older zip tools cannot read such archives.
	ZstdEntries bool `yaml:"zstd_entries"`

	// IgnoreDtypes decodes tables with their physical parquet types.
	IgnoreDtypes bool `yaml:"ignore_dtypes"`

	// SaveOld keeps <stem>_old.zip after put and rm.
	SaveOld bool `yaml:"save_old"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root, when set, is the directory relative archive paths are
	// resolved against.
	Root string `yaml:"root"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Archive: ArchiveConfig{Compression: "auto"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load loads the file named by DATAZIP_CONFIG, or returns [Default]
// when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Fields the
// file omits keep their [Default] values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, consulting
// vars before the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.CompressionTag(); err != nil {
		errs = append(errs, fmt.Errorf("archive.compression: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Paths.Root != "" && !filepath.IsAbs(c.Paths.Root) {
		errs = append(errs, fmt.Errorf("paths.root must be absolute, got %q", c.Paths.Root))
	}

	return errors.Join(errs...)
}

// CompressionTag returns the parsed archive.compression value.
func (c *Config) CompressionTag() (compress.Tag, error) {
	if c.Archive.Compression == "" {
		return compress.Auto, nil
	}
	return compress.ParseTag(c.Archive.Compression)
}

// LogLevel returns the parsed log.level value.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	name := c.Log.Level
	if name == "" {
		name = "info"
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, err
	}
	return level, nil
}

// Resolve returns path joined to Paths.Root when path is relative and
// a root is configured.
func (c *Config) Resolve(path string) string {
	if c.Paths.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Paths.Root, path)
}
