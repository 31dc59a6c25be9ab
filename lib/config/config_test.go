// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/datazip/lib/compress"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
	if tag, _ := cfg.CompressionTag(); tag != compress.Auto {
		t.Errorf("default compression = %s, want auto", tag)
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelInfo {
		t.Errorf("default log level = %v, want INFO", level)
	}
}

func TestLoadWithoutVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() without %s: %v", EnvironmentVariable, err)
	}
	if cfg.Archive.Compression != "auto" {
		t.Errorf("expected defaults, got %+v", cfg.Archive)
	}
}

func TestLoadFromVariable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "datazip.yaml")
	configContent := `
archive:
  compression: zstd
  zstd_entries: true
log:
  level: debug
paths:
  root: ${DATAZIP_TEST_ROOT:-/srv/archives}
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvironmentVariable, configPath)
	t.Setenv("DATAZIP_TEST_ROOT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if tag, _ := cfg.CompressionTag(); tag != compress.Zstd {
		t.Errorf("compression = %s, want zstd", tag)
	}
	if !cfg.Archive.ZstdEntries {
		t.Error("zstd_entries not loaded")
	}
	if cfg.Archive.IgnoreDtypes {
		t.Error("ignore_dtypes should keep its default")
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("log level = %v, want DEBUG", level)
	}
	if cfg.Paths.Root != "/srv/archives" {
		t.Errorf("paths.root = %q, want /srv/archives", cfg.Paths.Root)
	}
	if got := cfg.Resolve("a.zip"); got != "/srv/archives/a.zip" {
		t.Errorf("Resolve(a.zip) = %q", got)
	}
	if got := cfg.Resolve("/tmp/a.zip"); got != "/tmp/a.zip" {
		t.Errorf("Resolve(/tmp/a.zip) = %q", got)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"compression", "archive:\n  compression: gzip\n"},
		{"level", "log:\n  level: loud\n"},
		{"relative root", "paths:\n  root: archives\n"},
		{"yaml", "archive: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "datazip.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Errorf("LoadFile accepted %q", tt.content)
			}
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile should fail for a missing file")
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/archives", map[string]string{"HOME": "/home/user"}, "/home/user/archives"},
		{"${DATAZIP_TEST_MISSING:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"no variables here", map[string]string{}, "no variables here"},
	}
	for _, tt := range tests {
		if result := expandVars(tt.input, tt.vars); result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
