// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/datazip/cmd/datazip/cli"
	"github.com/bureau-foundation/datazip/lib/config"
	"github.com/bureau-foundation/datazip/lib/datazip"
)

// commonFlags are accepted by every archive command.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides the config)")
}

// session is the resolved configuration of one command invocation.
type session struct {
	config *config.Config
	logger *slog.Logger
}

func (c *commonFlags) open(out *streams, command string) (*session, error) {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	logger := cli.NewCommandLogger(out.stderr, level).With("command", command)
	return &session{config: cfg, logger: logger}, nil
}

// path resolves an archive path against the configured root.
func (s *session) path(archive string) string {
	return s.config.Resolve(archive)
}

func (s *session) readOptions() []datazip.Option {
	options := []datazip.Option{datazip.WithLogger(s.logger)}
	if s.config.Archive.IgnoreDtypes {
		options = append(options, datazip.WithIgnoreDtypes())
	}
	return options
}

func (s *session) writeOptions() ([]datazip.Option, error) {
	tag, err := s.config.CompressionTag()
	if err != nil {
		return nil, err
	}
	options := append(s.readOptions(),
		datazip.WithCompression(tag),
		datazip.WithSaveOld(s.config.Archive.SaveOld),
		datazip.WithProgress(s.progress),
	)
	if s.config.Archive.ZstdEntries {
		options = append(options, datazip.WithZstdEntries())
	}
	return options, nil
}

// progress logs each entry as Replace copies it.
func (s *session) progress(entries iter.Seq2[string, any]) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		copied := 0
		for name, value := range entries {
			copied++
			s.logger.Debug("copying entry", "key", name, "index", copied)
			if !yield(name, value) {
				return
			}
		}
	}
}
