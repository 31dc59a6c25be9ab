// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"fmt"
	"iter"
	"log/slog"
	"reflect"

	"github.com/bureau-foundation/datazip/lib/clock"
	"github.com/bureau-foundation/datazip/lib/compress"
	"github.com/bureau-foundation/datazip/lib/typereg"
)

// Mode is the direction an archive is opened in.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// String returns "r" or "w".
func (m Mode) String() string {
	if m == ModeWrite {
		return "w"
	}
	return "r"
}

// ParseMode parses "r" or "w". Append ("a") and exclusive create
// ("x") are rejected with ErrAppendUnsupported.
func ParseMode(mode string) (Mode, error) {
	switch mode {
	case "r":
		return ModeRead, nil
	case "w":
		return ModeWrite, nil
	case "a", "x":
		return 0, fmt.Errorf("mode %q: %w", mode, ErrAppendUnsupported)
	}
	return 0, fmt.Errorf("unknown archive mode %q", mode)
}

// ProgressFunc wraps the copy iterator of [Replace]. It must yield
// exactly the pairs it is given.
type ProgressFunc func(iter.Seq2[string, any]) iter.Seq2[string, any]

type settings struct {
	overwrite    bool
	ignoreDtypes bool
	logger       *slog.Logger
	clock        clock.Clock
	registry     *typereg.Registry
	compression  compress.Tag
	zstdEntries  bool
	progress     ProgressFunc
	overrideType reflect.Type
	saveOld      bool
	omit         []string
	extra        map[string]any
}

func defaultSettings() settings {
	return settings{
		logger:      slog.New(slog.DiscardHandler),
		clock:       clock.Real(),
		registry:    typereg.Default(),
		compression: compress.Auto,
	}
}

// Option adjusts how an archive is opened.
type Option func(*settings)

func applyOptions(options []Option) settings {
	s := defaultSettings()
	for _, option := range options {
		option(&s)
	}
	return s
}

// WithOverwrite allows write mode to replace an existing file. The old
// contents remain until the new archive closes successfully.
func WithOverwrite() Option {
	return func(s *settings) { s.overwrite = true }
}

// WithIgnoreDtypes decodes tables with their physical parquet types
// instead of the recorded dtypes.
func WithIgnoreDtypes() Option {
	return func(s *settings) { s.ignoreDtypes = true }
}

// WithLogger sets the logger degradations are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for provenance timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRegistry sets the type registry. The default is
// typereg.Default().
func WithRegistry(registry *typereg.Registry) Option {
	return func(s *settings) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithCompression sets the compression of image (.pkl) entries.
func WithCompression(tag compress.Tag) Option {
	return func(s *settings) { s.compression = tag }
}

// WithZstdEntries stores JSON and .npy entries with the zstd zip
// method instead of Deflate. Readers built on archive/zip alone
// cannot open such entries.
func WithZstdEntries() Option {
	return func(s *settings) { s.zstdEntries = true }
}

// WithProgress wraps the copy loop of [Replace].
func WithProgress(progress ProgressFunc) Option {
	return func(s *settings) { s.progress = progress }
}

// WithOverrideType decodes objects stored directly under a top-level
// key as t instead of the type their id resolves to. t may be a struct
// type or a pointer to one.
func WithOverrideType(t reflect.Type) Option {
	return func(s *settings) { s.overrideType = t }
}

// WithSaveOld makes [Replace] keep the previous archive file.
func WithSaveOld(save bool) Option {
	return func(s *settings) { s.saveOld = save }
}

// WithOmit makes [Replace] drop the named entries instead of copying
// them.
func WithOmit(names ...string) Option {
	return func(s *settings) { s.omit = append(s.omit, names...) }
}

// WithExtra records free-form values in the metadata record.
func WithExtra(extra map[string]any) Option {
	return func(s *settings) {
		if s.extra == nil {
			s.extra = make(map[string]any, len(extra))
		}
		for key, value := range extra {
			s.extra[key] = value
		}
	}
}
