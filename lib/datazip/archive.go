// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/bureau-foundation/datazip/lib/binhash"
	"github.com/bureau-foundation/datazip/lib/clock"
	"github.com/bureau-foundation/datazip/lib/compress"
	"github.com/bureau-foundation/datazip/lib/jsontree"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/version"
)

// Archive is an open zip package in read or write mode.
type Archive struct {
	mode     Mode
	settings settings
	logger   *slog.Logger
	registry *typereg.Registry
	path     string
	closed   bool

	manifest *manifest
	metadata Metadata
	warnings []string
	encoder  *jsontree.Encoder
	decoder  *jsontree.Decoder

	// Write session.
	writer     *zip.Writer
	tempFile   *os.File
	state      *manifest
	identities map[identity]identified
	entryNames map[string]bool
	checksums  map[string]string
	counters   map[string]int
	scope      string
	userName   string
	pending    *pendingSet

	// Read session.
	reader     *zip.Reader
	closer     io.Closer
	files      map[string]*zip.File
	stateNodes map[string]any
	cache      map[string]any
	itemsErr   error

	// Set on archives returned by Replace.
	replaced  bool
	oldPath   string
	deleteOld bool
}

// Open opens the archive at path in mode.
func Open(path string, mode Mode, options ...Option) (*Archive, error) {
	switch mode {
	case ModeRead:
		return OpenFile(path, options...)
	case ModeWrite:
		return Create(path, options...)
	}
	return nil, fmt.Errorf("unknown archive mode %d", int(mode))
}

// NormalizePath gives path the .zip extension, replacing any other.
func NormalizePath(path string) string {
	extension := filepath.Ext(path)
	if extension == ".zip" {
		return path
	}
	return strings.TrimSuffix(path, extension) + ".zip"
}

// Create opens a new archive for writing at path. The package is
// written to a temporary file in the same directory and renamed into
// place by Close, so an existing file (allowed only with
// WithOverwrite) is untouched until the new archive is complete.
func Create(path string, options ...Option) (*Archive, error) {
	s := applyOptions(options)
	path = NormalizePath(path)

	if _, err := os.Stat(path); err == nil {
		if !s.overwrite {
			return nil, fmt.Errorf("%s: %w", path, ErrFileExists)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp archive for %s: %w", path, err)
	}
	a := newWriter(tempFile, s)
	a.path = path
	a.tempFile = tempFile
	return a, nil
}

// NewWriter returns an archive writing a package to w. Close finishes
// the package but does not close w.
func NewWriter(w io.Writer, options ...Option) *Archive {
	return newWriter(w, applyOptions(options))
}

func newWriter(w io.Writer, s settings) *Archive {
	writer := zip.NewWriter(w)
	compress.RegisterZipWriter(writer)
	a := &Archive{
		mode:       ModeWrite,
		settings:   s,
		logger:     s.logger,
		registry:   s.registry,
		manifest:   newManifest(),
		writer:     writer,
		state:      newManifest(),
		identities: make(map[identity]identified),
		entryNames: map[string]bool{attributesEntry: true, metadataEntry: true},
		checksums:  make(map[string]string),
		counters:   make(map[string]int),
	}
	a.encoder = &jsontree.Encoder{Registry: s.registry, Fallback: a.fallback, Warn: a.warn}
	return a
}

// OpenFile opens the archive at path for reading.
func OpenFile(path string, options ...Option) (*Archive, error) {
	s := applyOptions(options)
	path = NormalizePath(path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}
	a, err := newReader(file, info.Size(), path, s)
	if err != nil {
		file.Close()
		return nil, err
	}
	a.closer = file
	return a, nil
}

// NewReader opens the package held in r for reading.
func NewReader(r io.ReaderAt, size int64, options ...Option) (*Archive, error) {
	return newReader(r, size, "", applyOptions(options))
}

func newReader(r io.ReaderAt, size int64, path string, s settings) (*Archive, error) {
	reader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading zip package %s: %w", path, err)
	}
	compress.RegisterZipReader(reader)

	a := &Archive{
		mode:       ModeRead,
		settings:   s,
		logger:     s.logger,
		registry:   s.registry,
		path:       path,
		reader:     reader,
		files:      make(map[string]*zip.File, len(reader.File)),
		stateNodes: map[string]any{},
		cache:      make(map[string]any),
	}
	a.decoder = &jsontree.Decoder{Registry: s.registry, Resolve: a.resolve, Warn: a.warn}
	for _, file := range reader.File {
		a.files[file.Name] = file
	}
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

// load reads the manifest and metadata, going through the legacy
// bridge for archives without the current revision.
func (a *Archive) load() error {
	metadata, found, err := a.readOptional(metadataEntry, "metadata.json")
	if err != nil {
		return err
	}
	revision, hasRevision := 0, false
	if found {
		if revision, hasRevision, err = revisionOf(metadata); err != nil {
			return err
		}
	}
	if revision > FormatRevision {
		return fmt.Errorf("%w: revision %d, engine supports %d", ErrUnsupportedRevision, revision, FormatRevision)
	}
	if !hasRevision || revision < FormatRevision {
		return a.loadLegacy(metadata)
	}

	if err := json.Unmarshal(metadata, &a.metadata); err != nil {
		return fmt.Errorf("parsing %s: %w", metadataEntry, err)
	}
	attributes, err := a.readEntry(attributesEntry)
	if err != nil {
		return err
	}
	a.manifest, a.stateNodes, err = parseManifest(attributes)
	return err
}

// readEntry returns the content of the named entry.
func (a *Archive) readEntry(name string) ([]byte, error) {
	file, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntry, name)
	}
	reader, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", name, err)
	}
	data, err := readAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", name, err)
	}
	return data, nil
}

// readOptional returns the content of the first of names present.
func (a *Archive) readOptional(names ...string) ([]byte, bool, error) {
	for _, name := range names {
		if _, ok := a.files[name]; ok {
			data, err := a.readEntry(name)
			return data, true, err
		}
	}
	return nil, false, nil
}

// entryMethod returns the zip method for an entry with extension.
func (a *Archive) entryMethod(extension string) uint16 {
	switch extension {
	case ".pkl":
		// Image payloads are already framed and compressed.
		return zip.Store
	case ".json", ".npy":
		if a.settings.zstdEntries {
			return compress.ZipMethod
		}
	}
	return zip.Deflate
}

// writeEntry adds an entry to the package and records its checksum.
func (a *Archive) writeEntry(name string, data []byte) error {
	header := &zip.FileHeader{
		Name:     name,
		Method:   a.entryMethod(filepath.Ext(name)),
		Modified: clock.UTC(a.settings.clock),
	}
	w, err := a.writer.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}
	a.checksums[name] = binhash.Sum(data).String()
	return nil
}

// Close finishes the archive. In write mode it writes the manifest
// and metadata, closes the package and, for file archives, renames it
// into place. Close is idempotent.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if a.mode == ModeWrite {
		err = a.finish()
	} else if a.closer != nil {
		err = a.closer.Close()
	}
	a.identities = nil
	a.cache = nil

	if a.replaced {
		err = errors.Join(err, a.finishReplace(err == nil))
	}
	return err
}

func (a *Archive) finish() error {
	success := false
	defer func() {
		if !success {
			a.discard()
		}
	}()

	attributes, err := marshalManifest(a.manifest, a.state)
	if err != nil {
		return err
	}
	if err := a.writeEntry(attributesEntry, attributes); err != nil {
		return err
	}

	a.metadata = Metadata{
		FormatRevision: FormatRevision,
		EngineVersion:  version.Engine(),
		CreatedBy:      username(),
		CreatedAt:      clock.UTC(a.settings.clock),
		Checksums:      a.checksums,
		Extra:          a.settings.extra,
	}
	metadata, err := json.MarshalIndent(a.metadata, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", metadataEntry, err)
	}
	// The metadata entry cannot carry its own checksum.
	checksums := a.checksums
	a.checksums = make(map[string]string)
	err = a.writeEntry(metadataEntry, metadata)
	a.checksums = checksums
	if err != nil {
		return err
	}

	if err := a.writer.Close(); err != nil {
		return fmt.Errorf("closing zip package: %w", err)
	}
	if a.tempFile != nil {
		tempPath := a.tempFile.Name()
		if err := a.tempFile.Close(); err != nil {
			return fmt.Errorf("closing temp archive: %w", err)
		}
		if err := os.Rename(tempPath, a.path); err != nil {
			return fmt.Errorf("renaming archive to %s: %w", a.path, err)
		}
	}
	success = true
	a.logger.Debug("archive written", "path", a.path, "entries", a.manifest.Len(), "objects", a.state.Len())
	return nil
}

// Abort abandons a write session: nothing is renamed into place and,
// for file archives, the temp file is removed. Stream archives are left
// with a partial package in their writer.
func (a *Archive) Abort() {
	if a.mode == ModeWrite && !a.closed {
		a.discard()
	}
}

// discard abandons a write session, removing the temp file.
func (a *Archive) discard() {
	a.closed = true
	if a.tempFile != nil {
		a.tempFile.Close()
		os.Remove(a.tempFile.Name())
		a.tempFile = nil
	}
}

func username() string {
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

func (a *Archive) checkOpen(mode Mode) error {
	if a.closed {
		return ErrClosed
	}
	if a.mode != mode {
		return fmt.Errorf("%w: archive opened in mode %q", ErrWrongMode, a.mode)
	}
	return nil
}

// warn logs a degradation and records it for Warnings.
func (a *Archive) warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
	var builder strings.Builder
	builder.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&builder, " %v=%v", args[i], args[i+1])
	}
	a.warnings = append(a.warnings, builder.String())
}

// Warnings returns the degradations recorded so far.
func (a *Archive) Warnings() []string {
	return slices.Clone(a.warnings)
}

// Metadata returns the metadata record: as read in read mode, as
// written after Close in write mode.
func (a *Archive) Metadata() Metadata {
	return a.metadata
}

// Mode returns the mode the archive was opened in.
func (a *Archive) Mode() Mode { return a.mode }

// Path returns the archive's file path, or "" for stream archives.
func (a *Archive) Path() string { return a.path }

// Contains reports whether name, or the part of name before its first
// dot, is a top-level key.
func (a *Archive) Contains(name string) bool {
	if _, ok := a.manifest.Get(name); ok {
		return true
	}
	head, _, found := strings.Cut(name, ".")
	if !found {
		return false
	}
	_, ok := a.manifest.Get(head)
	return ok
}

// Len returns the number of top-level keys.
func (a *Archive) Len() int {
	return a.manifest.Len()
}

// Keys returns the top-level keys in insertion order.
func (a *Archive) Keys() []string {
	return manifestKeys(a.manifest)
}

// ResetIdentities forgets which objects were already stored (write
// mode) or decoded (read mode), so later values are stored or decoded
// afresh instead of shared.
func (a *Archive) ResetIdentities() {
	if a.identities != nil {
		clear(a.identities)
	}
	if a.cache != nil {
		clear(a.cache)
	}
}

// EntryNames returns the names of the package's zip entries, sorted.
func (a *Archive) EntryNames() []string {
	names := make([]string, 0, len(a.files))
	for name := range a.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ReadEntry returns the raw content of a zip entry.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	if err := a.checkOpen(ModeRead); err != nil {
		return nil, err
	}
	return a.readEntry(name)
}

// ImageEnvelope returns the decompressed CBOR envelope stored in the
// image entry name.
func (a *Archive) ImageEnvelope(name string) ([]byte, error) {
	framed, err := a.ReadEntry(name)
	if err != nil {
		return nil, err
	}
	return compress.Unframe(framed)
}
