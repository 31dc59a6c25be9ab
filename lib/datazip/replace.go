// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
)

// Entry is a named value for Replace.
type Entry struct {
	Name  string
	Value any
}

// Replace rebuilds the archive at path with overrides applied and
// returns it open for writing, so more entries can be Set before
// Close.
//
// The existing file is renamed to <stem>_old.zip and every top-level
// entry is decoded and re-encoded into a new archive at path, through
// one decode cache so shared objects stay shared. An override replaces
// the entry of the same name in place; overrides with new names are
// appended. Entries named by WithOmit are dropped.
//
// The old file is deleted when the new archive closes successfully,
// unless WithSaveOld(true) is given or the old archive had a different
// format revision, in which case it is kept and a warning recorded. If
// Replace itself fails, the old file is moved back.
func Replace(path string, overrides []Entry, options ...Option) (*Archive, error) {
	s := applyOptions(options)
	path = NormalizePath(path)
	oldPath := strings.TrimSuffix(path, ".zip") + "_old.zip"

	if _, err := os.Stat(oldPath); err == nil && !s.overwrite {
		return nil, fmt.Errorf("backup %s: %w", oldPath, ErrFileExists)
	}
	if err := os.Rename(path, oldPath); err != nil {
		return nil, fmt.Errorf("moving %s aside: %w", path, err)
	}
	restore := func(cause error) error {
		if err := os.Rename(oldPath, path); err != nil {
			return errors.Join(cause, fmt.Errorf("restoring %s: %w", path, err))
		}
		return cause
	}

	old, err := OpenFile(oldPath, options...)
	if err != nil {
		return nil, restore(err)
	}
	fresh, err := Create(path, options...)
	if err != nil {
		return nil, restore(errors.Join(err, old.Close()))
	}
	if err := copyEntries(fresh, old, overrides, s); err != nil {
		fresh.discard()
		return nil, restore(errors.Join(err, old.Close()))
	}
	if err := old.Close(); err != nil {
		fresh.discard()
		return nil, restore(err)
	}

	fresh.replaced = true
	fresh.oldPath = oldPath
	fresh.deleteOld = !s.saveOld
	if old.metadata.Legacy() && fresh.deleteOld {
		fresh.warn("keeping old archive because its format revision differs",
			"path", oldPath, "revision", old.metadata.FormatRevision)
		fresh.deleteOld = false
	}
	return fresh, nil
}

// ReplaceStream is Replace for archives held in buffers: the package
// in src is copied, with overrides, into a new archive writing to dst.
func ReplaceStream(dst io.Writer, src io.ReaderAt, size int64, overrides []Entry, options ...Option) (*Archive, error) {
	s := applyOptions(options)
	old, err := NewReader(src, size, options...)
	if err != nil {
		return nil, err
	}
	defer old.Close()

	fresh := NewWriter(dst, options...)
	if err := copyEntries(fresh, old, overrides, s); err != nil {
		fresh.discard()
		return nil, err
	}
	fresh.replaced = true
	return fresh, nil
}

// copyEntries sets every entry of src, or its override, into dst.
func copyEntries(dst, src *Archive, overrides []Entry, s settings) error {
	dst.warnings = append(dst.warnings, src.warnings...)

	replacements := make(map[string]any, len(overrides))
	for _, override := range overrides {
		replacements[override.Name] = override.Value
	}
	omitted := make(map[string]bool, len(s.omit))
	for _, name := range s.omit {
		omitted[name] = true
	}

	var decodeErr error
	var entries iter.Seq2[string, any] = func(yield func(string, any) bool) {
		for _, name := range src.Keys() {
			if replacement, ok := replacements[name]; ok {
				if !yield(name, replacement) {
					return
				}
				continue
			}
			if omitted[name] {
				continue
			}
			decoded, err := src.Get(name)
			if err != nil {
				decodeErr = err
				return
			}
			if !yield(name, decoded) {
				return
			}
		}
		for _, override := range overrides {
			if _, existing := src.manifest.Get(override.Name); existing {
				continue
			}
			if !yield(override.Name, override.Value) {
				return
			}
		}
	}
	if s.progress != nil {
		entries = s.progress(entries)
	}

	for name, decoded := range entries {
		if err := dst.Set(name, decoded); err != nil {
			return fmt.Errorf("copying %q: %w", name, err)
		}
	}
	if decodeErr != nil {
		return fmt.Errorf("copying from old archive: %w", decodeErr)
	}
	return nil
}

// finishReplace deletes or restores the old file once the new archive
// has closed.
func (a *Archive) finishReplace(success bool) error {
	if a.oldPath == "" {
		return nil
	}
	if !success {
		if err := os.Rename(a.oldPath, a.path); err != nil {
			return fmt.Errorf("restoring %s after failed close: %w", a.path, err)
		}
		return nil
	}
	if !a.deleteOld {
		return nil
	}
	if err := os.Remove(a.oldPath); err != nil {
		return fmt.Errorf("removing old archive: %w", err)
	}
	a.logger.Debug("removed old archive", "path", a.oldPath)
	return nil
}
