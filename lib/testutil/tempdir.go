// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// ArchivePath returns the path of a not-yet-existing archive named
// name (plus ".zip") in a directory removed when the test completes.
func ArchivePath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".zip")
}

// WriteZip writes a zip file at path holding entries, in name order,
// and returns path. Entries are stored with Deflate.
func WriteZip(t *testing.T, path string, entries map[string][]byte) string {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	writer := zip.NewWriter(file)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry, err := writer.Create(name)
		if err != nil {
			t.Fatalf("creating entry %s: %v", name, err)
		}
		if _, err := entry.Write(entries[name]); err != nil {
			t.Fatalf("writing entry %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing zip writer: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("closing %s: %v", path, err)
	}
	return path
}

// ReadZip returns the entries of the zip file at path.
func ReadZip(t *testing.T, path string) map[string][]byte {
	t.Helper()

	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer reader.Close()
	reader.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	entries := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		content, err := file.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", file.Name, err)
		}
		data, err := io.ReadAll(content)
		if err != nil {
			content.Close()
			t.Fatalf("reading entry %s: %v", file.Name, err)
		}
		content.Close()
		entries[file.Name] = data
	}
	return entries
}
