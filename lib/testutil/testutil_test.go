// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type recordingT struct {
	failed  bool
	message string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
}

func TestRequireErrorIs(t *testing.T) {
	sentinel := errors.New("sentinel")

	recorder := &recordingT{}
	RequireErrorIs(recorder, fmt.Errorf("wrapped: %w", sentinel), sentinel, "wrapped")
	if recorder.failed {
		t.Fatalf("wrapped sentinel reported failure: %s", recorder.message)
	}

	recorder = &recordingT{}
	RequireErrorIs(recorder, nil, sentinel, "nil error")
	if !recorder.failed || !strings.Contains(recorder.message, "nil error") {
		t.Errorf("nil error: failed=%v message=%q", recorder.failed, recorder.message)
	}

	recorder = &recordingT{}
	RequireErrorIs(recorder, errors.New("other"), sentinel, "case %d", 3)
	if !recorder.failed || !strings.Contains(recorder.message, "case 3") {
		t.Errorf("other error: failed=%v message=%q", recorder.failed, recorder.message)
	}
}

func TestRequireNoError(t *testing.T) {
	recorder := &recordingT{}
	RequireNoError(recorder, nil)
	if recorder.failed {
		t.Fatal("nil error reported failure")
	}
	RequireNoError(recorder, errors.New("boom"))
	if !recorder.failed || !strings.Contains(recorder.message, "(no message)") {
		t.Errorf("failed=%v message=%q", recorder.failed, recorder.message)
	}
}

func TestWriteZipReadZip(t *testing.T) {
	path := WriteZip(t, ArchivePath(t, "entries"), map[string][]byte{
		"b.json": []byte(`{"b": 1}`),
		"a.npy":  {0x93, 'N', 'U', 'M', 'P', 'Y'},
	})
	entries := ReadZip(t, path)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !bytes.Equal(entries["b.json"], []byte(`{"b": 1}`)) {
		t.Errorf("b.json = %q", entries["b.json"])
	}
}

func TestUniqueID(t *testing.T) {
	first, second := UniqueID("key"), UniqueID("key")
	if first == second {
		t.Fatalf("UniqueID returned %q twice", first)
	}
	if !strings.HasPrefix(first, "key-") {
		t.Errorf("UniqueID = %q, want key- prefix", first)
	}
}
