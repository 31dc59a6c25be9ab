// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestTagString(t *testing.T) {
	tests := []struct {
		tag  Tag
		want string
	}{
		{None, "none"},
		{LZ4, "lz4"},
		{Zstd, "zstd"},
		{Auto, "auto"},
		{Tag(99), "unknown(99)"},
	}
	for _, tt := range tests {
		if got := tt.tag.String(); got != tt.want {
			t.Errorf("Tag(%d).String() = %q, want %q", tt.tag, got, tt.want)
		}
	}
	if _, err := ParseTag("gzip"); err == nil {
		t.Error("ParseTag(\"gzip\") should fail")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	text := []byte(strings.Repeat("the same line of text, again and again\n", 200))
	random := make([]byte, 4096)
	if _, err := rand.Read(random); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	tests := []struct {
		name    string
		data    []byte
		tag     Tag
		wantTag Tag
	}{
		{"none", text, None, None},
		{"lz4", text, LZ4, LZ4},
		{"zstd", text, Zstd, Zstd},
		{"auto text", text, Auto, Zstd},
		{"random falls back", random, Zstd, None},
		{"auto random", random, Auto, None},
		{"empty", []byte{}, LZ4, None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			framed, err := Frame(tt.data, tt.tag)
			if err != nil {
				t.Fatalf("Frame: %v", err)
			}
			tag, err := FrameTag(framed)
			if err != nil {
				t.Fatalf("FrameTag: %v", err)
			}
			if tag != tt.wantTag {
				t.Errorf("frame tag = %s, want %s", tag, tt.wantTag)
			}
			restored, err := Unframe(framed)
			if err != nil {
				t.Fatalf("Unframe: %v", err)
			}
			if !bytes.Equal(restored, tt.data) {
				t.Errorf("round trip changed %d bytes into %d", len(tt.data), len(restored))
			}
		})
	}
}

func TestUnframeRejectsTruncated(t *testing.T) {
	framed, err := Frame([]byte(strings.Repeat("abc", 100)), Zstd)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if _, err := Unframe(framed[:len(framed)-3]); err == nil {
		t.Error("Unframe accepted a truncated payload")
	}
	if _, err := Unframe([]byte{0}); err == nil {
		t.Error("Unframe accepted a header-only payload")
	}
}

func TestZipMethod(t *testing.T) {
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	RegisterZipWriter(writer)
	entry, err := writer.CreateHeader(&zip.FileHeader{Name: "a.json", Method: ZipMethod})
	if err != nil {
		t.Fatalf("CreateHeader: %v", err)
	}
	content := strings.Repeat(`{"key": "value"}`, 50)
	if _, err := io.WriteString(entry, content); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reader, err := zip.NewReader(bytes.NewReader(buffer.Bytes()), int64(buffer.Len()))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	RegisterZipReader(reader)
	opened, err := reader.File[0].Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer opened.Close()
	read, err := io.ReadAll(opened)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(read) != content {
		t.Errorf("zstd zip entry round trip mismatch")
	}
}
