// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bureau-foundation/datazip/lib/binhash"
)

// FormatRevision is the package layout revision this engine writes.
// Archives with a lower or missing revision go through the legacy
// bridge; a higher one is ErrUnsupportedRevision.
const FormatRevision = 1

// Reserved names.
const (
	metadataKey     = "__metadata__"
	attributesKey   = "__attributes__"
	stateKey        = "__state__"
	metadataEntry   = metadataKey + ".json"
	attributesEntry = attributesKey + ".json"
)

func reservedName(name string) bool {
	return name == metadataKey || name == attributesKey || name == stateKey
}

// Metadata is the record stored in __metadata__.json.
type Metadata struct {
	FormatRevision int       `json:"format_revision"`
	EngineVersion  string    `json:"engine_version"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`

	// Checksums maps entry names to hex blake3 digests of their
	// content.
	Checksums map[string]string `json:"checksums"`

	Extra map[string]any `json:"extra,omitempty"`
}

// Legacy reports whether the archive predates FormatRevision.
func (m Metadata) Legacy() bool {
	return m.FormatRevision < FormatRevision
}

// revisionOf returns the format_revision of a metadata document and
// whether it had one.
func revisionOf(data []byte) (int, bool, error) {
	var probe struct {
		FormatRevision *int `json:"format_revision"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, false, fmt.Errorf("parsing %s: %w", metadataEntry, err)
	}
	if probe.FormatRevision == nil {
		return 0, false, nil
	}
	return *probe.FormatRevision, true, nil
}

// Verify recomputes the checksum of every entry listed in the
// metadata. Mismatched or missing entries are reported together.
func (a *Archive) Verify() error {
	if err := a.checkOpen(ModeRead); err != nil {
		return err
	}
	names := make([]string, 0, len(a.metadata.Checksums))
	for name := range a.metadata.Checksums {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		want, err := binhash.ParseDigest(a.metadata.Checksums[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %s: %w", name, err))
			continue
		}
		file, ok := a.files[name]
		if !ok {
			errs = append(errs, fmt.Errorf("entry %s: %w", name, ErrMissingEntry))
			continue
		}
		reader, err := file.Open()
		if err != nil {
			errs = append(errs, fmt.Errorf("opening entry %s: %w", name, err))
			continue
		}
		got, err := binhash.HashReader(reader)
		reader.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("reading entry %s: %w", name, err))
			continue
		}
		if got != want {
			errs = append(errs, fmt.Errorf("entry %s: %w: got %s, want %s", name, ErrChecksum, got, want))
		}
	}
	return errors.Join(errs...)
}

func readAll(r io.ReadCloser) ([]byte, error) {
	defer r.Close()
	return io.ReadAll(r)
}
