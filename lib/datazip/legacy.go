// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/datazip/lib/jsontree"
)

// legacyWarning is recorded whenever the legacy bridge opens an
// archive.
const legacyWarning = "archive predates the current format revision; " +
	"entries were recovered best-effort and nested entries are inaccessible, " +
	"open it with a legacy engine release for full fidelity"

// loadLegacy rebuilds a manifest from the layout written before format
// revisions existed. The old metadata record lists every top-level
// name in "contents" (with the members of recursively stored
// containers), the type of each in "obj_meta", and the original column
// labels of tables written with positional names in "no_pqt_cols"
// ("bad_cols" in still older archives). Tables and arrays live in
// <name>.parquet and <name>.npy; everything else in an attributes file
// of type-hinted JSON.
func (a *Archive) loadLegacy(metadata []byte) error {
	a.manifest = newManifest()
	a.metadata = Metadata{}
	a.warn(legacyWarning, "path", a.displayPath())

	record := map[string]json.RawMessage{}
	if metadata != nil {
		if err := json.Unmarshal(metadata, &record); err != nil {
			return fmt.Errorf("parsing legacy metadata: %w", err)
		}
	}

	contents, err := a.legacyRecord(record, "contents")
	if err != nil {
		return err
	}
	objectInfo, err := a.legacyRecord(record, "obj_meta")
	if err != nil {
		return err
	}
	labels, err := a.legacyLabels(record)
	if err != nil {
		return err
	}
	attributes := newManifest()
	if raw, found, err := a.readOptional(attributesEntry, "attributes.json", "other_attrs.json"); err != nil {
		return err
	} else if found {
		if attributes, err = parseObject(raw); err != nil {
			return fmt.Errorf("parsing legacy attributes: %w", err)
		}
	}

	for pair := contents.Oldest(); pair != nil; pair = pair.Next() {
		name := pair.Key
		if members, ok := pair.Value.([]any); ok && len(members) > 0 {
			a.warn("legacy entry is a nested container and is inaccessible", "key", name)
			continue
		}
		switch {
		case a.hasEntry(name + ".parquet"):
			kind := kindFrame
			qualname, known := legacyQualname(objectInfo, name)
			if qualname == "Series" {
				kind = kindSeries
			}
			node := descriptor(kind, name)
			if !known {
				// Untyped tables were read as series when they had a
				// single column.
				node[squeezeKey] = true
			}
			if restored, ok := labels[name].([]any); ok && len(restored) == 2 {
				node["labels"] = tupleLabels(restored[0])
				node["level_names"] = restored[1]
			}
			a.manifest.Set(name, node)
		case a.hasEntry(name + ".zip"):
			a.warn("legacy entry is a nested archive and is inaccessible", "key", name)
		case a.hasEntry(name + ".npy"):
			a.manifest.Set(name, descriptor(kindArray, name))
		default:
			node, ok := attributes.Get(name)
			if !ok {
				a.warn("legacy entry has no readable content", "key", name)
				continue
			}
			a.manifest.Set(name, node)
		}
	}

	// The oldest layouts listed attributes only in their own file.
	for pair := attributes.Oldest(); pair != nil; pair = pair.Next() {
		if _, listed := contents.Get(pair.Key); !listed {
			a.manifest.Set(pair.Key, pair.Value)
		}
	}
	a.logger.Info("opened legacy archive", "path", a.displayPath(), "entries", a.manifest.Len())
	return nil
}

// legacyRecord returns the ordered object stored under key in the
// metadata record, or in a separate <key>.json entry.
func (a *Archive) legacyRecord(record map[string]json.RawMessage, key string) (*manifest, error) {
	raw, ok := record[key]
	if !ok {
		data, found, err := a.readOptional(key + ".json")
		if err != nil || !found {
			return newManifest(), err
		}
		raw = data
	}
	if string(raw) == "null" {
		return newManifest(), nil
	}
	parsed, err := parseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing legacy %s: %w", key, err)
	}
	return parsed, nil
}

// legacyLabels returns the first non-empty of no_pqt_cols, bad_cols
// and a bad_cols.json entry, as name to [labels, level names].
func (a *Archive) legacyLabels(record map[string]json.RawMessage) (map[string]any, error) {
	for _, key := range []string{"no_pqt_cols", "bad_cols"} {
		parsed, err := a.legacyRecord(record, key)
		if err != nil {
			return nil, err
		}
		if parsed.Len() > 0 {
			return flatten(parsed), nil
		}
	}
	return map[string]any{}, nil
}

// tupleLabels tags the multi-level labels of a legacy record, which
// were written as plain JSON lists, as tuples.
func tupleLabels(labels any) any {
	list, ok := labels.([]any)
	if !ok {
		return labels
	}
	tagged := make([]any, len(list))
	for i, label := range list {
		if parts, ok := label.([]any); ok {
			label = map[string]any{jsontree.TagTuple: true, "items": parts}
		}
		tagged[i] = label
	}
	return tagged
}

func flatten(m *manifest) map[string]any {
	out := make(map[string]any, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// legacyQualname returns the type name recorded for name, stored as
// [module, qualname, constructor].
// legacyQualname returns the type name recorded for name and whether
// obj_meta has an entry for it at all.
func legacyQualname(objectInfo *manifest, name string) (string, bool) {
	info, ok := objectInfo.Get(name)
	if !ok {
		return "", false
	}
	parts, ok := info.([]any)
	if !ok || len(parts) < 2 {
		return "", true
	}
	qualname, _ := parts[1].(string)
	return qualname, true
}

func (a *Archive) hasEntry(name string) bool {
	_, ok := a.files[name]
	return ok
}

func (a *Archive) displayPath() string {
	if a.path == "" {
		return "<stream>"
	}
	return a.path
}
