// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bureau-foundation/datazip/lib/jsontree"
)

// manifest maps top-level names, in insertion order, to tree nodes.
type manifest = orderedmap.OrderedMap[string, any]

func newManifest() *manifest {
	return orderedmap.New[string, any]()
}

// manifestKeys returns the keys of m in insertion order.
func manifestKeys(m *manifest) []string {
	keys := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// marshalManifest renders the top-level entries followed by the state
// section, if any, as one JSON object.
func marshalManifest(entries, state *manifest) ([]byte, error) {
	out := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](entries.Len() + 1))
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, jsontree.Prepare(pair.Value))
	}
	if state.Len() > 0 {
		section := orderedmap.New[string, any](orderedmap.WithCapacity[string, any](state.Len()))
		for pair := state.Oldest(); pair != nil; pair = pair.Next() {
			section.Set(pair.Key, jsontree.Prepare(pair.Value))
		}
		out.Set(stateKey, section)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", attributesEntry, err)
	}
	return data, nil
}

// parseManifest splits a manifest document into its ordered top-level
// entries and its state section. Numbers stay json.Number.
func parseManifest(data []byte) (*manifest, map[string]any, error) {
	raw := orderedmap.New[string, json.RawMessage]()
	if err := raw.UnmarshalJSON(data); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", attributesEntry, err)
	}
	entries := newManifest()
	state := map[string]any{}
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		tree, err := jsontree.Unmarshal(pair.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing %s entry %q: %w", attributesEntry, pair.Key, err)
		}
		if pair.Key != stateKey {
			entries.Set(pair.Key, tree)
			continue
		}
		section, ok := tree.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s section is %T", jsontree.ErrMalformed, stateKey, tree)
		}
		state = section
	}
	return entries, state, nil
}

// parseObject parses a JSON object keeping key order, for legacy
// records whose order matters.
func parseObject(data []byte) (*manifest, error) {
	entries, _, err := parseManifest(data)
	return entries, err
}
