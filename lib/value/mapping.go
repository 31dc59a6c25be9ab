// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"iter"
	"slices"
)

// Map is an insertion-ordered mapping whose keys may be any hashable
// value, including integers and tuples.
type Map struct {
	order   []string
	entries map[string]*mapEntry
}

type mapEntry struct {
	key   any
	value any
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{entries: make(map[string]*mapEntry)}
}

// Set stores value under key, keeping the original position when key
// is already present.
func (m *Map) Set(key, value any) error {
	canonical, err := Key(key)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string]*mapEntry)
	}
	if entry, exists := m.entries[canonical]; exists {
		entry.value = value
		return nil
	}
	m.order = append(m.order, canonical)
	m.entries[canonical] = &mapEntry{key: key, value: value}
	return nil
}

// Get returns the value stored under key.
func (m *Map) Get(key any) (any, bool) {
	canonical, err := Key(key)
	if err != nil {
		return nil, false
	}
	entry, exists := m.entries[canonical]
	if !exists {
		return nil, false
	}
	return entry.value, true
}

// Delete removes key if present.
func (m *Map) Delete(key any) {
	canonical, err := Key(key)
	if err != nil {
		return
	}
	if _, exists := m.entries[canonical]; !exists {
		return
	}
	delete(m.entries, canonical)
	m.order = slices.DeleteFunc(m.order, func(candidate string) bool { return candidate == canonical })
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.order) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []any {
	keys := make([]any, 0, len(m.order))
	for _, canonical := range m.order {
		keys = append(keys, m.entries[canonical].key)
	}
	return keys
}

// All iterates over key/value pairs in insertion order.
func (m *Map) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for _, canonical := range m.order {
			entry := m.entries[canonical]
			if !yield(entry.key, entry.value) {
				return
			}
		}
	}
}

func (m *Map) equal(other *Map) bool {
	if len(m.order) != len(other.order) {
		return false
	}
	for canonical, entry := range m.entries {
		otherEntry, exists := other.entries[canonical]
		if !exists || !Equal(entry.value, otherEntry.value) {
			return false
		}
	}
	return true
}

// OrderedMap is a Map whose ordering is part of its identity: two
// ordered maps are equal only if their keys appear in the same order.
type OrderedMap struct {
	Map
}

// NewOrderedMap returns an empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{Map: *NewMap()}
}

// DefaultMap is a Map that materializes missing keys by calling
// Factory. Factory may be nil, in which case [DefaultMap.At] behaves
// like Get.
type DefaultMap struct {
	Map
	Factory func() any
}

// NewDefaultMap returns an empty map backed by factory.
func NewDefaultMap(factory func() any) *DefaultMap {
	return &DefaultMap{Map: *NewMap(), Factory: factory}
}

// At returns the value under key, storing and returning a fresh
// Factory value when key is missing.
func (d *DefaultMap) At(key any) (any, error) {
	if existing, ok := d.Get(key); ok {
		return existing, nil
	}
	if d.Factory == nil {
		return nil, nil
	}
	created := d.Factory()
	if err := d.Set(key, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Counter is a Map from hashable keys to integer counts.
type Counter struct {
	Map
}

// NewCounter returns a counter with one count per occurrence in items.
// It panics if an item is not hashable.
func NewCounter(items ...any) *Counter {
	counter := &Counter{Map: *NewMap()}
	for _, item := range items {
		if err := counter.Add(item, 1); err != nil {
			panic("value: " + err.Error())
		}
	}
	return counter
}

// Add increments the count for key by n.
func (c *Counter) Add(key any, n int) error {
	return c.Set(key, c.Count(key)+n)
}

// Count returns the count for key, zero when absent.
func (c *Counter) Count(key any) int {
	existing, ok := c.Get(key)
	if !ok {
		return 0
	}
	count, _ := existing.(int)
	return count
}
