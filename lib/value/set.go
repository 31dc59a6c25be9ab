// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import "slices"

// Set is a mutable collection of distinct hashable items. Iteration
// follows insertion order so that encoding is deterministic.
type Set struct {
	order []string
	items map[string]any
}

// NewSet returns a set holding items. It panics if an item is not
// hashable.
func NewSet(items ...any) *Set {
	set := &Set{items: make(map[string]any, len(items))}
	for _, item := range items {
		set.insert(mustKey(item), item)
	}
	return set
}

func (s *Set) insert(key string, item any) {
	if s.items == nil {
		s.items = make(map[string]any)
	}
	if _, exists := s.items[key]; exists {
		return
	}
	s.order = append(s.order, key)
	s.items[key] = item
}

// Add inserts item. Adding an item already present is a no-op.
func (s *Set) Add(item any) error {
	key, err := Key(item)
	if err != nil {
		return err
	}
	s.insert(key, item)
	return nil
}

// Has reports whether item is in the set.
func (s *Set) Has(item any) bool {
	key, err := Key(item)
	if err != nil {
		return false
	}
	_, exists := s.items[key]
	return exists
}

// Remove deletes item if present.
func (s *Set) Remove(item any) {
	key, err := Key(item)
	if err != nil {
		return
	}
	if _, exists := s.items[key]; !exists {
		return
	}
	delete(s.items, key)
	s.order = slices.DeleteFunc(s.order, func(candidate string) bool { return candidate == key })
}

// Len returns the number of items.
func (s *Set) Len() int { return len(s.order) }

// Items returns the items in insertion order.
func (s *Set) Items() []any {
	items := make([]any, 0, len(s.order))
	for _, key := range s.order {
		items = append(items, s.items[key])
	}
	return items
}

// Freeze returns an immutable copy of s.
func (s *Set) Freeze() *FrozenSet {
	frozen := &FrozenSet{}
	for _, key := range s.order {
		frozen.set.insert(key, s.items[key])
	}
	return frozen
}

func (s *Set) sameItems(other *Set) bool {
	if len(s.order) != len(other.order) {
		return false
	}
	for key := range s.items {
		if _, exists := other.items[key]; !exists {
			return false
		}
	}
	return true
}

// FrozenSet is an immutable, hashable set.
type FrozenSet struct {
	set Set
}

// NewFrozenSet returns a frozen set holding items. It panics if an
// item is not hashable.
func NewFrozenSet(items ...any) *FrozenSet {
	frozen := &FrozenSet{}
	for _, item := range items {
		frozen.set.insert(mustKey(item), item)
	}
	return frozen
}

// Has reports whether item is in the set.
func (f *FrozenSet) Has(item any) bool { return f.set.Has(item) }

// Len returns the number of items.
func (f *FrozenSet) Len() int { return f.set.Len() }

// Items returns the items in insertion order.
func (f *FrozenSet) Items() []any { return f.set.Items() }
