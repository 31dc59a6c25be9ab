// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"github.com/gammazero/deque"
)

// Deque is a double-ended queue with an optional maximum length. When
// bounded and full, pushing to one end discards an item from the other.
type Deque struct {
	items  *deque.Deque
	maxLen int
}

// NewDeque returns an empty deque. A negative maxLen means unbounded.
func NewDeque(maxLen int, items ...any) *Deque {
	d := &Deque{items: deque.New(), maxLen: maxLen}
	for _, item := range items {
		d.PushBack(item)
	}
	return d
}

// MaxLen returns the bound and whether the deque is bounded.
func (d *Deque) MaxLen() (int, bool) {
	return d.maxLen, d.maxLen >= 0
}

// Len returns the number of items.
func (d *Deque) Len() int { return d.items.Len() }

// PushBack appends item, discarding the front item when full.
func (d *Deque) PushBack(item any) {
	if d.maxLen == 0 {
		return
	}
	if d.maxLen > 0 && d.items.Len() == d.maxLen {
		d.items.PopFront()
	}
	d.items.PushBack(item)
}

// PushFront prepends item, discarding the back item when full.
func (d *Deque) PushFront(item any) {
	if d.maxLen == 0 {
		return
	}
	if d.maxLen > 0 && d.items.Len() == d.maxLen {
		d.items.PopBack()
	}
	d.items.PushFront(item)
}

// PopFront removes and returns the front item. It panics when empty.
func (d *Deque) PopFront() any { return d.items.PopFront() }

// PopBack removes and returns the back item. It panics when empty.
func (d *Deque) PopBack() any { return d.items.PopBack() }

// At returns the item at index i counted from the front.
func (d *Deque) At(i int) any { return d.items.At(i) }

// Items returns the items front to back.
func (d *Deque) Items() []any {
	items := make([]any, d.items.Len())
	for i := range items {
		items[i] = d.items.At(i)
	}
	return items
}
