// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"reflect"
	"time"
)

// Equal reports whether a and b are structurally equal. Containers are
// compared element by element, sets and maps by membership, ordered
// maps and deques by position, and times with time.Time.Equal.
// Everything else falls back to reflect.DeepEqual.
func Equal(a, b any) bool {
	switch left := a.(type) {
	case Tuple:
		right, ok := b.(Tuple)
		return ok && equalSlices(left, right)
	case []any:
		right, ok := b.([]any)
		return ok && equalSlices(left, right)
	case map[string]any:
		right, ok := b.(map[string]any)
		if !ok || len(left) != len(right) {
			return false
		}
		for key, leftValue := range left {
			rightValue, exists := right[key]
			if !exists || !Equal(leftValue, rightValue) {
				return false
			}
		}
		return true
	case *Set:
		right, ok := b.(*Set)
		return ok && bothNilOr(left, right, func() bool { return left.sameItems(right) })
	case *FrozenSet:
		right, ok := b.(*FrozenSet)
		return ok && bothNilOr(left, right, func() bool { return left.set.sameItems(&right.set) })
	case *Map:
		right, ok := b.(*Map)
		return ok && bothNilOr(left, right, func() bool { return left.equal(right) })
	case *OrderedMap:
		right, ok := b.(*OrderedMap)
		return ok && bothNilOr(left, right, func() bool {
			return left.equal(&right.Map) && reflect.DeepEqual(left.order, right.order)
		})
	case *DefaultMap:
		right, ok := b.(*DefaultMap)
		return ok && bothNilOr(left, right, func() bool { return left.equal(&right.Map) })
	case *Counter:
		right, ok := b.(*Counter)
		return ok && bothNilOr(left, right, func() bool { return left.equal(&right.Map) })
	case *Deque:
		right, ok := b.(*Deque)
		return ok && bothNilOr(left, right, func() bool {
			return left.maxLen == right.maxLen && equalSlices(left.Items(), right.Items())
		})
	case time.Time:
		right, ok := b.(time.Time)
		return ok && left.Equal(right)
	}
	return reflect.DeepEqual(a, b)
}

func equalSlices(left, right []any) bool {
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if !Equal(left[i], right[i]) {
			return false
		}
	}
	return true
}

func bothNilOr[T any](left, right *T, compare func() bool) bool {
	if left == nil || right == nil {
		return left == right
	}
	return compare()
}
