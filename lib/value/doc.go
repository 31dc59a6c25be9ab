// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package value defines the container kinds that Go has no native
// spelling for but that an archive must keep distinct on a round trip:
// tuples versus lists, sets versus frozensets, ordered, defaulting and
// counting mappings, bounded deques, and filesystem paths.
//
// Mappings and sets accept any hashable key. Hashability follows the
// usual rules: scalars, strings, [Tuple] values made of hashable
// items, [FrozenSet] values, [Path] values, time.Time and pointers are
// hashable; slices, Go maps, [Set] and the mapping types are not. Keys
// are compared through a canonical string produced by [Key], so int(1)
// and int32(1) are different keys, as they would be in a Go map.
//
// [Equal] compares two values structurally, understanding every kind
// in this package. Tests across the module use it as their equality.
package value
