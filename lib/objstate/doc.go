// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objstate extracts and restores the state of Go values for
// storage in an archive.
//
// A type takes control of its own state by implementing [Exporter]
// and, on its pointer, [Restorer]. Types that implement neither fall
// back to reflection over their exported struct fields. Struct tags
// adjust the default:
//
//	type Portfolio struct {
//	    Name    string
//	    Weights map[string]float64 `datazip:"weights"`
//	    cache   map[string]float64 // unexported: never stored
//	    Scratch []byte             `datazip:"-"`
//	    Extra   map[string]any     `datazip:",attrs"`
//	}
//
// The attrs bag is an open key/value container: its entries are merged
// into the exported state next to the declared fields, and on restore
// any key that names no declared field lands back in it. Without a bag
// such keys are returned to the caller as ignored.
//
// [Assign] performs the conversions restore needs: decoded archive
// values arrive in canonical form (int, float64, []any, map[string]any,
// value.Tuple and friends) and are converted into the declared field
// types, recursing through slices, arrays, maps, pointers and nested
// structs.
package objstate
