// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsontree converts Go values to and from JSON-ready trees that
// keep type information plain JSON loses.
//
// A tree is built from nil, bool, string, int, float64, []any and
// map[string]any. Kinds JSON has no word for become tagged objects: a
// map with a single "__kind__": true marker plus payload keys, for
// example
//
//	{"__tuple__": true, "items": [1, 2]}
//	{"__complex__": true, "real": 1.0, "imag": -2.0}
//	{"__dict__": true, "items": [[1, "one"], [[0, 1], "pair"]]}
//
// Plain maps never carry keys starting with "__": a map that does is
// written as a __dict__ pair list, so a tagged object is always
// recognizable.
//
// [Marshal] writes every float64 with a decimal point or exponent and
// [Unmarshal] parses numbers with json.Decoder.UseNumber, so 1 and 1.0
// survive as int and float64.
//
// The [Encoder] hands kinds it does not own to a Fallback hook and the
// [Decoder] hands {"__ref__": true, ...} descriptor nodes to a Resolve
// hook. The archive layer uses these hooks to route tables, arrays and
// objects to their own storage.
package jsontree
