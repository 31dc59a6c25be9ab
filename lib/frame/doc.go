// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame defines the labeled tabular values that archives store
// in columnar form: [Frame], a two-dimensional table of typed columns,
// and [Series], a single labeled column.
//
// Column labels are arbitrary hashable values. A plain string label is
// the common case; a value.Tuple label forms one entry of a multi-level
// header, in which case every label of the frame is a tuple of the same
// arity and LevelNames may name each level.
//
// Each [Column] carries a [Dtype] and stores its cells in exactly one of
// the typed slices, selected by the dtype. Nulls are tracked by the
// Valid mask; a nil mask means every cell is present.
package frame
