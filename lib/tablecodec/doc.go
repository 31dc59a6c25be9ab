// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tablecodec converts frame.Frame and frame.Series values to
// and from parquet.
//
// Parquet stores a flat set of named leaf columns of physical types.
// Three things a frame carries do not survive that on their own, so
// they travel beside the blob in a [Meta]:
//
//   - Column labels that are not distinct plain strings (integers,
//     tuples forming a multi-level header). Such frames are written
//     with positional string names "0", "1", ... and the original
//     labels and level names are kept in Meta.
//   - Declared dtypes the physical types cannot express, such as the
//     nullable Int64 extension or categoricals. Every column's dtype
//     is recorded and re-applied on decode unless
//     [Options.IgnoreDtypes] is set.
//   - Column order. parquet-go sorts group fields by name, so the
//     written order goes into the file's key/value metadata.
//
// A series is written as a one-column frame under a sentinel column
// name; its own name, which may be a tuple, rides in Meta.Name.
//
// Decoding selects a reconstruction from an explicit table keyed by
// which pieces of side metadata are present. Archives written by
// different engine revisions produced different combinations; a
// combination outside the table is rejected with
// [ErrUnrecognizedLayout] rather than guessed at.
package tablecodec
