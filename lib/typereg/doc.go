// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package typereg maps stable string identifiers to Go types and
// functions so that archives can name the type of a stored value and
// later reconstruct it in another process.
//
// Registration happens at program start, typically from init:
//
//	func init() {
//	    typereg.RegisterObject[Portfolio](typereg.Default(), "")
//	    typereg.RegisterNamedTuple[Point](typereg.Default(), "")
//	    typereg.Default().RegisterFunc("", newBucket)
//	}
//
// An empty id registers under [TypeID] (for types) or the function's
// fully qualified runtime name (for functions). Looking up an unknown
// id is not an error at this layer; callers decide whether a miss is
// fatal or degrades.
//
// Entries come in five kinds:
//
//   - [KindObject]: a struct stored by state through lib/objstate
//   - [KindNamedTuple]: a struct stored inline as a field-named tuple
//   - [KindFunc]: a function referenced by id, for example the factory
//     of a value.DefaultMap
//   - [KindRecipe]: a type rebuilt from a small description rather
//     than from its state, such as a database handle
//   - [KindImage]: a type with encoding.BinaryMarshaler and
//     encoding.BinaryUnmarshaler, stored as an opaque binary image
//
// Types may also be marked ignorable: archives omit values of those
// types with a warning instead of failing.
//
// A [Registry] is safe for concurrent use.
package typereg
