// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package datazip stores object graphs in a single zip package and
// reads them back.
//
// An [Archive] is opened either for writing or for reading, never
// both. In write mode every [Archive.Set] encodes one value under a
// caller-chosen name. Plain values (scalars, containers and the kinds
// in lib/value) become tagged JSON trees held in the manifest. Tables,
// arrays and binary images are written immediately as blob entries
// (.parquet, .npy and .pkl) and the manifest holds a descriptor
// pointing at them. Any other struct, or pointer to one, is an opaque
// object: its state is exported through lib/objstate, encoded
// recursively into the __state__ section, and referenced by a
// descriptor carrying the type id and provenance.
//
// Within one write session a pointer (or slice) encoded twice is
// stored once; the second encode emits a back-reference. In read mode
// descriptors resolve through a decode cache, so both references come
// back as one shared instance.
//
// [Archive.Close] writes __attributes__.json (the manifest, in
// insertion order) and __metadata__.json (format revision, engine
// version, provenance and per-entry blake3 checksums). Archives with
// no revision, or an older one, are read through a best-effort legacy
// bridge that always records a warning.
//
// Archives are append-only. [Replace] rebuilds an archive with some
// entries overridden, and [Dump]/[Load] store a single value under a
// fixed key.
//
// An Archive is not safe for concurrent use.
package datazip
