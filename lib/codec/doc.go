// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding used for image entries.
//
// An archive stores values that have no tree, table or array form as
// opaque images (.pkl entries). Each image is an [Image] envelope: a
// kind, the registered type id, and the CBOR payload. The envelope is
// encoded with Core Deterministic Encoding (RFC 8949 §4.2), so the
// same value always produces identical bytes and identical entry
// checksums.
//
//	image, err := codec.NewImage(codec.ImageRecipe, "sqlitepool.Handle", description)
//	data, err := codec.Marshal(image)
//
// Struct types in this package use `cbor` tags only: they are never
// serialized as JSON.
package codec
