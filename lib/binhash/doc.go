// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes the BLAKE3 digests recorded for archive
// entries.
//
// Digests are keyed BLAKE3 with a fixed domain key, so an entry digest
// never collides with a plain BLAKE3 hash of the same bytes computed
// for some other purpose. The API surface:
//
//   - [Sum] and [NewHasher] -- digest a byte slice or a stream, used
//     while entries are written
//   - [HashFile] -- digest a whole archive file for CLI output
//   - [FormatDigest] and [ParseDigest] -- the hex form stored in
//     __metadata__.json
//
// This package depends on no other datazip packages.
package binhash
