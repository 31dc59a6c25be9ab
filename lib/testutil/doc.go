// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for datazip packages.
//
// [ArchivePath] returns a fresh archive path inside the test's
// temporary directory. [WriteZip] builds a raw zip file from named
// entries, which legacy-format and corruption tests use to construct
// packages the engine itself would never write.
//
// [RequireErrorIs] and [RequireNoError] encapsulate the error checks
// that nearly every archive test repeats.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation, such as distinct archive or key names within one
// test.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no datazip-internal dependencies.
package testutil
