// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the datazip
// engine and the libraries whose objects it stores.
//
// # Build information
//
// Three package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// [Engine] is the string recorded as engine_version in archive
// metadata and object descriptors.
//
// # Library versions
//
// [Library] resolves the version of the module that provides a Go
// package, from the binary's embedded build information. Object
// descriptors record it as lib_version so a reader can tell which
// release of a type's package wrote the state.
package version
