// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The archive stamps metadata and object descriptors with creation
// times. Production code takes a Clock instead of calling time.Now
// directly:
//
//	a, err := datazip.Create(path, datazip.WithClock(clock.Real()))
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	a, err := datazip.Create(path, datazip.WithClock(c))
//	c.Advance(time.Hour)
package clock
