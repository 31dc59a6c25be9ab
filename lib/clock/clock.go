// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time so provenance timestamps are
// deterministic in tests. Production code injects Real(); tests inject
// Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// UTC returns c.Now() in UTC truncated to microseconds, the precision
// archive timestamps are stored with.
func UTC(c Clock) time.Time {
	return c.Now().UTC().Truncate(time.Microsecond)
}
