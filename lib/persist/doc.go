// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package persist saves a struct to an archive one field per top-level
// key, so the fields can be read back individually by any archive
// reader, and restores it into a bare instance.
//
// [ToFile] and [FromFile] work on any struct or pointer to struct.
// [Wrap] does the same for a value whose type the caller does not want
// to know about at load time: [FromFileWrapped] finds the type in the
// registry by the id stored next to the fields.
//
// Alongside the fields, the archive holds an [ObjectMeta] record under
// [MetaKey] naming the type and its library version.
package persist
