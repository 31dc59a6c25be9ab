// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import "errors"

// Usage errors.
var (
	ErrWrongMode         = errors.New("operation not allowed in this archive mode")
	ErrDuplicateKey      = errors.New("key already stored")
	ErrReservedKey       = errors.New("key is reserved")
	ErrKeyType           = errors.New("archive keys must be strings")
	ErrAppendUnsupported = errors.New("archives cannot be opened for append; use Replace")
	ErrFileExists        = errors.New("archive file exists")
	ErrClosed            = errors.New("archive is closed")
)

// Data errors.
var (
	ErrUnknownKind         = errors.New("unknown descriptor kind")
	ErrUnregisteredType    = errors.New("type id is not registered")
	ErrUnsupportedRevision = errors.New("archive format revision is newer than this engine")
	ErrKeyNotFound         = errors.New("key not found")
	ErrMissingEntry        = errors.New("archive entry missing")
	ErrChecksum            = errors.New("checksum mismatch")
)
