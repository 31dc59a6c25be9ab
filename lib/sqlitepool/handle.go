// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/datazip/lib/typereg"
)

// HandleID is the registry id of the handle recipe.
const HandleID = "sqlitepool.Handle"

// Handle describes a pool by path and size and opens it on first use.
type Handle struct {
	path string
	size int

	mu   sync.Mutex
	pool *Pool
	err  error
}

// NewHandle returns a handle for the database at path. The pool is not
// opened until [Handle.Pool] is called.
func NewHandle(path string, poolSize int) *Handle {
	return &Handle{path: path, size: poolSize}
}

// Path returns the database path.
func (h *Handle) Path() string { return h.path }

// PoolSize returns the configured pool size.
func (h *Handle) PoolSize() int { return h.size }

// Pool opens the pool on the first call and returns it. Later calls
// return the same pool, or the same error. The database must already
// exist: a handle never creates one.
func (h *Handle) Pool() (*Pool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pool == nil && h.err == nil {
		h.pool, h.err = Open(Config{Path: h.path, PoolSize: h.size, MustExist: true})
	}
	return h.pool, h.err
}

// Close closes the pool if it was opened.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pool == nil {
		return nil
	}
	err := h.pool.Close()
	h.pool = nil
	return err
}

// ErrDescription is returned when a stored handle description is
// malformed.
var ErrDescription = errors.New("malformed handle description")

func encodeHandle(h *Handle) (any, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil handle", ErrDescription)
	}
	return map[string]any{"path": h.path, "pool_size": int64(h.size)}, nil
}

func decodeHandle(description any) (*Handle, error) {
	fields, ok := description.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrDescription, description)
	}
	path, ok := fields["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: path is %v", ErrDescription, fields["path"])
	}
	var size int
	switch n := fields["pool_size"].(type) {
	case int64:
		size = int(n)
	case int:
		size = n
	case uint64:
		size = int(n)
	case nil:
	default:
		return nil, fmt.Errorf("%w: pool_size is %T", ErrDescription, n)
	}
	return NewHandle(path, size), nil
}

// RegisterRecipe registers the handle recipe in r under [HandleID].
func RegisterRecipe(r *typereg.Registry) *typereg.Entry {
	return typereg.RegisterRecipe(r, HandleID, encodeHandle, decodeHandle)
}

func init() {
	RegisterRecipe(typereg.Default())
}
