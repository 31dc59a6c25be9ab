// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"fmt"
	"maps"

	"github.com/bureau-foundation/datazip/lib/datazip"
	"github.com/bureau-foundation/datazip/lib/typereg"
)

// Wrapper adds ToFile to a value without touching its type.
type Wrapper struct {
	obj   any
	extra map[string]any
}

// Wrap returns a Wrapper around obj, a struct or pointer to struct.
func Wrap(obj any) *Wrapper {
	return &Wrapper{obj: obj, extra: map[string]any{}}
}

// Unwrap returns the wrapped value.
func (w *Wrapper) Unwrap() any { return w.obj }

// SetMeta attaches caller metadata stored in ObjectMeta.Extra.
func (w *Wrapper) SetMeta(key string, value any) {
	w.extra[key] = value
}

// Meta returns the caller metadata: as set, or as read by
// FromFileWrapped.
func (w *Wrapper) Meta() map[string]any {
	return maps.Clone(w.extra)
}

// ToFile writes the wrapped value like the package-level ToFile.
func (w *Wrapper) ToFile(path string, options ...datazip.Option) error {
	return toFile(path, w.obj, w.extra, options)
}

// FromFileWrapped restores a value written by Wrapper.ToFile or
// ToFile without knowing its type in advance. The type must be
// registered in registry (nil means typereg.Default()) under its
// default id. The result wraps a pointer to the restored struct.
func FromFileWrapped(path string, registry *typereg.Registry, options ...datazip.Option) (*Wrapper, error) {
	if registry == nil {
		registry = typereg.Default()
	}
	var target any
	meta, err := fromFile(path, options, func(meta ObjectMeta) (any, error) {
		entry, ok := registry.ByID(meta.TypeID)
		if !ok || entry.Kind != typereg.KindObject {
			return nil, fmt.Errorf("%w: %s", datazip.ErrUnregisteredType, meta.TypeID)
		}
		target = entry.NewInstance().Interface()
		return target, nil
	})
	if err != nil {
		return nil, err
	}
	wrapper := Wrap(target)
	if meta.Extra != nil {
		wrapper.extra = meta.Extra
	}
	return wrapper, nil
}
