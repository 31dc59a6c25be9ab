// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"errors"
	"fmt"
	"io"
	"reflect"
)

// DumpKey is the entry name Dump stores its value under.
const DumpKey = "self"

// Dump writes v to a new archive at path as the single entry DumpKey.
func Dump(v any, path string, options ...Option) error {
	archive, err := Create(path, options...)
	if err != nil {
		return err
	}
	if err := archive.Set(DumpKey, v); err != nil {
		archive.discard()
		return err
	}
	return archive.Close()
}

// DumpTo is Dump for an arbitrary writer.
func DumpTo(v any, w io.Writer, options ...Option) error {
	archive := NewWriter(w, options...)
	if err := archive.Set(DumpKey, v); err != nil {
		archive.discard()
		return err
	}
	return archive.Close()
}

// Load reads the value Dump wrote to path.
func Load(path string, options ...Option) (any, error) {
	archive, err := OpenFile(path, options...)
	if err != nil {
		return nil, err
	}
	return loadFrom(archive)
}

// LoadFrom is Load for an archive held in memory or any other
// io.ReaderAt.
func LoadFrom(r io.ReaderAt, size int64, options ...Option) (any, error) {
	archive, err := NewReader(r, size, options...)
	if err != nil {
		return nil, err
	}
	return loadFrom(archive)
}

func loadFrom(archive *Archive) (any, error) {
	loaded, err := archive.Get(DumpKey)
	return loaded, errors.Join(err, archive.Close())
}

// LoadAs reads the value Dump wrote to path as a T. When T is a struct
// or a pointer to one, the stored object is restored into T even if
// it was saved under another registered type.
func LoadAs[T any](path string, options ...Option) (T, error) {
	var zero T
	target := reflect.TypeFor[T]()
	structType := target
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}
	if structType.Kind() == reflect.Struct {
		options = append(options, WithOverrideType(structType))
	}

	loaded, err := Load(path, options...)
	if err != nil {
		return zero, err
	}
	return convertLoaded[T](loaded)
}

// convertLoaded returns loaded as a T, taking its address or
// dereferencing it when only the pointer level differs.
func convertLoaded[T any](loaded any) (T, error) {
	var zero T
	if typed, ok := loaded.(T); ok {
		return typed, nil
	}
	target := reflect.TypeFor[T]()
	reflected := reflect.ValueOf(loaded)
	if !reflected.IsValid() {
		return zero, nil
	}
	switch {
	case reflected.Kind() == reflect.Pointer && reflected.Type().Elem() == target:
		if reflected.IsNil() {
			return zero, nil
		}
		return reflected.Elem().Interface().(T), nil
	case target.Kind() == reflect.Pointer && target.Elem() == reflected.Type():
		pointer := reflect.New(reflected.Type())
		pointer.Elem().Set(reflected)
		return pointer.Interface().(T), nil
	}
	return zero, fmt.Errorf("loaded %T, want %v", loaded, target)
}
