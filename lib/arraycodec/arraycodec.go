// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package arraycodec stores numeric slices and gonum matrices as .npy
// blobs. The Go type of the stored value travels in [Meta] so that a
// []int comes back as []int rather than the []int64 it is written as.
package arraycodec

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// ErrUnsupported is returned for values this package does not store.
var ErrUnsupported = errors.New("unsupported array type")

// Meta describes a stored array.
type Meta struct {
	// Type is the Go type name of the stored value, for example
	// "[]float64" or "*mat.Dense". Empty for blobs written by other
	// tools, in which case Decode infers it from the npy header.
	Type string

	// Dtype is the npy descriptor, for example "<f8".
	Dtype string

	Shape []int
}

// kind describes one supported Go type.
type kind struct {
	name string
	// read decodes a blob into this kind.
	read func(reader *npyio.Reader) (any, error)
	// decodeOnly kinds are read from blobs written by other tools but
	// never written, since the archive stores them inline.
	decodeOnly bool
}

func readInto[T any](reader *npyio.Reader) (any, error) {
	var out []T
	if err := reader.Read(&out); err != nil {
		return nil, err
	}
	return out, nil
}

var kinds = map[string]kind{
	"[]float64":    {"[]float64", readInto[float64], false},
	"[]float32":    {"[]float32", readInto[float32], false},
	"[]int64":      {"[]int64", readInto[int64], false},
	"[]int32":      {"[]int32", readInto[int32], false},
	"[]int16":      {"[]int16", readInto[int16], false},
	"[]int8":       {"[]int8", readInto[int8], false},
	"[]uint64":     {"[]uint64", readInto[uint64], false},
	"[]uint32":     {"[]uint32", readInto[uint32], false},
	"[]uint16":     {"[]uint16", readInto[uint16], false},
	"[]bool":       {"[]bool", readInto[bool], true},
	"[]complex64":  {"[]complex64", readInto[complex64], false},
	"[]complex128": {"[]complex128", readInto[complex128], false},
	"[]int": {"[]int", func(reader *npyio.Reader) (any, error) {
		var wide []int64
		if err := reader.Read(&wide); err != nil {
			return nil, err
		}
		out := make([]int, len(wide))
		for i, n := range wide {
			out[i] = int(n)
		}
		return out, nil
	}, false},
	"[]uint": {"[]uint", func(reader *npyio.Reader) (any, error) {
		var wide []uint64
		if err := reader.Read(&wide); err != nil {
			return nil, err
		}
		out := make([]uint, len(wide))
		for i, n := range wide {
			out[i] = uint(n)
		}
		return out, nil
	}, false},
	"*mat.Dense": {"*mat.Dense", func(reader *npyio.Reader) (any, error) {
		var dense mat.Dense
		if err := reader.Read(&dense); err != nil {
			return nil, err
		}
		return &dense, nil
	}, false},
}

// byDescriptor maps npy descriptors written by other tools to the Go
// type they decode as.
var byDescriptor = map[string]string{
	"<f8": "[]float64", "<f4": "[]float32",
	"<i8": "[]int64", "<i4": "[]int32", "<i2": "[]int16", "|i1": "[]int8",
	"<u8": "[]uint64", "<u4": "[]uint32", "<u2": "[]uint16",
	"|b1":  "[]bool",
	"<c8":  "[]complex64",
	"<c16": "[]complex128",
}

// Supports reports whether v is stored by this package.
func Supports(v any) bool {
	switch v.(type) {
	case *mat.Dense:
		return true
	}
	kind, ok := kinds[typeName(v)]
	return ok && !kind.decodeOnly
}

func typeName(v any) string {
	if _, ok := v.(*mat.Dense); ok {
		return "*mat.Dense"
	}
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Slice || t.Name() != "" {
		return ""
	}
	return "[]" + t.Elem().String()
}

// Encode writes v as an .npy blob.
func Encode(v any) ([]byte, Meta, error) {
	name := typeName(v)
	if kind, ok := kinds[name]; !ok || kind.decodeOnly {
		return nil, Meta{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
	}

	toWrite := v
	switch typed := v.(type) {
	case []int:
		wide := make([]int64, len(typed))
		for i, n := range typed {
			wide[i] = int64(n)
		}
		toWrite = wide
	case []uint:
		wide := make([]uint64, len(typed))
		for i, n := range typed {
			wide[i] = uint64(n)
		}
		toWrite = wide
	}

	var buffer bytes.Buffer
	if err := npyio.Write(&buffer, toWrite); err != nil {
		return nil, Meta{}, fmt.Errorf("writing npy for %s: %w", name, err)
	}
	blob := buffer.Bytes()

	reader, err := npyio.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, Meta{}, fmt.Errorf("reading back npy header: %w", err)
	}
	return blob, Meta{Type: name, Dtype: reader.Header.Descr.Type, Shape: reader.Header.Descr.Shape}, nil
}

// Decode reads an .npy blob.
func Decode(blob []byte, meta Meta) (any, error) {
	reader, err := npyio.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("reading npy header: %w", err)
	}

	name := meta.Type
	if name == "" {
		name = inferType(reader.Header.Descr.Type, reader.Header.Descr.Shape)
	}
	kind, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (descriptor %q)", ErrUnsupported, name, reader.Header.Descr.Type)
	}
	decoded, err := kind.read(reader)
	if err != nil {
		return nil, fmt.Errorf("decoding npy as %s: %w", name, err)
	}
	return decoded, nil
}

func inferType(descriptor string, shape []int) string {
	if descriptor == "<f8" && len(shape) == 2 {
		return "*mat.Dense"
	}
	return byDescriptor[descriptor]
}
