// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objstate

import (
	"fmt"
	"iter"
	"math"
	"reflect"

	"github.com/bureau-foundation/datazip/lib/value"
)

// Assign stores src into dst, converting canonical decoded values into
// dst's type. dst must be settable.
func Assign(dst reflect.Value, src any) error {
	if src == nil {
		dst.SetZero()
		return nil
	}
	source := reflect.ValueOf(src)
	if source.Type().AssignableTo(dst.Type()) {
		dst.Set(source)
		return nil
	}

	switch dst.Kind() {
	case reflect.Pointer:
		if source.Kind() == reflect.Pointer && source.Type().Elem().AssignableTo(dst.Type().Elem()) {
			dst.Set(source)
			return nil
		}
		fresh := reflect.New(dst.Type().Elem())
		if err := Assign(fresh.Elem(), src); err != nil {
			return err
		}
		dst.Set(fresh)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return assignNumber(dst, source)

	case reflect.Complex64, reflect.Complex128:
		switch source.Kind() {
		case reflect.Complex64, reflect.Complex128:
			dst.SetComplex(source.Complex())
			return nil
		case reflect.Float32, reflect.Float64:
			dst.SetComplex(complex(source.Float(), 0))
			return nil
		}

	case reflect.String:
		if source.Kind() == reflect.String {
			dst.SetString(source.String())
			return nil
		}

	case reflect.Bool:
		if source.Kind() == reflect.Bool {
			dst.SetBool(source.Bool())
			return nil
		}

	case reflect.Slice:
		items, ok := sequenceItems(source)
		if !ok {
			break
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := Assign(out.Index(i), item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		dst.Set(out)
		return nil

	case reflect.Array:
		items, ok := sequenceItems(source)
		if !ok {
			break
		}
		if len(items) != dst.Len() {
			return fmt.Errorf("%w: %d items to %v", ErrConvert, len(items), dst.Type())
		}
		for i, item := range items {
			if err := Assign(dst.Index(i), item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil

	case reflect.Map:
		pairs, ok := mappingPairs(source, dst.Type().Elem())
		if !ok {
			break
		}
		out := reflect.MakeMap(dst.Type())
		for key, item := range pairs {
			convertedKey := reflect.New(dst.Type().Key()).Elem()
			if err := Assign(convertedKey, key); err != nil {
				return fmt.Errorf("key %v: %w", key, err)
			}
			convertedItem := reflect.New(dst.Type().Elem()).Elem()
			if err := Assign(convertedItem, item); err != nil {
				return fmt.Errorf("key %v: %w", key, err)
			}
			out.SetMapIndex(convertedKey, convertedItem)
		}
		dst.Set(out)
		return nil

	case reflect.Struct:
		if source.Kind() == reflect.Pointer && source.Type().Elem() == dst.Type() {
			dst.Set(source.Elem())
			return nil
		}
		if dst.CanAddr() {
			if restorer, ok := dst.Addr().Interface().(Restorer); ok {
				return restorer.RestoreState(src)
			}
		}
		if fields, ok := src.(map[string]any); ok {
			_, err := restoreStruct(dst, fields)
			return err
		}
		if tuple, ok := src.(value.Tuple); ok {
			return assignTuple(dst, tuple)
		}
	}
	return fmt.Errorf("%w: %T to %v", ErrConvert, src, dst.Type())
}

// assignTuple fills a struct positionally from a plain tuple, the form
// a named tuple degrades to when its type was not registered.
func assignTuple(dst reflect.Value, tuple value.Tuple) error {
	layout := LayoutOf(dst.Type())
	if len(tuple) != len(layout.Fields) {
		return fmt.Errorf("%w: %d-tuple to %v", ErrConvert, len(tuple), dst.Type())
	}
	for i, field := range layout.Fields {
		if err := Assign(dst.FieldByIndex(field.Index), tuple[i]); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func assignNumber(dst, source reflect.Value) error {
	fail := func() error {
		return fmt.Errorf("%w: %v (%v) to %v", ErrConvert, source.Interface(), source.Type(), dst.Type())
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch {
		case source.CanInt():
			n = source.Int()
		case source.CanUint():
			if source.Uint() > math.MaxInt64 {
				return fail()
			}
			n = int64(source.Uint())
		case source.CanFloat():
			f := source.Float()
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return fail()
			}
			n = int64(f)
		default:
			return fail()
		}
		if dst.OverflowInt(n) {
			return fail()
		}
		dst.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var n uint64
		switch {
		case source.CanInt():
			if source.Int() < 0 {
				return fail()
			}
			n = uint64(source.Int())
		case source.CanUint():
			n = source.Uint()
		case source.CanFloat():
			f := source.Float()
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return fail()
			}
			n = uint64(f)
		default:
			return fail()
		}
		if dst.OverflowUint(n) {
			return fail()
		}
		dst.SetUint(n)

	case reflect.Float32, reflect.Float64:
		var f float64
		switch {
		case source.CanInt():
			f = float64(source.Int())
		case source.CanUint():
			f = float64(source.Uint())
		case source.CanFloat():
			f = source.Float()
		default:
			return fail()
		}
		if dst.Kind() == reflect.Float32 && !math.IsInf(f, 0) && !math.IsNaN(f) && dst.OverflowFloat(f) {
			return fail()
		}
		dst.SetFloat(f)
	}
	return nil
}

// sequenceItems flattens any sequence-like source into its items.
func sequenceItems(source reflect.Value) ([]any, bool) {
	switch typed := source.Interface().(type) {
	case []any:
		return typed, true
	case value.Tuple:
		return typed, true
	case *value.Set:
		return typed.Items(), true
	case *value.FrozenSet:
		return typed.Items(), true
	case *value.Deque:
		return typed.Items(), true
	}
	switch source.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, source.Len())
		for i := range items {
			items[i] = source.Index(i).Interface()
		}
		return items, true
	}
	return nil, false
}

// mappingPairs iterates any mapping-like source. Sets convert to maps
// whose values are true (for bool elements) or zero.
func mappingPairs(source reflect.Value, elem reflect.Type) (iter.Seq2[any, any], bool) {
	setPairs := func(items []any) iter.Seq2[any, any] {
		member := any(nil)
		if elem.Kind() == reflect.Bool {
			member = true
		}
		return func(yield func(any, any) bool) {
			for _, item := range items {
				if !yield(item, member) {
					return
				}
			}
		}
	}

	switch typed := source.Interface().(type) {
	case *value.Map:
		return typed.All(), true
	case *value.OrderedMap:
		return typed.All(), true
	case *value.DefaultMap:
		return typed.All(), true
	case *value.Counter:
		return typed.All(), true
	case *value.Set:
		return setPairs(typed.Items()), true
	case *value.FrozenSet:
		return setPairs(typed.Items()), true
	}
	if source.Kind() != reflect.Map {
		return nil, false
	}
	return func(yield func(any, any) bool) {
		iterator := source.MapRange()
		for iterator.Next() {
			if !yield(iterator.Key().Interface(), iterator.Value().Interface()) {
				return
			}
		}
	}, true
}
