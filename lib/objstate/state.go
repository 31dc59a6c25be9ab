// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objstate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/bureau-foundation/datazip/lib/value"
)

var (
	// ErrUnsupportedKind is returned for values that neither implement
	// the state capability nor are structs.
	ErrUnsupportedKind = errors.New("unsupported kind")

	// ErrNotPointer is returned when Restore is given something other
	// than a non-nil pointer.
	ErrNotPointer = errors.New("restore target is not a non-nil pointer")

	// ErrConvert is returned when a stored value cannot be assigned to
	// a declared field type.
	ErrConvert = errors.New("cannot convert")
)

// Exporter is implemented by types that produce their own state. The
// returned state must itself be storable.
type Exporter interface {
	ExportState() (any, error)
}

// Restorer is implemented by types that restore their own state from
// what their ExportState produced, after a round trip through the
// archive. Restore is called on a bare instance: no constructor has
// run.
type Restorer interface {
	RestoreState(state any) error
}

// Capable reports whether t, or a pointer to it, implements either
// half of the state capability.
func Capable(t reflect.Type) bool {
	exporter := reflect.TypeFor[Exporter]()
	restorer := reflect.TypeFor[Restorer]()
	if t.Implements(exporter) || t.Implements(restorer) {
		return true
	}
	if t.Kind() != reflect.Pointer {
		pointer := reflect.PointerTo(t)
		return pointer.Implements(exporter) || pointer.Implements(restorer)
	}
	return false
}

// Export returns the state of obj. Objects implementing [Exporter]
// decide their own state; structs and pointers to structs export a
// map from field name to field value.
func Export(obj any) (any, error) {
	if exporter, ok := obj.(Exporter); ok {
		state, err := exporter.ExportState()
		if err != nil {
			return nil, fmt.Errorf("exporting %T: %w", obj, err)
		}
		return state, nil
	}

	reflected := reflect.ValueOf(obj)
	for reflected.Kind() == reflect.Pointer {
		if reflected.IsNil() {
			return nil, fmt.Errorf("%w: nil %T", ErrUnsupportedKind, obj)
		}
		reflected = reflected.Elem()
	}
	if reflected.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKind, obj)
	}
	return exportStruct(reflected)
}

func exportStruct(reflected reflect.Value) (map[string]any, error) {
	layout := LayoutOf(reflected.Type())
	state := make(map[string]any, len(layout.Fields))
	for _, field := range layout.Fields {
		exported, err := exportValue(reflected.FieldByIndex(field.Index))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		state[field.Name] = exported
	}
	if layout.Attrs != nil {
		attrs := reflected.FieldByIndex(layout.Attrs).Interface().(map[string]any)
		for key, attribute := range attrs {
			if _, declared := state[key]; !declared {
				state[key] = attribute
			}
		}
	}
	return state, nil
}

// exportValue converts nested struct values, which have no identity
// of their own, into state maps. Pointers and everything else are
// returned as they are so that the archive can track their identity.
func exportValue(reflected reflect.Value) (any, error) {
	if !reflected.IsValid() {
		return nil, nil
	}
	switch reflected.Kind() {
	case reflect.Struct:
		if reflected.Type() == timeType {
			return reflected.Interface(), nil
		}
		if exporter, ok := reflected.Interface().(Exporter); ok {
			return exporter.ExportState()
		}
		return exportStruct(reflected)
	case reflect.Slice, reflect.Array:
		if !holdsStructs(reflected.Type().Elem()) {
			break
		}
		if reflected.Kind() == reflect.Slice && reflected.IsNil() {
			return nil, nil
		}
		items := make([]any, reflected.Len())
		for i := range items {
			item, err := exportValue(reflected.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil
	case reflect.Map:
		if !holdsStructs(reflected.Type().Elem()) || reflected.IsNil() {
			break
		}
		if reflected.Type().Key().Kind() == reflect.String {
			items := make(map[string]any, reflected.Len())
			iterator := reflected.MapRange()
			for iterator.Next() {
				item, err := exportValue(iterator.Value())
				if err != nil {
					return nil, err
				}
				items[iterator.Key().String()] = item
			}
			return items, nil
		}
		items := value.NewMap()
		keys := reflected.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, key := range keys {
			item, err := exportValue(reflected.MapIndex(key))
			if err != nil {
				return nil, err
			}
			if err := items.Set(key.Interface(), item); err != nil {
				return nil, err
			}
		}
		return items, nil
	}
	return reflected.Interface(), nil
}

func holdsStructs(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType
}

// Restore applies state to the object target points to and returns
// the state keys that matched no field and had no attrs bag to land
// in. Objects implementing [Restorer] restore themselves.
func Restore(target any, state any) (ignored []string, err error) {
	if restorer, ok := target.(Restorer); ok {
		if err := restorer.RestoreState(state); err != nil {
			return nil, fmt.Errorf("restoring %T: %w", target, err)
		}
		return nil, nil
	}

	reflected := reflect.ValueOf(target)
	if reflected.Kind() != reflect.Pointer || reflected.IsNil() {
		return nil, fmt.Errorf("%w: %T", ErrNotPointer, target)
	}
	element := reflected.Elem()
	if element.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKind, target)
	}
	fields, ok := state.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: state for %T is %T, want map[string]any", ErrConvert, target, state)
	}
	return restoreStruct(element, fields)
}

func restoreStruct(element reflect.Value, fields map[string]any) ([]string, error) {
	layout := LayoutOf(element.Type())
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var ignored []string
	for _, key := range keys {
		field, ok := layout.Lookup(key)
		if !ok {
			if layout.Attrs == nil {
				ignored = append(ignored, key)
				continue
			}
			bag := element.FieldByIndex(layout.Attrs)
			if bag.IsNil() {
				bag.Set(reflect.MakeMap(attrsType))
			}
			attribute := fields[key]
			bag.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(&attribute).Elem())
			continue
		}
		if err := Assign(element.FieldByIndex(field.Index), fields[key]); err != nil {
			return ignored, fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return ignored, nil
}
