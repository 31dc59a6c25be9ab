// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/bureau-foundation/datazip/lib/datazip"
	"github.com/bureau-foundation/datazip/lib/objstate"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/version"
)

// MetaKey is the top-level key the object record is stored under.
const MetaKey = "__obj_meta__"

var (
	// ErrTypeMismatch is returned when an archive holds a different
	// type than the one requested.
	ErrTypeMismatch = errors.New("archive holds a different type")

	// ErrNotObject is returned for values that are not structs, or
	// whose exported state is not a field mapping.
	ErrNotObject = errors.New("not a field-stored object")
)

// ObjectMeta describes the object stored in an archive.
type ObjectMeta struct {
	// TypeID is the package-qualified type name, as typereg.TypeID
	// returns it.
	TypeID string

	// LibVersion is the version of the module defining the type, when
	// the build records one.
	LibVersion string

	// Fields lists the stored fields in write order.
	Fields []string

	// Extra holds caller metadata attached through a Wrapper.
	Extra map[string]any
}

func (m ObjectMeta) record() map[string]any {
	fields := make([]any, len(m.Fields))
	for i, name := range m.Fields {
		fields[i] = name
	}
	record := map[string]any{
		"type_id":     m.TypeID,
		"lib_version": m.LibVersion,
		"fields":      fields,
	}
	if len(m.Extra) > 0 {
		record["extra"] = m.Extra
	}
	return record
}

func metaFromRecord(decoded any) (ObjectMeta, error) {
	record, ok := decoded.(map[string]any)
	if !ok {
		return ObjectMeta{}, fmt.Errorf("%w: %s is %T", ErrNotObject, MetaKey, decoded)
	}
	var meta ObjectMeta
	meta.TypeID, _ = record["type_id"].(string)
	meta.LibVersion, _ = record["lib_version"].(string)
	if meta.TypeID == "" {
		return ObjectMeta{}, fmt.Errorf("%w: %s has no type_id", ErrNotObject, MetaKey)
	}
	fields, _ := record["fields"].([]any)
	for _, field := range fields {
		name, ok := field.(string)
		if !ok {
			return ObjectMeta{}, fmt.Errorf("%w: field name %v", ErrNotObject, field)
		}
		meta.Fields = append(meta.Fields, name)
	}
	meta.Extra, _ = record["extra"].(map[string]any)
	return meta, nil
}

// ToFile writes the exported fields of obj, a struct or pointer to
// struct, to a new archive at path.
func ToFile(path string, obj any, options ...datazip.Option) error {
	return toFile(path, obj, nil, options)
}

func toFile(path string, obj any, extra map[string]any, options []datazip.Option) error {
	t, err := structTypeOf(obj)
	if err != nil {
		return err
	}
	state, err := objstate.Export(obj)
	if err != nil {
		return err
	}
	fields, ok := state.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %T exports %T", ErrNotObject, obj, state)
	}

	archive, err := datazip.Create(path, options...)
	if err != nil {
		return err
	}
	meta := ObjectMeta{
		TypeID:     typereg.TypeID(t),
		LibVersion: version.Library(t.PkgPath()),
		Extra:      extra,
	}
	for _, name := range fieldOrder(t, fields) {
		if err := archive.Set(name, fields[name]); err != nil {
			archive.Abort()
			return fmt.Errorf("field %s: %w", name, err)
		}
		if archive.Len() > len(meta.Fields) {
			meta.Fields = append(meta.Fields, name)
		}
	}
	if err := archive.Set(MetaKey, meta.record()); err != nil {
		archive.Abort()
		return err
	}
	return archive.Close()
}

// fieldOrder returns the declared fields in declaration order, then
// the attrs bag entries sorted by name.
func fieldOrder(t reflect.Type, fields map[string]any) []string {
	order := make([]string, 0, len(fields))
	declared := make(map[string]bool, len(fields))
	for _, field := range objstate.LayoutOf(t).Fields {
		if _, ok := fields[field.Name]; ok {
			order = append(order, field.Name)
			declared[field.Name] = true
		}
	}
	var rest []string
	for name := range fields {
		if !declared[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func structTypeOf(obj any) (reflect.Type, error) {
	t := reflect.TypeOf(obj)
	if t != nil && t.Kind() == reflect.Pointer {
		if reflect.ValueOf(obj).IsNil() {
			return nil, fmt.Errorf("%w: nil %v", ErrNotObject, t)
		}
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T", ErrNotObject, obj)
	}
	return t, nil
}

// ReadMeta returns the object record of the archive at path.
func ReadMeta(path string, options ...datazip.Option) (ObjectMeta, error) {
	archive, err := datazip.OpenFile(path, options...)
	if err != nil {
		return ObjectMeta{}, err
	}
	defer archive.Close()
	return ArchiveMeta(archive)
}

// ArchiveMeta returns the object record of an archive open for
// reading.
func ArchiveMeta(archive *datazip.Archive) (ObjectMeta, error) {
	decoded, err := archive.Get(MetaKey)
	if err != nil {
		return ObjectMeta{}, err
	}
	return metaFromRecord(decoded)
}

// FromFile restores the object ToFile wrote to path into a bare T.
// The archive must hold a T.
func FromFile[T any](path string, options ...datazip.Option) (*T, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, t)
	}
	target := new(T)
	if _, err := fromFile(path, options, func(meta ObjectMeta) (any, error) {
		if want := typereg.TypeID(t); meta.TypeID != want {
			return nil, fmt.Errorf("%w: %s holds %s, want %s", ErrTypeMismatch, path, meta.TypeID, want)
		}
		return target, nil
	}); err != nil {
		return nil, err
	}
	return target, nil
}

// fromFile reads the fields of the archive at path into the target
// allocate returns for the stored record.
func fromFile(path string, options []datazip.Option, allocate func(ObjectMeta) (any, error)) (meta ObjectMeta, err error) {
	archive, err := datazip.OpenFile(path, options...)
	if err != nil {
		return ObjectMeta{}, err
	}
	defer func() {
		err = errors.Join(err, archive.Close())
	}()

	if meta, err = ArchiveMeta(archive); err != nil {
		return meta, err
	}
	target, err := allocate(meta)
	if err != nil {
		return meta, err
	}
	state := make(map[string]any, len(meta.Fields))
	for _, name := range meta.Fields {
		if state[name], err = archive.Get(name); err != nil {
			return meta, err
		}
	}
	if _, err := objstate.Restore(target, state); err != nil {
		return meta, fmt.Errorf("restoring %s: %w", meta.TypeID, err)
	}
	return meta, nil
}
