// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/bureau-foundation/datazip/lib/arraycodec"
	"github.com/bureau-foundation/datazip/lib/codec"
	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/jsontree"
	"github.com/bureau-foundation/datazip/lib/objstate"
	"github.com/bureau-foundation/datazip/lib/tablecodec"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/value"
)

// Get decodes the top-level entry path[0] and indexes into it with the
// remaining elements. A first element that is not a key but contains a
// dot is looked up by the part before the dot, so "prices.parquet"
// finds "prices".
//
// Index elements select map entries by key, sequence items by int
// (negative counts from the end) and struct fields by state name.
func (a *Archive) Get(path ...any) (any, error) {
	if err := a.checkOpen(ModeRead); err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrKeyNotFound)
	}
	name, ok := path[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrKeyType, path[0])
	}

	current, err := a.getTop(name)
	if err != nil {
		return nil, err
	}
	for i, key := range path[1:] {
		current, err = index(current, key)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", path[:i+2], err)
		}
	}
	return current, nil
}

// GetDefault returns the entry name, or def if the archive has none.
func (a *Archive) GetDefault(name string, def any) (any, error) {
	if err := a.checkOpen(ModeRead); err != nil {
		return nil, err
	}
	if !a.Contains(name) {
		return def, nil
	}
	return a.Get(name)
}

func (a *Archive) getTop(name string) (any, error) {
	node, ok := a.manifest.Get(name)
	if !ok {
		if head, _, found := strings.Cut(name, "."); found {
			node, ok = a.manifest.Get(head)
			name = head
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, name)
	}

	var decoded any
	var err error
	if object, isDescriptor := node.(map[string]any); isDescriptor && a.settings.overrideType != nil && DescriptorKind(object) == kindObject {
		decoded, err = a.resolveWith(object, a.settings.overrideType)
	} else {
		decoded, err = a.decoder.Decode(node)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", name, err)
	}
	return decoded, nil
}

// Items yields every top-level entry in insertion order, decoding
// lazily. Iteration stops at the first decode failure, which Err then
// reports.
func (a *Archive) Items() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		a.itemsErr = nil
		for _, name := range a.Keys() {
			decoded, err := a.Get(name)
			if err != nil {
				a.itemsErr = err
				return
			}
			if !yield(name, decoded) {
				return
			}
		}
	}
}

// Err returns the error that stopped the last Items iteration.
func (a *Archive) Err() error {
	return a.itemsErr
}

// Item is one top-level entry.
type Item struct {
	Name  string
	Value any
}

// AllItems is Items with the decode error yielded alongside the entry
// that failed. Iteration stops after an error.
func (a *Archive) AllItems() iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for _, name := range a.Keys() {
			decoded, err := a.Get(name)
			if !yield(Item{Name: name, Value: decoded}, err) || err != nil {
				return
			}
		}
	}
}

// resolve is the tree decoder's hook for descriptor nodes.
func (a *Archive) resolve(node map[string]any) (any, error) {
	return a.resolveWith(node, nil)
}

// resolveWith decodes the entry a descriptor points at, at most once
// per location and kind.
func (a *Archive) resolveWith(node map[string]any, override reflect.Type) (any, error) {
	kind, _ := node["kind"].(string)
	location, _ := node["location"].(string)
	if location == "" {
		return nil, fmt.Errorf("%w: %s descriptor without location", jsontree.ErrMalformed, kind)
	}
	cacheKey := kind + ":" + location
	if cached, ok := a.cache[cacheKey]; ok {
		return cached, nil
	}

	var decoded any
	var err error
	switch kind {
	case kindFrame:
		decoded, err = a.decodeTable(node, location, false)
	case kindSeries:
		decoded, err = a.decodeTable(node, location, true)
	case kindArray:
		decoded, err = a.decodeArray(node, location)
	case kindImage:
		decoded, err = a.decodeImage(location)
	case kindObject:
		return a.decodeObject(node, location, cacheKey, override)
	default:
		return nil, fmt.Errorf("%w: %q at %s", ErrUnknownKind, kind, location)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, location, err)
	}
	a.cache[cacheKey] = decoded
	return decoded, nil
}

func (a *Archive) decodeTable(node map[string]any, location string, series bool) (any, error) {
	blob, err := a.readEntry(location + ".parquet")
	if err != nil {
		return nil, err
	}
	meta, err := a.tableMeta(node)
	if err != nil {
		return nil, err
	}
	options := tablecodec.Options{IgnoreDtypes: a.settings.ignoreDtypes}
	if series {
		return tablecodec.DecodeSeries(blob, meta, options)
	}
	decoded, err := tablecodec.DecodeFrame(blob, meta, options)
	if err != nil {
		return nil, err
	}
	if squeeze, _ := node[squeezeKey].(bool); squeeze && len(decoded.Columns) == 1 {
		return &frame.Series{Name: decoded.Labels[0], Column: decoded.Columns[0]}, nil
	}
	return decoded, nil
}

func (a *Archive) decodeArray(node map[string]any, location string) (any, error) {
	blob, err := a.readEntry(location + ".npy")
	if err != nil {
		return nil, err
	}
	meta, err := arrayMeta(node)
	if err != nil {
		return nil, err
	}
	return arraycodec.Decode(blob, meta)
}

func (a *Archive) decodeImage(location string) (any, error) {
	envelope, err := a.ImageEnvelope(location + ".pkl")
	if err != nil {
		return nil, err
	}
	var image codec.Image
	if err := codec.Unmarshal(envelope, &image); err != nil {
		return nil, fmt.Errorf("decoding image envelope: %w", err)
	}

	switch image.Kind {
	case codec.ImageBytes:
		var data []byte
		err := image.DecodePayload(&data)
		return data, err
	case codec.ImageRecipe:
		entry, err := a.entryOf(image.Type, typereg.KindRecipe)
		if err != nil {
			return nil, err
		}
		var description any
		if err := image.DecodePayload(&description); err != nil {
			return nil, err
		}
		return entry.Recipe.Decode(description)
	case codec.ImageBinary:
		entry, err := a.entryOf(image.Type, typereg.KindImage)
		if err != nil {
			return nil, err
		}
		var data []byte
		if err := image.DecodePayload(&data); err != nil {
			return nil, err
		}
		return unmarshalBinary(entry.Type, data)
	}
	return nil, fmt.Errorf("%w: image kind %q", ErrUnknownKind, image.Kind)
}

func (a *Archive) entryOf(id string, kind typereg.Kind) (*typereg.Entry, error) {
	entry, ok := a.registry.ByID(id)
	if !ok || entry.Kind != kind {
		return nil, fmt.Errorf("%w: %s %q", ErrUnregisteredType, kind, id)
	}
	return entry, nil
}

// unmarshalBinary rebuilds a value of type t from its MarshalBinary
// output.
func unmarshalBinary(t reflect.Type, data []byte) (any, error) {
	target := t
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	instance := reflect.New(target)
	unmarshaler, ok := instance.Interface().(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, fmt.Errorf("%w: %v lacks UnmarshalBinary", ErrUnregisteredType, t)
	}
	if err := unmarshaler.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("unmarshaling %v: %w", t, err)
	}
	if t.Kind() == reflect.Pointer {
		return instance.Interface(), nil
	}
	return instance.Elem().Interface(), nil
}

// decodeObject allocates a bare instance, caches it before decoding
// its state so that cycles resolve to it, and restores the state.
func (a *Archive) decodeObject(node map[string]any, location, cacheKey string, override reflect.Type) (any, error) {
	id, _ := node["objinfo"].(string)
	byValue, _ := node["byvalue"].(bool)

	var instance reflect.Value
	if override != nil {
		instance = a.instanceOf(override)
	} else {
		entry, err := a.entryOf(id, typereg.KindObject)
		if err != nil {
			return nil, fmt.Errorf("object at %s: %w", location, err)
		}
		instance = entry.NewInstance()
	}

	stateNode, ok := a.stateNodes[location]
	if !ok {
		return nil, fmt.Errorf("object %s: %w: state %q", id, ErrMissingEntry, location)
	}
	target := instance.Interface()
	if !byValue {
		a.cache[cacheKey] = target
	}

	state, err := a.decoder.Decode(stateNode)
	if err == nil {
		var ignored []string
		ignored, err = objstate.Restore(target, state)
		for _, field := range ignored {
			a.warn("ignoring stored field with no destination", "type", id, "field", field)
		}
	}
	if err != nil {
		delete(a.cache, cacheKey)
		return nil, fmt.Errorf("object %s at %s: %w", id, location, err)
	}

	if byValue {
		return instance.Elem().Interface(), nil
	}
	return target, nil
}

// instanceOf allocates a bare instance of the struct type t, or of the
// struct t points to.
func (a *Archive) instanceOf(t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if entry, ok := a.registry.ByType(t); ok && entry.Kind == typereg.KindObject {
		return entry.NewInstance()
	}
	return reflect.New(t)
}

// getter is the lookup method of value.Map and the mappings embedding
// it.
type getter interface {
	Get(key any) (any, bool)
}

func index(current, key any) (any, error) {
	switch typed := current.(type) {
	case map[string]any:
		name, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string-keyed map indexed by %T", ErrKeyType, key)
		}
		if item, ok := typed[name]; ok {
			return item, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, name)
	case getter:
		if item, ok := typed.Get(key); ok {
			return item, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	case value.Tuple:
		return indexSequence(reflect.ValueOf([]any(typed)), key)
	case *value.Deque:
		return indexSequence(reflect.ValueOf(typed.Items()), key)
	}

	reflected := reflect.ValueOf(current)
	switch reflected.Kind() {
	case reflect.Slice, reflect.Array:
		return indexSequence(reflected, key)
	case reflect.Map:
		keyValue := reflect.ValueOf(key)
		keyType := reflected.Type().Key()
		if !keyValue.IsValid() || !keyValue.Type().ConvertibleTo(keyType) {
			return nil, fmt.Errorf("%w: %v map indexed by %T", ErrKeyType, keyType, key)
		}
		item := reflected.MapIndex(keyValue.Convert(keyType))
		if !item.IsValid() {
			return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
		}
		return item.Interface(), nil
	case reflect.Struct, reflect.Pointer:
		state, err := objstate.Export(current)
		if err != nil {
			return nil, err
		}
		return index(state, key)
	}
	return nil, fmt.Errorf("%w: cannot index %T", ErrKeyNotFound, current)
}

func indexSequence(sequence reflect.Value, key any) (any, error) {
	i, ok := key.(int)
	if !ok {
		return nil, fmt.Errorf("%w: sequence indexed by %T", ErrKeyType, key)
	}
	if i < 0 {
		i += sequence.Len()
	}
	if i < 0 || i >= sequence.Len() {
		return nil, fmt.Errorf("%w: index %v out of range for length %d", ErrKeyNotFound, key, sequence.Len())
	}
	return sequence.Index(i).Interface(), nil
}
