// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsontree

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/bureau-foundation/datazip/lib/objstate"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/value"
)

var (
	// ErrUnsupportedKind is returned when a value has no tree form and
	// the Fallback hook did not take it.
	ErrUnsupportedKind = errors.New("unsupported kind")

	// ErrUnknownTag is returned for a tagged object whose tag this
	// package does not know.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrMalformed is returned for a tagged object missing required
	// payload keys or carrying payload of the wrong shape.
	ErrMalformed = errors.New("malformed tagged node")

	// ErrOmit is returned by a Fallback to drop a value from the list
	// or mapping holding it. Named tuple fields encode as null instead.
	ErrOmit = errors.New("value omitted")
)

// Tag names.
const (
	TagRef         = "__ref__"
	TagTuple       = "__tuple__"
	TagSet         = "__set__"
	TagFrozenSet   = "__frozenset__"
	TagComplex     = "__complex__"
	TagDatetime    = "__datetime__"
	TagPath        = "__path__"
	TagNamedTuple  = "__nt__"
	TagDict        = "__dict__"
	TagOrderedDict = "__ordereddict__"
	TagDefaultDict = "__defaultdict__"
	TagCounter     = "__counter__"
	TagDeque       = "__deque__"
	TagFloat       = "__float__"
	TagNumber      = "__number__"
	TagSlice       = "__slice__"
)

var (
	stringSliceType = reflect.TypeFor[[]string]()
	boolSliceType   = reflect.TypeFor[[]bool]()
)

// Encoder converts values to trees. The zero value encodes the built-in
// kinds and reports everything else as [ErrUnsupportedKind].
type Encoder struct {
	// Registry resolves named tuple types and default-map factories.
	// Nil means typereg.Default().
	Registry *typereg.Registry

	// Fallback is offered every value whose kind the encoder does not
	// own, before generic map and slice conversion. Returning
	// handled=false declines the value.
	Fallback func(v any) (node any, handled bool, err error)

	// Warn receives non-fatal problems as a message and slog-style
	// key/value pairs.
	Warn func(msg string, args ...any)
}

func (e *Encoder) registry() *typereg.Registry {
	if e.Registry == nil {
		return typereg.Default()
	}
	return e.Registry
}

func (e *Encoder) warn(msg string, args ...any) {
	if e.Warn != nil {
		e.Warn(msg, args...)
	}
}

// Encode returns the tree form of v.
func (e *Encoder) Encode(v any) (any, error) {
	switch typed := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int:
		return typed, nil
	case float64:
		return encodeFloat(typed), nil
	case complex128:
		return tagged(TagComplex, "real", encodeFloat(real(typed)), "imag", encodeFloat(imag(typed))), nil
	case complex64:
		return e.Encode(complex128(typed))
	case time.Time:
		return tagged(TagDatetime, "items", typed.Format(time.RFC3339Nano)), nil
	case value.Path:
		return tagged(TagPath, "items", string(typed)), nil
	case value.Tuple:
		items, err := e.encodeList(typed)
		if err != nil {
			return nil, err
		}
		return tagged(TagTuple, "items", items), nil
	case []any:
		return e.encodeList(typed)
	case map[string]any:
		return e.encodeStringMap(typed)
	case *value.Set:
		return e.encodeItems(TagSet, typed, func() []any { return typed.Items() })
	case *value.FrozenSet:
		return e.encodeItems(TagFrozenSet, typed, func() []any { return typed.Items() })
	case *value.Map:
		if typed == nil {
			return nil, nil
		}
		return e.encodeMapping(TagDict, typed)
	case *value.OrderedMap:
		if typed == nil {
			return nil, nil
		}
		return e.encodeMapping(TagOrderedDict, &typed.Map)
	case *value.Counter:
		if typed == nil {
			return nil, nil
		}
		return e.encodeMapping(TagCounter, &typed.Map)
	case *value.DefaultMap:
		if typed == nil {
			return nil, nil
		}
		return e.encodeDefaultMap(typed)
	case *value.Deque:
		if typed == nil {
			return nil, nil
		}
		return e.encodeDeque(typed)
	}

	reflected := reflect.ValueOf(v)
	if node, ok := encodeScalar(reflected); ok {
		return node, nil
	}
	switch reflected.Type() {
	case stringSliceType, boolSliceType:
		items, err := e.encodeSequence(reflected)
		if err != nil {
			return nil, err
		}
		return tagged(TagSlice, "type", reflected.Type().String(), "items", items), nil
	}
	if reflected.Kind() == reflect.Struct {
		if entry, ok := e.registry().ByType(reflected.Type()); ok && entry.Kind == typereg.KindNamedTuple {
			return e.encodeNamedTuple(entry, reflected)
		}
	}

	if e.Fallback != nil {
		node, handled, err := e.Fallback(v)
		if err != nil {
			return nil, err
		}
		if handled {
			return node, nil
		}
	}

	switch reflected.Kind() {
	case reflect.Slice, reflect.Array:
		if reflected.Kind() == reflect.Slice && reflected.IsNil() {
			return nil, nil
		}
		return e.encodeSequence(reflected)
	case reflect.Map:
		if reflected.IsNil() {
			return nil, nil
		}
		return e.encodeReflectedMap(reflected)
	case reflect.Pointer, reflect.Interface:
		if reflected.IsNil() {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedKind, v)
}

// encodeScalar handles named and sized scalar kinds by reflection.
func encodeScalar(reflected reflect.Value) (any, bool) {
	switch reflected.Kind() {
	case reflect.Bool:
		return reflected.Bool(), true
	case reflect.String:
		return reflected.String(), true
	case reflect.Int:
		return int(reflected.Int()), true
	case reflect.Float64:
		return encodeFloat(reflected.Float()), true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return tagged(TagNumber, "type", reflected.Kind().String(), "items", reflected.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return tagged(TagNumber, "type", reflected.Kind().String(), "items", reflected.Uint()), true
	case reflect.Float32:
		return tagged(TagNumber, "type", "float32", "items", encodeFloat(reflected.Float())), true
	case reflect.Complex64, reflect.Complex128:
		c := reflected.Complex()
		return tagged(TagComplex, "real", encodeFloat(real(c)), "imag", encodeFloat(imag(c))), true
	}
	return nil, false
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return tagged(TagFloat, "items", "nan")
	case math.IsInf(f, 1):
		return tagged(TagFloat, "items", "inf")
	case math.IsInf(f, -1):
		return tagged(TagFloat, "items", "-inf")
	}
	return f
}

func tagged(tag string, pairs ...any) map[string]any {
	node := map[string]any{tag: true}
	for i := 0; i+1 < len(pairs); i += 2 {
		node[pairs[i].(string)] = pairs[i+1]
	}
	return node
}

func (e *Encoder) encodeList(items []any) ([]any, error) {
	out := make([]any, 0, len(items))
	for i, item := range items {
		node, err := e.Encode(item)
		if errors.Is(err, ErrOmit) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, node)
	}
	return out, nil
}

func (e *Encoder) encodeSequence(reflected reflect.Value) ([]any, error) {
	out := make([]any, 0, reflected.Len())
	for i := range reflected.Len() {
		node, err := e.Encode(reflected.Index(i).Interface())
		if errors.Is(err, ErrOmit) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, node)
	}
	return out, nil
}

// encodeItems encodes a possibly nil container held behind a pointer.
func (e *Encoder) encodeItems(tag string, container any, items func() []any) (any, error) {
	if reflect.ValueOf(container).IsNil() {
		return nil, nil
	}
	encoded, err := e.encodeList(items())
	if err != nil {
		return nil, err
	}
	return tagged(tag, "items", encoded), nil
}

func reservedKey(key string) bool {
	return strings.HasPrefix(key, "__")
}

func (e *Encoder) encodeStringMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(m))
	reserved := false
	for key := range m {
		keys = append(keys, key)
		reserved = reserved || reservedKey(key)
	}
	sort.Strings(keys)

	if reserved {
		pairs := make([]any, 0, len(keys))
		for _, key := range keys {
			node, err := e.Encode(m[key])
			if errors.Is(err, ErrOmit) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			pairs = append(pairs, []any{key, node})
		}
		return tagged(TagDict, "items", pairs), nil
	}

	out := make(map[string]any, len(m))
	for _, key := range keys {
		node, err := e.Encode(m[key])
		if errors.Is(err, ErrOmit) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = node
	}
	return out, nil
}

func (e *Encoder) encodePairs(m *value.Map) ([]any, error) {
	pairs := make([]any, 0, m.Len())
	for key, item := range m.All() {
		keyNode, err := e.Encode(key)
		if errors.Is(err, ErrOmit) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", key, err)
		}
		valueNode, err := e.Encode(item)
		if errors.Is(err, ErrOmit) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", key, err)
		}
		pairs = append(pairs, []any{keyNode, valueNode})
	}
	return pairs, nil
}

func (e *Encoder) encodeMapping(tag string, m *value.Map) (any, error) {
	pairs, err := e.encodePairs(m)
	if err != nil {
		return nil, err
	}
	return tagged(tag, "items", pairs), nil
}

func (e *Encoder) encodeDefaultMap(m *value.DefaultMap) (any, error) {
	pairs, err := e.encodePairs(&m.Map)
	if err != nil {
		return nil, err
	}
	var factory any
	if m.Factory != nil {
		if id, ok := e.registry().FuncID(m.Factory); ok {
			factory = id
		} else {
			e.warn("default map factory is not registered, it will not be stored",
				"factory", typereg.FuncName(m.Factory))
		}
	}
	return tagged(TagDefaultDict, "factory", factory, "items", pairs), nil
}

func (e *Encoder) encodeDeque(d *value.Deque) (any, error) {
	items, err := e.encodeList(d.Items())
	if err != nil {
		return nil, err
	}
	var maxLen any
	if n, bounded := d.MaxLen(); bounded {
		maxLen = n
	}
	return tagged(TagDeque, "maxlen", maxLen, "items", items), nil
}

// encodeReflectedMap encodes typed Go maps. String-keyed maps become
// plain objects, everything else a __dict__ pair list in canonical key
// order.
func (e *Encoder) encodeReflectedMap(reflected reflect.Value) (any, error) {
	if reflected.Type().Key().Kind() == reflect.String {
		plain := make(map[string]any, reflected.Len())
		for iterator := reflected.MapRange(); iterator.Next(); {
			plain[iterator.Key().String()] = iterator.Value().Interface()
		}
		return e.encodeStringMap(plain)
	}

	type pair struct {
		canonical string
		key, item any
	}
	pairs := make([]pair, 0, reflected.Len())
	for iterator := reflected.MapRange(); iterator.Next(); {
		key := iterator.Key().Interface()
		canonical, err := value.Key(key)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{canonical, key, iterator.Value().Interface()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].canonical < pairs[j].canonical })

	m := value.NewMap()
	for _, p := range pairs {
		if err := m.Set(p.key, p.item); err != nil {
			return nil, err
		}
	}
	return e.encodeMapping(TagDict, m)
}

func (e *Encoder) encodeNamedTuple(entry *typereg.Entry, reflected reflect.Value) (any, error) {
	layout := objstate.LayoutOf(reflected.Type())
	fields := make([]any, len(layout.Fields))
	items := make([]any, len(layout.Fields))
	for i, field := range layout.Fields {
		node, err := e.Encode(reflected.FieldByIndex(field.Index).Interface())
		if errors.Is(err, ErrOmit) {
			node, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", entry.ID, field.Name, err)
		}
		fields[i] = field.Name
		items[i] = node
	}
	return tagged(TagNamedTuple, "objinfo", entry.ID, "fields", fields, "items", items), nil
}
