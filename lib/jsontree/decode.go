// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jsontree

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/datazip/lib/objstate"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/value"
)

// ErrNoResolver is returned when a tree holds a descriptor node and the
// decoder has no Resolve hook.
var ErrNoResolver = errors.New("descriptor node without a resolver")

// Decoder reconstructs values from trees.
type Decoder struct {
	// Registry resolves named tuple ids and default-map factories. Nil
	// means typereg.Default().
	Registry *typereg.Registry

	// Resolve decodes {"__ref__": true, ...} descriptor nodes.
	Resolve func(descriptor map[string]any) (any, error)

	// Warn receives non-fatal problems as a message and slog-style
	// key/value pairs.
	Warn func(msg string, args ...any)
}

type tagDecoder func(d *Decoder, node map[string]any) (any, error)

var tagDecoders map[string]tagDecoder

func init() {
	tagDecoders = map[string]tagDecoder{
		TagTuple:       (*Decoder).decodeTuple,
		TagSet:         (*Decoder).decodeSet,
		TagFrozenSet:   (*Decoder).decodeFrozenSet,
		TagComplex:     (*Decoder).decodeComplex,
		TagDatetime:    (*Decoder).decodeDatetime,
		TagPath:        (*Decoder).decodePath,
		TagNamedTuple:  (*Decoder).decodeNamedTuple,
		TagDict:        (*Decoder).decodeDict,
		TagOrderedDict: (*Decoder).decodeOrderedDict,
		TagDefaultDict: (*Decoder).decodeDefaultDict,
		TagCounter:     (*Decoder).decodeCounter,
		TagDeque:       (*Decoder).decodeDeque,
		TagFloat:       (*Decoder).decodeFloat,
		TagNumber:      (*Decoder).decodeNumber,
		TagSlice:       (*Decoder).decodeSlice,
	}
}

func (d *Decoder) registry() *typereg.Registry {
	if d.Registry == nil {
		return typereg.Default()
	}
	return d.Registry
}

func (d *Decoder) warn(msg string, args ...any) {
	if d.Warn != nil {
		d.Warn(msg, args...)
	}
}

// Tag returns the tag of a tagged object node, or "" for a plain
// object.
func Tag(node map[string]any) string {
	if marker, ok := node[TagRef].(bool); ok && marker {
		return TagRef
	}
	for key := range node {
		if len(key) > 4 && strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__") {
			return key
		}
	}
	return ""
}

// Decode returns the value of node.
func (d *Decoder) Decode(node any) (any, error) {
	switch typed := node.(type) {
	case nil, bool, string, int, float64:
		return typed, nil
	case int64:
		return int(typed), nil
	case json.Number:
		return decodeJSONNumber(typed)
	case []any:
		return d.decodeList(typed)
	case map[string]any:
		return d.decodeObject(typed)
	}
	return nil, fmt.Errorf("%w: tree node of type %T", ErrUnsupportedKind, node)
}

func decodeJSONNumber(number json.Number) (any, error) {
	text := number.String()
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 0); err == nil {
			return int(n), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %q: %v", ErrMalformed, text, err)
	}
	return f, nil
}

func (d *Decoder) decodeList(nodes []any) ([]any, error) {
	out := make([]any, len(nodes))
	for i, node := range nodes {
		decoded, err := d.Decode(node)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out[i] = decoded
	}
	return out, nil
}

func (d *Decoder) decodeObject(node map[string]any) (any, error) {
	tag := Tag(node)
	if tag == "" {
		out := make(map[string]any, len(node))
		for key, child := range node {
			decoded, err := d.Decode(child)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = decoded
		}
		return out, nil
	}
	if tag == TagRef {
		if d.Resolve == nil {
			return nil, ErrNoResolver
		}
		return d.Resolve(node)
	}
	decode, ok := tagDecoders[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	decoded, err := decode(d, node)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}
	return decoded, nil
}

// items returns the decoded "items" list of node.
func (d *Decoder) items(node map[string]any) ([]any, error) {
	raw, ok := node["items"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: items is %T, want a list", ErrMalformed, node["items"])
	}
	return d.decodeList(raw)
}

func stringPayload(node map[string]any, key string) (string, error) {
	text, ok := node[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want a string", ErrMalformed, key, node[key])
	}
	// Older writers stored repr() output with surrounding quotes.
	return strings.Trim(text, `"'`), nil
}

func (d *Decoder) decodeTuple(node map[string]any) (any, error) {
	items, err := d.items(node)
	if err != nil {
		return nil, err
	}
	return value.Tuple(items), nil
}

func (d *Decoder) buildSet(node map[string]any) (*value.Set, error) {
	items, err := d.items(node)
	if err != nil {
		return nil, err
	}
	set := value.NewSet()
	for _, item := range items {
		if err := set.Add(item); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func (d *Decoder) decodeSet(node map[string]any) (any, error) {
	return d.buildSet(node)
}

func (d *Decoder) decodeFrozenSet(node map[string]any) (any, error) {
	set, err := d.buildSet(node)
	if err != nil {
		return nil, err
	}
	return set.Freeze(), nil
}

func (d *Decoder) float(node any) (float64, error) {
	decoded, err := d.Decode(node)
	if err != nil {
		return 0, err
	}
	switch number := decoded.(type) {
	case float64:
		return number, nil
	case int:
		return float64(number), nil
	}
	return 0, fmt.Errorf("%w: %T is not a number", ErrMalformed, decoded)
}

func (d *Decoder) decodeComplex(node map[string]any) (any, error) {
	re, err := d.float(node["real"])
	if err != nil {
		return nil, fmt.Errorf("real: %w", err)
	}
	im, err := d.float(node["imag"])
	if err != nil {
		return nil, fmt.Errorf("imag: %w", err)
	}
	return complex(re, im), nil
}

// datetimeLayouts are tried in order. The later ones accept the
// space-separated form older archives wrote.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (d *Decoder) decodeDatetime(node map[string]any) (any, error) {
	text, err := stringPayload(node, "items")
	if err != nil {
		return nil, err
	}
	for _, layout := range datetimeLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed, nil
		}
	}
	return nil, fmt.Errorf("%w: unparseable datetime %q", ErrMalformed, text)
}

func (d *Decoder) decodePath(node map[string]any) (any, error) {
	text, err := stringPayload(node, "items")
	if err != nil {
		return nil, err
	}
	return value.Path(text), nil
}

// objinfoID accepts the id string and the older
// [module, qualname, constructor] list.
func objinfoID(raw any) (string, error) {
	switch typed := raw.(type) {
	case string:
		return typed, nil
	case []any:
		if len(typed) >= 2 {
			module, moduleOK := typed[0].(string)
			name, nameOK := typed[1].(string)
			if moduleOK && nameOK {
				return module + "." + name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: objinfo %v", ErrMalformed, raw)
}

func (d *Decoder) decodeNamedTuple(node map[string]any) (any, error) {
	id, err := objinfoID(node["objinfo"])
	if err != nil {
		return nil, err
	}

	var names []string
	var items []any
	switch raw := node["items"].(type) {
	case []any:
		items, err = d.decodeList(raw)
		if err != nil {
			return nil, err
		}
		fields, _ := node["fields"].([]any)
		for _, field := range fields {
			name, _ := field.(string)
			names = append(names, name)
		}
		if len(names) != len(items) {
			return nil, fmt.Errorf("%w: %d fields for %d items", ErrMalformed, len(names), len(items))
		}
	case *Fields:
		// Older archives stored a field mapping in field order.
		for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
			decoded, err := d.Decode(pair.Value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", pair.Key, err)
			}
			names = append(names, pair.Key)
			items = append(items, decoded)
		}
	case map[string]any:
		// A mapping built in memory has no order; sort by name.
		for name := range raw {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			decoded, err := d.Decode(raw[name])
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", name, err)
			}
			items = append(items, decoded)
		}
	default:
		return nil, fmt.Errorf("%w: items is %T", ErrMalformed, node["items"])
	}

	entry, ok := d.registry().ByID(id)
	if !ok || entry.Kind != typereg.KindNamedTuple {
		d.warn("named tuple type is not registered, returning a plain tuple", "objinfo", id)
		return value.Tuple(items), nil
	}

	instance := reflect.New(entry.Type).Elem()
	layout := objstate.LayoutOf(entry.Type)
	for i, name := range names {
		field, ok := layout.Lookup(name)
		if !ok {
			d.warn("named tuple field no longer exists, dropping it", "objinfo", id, "field", name)
			continue
		}
		if err := objstate.Assign(instance.FieldByIndex(field.Index), items[i]); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", id, name, err)
		}
	}
	return instance.Interface(), nil
}

// pairs decodes an "items" list of [key, value] pairs into m.
func (d *Decoder) pairs(node map[string]any, m *value.Map) error {
	raw, ok := node["items"].([]any)
	if !ok {
		return fmt.Errorf("%w: items is %T, want a list", ErrMalformed, node["items"])
	}
	for i, entry := range raw {
		pair, ok := entry.([]any)
		if !ok || len(pair) != 2 {
			return fmt.Errorf("%w: item %d is not a [key, value] pair", ErrMalformed, i)
		}
		key, err := d.Decode(pair[0])
		if err != nil {
			return fmt.Errorf("item %d key: %w", i, err)
		}
		item, err := d.Decode(pair[1])
		if err != nil {
			return fmt.Errorf("item %d value: %w", i, err)
		}
		if err := m.Set(key, item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// decodeDict returns a map[string]any when every key is a string and a
// *value.Map otherwise.
func (d *Decoder) decodeDict(node map[string]any) (any, error) {
	m := value.NewMap()
	if err := d.pairs(node, m); err != nil {
		return nil, err
	}
	plain := make(map[string]any, m.Len())
	for key, item := range m.All() {
		text, ok := key.(string)
		if !ok {
			return m, nil
		}
		plain[text] = item
	}
	return plain, nil
}

func (d *Decoder) decodeOrderedDict(node map[string]any) (any, error) {
	m := value.NewOrderedMap()
	if err := d.pairs(node, &m.Map); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Decoder) decodeDefaultDict(node map[string]any) (any, error) {
	var factory func() any
	if id, ok := node["factory"].(string); ok {
		factory = d.factory(id)
	}
	m := value.NewDefaultMap(factory)
	if err := d.pairs(node, &m.Map); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Decoder) factory(id string) func() any {
	entry, ok := d.registry().ByID(id)
	if !ok || entry.Kind != typereg.KindFunc {
		d.warn("default map factory is not registered, decoding without one", "factory", id)
		return nil
	}
	if fn, ok := entry.Func.(func() any); ok {
		return fn
	}
	fn := reflect.ValueOf(entry.Func)
	if fn.Type().NumIn() != 0 || fn.Type().NumOut() != 1 {
		d.warn("default map factory has the wrong signature, decoding without one", "factory", id)
		return nil
	}
	return func() any { return fn.Call(nil)[0].Interface() }
}

func (d *Decoder) decodeCounter(node map[string]any) (any, error) {
	counter := value.NewCounter()
	if err := d.pairs(node, &counter.Map); err != nil {
		return nil, err
	}
	for key, count := range counter.All() {
		if _, ok := count.(int); !ok {
			return nil, fmt.Errorf("%w: count for %v is %T", ErrMalformed, key, count)
		}
	}
	return counter, nil
}

func (d *Decoder) decodeDeque(node map[string]any) (any, error) {
	items, err := d.items(node)
	if err != nil {
		return nil, err
	}
	maxLen := -1
	if raw := node["maxlen"]; raw != nil {
		decoded, err := d.Decode(raw)
		if err != nil {
			return nil, err
		}
		n, ok := decoded.(int)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: maxlen %v", ErrMalformed, raw)
		}
		maxLen = n
	}
	return value.NewDeque(maxLen, items...), nil
}

func (d *Decoder) decodeFloat(node map[string]any) (any, error) {
	text, err := stringPayload(node, "items")
	if err != nil {
		return nil, err
	}
	switch text {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return nil, fmt.Errorf("%w: float %q", ErrMalformed, text)
}

var numberKinds = map[string]reflect.Kind{
	"int8": reflect.Int8, "int16": reflect.Int16, "int32": reflect.Int32, "int64": reflect.Int64,
	"uint": reflect.Uint, "uint8": reflect.Uint8, "uint16": reflect.Uint16,
	"uint32": reflect.Uint32, "uint64": reflect.Uint64,
	"float32": reflect.Float32,
}

var kindTypes = map[reflect.Kind]reflect.Type{
	reflect.Int8: reflect.TypeFor[int8](), reflect.Int16: reflect.TypeFor[int16](),
	reflect.Int32: reflect.TypeFor[int32](), reflect.Int64: reflect.TypeFor[int64](),
	reflect.Uint: reflect.TypeFor[uint](), reflect.Uint8: reflect.TypeFor[uint8](),
	reflect.Uint16: reflect.TypeFor[uint16](), reflect.Uint32: reflect.TypeFor[uint32](),
	reflect.Uint64: reflect.TypeFor[uint64](), reflect.Float32: reflect.TypeFor[float32](),
}

func (d *Decoder) decodeNumber(node map[string]any) (any, error) {
	name, _ := node["type"].(string)
	kind, ok := numberKinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: number type %q", ErrMalformed, name)
	}
	target := reflect.New(kindTypes[kind]).Elem()

	// Parse json.Number directly so that uint64 values above the int
	// range keep full precision.
	if number, ok := node["items"].(json.Number); ok && kind != reflect.Float32 {
		text := number.String()
		if kind >= reflect.Uint && kind <= reflect.Uint64 {
			n, err := strconv.ParseUint(text, 10, target.Type().Bits())
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformed, name, text, err)
			}
			target.SetUint(n)
		} else {
			n, err := strconv.ParseInt(text, 10, target.Type().Bits())
			if err != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrMalformed, name, text, err)
			}
			target.SetInt(n)
		}
		return target.Interface(), nil
	}

	decoded := node["items"]
	switch decoded.(type) {
	case int64, uint64:
	default:
		var err error
		if decoded, err = d.Decode(decoded); err != nil {
			return nil, err
		}
	}
	if err := objstate.Assign(target, decoded); err != nil {
		return nil, err
	}
	return target.Interface(), nil
}

func (d *Decoder) decodeSlice(node map[string]any) (any, error) {
	items, err := d.items(node)
	if err != nil {
		return nil, err
	}
	var target reflect.Value
	switch name, _ := node["type"].(string); name {
	case stringSliceType.String():
		target = reflect.New(stringSliceType).Elem()
	case boolSliceType.String():
		target = reflect.New(boolSliceType).Elem()
	default:
		return nil, fmt.Errorf("%w: slice type %q", ErrMalformed, name)
	}
	if err := objstate.Assign(target, items); err != nil {
		return nil, err
	}
	return target.Interface(), nil
}
