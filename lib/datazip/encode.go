// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/datazip/lib/arraycodec"
	"github.com/bureau-foundation/datazip/lib/clock"
	"github.com/bureau-foundation/datazip/lib/codec"
	"github.com/bureau-foundation/datazip/lib/compress"
	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/jsontree"
	"github.com/bureau-foundation/datazip/lib/objstate"
	"github.com/bureau-foundation/datazip/lib/tablecodec"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/value"
	"github.com/bureau-foundation/datazip/lib/version"
)

// storeKind is where a value is stored.
type storeKind int

const (
	storeInline storeKind = iota
	storeIgnored
	storeFrame
	storeSeries
	storeArray
	storeBytes
	storeRecipe
	storeBinary
	storeObject
)

// identity keys the identity table. Slices are keyed by their first
// element's address and their length, so two slices sharing a backing
// array but of different lengths are distinct values.
type identity struct {
	pointer uintptr
	length  int
	typ     reflect.Type
}

// identified is an identity table entry. value keeps the source
// object reachable so its address cannot be reused within the session.
type identified struct {
	node  map[string]any
	value any
}

func identityOf(v any) (identity, bool) {
	reflected := reflect.ValueOf(v)
	switch reflected.Kind() {
	case reflect.Pointer:
		return identity{pointer: reflected.Pointer(), typ: reflected.Type()}, true
	case reflect.Slice:
		if reflected.Len() == 0 {
			return identity{}, false
		}
		return identity{pointer: reflected.Pointer(), length: reflected.Len(), typ: reflected.Type()}, true
	}
	return identity{}, false
}

// Set stores v under name. Names are write-once; the reserved names
// __metadata__, __attributes__ and __state__ are rejected. Values of
// ignorable types (functions, and types registered with
// typereg.RegisterIgnorable) are omitted with a warning.
//
// Blob entries are written as soon as they are encoded, so a Set that
// fails part way may leave unreferenced entries in the package.
func (a *Archive) Set(name string, v any) error {
	if err := a.checkOpen(ModeWrite); err != nil {
		return err
	}
	if reservedName(name) {
		return fmt.Errorf("%q: %w", name, ErrReservedKey)
	}
	if _, exists := a.manifest.Get(name); exists {
		return fmt.Errorf("%q: %w", name, ErrDuplicateKey)
	}
	a.pending = &pendingSet{}
	node, omitted, err := a.encodeAt(v, name)
	pending := a.pending
	a.pending = nil
	if err != nil {
		a.rollback(pending)
		return fmt.Errorf("storing %q: %w", name, err)
	}
	for _, entry := range pending.entries {
		if err := a.writeEntry(entry.name, entry.data); err != nil {
			return fmt.Errorf("storing %q: %w", name, err)
		}
	}
	if !omitted {
		a.manifest.Set(name, node)
	}
	return nil
}

// SetKey is Set for keys of dynamic type. Keys other than strings are
// ErrKeyType.
func (a *Archive) SetKey(key, v any) error {
	name, ok := key.(string)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrKeyType, key)
	}
	return a.Set(name, v)
}

// classify picks the storage of v. Kinds the tree codec owns are
// inline; the rest are checked against the registry, the array codec
// and finally the struct shapes that become opaque objects.
func (a *Archive) classify(v any) (storeKind, *typereg.Entry) {
	switch typed := v.(type) {
	case nil, time.Time, []bool, []string, value.Tuple, value.Path,
		*value.Set, *value.FrozenSet, *value.Map, *value.OrderedMap,
		*value.DefaultMap, *value.Counter, *value.Deque:
		return storeInline, nil
	case *frame.Frame:
		if typed == nil {
			return storeInline, nil
		}
		return storeFrame, nil
	case *frame.Series:
		if typed == nil {
			return storeInline, nil
		}
		return storeSeries, nil
	case []byte:
		if typed == nil {
			return storeInline, nil
		}
		return storeBytes, nil
	}

	reflected := reflect.ValueOf(v)
	switch reflected.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Interface, reflect.Chan:
		if reflected.IsNil() {
			return storeInline, nil
		}
	}
	t := reflected.Type()
	if a.registry.Ignorable(t) {
		return storeIgnored, nil
	}
	if entry, ok := a.registry.ByType(t); ok {
		switch entry.Kind {
		case typereg.KindRecipe:
			return storeRecipe, entry
		case typereg.KindImage:
			return storeBinary, entry
		case typereg.KindObject:
			return storeObject, entry
		case typereg.KindNamedTuple:
			if t.Kind() == reflect.Struct {
				return storeInline, nil
			}
		}
	}
	if arraycodec.Supports(v) {
		return storeArray, nil
	}
	switch {
	case t.Kind() == reflect.Struct:
		return storeObject, nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return storeObject, nil
	}
	return storeInline, nil
}

// encodeAt encodes v as the value at location: a top-level key or an
// object field. omitted reports an ignorable value.
func (a *Archive) encodeAt(v any, location string) (node any, omitted bool, err error) {
	kind, entry := a.classify(v)
	switch kind {
	case storeIgnored:
		a.warn("omitting value of ignorable type", "key", location, "type", fmt.Sprintf("%T", v))
		return nil, true, nil
	case storeInline:
		saved := a.scope
		a.scope = location
		defer func() { a.scope = saved }()
		node, err := a.encoder.Encode(v)
		return node, false, err
	}
	node, err = a.store(v, kind, entry, location)
	return node, false, err
}

// fallback is the tree encoder's hook for values nested in inline
// containers. They are stored at numbered locations under the current
// scope.
func (a *Archive) fallback(v any) (any, bool, error) {
	kind, entry := a.classify(v)
	switch kind {
	case storeInline:
		return nil, false, nil
	case storeIgnored:
		a.warn("omitting value of ignorable type", "key", a.scope, "type", fmt.Sprintf("%T", v))
		return nil, true, jsontree.ErrOmit
	}
	node, err := a.store(v, kind, entry, a.nextLocation())
	return node, true, err
}

func (a *Archive) nextLocation() string {
	n := a.counters[a.scope]
	a.counters[a.scope] = n + 1
	return a.scope + "." + strconv.Itoa(n)
}

// store writes v, or finds it in the identity table, and returns its
// descriptor.
func (a *Archive) store(v any, kind storeKind, entry *typereg.Entry, location string) (any, error) {
	key, tracked := identityOf(v)
	if tracked {
		if known, ok := a.identities[key]; ok {
			return known.node, nil
		}
	}
	if kind == storeObject {
		return a.storeObject(v, entry, location, key, tracked)
	}

	var node map[string]any
	var err error
	switch kind {
	case storeFrame:
		node, err = a.storeFrame(v.(*frame.Frame), location)
	case storeSeries:
		node, err = a.storeSeries(v.(*frame.Series), location)
	case storeArray:
		node, err = a.storeArray(v, location)
	case storeBytes:
		node, err = a.storeImage(codec.ImageBytes, "", v.([]byte), location)
	case storeRecipe:
		var description any
		if description, err = entry.Recipe.Encode(v); err == nil {
			node, err = a.storeImage(codec.ImageRecipe, entry.ID, description, location)
		}
	case storeBinary:
		var data []byte
		if data, err = v.(encoding.BinaryMarshaler).MarshalBinary(); err == nil {
			node, err = a.storeImage(codec.ImageBinary, entry.ID, data, location)
		}
	default:
		return nil, fmt.Errorf("%w: %T", jsontree.ErrUnsupportedKind, v)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	if tracked {
		a.remember(key, identified{node: node, value: v})
	}
	return node, nil
}

// pendingSet holds what a Set has produced so far. Blobs reach the
// package only once the whole value has encoded, so a failed Set
// leaves nothing behind.
type pendingSet struct {
	entries    []pendingEntry
	identities []identity
	states     []string
}

type pendingEntry struct {
	name string
	data []byte
}

func (a *Archive) stageEntry(name string, data []byte) error {
	if a.pending == nil {
		return a.writeEntry(name, data)
	}
	a.pending.entries = append(a.pending.entries, pendingEntry{name: name, data: data})
	return nil
}

func (a *Archive) remember(key identity, known identified) {
	a.identities[key] = known
	if a.pending != nil {
		a.pending.identities = append(a.pending.identities, key)
	}
}

// rollback forgets the blob names, identities and object states of a
// failed Set.
func (a *Archive) rollback(pending *pendingSet) {
	for _, entry := range pending.entries {
		delete(a.entryNames, entry.name)
	}
	for _, key := range pending.identities {
		delete(a.identities, key)
	}
	for _, location := range pending.states {
		a.state.Delete(location)
	}
}

// blobName returns a unique entry stem for location, prefixing "0_",
// "1_", ... on collision.
func (a *Archive) blobName(location, extension string) string {
	location = strings.NewReplacer("/", "_", "\\", "_").Replace(location)
	stem := location
	for n := 0; a.entryNames[stem+extension]; n++ {
		stem = strconv.Itoa(n) + "_" + location
	}
	a.entryNames[stem+extension] = true
	return stem
}

func (a *Archive) storeFrame(f *frame.Frame, location string) (map[string]any, error) {
	blob, meta, err := tablecodec.EncodeFrame(f)
	if err != nil {
		return nil, err
	}
	return a.writeTable(kindFrame, blob, meta, location)
}

func (a *Archive) storeSeries(s *frame.Series, location string) (map[string]any, error) {
	blob, meta, err := tablecodec.EncodeSeries(s)
	if err != nil {
		return nil, err
	}
	return a.writeTable(kindSeries, blob, meta, location)
}

func (a *Archive) writeTable(kind string, blob []byte, meta tablecodec.Meta, location string) (map[string]any, error) {
	stem := a.blobName(location, ".parquet")
	if err := a.stageEntry(stem+".parquet", blob); err != nil {
		return nil, err
	}
	node := descriptor(kind, stem)
	if err := a.putTableMeta(node, meta, kind == kindSeries); err != nil {
		return nil, err
	}
	return node, nil
}

func (a *Archive) storeArray(v any, location string) (map[string]any, error) {
	blob, meta, err := arraycodec.Encode(v)
	if err != nil {
		return nil, err
	}
	stem := a.blobName(location, ".npy")
	if err := a.stageEntry(stem+".npy", blob); err != nil {
		return nil, err
	}
	node := descriptor(kindArray, stem)
	putArrayMeta(node, meta)
	return node, nil
}

func (a *Archive) storeImage(kind, typeID string, payload any, location string) (map[string]any, error) {
	image, err := codec.NewImage(kind, typeID, payload)
	if err != nil {
		return nil, err
	}
	envelope, err := codec.Marshal(image)
	if err != nil {
		return nil, fmt.Errorf("encoding image envelope: %w", err)
	}
	framed, err := compress.Frame(envelope, a.settings.compression)
	if err != nil {
		return nil, err
	}
	stem := a.blobName(location, ".pkl")
	if err := a.stageEntry(stem+".pkl", framed); err != nil {
		return nil, err
	}
	node := descriptor(kindImage, stem)
	if typeID == "" {
		typeID = kind
	}
	node["type"] = typeID
	return node, nil
}

// storeObject exports the state of v into the __state__ section. The
// identity is recorded before the state is encoded, so cycles through
// v become back-references.
func (a *Archive) storeObject(v any, entry *typereg.Entry, location string, key identity, tracked bool) (any, error) {
	t := reflect.TypeOf(v)
	byValue := t.Kind() == reflect.Struct
	if !byValue {
		t = t.Elem()
	}
	id := typereg.TypeID(t)
	if entry != nil {
		id = entry.ID
	}

	stateLocation := a.stateLocation(location, key, tracked)
	node := descriptor(kindObject, stateLocation)
	node["objinfo"] = id
	node["lib_version"] = version.Library(t.PkgPath())
	node["engine_version"] = version.Engine()
	node["user"] = a.user()
	node["created"] = clock.UTC(a.settings.clock).Format(time.RFC3339Nano)
	if byValue {
		node["byvalue"] = true
	}

	if tracked {
		a.remember(key, identified{node: node, value: v})
	}
	a.state.Set(stateLocation, nil)
	if a.pending != nil {
		a.pending.states = append(a.pending.states, stateLocation)
	}

	stateNode, err := a.exportState(v, stateLocation)
	if err != nil {
		if tracked {
			delete(a.identities, key)
		}
		a.state.Delete(stateLocation)
		return nil, fmt.Errorf("object %s at %s: %w", id, stateLocation, err)
	}
	a.state.Set(stateLocation, stateNode)
	return node, nil
}

func (a *Archive) exportState(v any, location string) (any, error) {
	state, err := objstate.Export(v)
	if err != nil {
		return nil, err
	}
	fields, ok := state.(map[string]any)
	if !ok {
		node, _, err := a.encodeAt(state, location)
		return node, err
	}

	keys := make([]string, 0, len(fields))
	reserved := false
	for key := range fields {
		keys = append(keys, key)
		reserved = reserved || strings.HasPrefix(key, "__")
	}
	sort.Strings(keys)

	nodes := make(map[string]any, len(keys))
	pairs := make([]any, 0, len(keys))
	for _, key := range keys {
		node, omitted, err := a.encodeAt(fields[key], location+"."+key)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		if omitted {
			continue
		}
		nodes[key] = node
		pairs = append(pairs, []any{key, node})
	}
	if reserved {
		return map[string]any{jsontree.TagDict: true, "items": pairs}, nil
	}
	return nodes, nil
}

// stateLocation returns location, or location prefixed with the
// object's identity in hex if another object's state already holds it.
func (a *Archive) stateLocation(location string, key identity, tracked bool) string {
	if _, taken := a.state.Get(location); !taken {
		return location
	}
	prefix := strconv.FormatUint(uint64(key.pointer), 16)
	if !tracked {
		prefix = strconv.FormatInt(int64(a.state.Len()), 16)
	}
	candidate := prefix + "_" + location
	for n := 0; ; n++ {
		if _, taken := a.state.Get(candidate); !taken {
			return candidate
		}
		candidate = prefix + "_" + strconv.Itoa(n) + "_" + location
	}
}

func (a *Archive) user() string {
	if a.userName == "" {
		a.userName = username()
	}
	return a.userName
}
