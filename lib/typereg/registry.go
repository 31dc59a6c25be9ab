// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typereg

import (
	"encoding"
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

// Kind classifies a registry entry.
type Kind int

const (
	KindObject Kind = iota
	KindNamedTuple
	KindFunc
	KindRecipe
	KindImage
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindNamedTuple:
		return "namedtuple"
	case KindFunc:
		return "func"
	case KindRecipe:
		return "recipe"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entry describes one registered identifier.
type Entry struct {
	ID   string
	Kind Kind

	// Type is the registered type. For objects and named tuples it is
	// the struct type itself, never the pointer.
	Type reflect.Type

	// Factory builds a bare instance for objects. When nil the
	// instance is reflect.New(Type).
	Factory func() any

	// Func is the registered function for KindFunc entries.
	Func any

	// Recipe holds the encode and decode pair for KindRecipe entries.
	Recipe *Recipe
}

// Recipe converts a value to and from a description that the structured
// codec can store.
type Recipe struct {
	Encode func(value any) (any, error)
	Decode func(description any) (any, error)
}

// Registry holds the identifier mappings.
type Registry struct {
	mu        sync.RWMutex
	byID      map[string]*Entry
	byType    map[reflect.Type]*Entry
	funcs     map[uintptr]*Entry
	ignorable map[reflect.Type]bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byID:      make(map[string]*Entry),
		byType:    make(map[reflect.Type]*Entry),
		funcs:     make(map[uintptr]*Entry),
		ignorable: make(map[reflect.Type]bool),
	}
}

var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// TypeID returns the default identifier for t: the package path and
// type name joined by a dot. Pointer types resolve to their element.
func TypeID(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// FuncName returns the runtime name of fn, for example
// "github.com/acme/pkg.newBucket".
func FuncName(fn any) string {
	pointer := reflect.ValueOf(fn).Pointer()
	if function := runtime.FuncForPC(pointer); function != nil {
		return function.Name()
	}
	return fmt.Sprintf("func@%x", pointer)
}

// add stores entry, panicking if its id or type is already bound to
// something else. Registration happens at init time, where a conflict
// is a programming error; encoding/gob.Register behaves the same way.
func (r *Registry) add(entry *Entry) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[entry.ID]; ok {
		if existing.Type == entry.Type && existing.Kind == entry.Kind {
			return existing
		}
		panic(fmt.Sprintf("typereg: id %q already registered for %v", entry.ID, existing.Type))
	}
	if entry.Type != nil {
		if existing, ok := r.byType[entry.Type]; ok {
			panic(fmt.Sprintf("typereg: type %v already registered as %q", entry.Type, existing.ID))
		}
		r.byType[entry.Type] = entry
	}
	r.byID[entry.ID] = entry
	return entry
}

func structType[T any](what string) reflect.Type {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("typereg: %s type %v is not a struct", what, t))
	}
	return t
}

func idOrDefault(id string, t reflect.Type) string {
	if id == "" {
		return TypeID(t)
	}
	return id
}

// RegisterObject binds T, a struct type stored by state, to id.
func RegisterObject[T any](r *Registry, id string) *Entry {
	t := structType[T]("object")
	return r.add(&Entry{ID: idOrDefault(id, t), Kind: KindObject, Type: t})
}

// RegisterFactory binds T to id like RegisterObject, with factory
// supplying bare instances. The factory must not run side-effecting
// setup: restored state is applied to whatever it returns.
func RegisterFactory[T any](r *Registry, id string, factory func() *T) *Entry {
	t := structType[T]("object")
	return r.add(&Entry{
		ID:      idOrDefault(id, t),
		Kind:    KindObject,
		Type:    t,
		Factory: func() any { return factory() },
	})
}

// RegisterNamedTuple binds the struct type T, stored inline as a
// named tuple of its exported fields, to id.
func RegisterNamedTuple[T any](r *Registry, id string) *Entry {
	t := structType[T]("named tuple")
	return r.add(&Entry{ID: idOrDefault(id, t), Kind: KindNamedTuple, Type: t})
}

// RegisterRecipe binds T to id with an encode/decode pair.
func RegisterRecipe[T any](r *Registry, id string, encode func(T) (any, error), decode func(any) (T, error)) *Entry {
	t := reflect.TypeFor[T]()
	id = idOrDefault(id, t)
	return r.add(&Entry{
		ID:   id,
		Kind: KindRecipe,
		Type: t,
		Recipe: &Recipe{
			Encode: func(value any) (any, error) {
				typed, ok := value.(T)
				if !ok {
					return nil, fmt.Errorf("typereg: recipe %q got %T", id, value)
				}
				return encode(typed)
			},
			Decode: func(description any) (any, error) {
				return decode(description)
			},
		},
	})
}

// RegisterImage binds T to id for storage as a binary image. T
// (usually a pointer type) must implement encoding.BinaryMarshaler and
// its pointer must implement encoding.BinaryUnmarshaler.
func RegisterImage[T encoding.BinaryMarshaler](r *Registry, id string) *Entry {
	t := reflect.TypeFor[T]()
	target := t
	if target.Kind() != reflect.Pointer {
		target = reflect.PointerTo(target)
	}
	if !target.Implements(reflect.TypeFor[encoding.BinaryUnmarshaler]()) {
		panic(fmt.Sprintf("typereg: image type %v lacks UnmarshalBinary", t))
	}
	return r.add(&Entry{ID: idOrDefault(id, t), Kind: KindImage, Type: t})
}

// RegisterFunc binds fn to id so that it can be stored by reference.
func (r *Registry) RegisterFunc(id string, fn any) *Entry {
	reflected := reflect.ValueOf(fn)
	if reflected.Kind() != reflect.Func {
		panic(fmt.Sprintf("typereg: RegisterFunc given %T", fn))
	}
	if id == "" {
		id = FuncName(fn)
	}
	entry := r.add(&Entry{ID: id, Kind: KindFunc, Func: fn})
	r.mu.Lock()
	r.funcs[reflected.Pointer()] = entry
	r.mu.Unlock()
	return entry
}

// RegisterIgnorable marks T as a type whose values are omitted, with a
// warning, rather than stored.
func RegisterIgnorable[T any](r *Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignorable[reflect.TypeFor[T]()] = true
}

// ByID returns the entry registered under id.
func (r *Registry) ByID(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byID[id]
	return entry, ok
}

// ByType returns the entry registered for t. Pointer types resolve to
// their element for object and named-tuple entries.
func (r *Registry) ByType(t reflect.Type) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.byType[t]; ok {
		return entry, true
	}
	if t.Kind() == reflect.Pointer {
		if entry, ok := r.byType[t.Elem()]; ok && entry.Kind == KindObject {
			return entry, true
		}
	}
	return nil, false
}

// FuncID returns the id fn was registered under.
func (r *Registry) FuncID(fn any) (string, bool) {
	reflected := reflect.ValueOf(fn)
	if reflected.Kind() != reflect.Func || reflected.IsNil() {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.funcs[reflected.Pointer()]
	if !ok {
		return "", false
	}
	return entry.ID, true
}

// Ignorable reports whether values of t are to be omitted. Function
// values are always ignorable.
func (r *Registry) Ignorable(t reflect.Type) bool {
	if t.Kind() == reflect.Func {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ignorable[t]
}

// NewInstance returns a pointer to a bare instance of the object
// registered as entry.
func (e *Entry) NewInstance() reflect.Value {
	if e.Factory != nil {
		return reflect.ValueOf(e.Factory())
	}
	return reflect.New(e.Type)
}
