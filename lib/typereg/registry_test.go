// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typereg

import (
	"reflect"
	"strings"
	"testing"
)

type account struct {
	Owner   string
	Balance float64
}

type point struct {
	X, Y int
}

func newList() any { return []any{} }

func TestRegisterObjectDefaultID(t *testing.T) {
	registry := New()
	entry := RegisterObject[account](registry, "")
	if !strings.HasSuffix(entry.ID, "/lib/typereg.account") {
		t.Errorf("ID = %q, want package path suffix", entry.ID)
	}

	byType, ok := registry.ByType(reflect.TypeFor[*account]())
	if !ok || byType != entry {
		t.Fatalf("ByType(*account) = %v, %v", byType, ok)
	}
	byID, ok := registry.ByID(entry.ID)
	if !ok || byID != entry {
		t.Fatalf("ByID(%q) = %v, %v", entry.ID, byID, ok)
	}

	instance := entry.NewInstance()
	if instance.Type() != reflect.TypeFor[*account]() {
		t.Errorf("NewInstance type = %v", instance.Type())
	}
}

func TestRegisterIdempotent(t *testing.T) {
	registry := New()
	first := RegisterNamedTuple[point](registry, "geo.Point")
	second := RegisterNamedTuple[point](registry, "geo.Point")
	if first != second {
		t.Errorf("re-registration returned a different entry")
	}
}

func TestRegisterConflictPanics(t *testing.T) {
	registry := New()
	RegisterObject[account](registry, "shared")
	defer func() {
		if recover() == nil {
			t.Errorf("conflicting registration did not panic")
		}
	}()
	RegisterObject[point](registry, "shared")
}

func TestRegisterNonStructPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("registering a non-struct object did not panic")
		}
	}()
	RegisterObject[int](New(), "")
}

func TestFuncLookup(t *testing.T) {
	registry := New()
	registry.RegisterFunc("", newList)
	id, ok := registry.FuncID(newList)
	if !ok {
		t.Fatal("FuncID did not find registered function")
	}
	if !strings.HasSuffix(id, ".newList") {
		t.Errorf("FuncID = %q, want runtime name", id)
	}
	if _, ok := registry.FuncID(func() any { return nil }); ok {
		t.Errorf("FuncID found an unregistered closure")
	}
}

func TestRecipeRoundTrip(t *testing.T) {
	registry := New()
	entry := RegisterRecipe(registry, "celsius",
		func(value float64) (any, error) { return value * 10, nil },
		func(description any) (float64, error) { return description.(float64) / 10, nil },
	)
	description, err := entry.Recipe.Encode(2.5)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := entry.Recipe.Decode(description)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != 2.5 {
		t.Errorf("round trip = %v, want 2.5", decoded)
	}
	if _, err := entry.Recipe.Encode("wrong"); err == nil {
		t.Errorf("Encode accepted a value of the wrong type")
	}
}

func TestIgnorable(t *testing.T) {
	registry := New()
	if !registry.Ignorable(reflect.TypeFor[func()]()) {
		t.Errorf("functions should always be ignorable")
	}
	if registry.Ignorable(reflect.TypeFor[account]()) {
		t.Errorf("account ignorable before registration")
	}
	RegisterIgnorable[account](registry)
	if !registry.Ignorable(reflect.TypeFor[account]()) {
		t.Errorf("account not ignorable after registration")
	}
}
