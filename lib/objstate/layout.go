// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objstate

import (
	"reflect"
	"strings"
	"sync"
	"time"
)

// Field is one stored field of a struct layout.
type Field struct {
	Name  string
	Index []int
	Type  reflect.Type
}

// Layout is the declared field set of a struct type.
type Layout struct {
	Fields []Field

	// Attrs is the index of the inline map[string]any bag, or nil.
	Attrs []int

	byName map[string]int
}

// Lookup returns the field stored under name.
func (l *Layout) Lookup(name string) (Field, bool) {
	position, ok := l.byName[name]
	if !ok {
		return Field{}, false
	}
	return l.Fields[position], true
}

var layoutCache sync.Map // reflect.Type -> *Layout

var (
	timeType  = reflect.TypeFor[time.Time]()
	attrsType = reflect.TypeFor[map[string]any]()
)

// LayoutOf returns the layout of struct type t. Layouts are cached.
func LayoutOf(t reflect.Type) *Layout {
	if cached, ok := layoutCache.Load(t); ok {
		return cached.(*Layout)
	}
	layout := buildLayout(t)
	actual, _ := layoutCache.LoadOrStore(t, layout)
	return actual.(*Layout)
}

func buildLayout(t reflect.Type) *Layout {
	layout := &Layout{byName: make(map[string]int)}
	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Type != timeType {
			// Promoted fields are listed on their own.
			continue
		}
		if len(field.Index) > 1 && !directPath(t, field.Index) {
			continue
		}

		name, options := parseTag(field.Tag.Get("datazip"))
		if name == "-" && options == "" {
			continue
		}
		if options == "attrs" {
			if field.Type == attrsType {
				layout.Attrs = field.Index
			}
			continue
		}
		if name == "" {
			name = field.Name
		}
		if _, duplicate := layout.byName[name]; duplicate {
			continue
		}
		layout.byName[name] = len(layout.Fields)
		layout.Fields = append(layout.Fields, Field{Name: name, Index: field.Index, Type: field.Type})
	}
	return layout
}

// directPath reports whether a promoted field is reached without
// passing through an embedded pointer, which could be nil.
func directPath(t reflect.Type, index []int) bool {
	current := t
	for _, step := range index[:len(index)-1] {
		current = current.Field(step).Type
		if current.Kind() != reflect.Struct {
			return false
		}
	}
	return true
}

func parseTag(tag string) (name, options string) {
	name, options, _ = strings.Cut(tag, ",")
	return name, options
}
