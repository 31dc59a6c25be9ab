// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Tuple is an immutable ordered sequence. It is encoded distinctly
// from a plain []any list.
type Tuple []any

// Path is a filesystem path. It is encoded distinctly from a string.
type Path string

// ErrUnhashable is returned when a value cannot be used as a set item
// or mapping key.
var ErrUnhashable = errors.New("unhashable value")

// Key returns the canonical string used to compare v as a set item or
// mapping key. Two values produce the same key exactly when they are
// equal and of the same type.
func Key(v any) (string, error) {
	var builder strings.Builder
	if err := writeKey(&builder, v); err != nil {
		return "", err
	}
	return builder.String(), nil
}

func writeKey(builder *strings.Builder, v any) error {
	switch typed := v.(type) {
	case nil:
		builder.WriteString("nil")
	case string:
		builder.WriteString("s:")
		builder.WriteString(strconv.Quote(typed))
	case bool:
		builder.WriteString("b:")
		builder.WriteString(strconv.FormatBool(typed))
	case int:
		builder.WriteString("i:")
		builder.WriteString(strconv.Itoa(typed))
	case float64:
		builder.WriteString("f:")
		builder.WriteString(strconv.FormatFloat(typed, 'g', -1, 64))
	case Path:
		builder.WriteString("p:")
		builder.WriteString(strconv.Quote(string(typed)))
	case time.Time:
		builder.WriteString("t:")
		builder.WriteString(typed.UTC().Format(time.RFC3339Nano))
	case Tuple:
		builder.WriteString("(")
		for i, item := range typed {
			if i > 0 {
				builder.WriteString(",")
			}
			if err := writeKey(builder, item); err != nil {
				return err
			}
		}
		builder.WriteString(")")
	case *FrozenSet:
		if typed == nil {
			builder.WriteString("nil")
			return nil
		}
		keys := slices.Clone(typed.set.order)
		slices.Sort(keys)
		builder.WriteString("frozenset{")
		builder.WriteString(strings.Join(keys, ","))
		builder.WriteString("}")
	case *Set, *Map, *OrderedMap, *DefaultMap, *Counter, *Deque, []any, map[string]any:
		return fmt.Errorf("%w: %T", ErrUnhashable, v)
	default:
		reflected := reflect.ValueOf(v)
		switch reflected.Kind() {
		case reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
			fmt.Fprintf(builder, "%T@%x", v, reflected.Pointer())
		case reflect.Slice, reflect.Map, reflect.Func:
			return fmt.Errorf("%w: %T", ErrUnhashable, v)
		default:
			if !reflected.Comparable() {
				return fmt.Errorf("%w: %T", ErrUnhashable, v)
			}
			fmt.Fprintf(builder, "%T:%#v", v, v)
		}
	}
	return nil
}

// mustKey is Key for constructors that take variadic items, where an
// unhashable item is a programming error in the same way that an
// unhashable Go map key is.
func mustKey(v any) string {
	key, err := Key(v)
	if err != nil {
		panic("value: " + err.Error())
	}
	return key
}
