// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/jsontree"
	"github.com/bureau-foundation/datazip/lib/objstate"
	"github.com/bureau-foundation/datazip/lib/sqlitepool"
	"github.com/bureau-foundation/datazip/lib/typereg"
)

// render converts a decoded value into JSON for display. Built-in
// kinds keep their tagged tree form; tables, matrices and objects,
// which have no tree form, are summarized. Objects seen twice are
// written as references so cycles terminate.
func render(v any) ([]byte, error) {
	r := &renderer{seen: make(map[uintptr]bool)}
	r.encoder = &jsontree.Encoder{Fallback: r.describe}
	tree, err := r.encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return jsontree.Marshal(tree)
}

type renderer struct {
	encoder *jsontree.Encoder
	seen    map[uintptr]bool
}

func (r *renderer) describe(v any) (any, bool, error) {
	switch typed := v.(type) {
	case *frame.Frame:
		labels, err := r.encoder.Encode(typed.Labels)
		if err != nil {
			return nil, false, err
		}
		dtypes := make([]any, len(typed.Columns))
		for i, dtype := range typed.Dtypes() {
			dtypes[i] = string(dtype)
		}
		return map[string]any{"frame": map[string]any{
			"rows":    typed.NumRows(),
			"columns": labels,
			"dtypes":  dtypes,
		}}, true, nil
	case *frame.Series:
		name, err := r.encoder.Encode(typed.Name)
		if err != nil {
			return nil, false, err
		}
		return map[string]any{"series": map[string]any{
			"name":  name,
			"rows":  typed.Column.Len(),
			"dtype": string(typed.Column.Dtype),
		}}, true, nil
	case *mat.Dense:
		rows, columns := typed.Dims()
		matrix := make([]any, rows)
		for i := range rows {
			row := make([]any, columns)
			for j := range columns {
				row[j] = typed.At(i, j)
			}
			matrix[i] = row
		}
		node, err := r.encoder.Encode(matrix)
		return map[string]any{"matrix": node}, true, err
	case *sqlitepool.Handle:
		return map[string]any{"sqlite": typed.Path()}, true, nil
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(typed)), true, nil
	}

	reflected := reflect.ValueOf(v)
	switch reflected.Kind() {
	case reflect.Func:
		return map[string]any{"func": typereg.FuncName(v)}, true, nil
	case reflect.Pointer:
		if reflected.IsNil() || reflected.Elem().Kind() != reflect.Struct {
			return nil, false, nil
		}
		if r.seen[reflected.Pointer()] {
			return map[string]any{"ref": typereg.TypeID(reflected.Type().Elem())}, true, nil
		}
		r.seen[reflected.Pointer()] = true
	case reflect.Struct:
	default:
		return nil, false, nil
	}

	state, err := objstate.Export(v)
	if err != nil {
		return nil, false, err
	}
	node, err := r.encoder.Encode(state)
	if err != nil {
		return nil, false, err
	}
	return map[string]any{"object": typereg.TypeID(reflect.Indirect(reflected).Type()), "state": node}, true, nil
}
