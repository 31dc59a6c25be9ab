// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"math"
	"testing"

	"github.com/bureau-foundation/datazip/lib/value"
)

func TestNewRejectsShapeMismatch(t *testing.T) {
	tests := []struct {
		name    string
		labels  []any
		columns []Column
	}{
		{"label count", []any{"a", "b"}, []Column{Float64Column(1)}},
		{"row count", []any{"a", "b"}, []Column{Float64Column(1), Int64Column(1, 2)}},
		{"ragged tuples", []any{value.Tuple{"a", 1}, value.Tuple{"b"}}, []Column{Int64Column(1), Int64Column(2)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.labels, test.columns...)
			if !errors.Is(err, ErrShape) {
				t.Errorf("New error = %v, want ErrShape", err)
			}
		})
	}
}

func TestColumnValidateWrongSlice(t *testing.T) {
	column := Column{Dtype: Float64, Ints: []int64{1}}
	if err := column.Validate(); err == nil {
		t.Errorf("Validate accepted a float64 column with int cells")
	}
}

func TestNullsCompareEqual(t *testing.T) {
	left := Float64Column(1, math.NaN())
	right := Column{Dtype: Float64, Floats: []float64{1, 0}, Valid: []bool{true, false}}
	if !left.Equal(right) {
		t.Errorf("NaN and masked cell should compare equal")
	}
	if left.Equal(Float64Column(1, 2)) {
		t.Errorf("null compared equal to a value")
	}
}

func TestFrameColumnLookup(t *testing.T) {
	f, err := New([]any{value.Tuple{"x", 1}, value.Tuple{"x", 2}}, StringColumn("a"), BoolColumn(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if f.Levels() != 2 {
		t.Errorf("Levels = %d, want 2", f.Levels())
	}
	column, ok := f.Column(value.Tuple{"x", 2})
	if !ok || column.Dtype != Bool {
		t.Errorf("Column((x, 2)) = %v, %v", column, ok)
	}
	if f.NumRows() != 1 {
		t.Errorf("NumRows = %d, want 1", f.NumRows())
	}
}

func TestSeriesEqual(t *testing.T) {
	a := &Series{Name: "s", Column: Int32Column(1, 2)}
	b := &Series{Name: "s", Column: Int32Column(1, 2)}
	if !a.Equal(b) {
		t.Errorf("identical series not equal")
	}
	b.Name = "t"
	if a.Equal(b) {
		t.Errorf("series with different names compared equal")
	}
}
