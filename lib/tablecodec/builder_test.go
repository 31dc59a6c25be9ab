// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tablecodec

import (
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/bureau-foundation/datazip/lib/frame"
)

func TestBuilderEmptyColumnHasStorage(t *testing.T) {
	builder, err := newColumnBuilder(parquet.Optional(parquet.Leaf(parquet.DoubleType)))
	if err != nil {
		t.Fatalf("newColumnBuilder: %v", err)
	}
	column := builder.build()
	if column.Dtype != frame.Float64 {
		t.Errorf("dtype = %q, want %q", column.Dtype, frame.Float64)
	}
	if column.Floats == nil {
		t.Error("empty float column has nil storage")
	}
	if err := column.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuilderKeepsNulls(t *testing.T) {
	builder, err := newColumnBuilder(parquet.Optional(parquet.Leaf(parquet.Int64Type)))
	if err != nil {
		t.Fatalf("newColumnBuilder: %v", err)
	}
	builder.append(parquet.Int64Value(7))
	builder.append(parquet.Value{})
	column := builder.build()
	if column.Len() != 2 {
		t.Fatalf("Len = %d, want 2", column.Len())
	}
	if column.IsNull(0) || !column.IsNull(1) {
		t.Errorf("null mask = %v, want [true false]", column.Valid)
	}
	if column.Ints[0] != 7 {
		t.Errorf("Ints[0] = %d, want 7", column.Ints[0])
	}
}
