// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tablecodec

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/bureau-foundation/datazip/lib/frame"
)

// columnBuilder accumulates the cells of one parquet leaf.
type columnBuilder struct {
	column frame.Column
	valid  []bool
	nulls  bool

	// scale converts stored timestamp units to nanoseconds.
	scale int64
}

func newColumnBuilder(node parquet.Node) (*columnBuilder, error) {
	kind := node.Type().Kind()
	builder := &columnBuilder{scale: 1}

	if logical := node.Type().LogicalType(); logical != nil && logical.Timestamp != nil && kind == parquet.Int64 {
		builder.column.Dtype = frame.Datetime
		switch unit := logical.Timestamp.Unit; {
		case unit.Millis != nil:
			builder.scale = 1_000_000
		case unit.Micros != nil:
			builder.scale = 1_000
		}
		return builder, nil
	}

	switch kind {
	case parquet.Boolean:
		builder.column.Dtype = frame.Bool
	case parquet.Int32:
		builder.column.Dtype = frame.Int32
	case parquet.Int64:
		builder.column.Dtype = frame.Int64
	case parquet.Float:
		builder.column.Dtype = frame.Float32
	case parquet.Double:
		builder.column.Dtype = frame.Float64
	case parquet.ByteArray:
		builder.column.Dtype = frame.String
	default:
		return nil, fmt.Errorf("unsupported parquet physical type %v", kind)
	}
	return builder, nil
}

func (b *columnBuilder) append(cell parquet.Value) {
	null := cell.IsNull()
	b.valid = append(b.valid, !null)
	if null {
		b.nulls = true
	}

	switch b.column.Dtype {
	case frame.Bool:
		b.column.Bools = append(b.column.Bools, !null && cell.Boolean())
	case frame.Int32:
		var n int64
		if !null {
			n = int64(cell.Int32())
		}
		b.column.Ints = append(b.column.Ints, n)
	case frame.Int64, frame.Datetime:
		var n int64
		if !null {
			n = cell.Int64() * b.scale
		}
		b.column.Ints = append(b.column.Ints, n)
	case frame.Float32:
		var f float64
		if !null {
			f = float64(cell.Float())
		}
		b.column.Floats = append(b.column.Floats, f)
	case frame.Float64:
		var f float64
		if !null {
			f = cell.Double()
		}
		b.column.Floats = append(b.column.Floats, f)
	case frame.String:
		var s string
		if !null {
			s = string(cell.ByteArray())
		}
		b.column.Strings = append(b.column.Strings, s)
	}
}

// build returns the accumulated column. Empty columns get non-nil
// empty slices so that Validate sees the right storage.
func (b *columnBuilder) build() frame.Column {
	column := b.column
	if b.nulls {
		column.Valid = b.valid
	}
	storage, _ := column.Dtype.Storage()
	switch storage {
	case frame.FloatStorage:
		if column.Floats == nil {
			column.Floats = []float64{}
		}
	case frame.IntStorage:
		if column.Ints == nil {
			column.Ints = []int64{}
		}
	case frame.StringStorage:
		if column.Strings == nil {
			column.Strings = []string{}
		}
	case frame.BoolStorage:
		if column.Bools == nil {
			column.Bools = []bool{}
		}
	}
	return column
}
