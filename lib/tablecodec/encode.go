// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tablecodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/bureau-foundation/datazip/lib/frame"
)

const (
	// SeriesColumn is the column name a series is written under.
	SeriesColumn = "__series__"

	// columnsKey names the key/value metadata entry holding the JSON
	// list of column names in frame order.
	columnsKey = "datazip.columns"

	// emptyColumn is a placeholder leaf for frames with no columns,
	// since a parquet schema needs at least one.
	emptyColumn = "__empty__"
)

var (
	// ErrEncode wraps parquet writer failures.
	ErrEncode = errors.New("table encoding failed")

	// ErrUnrecognizedLayout is returned when the side metadata matches
	// none of the known layouts.
	ErrUnrecognizedLayout = errors.New("unrecognized table layout")
)

// Meta is the side metadata stored next to a parquet blob.
type Meta struct {
	// Dtypes is the declared dtype of each column, in order.
	Dtypes []frame.Dtype

	// DtypeLabels pairs each entry of Dtypes with its column label.
	// DtypePairs records that dtypes were stored in this pair form;
	// older archives stored a mapping keyed by column name instead,
	// which decodes into DtypeMap.
	DtypeLabels []any
	DtypePairs  bool
	DtypeMap    map[string]frame.Dtype

	// Labels holds the original labels when columns were written
	// under positional names. LevelNames holds the header level names.
	Labels     []any
	LevelNames []any

	// Name is the series name.
	Name any
}

// Options adjusts decoding.
type Options struct {
	// IgnoreDtypes skips re-applying recorded dtypes, leaving the
	// physical parquet types.
	IgnoreDtypes bool
}

// EncodeFrame writes f as parquet.
func EncodeFrame(f *frame.Frame) ([]byte, Meta, error) {
	if err := f.Validate(); err != nil {
		return nil, Meta{}, err
	}
	meta := Meta{
		Dtypes:      f.Dtypes(),
		DtypeLabels: f.Labels,
		DtypePairs:  true,
		LevelNames:  f.LevelNames,
	}

	names, native := nativeNames(f.Labels)
	if !native {
		names = positionalNames(len(f.Columns))
		meta.Labels = f.Labels
	}

	blob, err := writeParquet(names, f.Columns, f.NumRows())
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: dtypes %v: %v", ErrEncode, meta.Dtypes, err)
	}
	return blob, meta, nil
}

// EncodeSeries writes s as a one-column parquet table.
func EncodeSeries(s *frame.Series) ([]byte, Meta, error) {
	if err := s.Column.Validate(); err != nil {
		return nil, Meta{}, err
	}
	meta := Meta{
		Dtypes:      []frame.Dtype{s.Column.Dtype},
		DtypeLabels: []any{SeriesColumn},
		DtypePairs:  true,
		Name:        s.Name,
	}
	blob, err := writeParquet([]string{SeriesColumn}, []frame.Column{s.Column}, s.Column.Len())
	if err != nil {
		return nil, Meta{}, fmt.Errorf("%w: dtypes %v: %v", ErrEncode, meta.Dtypes, err)
	}
	return blob, meta, nil
}

// nativeNames returns labels as parquet column names when they are
// distinct, non-empty strings that collide with no reserved name.
func nativeNames(labels []any) ([]string, bool) {
	names := make([]string, len(labels))
	seen := make(map[string]bool, len(labels))
	for i, label := range labels {
		name, ok := label.(string)
		if !ok || name == "" || seen[name] || name == SeriesColumn || name == emptyColumn {
			return nil, false
		}
		seen[name] = true
		names[i] = name
	}
	return names, true
}

func positionalNames(count int) []string {
	names := make([]string, count)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	return names
}

func leafFor(dtype frame.Dtype) (parquet.Node, error) {
	switch dtype {
	case frame.Float64:
		return parquet.Leaf(parquet.DoubleType), nil
	case frame.Float32:
		return parquet.Leaf(parquet.FloatType), nil
	case frame.Int64, frame.NullableInt64:
		return parquet.Leaf(parquet.Int64Type), nil
	case frame.Int32:
		return parquet.Leaf(parquet.Int32Type), nil
	case frame.Bool, frame.NullableBool:
		return parquet.Leaf(parquet.BooleanType), nil
	case frame.String, frame.Category, "object":
		return parquet.String(), nil
	case frame.Datetime:
		return parquet.Timestamp(parquet.Nanosecond), nil
	}
	return nil, fmt.Errorf("no parquet type for dtype %q", string(dtype))
}

func writeParquet(names []string, columns []frame.Column, rowCount int) ([]byte, error) {
	order, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}

	group := parquet.Group{}
	for i, name := range names {
		leaf, err := leafFor(columns[i].Dtype)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		group[name] = parquet.Optional(leaf)
	}
	if len(names) == 0 {
		group[emptyColumn] = parquet.Optional(parquet.Leaf(parquet.BooleanType))
	}
	schema := parquet.NewSchema("frame", group)

	indexes := make([]int, len(names))
	for i, name := range names {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("column %q missing from schema", name)
		}
		indexes[i] = leaf.ColumnIndex
	}

	var buffer bytes.Buffer
	writer := parquet.NewWriter(&buffer, schema, parquet.KeyValueMetadata(columnsKey, string(order)))

	rows := make([]parquet.Row, 0, rowCount)
	for r := range rowCount {
		row := make(parquet.Row, len(names))
		for i, column := range columns {
			row[indexes[i]] = cellValue(column, r, indexes[i])
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		if _, err := writer.WriteRows(rows); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func cellValue(column frame.Column, row, columnIndex int) parquet.Value {
	if column.IsNull(row) {
		return parquet.Value{}.Level(0, 0, columnIndex)
	}
	var cell parquet.Value
	switch column.Dtype {
	case frame.Float64:
		cell = parquet.DoubleValue(column.Floats[row])
	case frame.Float32:
		cell = parquet.FloatValue(float32(column.Floats[row]))
	case frame.Int64, frame.NullableInt64, frame.Datetime:
		cell = parquet.Int64Value(column.Ints[row])
	case frame.Int32:
		cell = parquet.Int32Value(int32(column.Ints[row]))
	case frame.Bool, frame.NullableBool:
		cell = parquet.BooleanValue(column.Bools[row])
	default:
		cell = parquet.ByteArrayValue([]byte(column.Strings[row]))
	}
	return cell.Level(0, 1, columnIndex)
}
