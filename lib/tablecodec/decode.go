// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tablecodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/parquet-go/parquet-go"

	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/value"
)

// pandasIndexColumn is the leaf other writers add for a stored row
// index. Frames here have an implicit index, so it is skipped.
const pandasIndexColumn = "__index_level_0__"

// rawTable is a parquet blob read back with physical types.
type rawTable struct {
	names   []string
	columns []frame.Column
}

// DecodeFrame reads a frame written by EncodeFrame, or by an older
// engine revision described by meta.
func DecodeFrame(blob []byte, meta Meta, options Options) (*frame.Frame, error) {
	raw, err := readParquet(blob)
	if err != nil {
		return nil, err
	}
	key := shapeOf(meta)
	rebuild, ok := layouts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %+v", ErrUnrecognizedLayout, key)
	}
	f, err := rebuild(raw, meta, options)
	if err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedLayout, err)
	}
	return f, nil
}

// DecodeSeries reads a series written by EncodeSeries. A one-column
// table written under another column name decodes with that name
// unless meta.Name is set.
func DecodeSeries(blob []byte, meta Meta, options Options) (*frame.Series, error) {
	f, err := DecodeFrame(blob, meta, options)
	if err != nil {
		return nil, err
	}
	if len(f.Columns) != 1 {
		return nil, fmt.Errorf("%w: series blob has %d columns", ErrUnrecognizedLayout, len(f.Columns))
	}
	name := meta.Name
	if name == nil && f.Labels[0] != SeriesColumn {
		name = f.Labels[0]
	}
	return &frame.Series{Name: name, Column: f.Columns[0]}, nil
}

// shape identifies which optional side metadata is present.
type shape struct {
	hasLabels  bool
	hasDtypes  bool
	multiLevel bool
	dtypePairs bool
}

func shapeOf(meta Meta) shape {
	labels := meta.Labels
	if labels == nil {
		labels = meta.DtypeLabels
	}
	multiLevel := len(meta.LevelNames) > 1
	for _, label := range labels {
		if _, ok := label.(value.Tuple); ok {
			multiLevel = true
			break
		}
	}
	return shape{
		hasLabels:  meta.Labels != nil,
		hasDtypes:  meta.Dtypes != nil || meta.DtypeMap != nil,
		multiLevel: multiLevel,
		dtypePairs: meta.DtypePairs,
	}
}

type rebuildFunc func(raw *rawTable, meta Meta, options Options) (*frame.Frame, error)

// layouts lists every side-metadata combination this package knows how
// to reconstruct.
var layouts = map[shape]rebuildFunc{
	// Nothing recorded: names and physical types as read.
	{}: asRead,

	// Native string labels; dtypes as a mapping keyed by column name,
	// the form older archives used.
	{hasDtypes: true}: dtypesByName,

	// Native string labels; dtypes as ordered pairs.
	{hasDtypes: true, dtypePairs: true}: dtypesByPosition,

	// Tuple labels recoverable only from the dtype pairs: written by
	// revisions that let the reader infer multi-level headers.
	{hasDtypes: true, multiLevel: true, dtypePairs: true}: relabelFromPairs,

	// Positional names with restored labels and no dtypes: the layout
	// the legacy bridge produces from its no_pqt_cols record.
	{hasLabels: true}:                   relabel,
	{hasLabels: true, multiLevel: true}: relabel,

	// Positional names with restored labels; dtypes mapped by
	// positional name.
	{hasLabels: true, hasDtypes: true}: relabelDtypesByName,

	// Positional names with restored labels and ordered dtypes.
	{hasLabels: true, hasDtypes: true, dtypePairs: true}:                   relabelDtypesByPosition,
	{hasLabels: true, hasDtypes: true, multiLevel: true, dtypePairs: true}: relabelDtypesByPosition,
}

func asRead(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	columns := make([]frame.Column, len(raw.columns))
	for i, column := range raw.columns {
		columns[i] = physicalDefault(column)
	}
	return &frame.Frame{Labels: stringLabels(raw.names), LevelNames: meta.LevelNames, Columns: columns}, nil
}

func dtypesByName(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	columns := make([]frame.Column, len(raw.columns))
	for i, column := range raw.columns {
		dtype, recorded := meta.DtypeMap[raw.names[i]]
		converted, err := applyDtype(column, dtype, recorded && !options.IgnoreDtypes)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", raw.names[i], err)
		}
		columns[i] = converted
	}
	return &frame.Frame{Labels: stringLabels(raw.names), LevelNames: meta.LevelNames, Columns: columns}, nil
}

func dtypesByPosition(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	columns, err := applyPositional(raw, meta, options)
	if err != nil {
		return nil, err
	}
	return &frame.Frame{Labels: stringLabels(raw.names), LevelNames: meta.LevelNames, Columns: columns}, nil
}

func relabelFromPairs(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	if len(meta.DtypeLabels) != len(raw.columns) {
		return nil, fmt.Errorf("%w: %d dtype labels for %d columns", ErrUnrecognizedLayout, len(meta.DtypeLabels), len(raw.columns))
	}
	columns, err := applyPositional(raw, meta, options)
	if err != nil {
		return nil, err
	}
	return &frame.Frame{Labels: meta.DtypeLabels, LevelNames: meta.LevelNames, Columns: columns}, nil
}

func relabel(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	if len(meta.Labels) != len(raw.columns) {
		return nil, fmt.Errorf("%w: %d labels for %d columns", ErrUnrecognizedLayout, len(meta.Labels), len(raw.columns))
	}
	f, err := asRead(raw, meta, options)
	if err != nil {
		return nil, err
	}
	f.Labels = meta.Labels
	return f, nil
}

func relabelDtypesByName(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	if len(meta.Labels) != len(raw.columns) {
		return nil, fmt.Errorf("%w: %d labels for %d columns", ErrUnrecognizedLayout, len(meta.Labels), len(raw.columns))
	}
	f, err := dtypesByName(raw, meta, options)
	if err != nil {
		return nil, err
	}
	f.Labels = meta.Labels
	return f, nil
}

func relabelDtypesByPosition(raw *rawTable, meta Meta, options Options) (*frame.Frame, error) {
	if len(meta.Labels) != len(raw.columns) {
		return nil, fmt.Errorf("%w: %d labels for %d columns", ErrUnrecognizedLayout, len(meta.Labels), len(raw.columns))
	}
	columns, err := applyPositional(raw, meta, options)
	if err != nil {
		return nil, err
	}
	return &frame.Frame{Labels: meta.Labels, LevelNames: meta.LevelNames, Columns: columns}, nil
}

func applyPositional(raw *rawTable, meta Meta, options Options) ([]frame.Column, error) {
	if len(meta.Dtypes) != len(raw.columns) {
		return nil, fmt.Errorf("%w: %d dtypes for %d columns", ErrUnrecognizedLayout, len(meta.Dtypes), len(raw.columns))
	}
	columns := make([]frame.Column, len(raw.columns))
	for i, column := range raw.columns {
		converted, err := applyDtype(column, meta.Dtypes[i], !options.IgnoreDtypes)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", raw.names[i], err)
		}
		columns[i] = converted
	}
	return columns, nil
}

func stringLabels(names []string) []any {
	labels := make([]any, len(names))
	for i, name := range names {
		labels[i] = name
	}
	return labels
}

// applyDtype converts a physically-typed column to dtype, or to the
// physical default when apply is false.
func applyDtype(column frame.Column, dtype frame.Dtype, apply bool) (frame.Column, error) {
	if !apply {
		return physicalDefault(column), nil
	}
	target, err := dtype.Storage()
	if err != nil {
		return frame.Column{}, err
	}
	current, _ := column.Dtype.Storage()
	if current == target {
		column.Dtype = dtype
		if !dtype.Nullable() && target != frame.StringStorage && dtype != frame.Datetime && column.Valid != nil {
			return physicalDefault(column), nil
		}
		return column, nil
	}
	if current == frame.IntStorage && target == frame.FloatStorage {
		floats := make([]float64, len(column.Ints))
		for i, n := range column.Ints {
			floats[i] = float64(n)
			if column.Valid != nil && !column.Valid[i] {
				floats[i] = math.NaN()
			}
		}
		return frame.Column{Dtype: dtype, Floats: floats}, nil
	}
	return frame.Column{}, fmt.Errorf("cannot apply dtype %s to %s data", dtype, column.Dtype)
}

// physicalDefault maps a column with nulls to the dtype a reader picks
// without recorded dtypes: integers with holes become float64 with
// NaN, booleans with holes become the nullable boolean, categoricals
// become plain strings.
func physicalDefault(column frame.Column) frame.Column {
	switch column.Dtype {
	case frame.NullableInt64:
		column.Dtype = frame.Int64
	case frame.NullableBool:
		column.Dtype = frame.Bool
	case frame.Category:
		column.Dtype = frame.String
	}
	if column.Valid == nil {
		return column
	}
	switch column.Dtype {
	case frame.Int64, frame.Int32:
		floats := make([]float64, len(column.Ints))
		for i, n := range column.Ints {
			floats[i] = float64(n)
			if !column.Valid[i] {
				floats[i] = math.NaN()
			}
		}
		return frame.Column{Dtype: frame.Float64, Floats: floats}
	case frame.Bool:
		column.Dtype = frame.NullableBool
	case frame.Float64, frame.Float32:
		for i := range column.Floats {
			if !column.Valid[i] {
				column.Floats[i] = math.NaN()
			}
		}
		column.Valid = nil
	}
	return column
}

func readParquet(blob []byte) (*rawTable, error) {
	file, err := parquet.OpenFile(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, fmt.Errorf("opening parquet: %w", err)
	}
	schema := file.Schema()

	names, err := columnOrder(file, schema)
	if err != nil {
		return nil, err
	}

	builders := make(map[int]*columnBuilder, len(names))
	ordered := make([]*columnBuilder, len(names))
	for i, name := range names {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: column %q not in parquet schema", ErrUnrecognizedLayout, name)
		}
		builder, err := newColumnBuilder(leaf.Node)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		builders[leaf.ColumnIndex] = builder
		ordered[i] = builder
	}

	buffer := make([]parquet.Row, 128)
	for _, rowGroup := range file.RowGroups() {
		rows := rowGroup.Rows()
		for {
			count, err := rows.ReadRows(buffer)
			for _, row := range buffer[:count] {
				for _, cell := range row {
					if builder, ok := builders[cell.Column()]; ok {
						builder.append(cell)
					}
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("reading parquet rows: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("closing parquet rows: %w", err)
		}
	}

	raw := &rawTable{names: names, columns: make([]frame.Column, len(names))}
	for i, builder := range ordered {
		raw.columns[i] = builder.build()
	}
	return raw, nil
}

// pandasMetadata is the subset of the "pandas" key/value entry other
// writers attach, used to recover column order.
type pandasMetadata struct {
	IndexColumns []any `json:"index_columns"`
	Columns      []struct {
		FieldName string `json:"field_name"`
	} `json:"columns"`
}

func columnOrder(file *parquet.File, schema *parquet.Schema) ([]string, error) {
	if encoded, ok := file.Lookup(columnsKey); ok {
		var names []string
		if err := json.Unmarshal([]byte(encoded), &names); err != nil {
			return nil, fmt.Errorf("%w: bad %s metadata: %v", ErrUnrecognizedLayout, columnsKey, err)
		}
		return names, nil
	}

	skip := map[string]bool{pandasIndexColumn: true}
	if encoded, ok := file.Lookup("pandas"); ok {
		var metadata pandasMetadata
		if err := json.Unmarshal([]byte(encoded), &metadata); err == nil && len(metadata.Columns) > 0 {
			for _, index := range metadata.IndexColumns {
				if name, ok := index.(string); ok {
					skip[name] = true
				}
			}
			var names []string
			for _, column := range metadata.Columns {
				if !skip[column.FieldName] {
					names = append(names, column.FieldName)
				}
			}
			return names, nil
		}
	}

	var names []string
	for _, field := range schema.Fields() {
		if !skip[field.Name()] {
			names = append(names, field.Name())
		}
	}
	return names, nil
}
