// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/datazip/lib/value"
)

// ErrShape is returned when columns disagree in length or labels do
// not match the column count.
var ErrShape = errors.New("inconsistent frame shape")

// Frame is a labeled table of columns sharing one implicit row index.
type Frame struct {
	Labels     []any
	LevelNames []any
	Columns    []Column
}

// New returns a frame after checking that labels and columns line up.
func New(labels []any, columns ...Column) (*Frame, error) {
	f := &Frame{Labels: labels, Columns: columns}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the frame's invariants: one label per column, equal
// column lengths, well-formed columns and, for multi-level headers,
// tuples of one arity.
func (f *Frame) Validate() error {
	if len(f.Labels) != len(f.Columns) {
		return fmt.Errorf("%w: %d labels for %d columns", ErrShape, len(f.Labels), len(f.Columns))
	}
	rows := -1
	for i, column := range f.Columns {
		if err := column.Validate(); err != nil {
			return fmt.Errorf("column %v: %w", f.Labels[i], err)
		}
		if rows >= 0 && column.Len() != rows {
			return fmt.Errorf("%w: column %v has %d rows, want %d", ErrShape, f.Labels[i], column.Len(), rows)
		}
		rows = column.Len()
	}
	levels := f.Levels()
	if levels > 1 {
		for _, label := range f.Labels {
			tuple, ok := label.(value.Tuple)
			if !ok || len(tuple) != levels {
				return fmt.Errorf("%w: label %v is not a %d-level tuple", ErrShape, label, levels)
			}
		}
	}
	if f.LevelNames != nil && len(f.LevelNames) != levels {
		return fmt.Errorf("%w: %d level names for %d levels", ErrShape, len(f.LevelNames), levels)
	}
	return nil
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// Levels returns the number of label levels: the tuple arity of the
// first label when it is a tuple, otherwise 1.
func (f *Frame) Levels() int {
	if len(f.Labels) == 0 {
		if len(f.LevelNames) > 1 {
			return len(f.LevelNames)
		}
		return 1
	}
	if tuple, ok := f.Labels[0].(value.Tuple); ok {
		return len(tuple)
	}
	return 1
}

// Column returns the column labeled label.
func (f *Frame) Column(label any) (Column, bool) {
	for i, candidate := range f.Labels {
		if value.Equal(candidate, label) {
			return f.Columns[i], true
		}
	}
	return Column{}, false
}

// Dtypes returns the dtype of every column, in order.
func (f *Frame) Dtypes() []Dtype {
	dtypes := make([]Dtype, len(f.Columns))
	for i, column := range f.Columns {
		dtypes[i] = column.Dtype
	}
	return dtypes
}

// Equal reports whether two frames have equal labels, level names and
// columns.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.Columns) != len(other.Columns) {
		return false
	}
	if !value.Equal(f.Labels, other.Labels) && !(len(f.Labels) == 0 && len(other.Labels) == 0) {
		return false
	}
	if !value.Equal(f.LevelNames, other.LevelNames) && !(len(f.LevelNames) == 0 && len(other.LevelNames) == 0) {
		return false
	}
	for i := range f.Columns {
		if !f.Columns[i].Equal(other.Columns[i]) {
			return false
		}
	}
	return true
}

// Series is a single labeled column. Name may be any hashable value,
// including a tuple.
type Series struct {
	Name   any
	Column Column
}

// Equal reports whether two series have equal names and cells.
func (s *Series) Equal(other *Series) bool {
	if s == nil || other == nil {
		return s == other
	}
	return value.Equal(s.Name, other.Name) && s.Column.Equal(other.Column)
}
