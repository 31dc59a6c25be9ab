// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Dtype is the declared type of a column. The names match the dtype
// strings of the columnar ecosystem so that archives written by other
// tools decode to the same dtypes.
type Dtype string

const (
	Float64       Dtype = "float64"
	Float32       Dtype = "float32"
	Int64         Dtype = "int64"
	Int32         Dtype = "int32"
	NullableInt64 Dtype = "Int64"
	Bool          Dtype = "bool"
	NullableBool  Dtype = "boolean"
	String        Dtype = "string"
	Category      Dtype = "category"
	Datetime      Dtype = "datetime64[ns]"
)

// Storage names the typed slice a dtype keeps its cells in.
type Storage int

const (
	FloatStorage Storage = iota
	IntStorage
	StringStorage
	BoolStorage
)

// Storage returns the slice family used by d.
func (d Dtype) Storage() (Storage, error) {
	switch d {
	case Float64, Float32:
		return FloatStorage, nil
	case Int64, Int32, NullableInt64, Datetime:
		return IntStorage, nil
	case String, Category, "object":
		return StringStorage, nil
	case Bool, NullableBool:
		return BoolStorage, nil
	}
	return 0, fmt.Errorf("unknown dtype %q", string(d))
}

// Nullable reports whether d is an extension dtype with an explicit
// missing-value marker rather than a sentinel such as NaN.
func (d Dtype) Nullable() bool {
	return d == NullableInt64 || d == NullableBool
}

// Column is one typed column. Exactly one of the slices is populated,
// as selected by Dtype.Storage. Datetimes are stored as nanoseconds
// since the Unix epoch, UTC.
type Column struct {
	Dtype   Dtype
	Floats  []float64
	Ints    []int64
	Strings []string
	Bools   []bool

	// Valid marks present cells. Nil means every cell is present.
	Valid []bool
}

// Len returns the number of cells.
func (c Column) Len() int {
	storage, err := c.Dtype.Storage()
	if err != nil {
		return 0
	}
	switch storage {
	case FloatStorage:
		return len(c.Floats)
	case IntStorage:
		return len(c.Ints)
	case StringStorage:
		return len(c.Strings)
	default:
		return len(c.Bools)
	}
}

// IsNull reports whether cell i is missing. NaN counts as missing in
// float columns.
func (c Column) IsNull(i int) bool {
	if c.Valid != nil && !c.Valid[i] {
		return true
	}
	if storage, _ := c.Dtype.Storage(); storage == FloatStorage {
		return math.IsNaN(c.Floats[i])
	}
	return false
}

// Validate checks that the populated slice matches Dtype and that the
// mask, if present, has the same length.
func (c Column) Validate() error {
	storage, err := c.Dtype.Storage()
	if err != nil {
		return err
	}
	populated := map[Storage]bool{
		FloatStorage:  c.Floats != nil,
		IntStorage:    c.Ints != nil,
		StringStorage: c.Strings != nil,
		BoolStorage:   c.Bools != nil,
	}
	for other, isSet := range populated {
		if other != storage && isSet {
			return fmt.Errorf("dtype %s column has cells in the wrong slice", c.Dtype)
		}
	}
	if c.Valid != nil && len(c.Valid) != c.Len() {
		return fmt.Errorf("dtype %s column: mask length %d, want %d", c.Dtype, len(c.Valid), c.Len())
	}
	return nil
}

// Equal reports whether two columns have the same dtype and cells,
// treating nulls (including NaN) as equal to each other.
func (c Column) Equal(other Column) bool {
	if c.Dtype != other.Dtype || c.Len() != other.Len() {
		return false
	}
	storage, _ := c.Dtype.Storage()
	for i := range c.Len() {
		leftNull, rightNull := c.IsNull(i), other.IsNull(i)
		if leftNull || rightNull {
			if leftNull != rightNull {
				return false
			}
			continue
		}
		switch storage {
		case FloatStorage:
			if c.Floats[i] != other.Floats[i] {
				return false
			}
		case IntStorage:
			if c.Ints[i] != other.Ints[i] {
				return false
			}
		case StringStorage:
			if c.Strings[i] != other.Strings[i] {
				return false
			}
		case BoolStorage:
			if c.Bools[i] != other.Bools[i] {
				return false
			}
		}
	}
	return true
}

// Float64Column returns a float64 column.
func Float64Column(values ...float64) Column {
	return Column{Dtype: Float64, Floats: slices.Clone(values)}
}

// Float32Column returns a float32 column. Cells are stored widened.
func Float32Column(values ...float32) Column {
	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}
	return Column{Dtype: Float32, Floats: floats}
}

// Int64Column returns an int64 column.
func Int64Column(values ...int64) Column {
	return Column{Dtype: Int64, Ints: slices.Clone(values)}
}

// Int32Column returns an int32 column. Cells are stored widened.
func Int32Column(values ...int32) Column {
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i] = int64(v)
	}
	return Column{Dtype: Int32, Ints: ints}
}

// NullableInt64Column returns an Int64 extension column. valid marks
// present cells and must have the same length as values.
func NullableInt64Column(values []int64, valid []bool) Column {
	return Column{Dtype: NullableInt64, Ints: slices.Clone(values), Valid: slices.Clone(valid)}
}

// BoolColumn returns a bool column.
func BoolColumn(values ...bool) Column {
	return Column{Dtype: Bool, Bools: slices.Clone(values)}
}

// NullableBoolColumn returns a boolean extension column.
func NullableBoolColumn(values []bool, valid []bool) Column {
	return Column{Dtype: NullableBool, Bools: slices.Clone(values), Valid: slices.Clone(valid)}
}

// StringColumn returns a string column.
func StringColumn(values ...string) Column {
	return Column{Dtype: String, Strings: slices.Clone(values)}
}

// CategoryColumn returns a categorical string column.
func CategoryColumn(values ...string) Column {
	return Column{Dtype: Category, Strings: slices.Clone(values)}
}

// DatetimeColumn returns a datetime64[ns] column.
func DatetimeColumn(values ...time.Time) Column {
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i] = v.UnixNano()
	}
	return Column{Dtype: Datetime, Ints: ints}
}

// Time returns cell i of a datetime column.
func (c Column) Time(i int) time.Time {
	return time.Unix(0, c.Ints[i]).UTC()
}
