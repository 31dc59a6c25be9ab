// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tablecodec

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/value"
)

func mustFrame(t *testing.T, labels []any, columns ...frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.New(labels, columns...)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	return f
}

func roundTrip(t *testing.T, f *frame.Frame, options Options) (*frame.Frame, Meta) {
	t.Helper()
	blob, meta, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	decoded, err := DecodeFrame(blob, meta, options)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	return decoded, meta
}

func TestFrameNativeLabels(t *testing.T) {
	// Labels deliberately out of alphabetical order.
	f := mustFrame(t, []any{"zeta", "alpha", "mid"},
		frame.Float64Column(1.5, math.NaN(), 3),
		frame.Int64Column(1, 2, 3),
		frame.StringColumn("a", "b", "c"),
	)
	decoded, meta := roundTrip(t, f, Options{})
	if meta.Labels != nil {
		t.Errorf("plain string labels should be stored natively, got side labels %v", meta.Labels)
	}
	if !decoded.Equal(f) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, f)
	}
}

func TestFrameMultiLevelLabelsAndExtensionDtypes(t *testing.T) {
	f := mustFrame(t,
		[]any{value.Tuple{"price", "a"}, value.Tuple{"price", "b"}, value.Tuple{"volume", "a"}},
		frame.NullableInt64Column([]int64{1, 0, 3}, []bool{true, false, true}),
		frame.CategoryColumn("x", "y", "x"),
		frame.Float32Column(0.5, 1.5, 2.5),
	)
	f.LevelNames = []any{"field", "ticker"}

	decoded, meta := roundTrip(t, f, Options{})
	if meta.Labels == nil {
		t.Fatalf("tuple labels should travel in side metadata")
	}
	if !decoded.Equal(f) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", decoded, f)
	}
	if decoded.Columns[0].Dtype != frame.NullableInt64 || !decoded.Columns[0].IsNull(1) {
		t.Errorf("nullable column lost: %+v", decoded.Columns[0])
	}
}

func TestFrameIgnoreDtypes(t *testing.T) {
	f := mustFrame(t, []any{1, 2},
		frame.NullableInt64Column([]int64{4, 0}, []bool{true, false}),
		frame.CategoryColumn("x", "y"),
	)
	decoded, _ := roundTrip(t, f, Options{IgnoreDtypes: true})
	if got := decoded.Columns[0].Dtype; got != frame.Float64 {
		t.Errorf("nullable ints without dtypes decode as %s, want float64", got)
	}
	if !math.IsNaN(decoded.Columns[0].Floats[1]) {
		t.Errorf("missing cell should be NaN, got %v", decoded.Columns[0].Floats[1])
	}
	if got := decoded.Columns[1].Dtype; got != frame.String {
		t.Errorf("category without dtypes decodes as %s, want string", got)
	}
	if !value.Equal(decoded.Labels, []any{1, 2}) {
		t.Errorf("labels = %v, want [1 2]", decoded.Labels)
	}
}

func TestFrameDatetimeAndBool(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := mustFrame(t, []any{"when", "flag"},
		frame.DatetimeColumn(start, start.Add(time.Hour)),
		frame.BoolColumn(true, false),
	)
	decoded, _ := roundTrip(t, f, Options{})
	if !decoded.Equal(f) {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
	if got := decoded.Columns[0].Time(1); !got.Equal(start.Add(time.Hour)) {
		t.Errorf("Time(1) = %v", got)
	}
}

func TestEmptyFrame(t *testing.T) {
	f := mustFrame(t, []any{})
	decoded, _ := roundTrip(t, f, Options{})
	if len(decoded.Columns) != 0 {
		t.Errorf("decoded %d columns from an empty frame", len(decoded.Columns))
	}
}

func TestSeriesTupleName(t *testing.T) {
	series := &frame.Series{Name: value.Tuple{"a", 1}, Column: frame.Int32Column(7, 8, 9)}
	blob, meta, err := EncodeSeries(series)
	if err != nil {
		t.Fatalf("EncodeSeries: %v", err)
	}
	decoded, err := DecodeSeries(blob, meta, Options{})
	if err != nil {
		t.Fatalf("DecodeSeries: %v", err)
	}
	if !decoded.Equal(series) {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestLegacyMappingDtypes(t *testing.T) {
	f := mustFrame(t, []any{"a"}, frame.NullableInt64Column([]int64{1, 2}, nil))
	blob, _, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	decoded, err := DecodeFrame(blob, Meta{DtypeMap: map[string]frame.Dtype{"a": frame.NullableInt64}}, Options{})
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.Columns[0].Dtype != frame.NullableInt64 {
		t.Errorf("dtype = %s, want Int64", decoded.Columns[0].Dtype)
	}
}

func TestUnrecognizedLayout(t *testing.T) {
	f := mustFrame(t, []any{"a"}, frame.Int64Column(1))
	blob, _, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	// Tuple labels with a name-keyed dtype mapping: mapping keys
	// cannot name tuple columns, so no writer produced this.
	meta := Meta{
		Labels:   []any{value.Tuple{"a", "b"}},
		DtypeMap: map[string]frame.Dtype{"0": frame.Int64},
	}
	if _, err := DecodeFrame(blob, meta, Options{}); !errors.Is(err, ErrUnrecognizedLayout) {
		t.Errorf("DecodeFrame error = %v, want ErrUnrecognizedLayout", err)
	}
}
