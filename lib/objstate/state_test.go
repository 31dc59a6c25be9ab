// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objstate

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bureau-foundation/datazip/lib/value"
)

type position struct {
	Symbol string
	Shares int32
}

type portfolio struct {
	Name      string
	Weights   map[string]float64 `datazip:"weights"`
	Positions []position
	Opened    time.Time
	Tags      map[string]bool
	Scratch   []byte         `datazip:"-"`
	Extra     map[string]any `datazip:",attrs"`
	secret    string
}

type closed struct {
	Label string
}

type counterState struct {
	hits int
}

func (c *counterState) ExportState() (any, error) { return map[string]any{"hits": c.hits}, nil }

func (c *counterState) RestoreState(state any) error {
	fields, ok := state.(map[string]any)
	if !ok {
		return errors.New("bad state")
	}
	c.hits = fields["hits"].(int)
	return nil
}

func TestExportDefaultFields(t *testing.T) {
	opened := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	source := &portfolio{
		Name:      "growth",
		Weights:   map[string]float64{"A": 0.5},
		Positions: []position{{Symbol: "A", Shares: 10}},
		Opened:    opened,
		Scratch:   []byte("skip"),
		Extra:     map[string]any{"note": "hello", "Name": "shadowed"},
		secret:    "hidden",
	}

	state, err := Export(source)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	fields := state.(map[string]any)

	if fields["Name"] != "growth" {
		t.Errorf("Name = %v, want growth (declared field wins over attrs)", fields["Name"])
	}
	if _, ok := fields["weights"]; !ok {
		t.Errorf("tagged field not stored under its tag name: %v", fields)
	}
	for _, absent := range []string{"Scratch", "secret", "Extra"} {
		if _, ok := fields[absent]; ok {
			t.Errorf("%s should not be exported", absent)
		}
	}
	if fields["note"] != "hello" {
		t.Errorf("attrs entry note = %v, want hello", fields["note"])
	}
	positions, ok := fields["Positions"].([]any)
	if !ok || len(positions) != 1 {
		t.Fatalf("Positions = %#v, want one nested state", fields["Positions"])
	}
	if nested := positions[0].(map[string]any); nested["Symbol"] != "A" {
		t.Errorf("nested position = %v", nested)
	}
}

func TestRestoreFromCanonicalValues(t *testing.T) {
	// This is the shape of a state map after an archive round trip:
	// integers are int, floats are float64, lists are []any.
	state := map[string]any{
		"Name":      "growth",
		"weights":   map[string]any{"A": 0.5, "B": 1},
		"Positions": []any{map[string]any{"Symbol": "A", "Shares": 10}},
		"Opened":    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"Tags":      value.NewSet("x"),
		"note":      "hello",
	}

	var target portfolio
	ignored, err := Restore(&target, state)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(ignored) != 0 {
		t.Errorf("ignored = %v, want none (attrs bag present)", ignored)
	}
	if target.Weights["B"] != 1.0 {
		t.Errorf("Weights = %v", target.Weights)
	}
	if len(target.Positions) != 1 || target.Positions[0].Shares != 10 {
		t.Errorf("Positions = %+v", target.Positions)
	}
	if !target.Tags["x"] {
		t.Errorf("Tags = %v, want x:true", target.Tags)
	}
	if target.Extra["note"] != "hello" {
		t.Errorf("Extra = %v", target.Extra)
	}
}

func TestRestoreIgnoresUnknownWithoutBag(t *testing.T) {
	var target closed
	ignored, err := Restore(&target, map[string]any{"Label": "x", "Stale": 1})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(ignored, []string{"Stale"}) {
		t.Errorf("ignored = %v, want [Stale]", ignored)
	}
	if target.Label != "x" {
		t.Errorf("Label = %q", target.Label)
	}
}

func TestCapabilityWins(t *testing.T) {
	source := &counterState{hits: 3}
	state, err := Export(source)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	var target counterState
	if _, err := Restore(&target, state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if target.hits != 3 {
		t.Errorf("hits = %d, want 3", target.hits)
	}
	if !Capable(reflect.TypeFor[counterState]()) {
		t.Errorf("Capable(counterState) = false")
	}
}

func TestUnsupportedKinds(t *testing.T) {
	if _, err := Export(42); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Export(42) error = %v, want ErrUnsupportedKind", err)
	}
	number := 1
	if _, err := Restore(&number, map[string]any{}); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Restore(*int) error = %v, want ErrUnsupportedKind", err)
	}
	if _, err := Restore(closed{}, map[string]any{}); !errors.Is(err, ErrNotPointer) {
		t.Errorf("Restore(value) error = %v, want ErrNotPointer", err)
	}
}

func TestAssignConversions(t *testing.T) {
	tests := []struct {
		name    string
		target  any
		source  any
		want    any
		wantErr bool
	}{
		{"int to int8", new(int8), 12, int8(12), false},
		{"int overflow int8", new(int8), 300, nil, true},
		{"integral float to int", new(int), 4.0, 4, false},
		{"fractional float to int", new(int), 4.5, nil, true},
		{"negative to uint", new(uint), -1, nil, true},
		{"path to string", new(string), value.Path("/tmp/x"), "/tmp/x", false},
		{"tuple to array", new([2]int), value.Tuple{1, 2}, [2]int{1, 2}, false},
		{"list to pointer slice", new([]*int), []any{1}, nil, false},
		{"map pairs to int keys", new(map[int]string), mapWithIntKey(), map[int]string{7: "seven"}, false},
		{"tuple to struct", new(position), value.Tuple{"B", 5}, position{Symbol: "B", Shares: 5}, false},
		{"string to int", new(int), "5", nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			target := reflect.ValueOf(test.target).Elem()
			err := Assign(target, test.source)
			if test.wantErr {
				if !errors.Is(err, ErrConvert) {
					t.Fatalf("Assign error = %v, want ErrConvert", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if test.want != nil && !reflect.DeepEqual(target.Interface(), test.want) {
				t.Errorf("Assign result = %#v, want %#v", target.Interface(), test.want)
			}
		})
	}
}

func mapWithIntKey() *value.Map {
	m := value.NewMap()
	_ = m.Set(7, "seven")
	return m
}
