// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package persist

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/datazip/lib/datazip"
	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/testutil"
	"github.com/bureau-foundation/datazip/lib/typereg"
	"github.com/bureau-foundation/datazip/lib/value"
)

type settings struct {
	Region string
	Limit  int
}

type model struct {
	Name     string
	Weights  []float64
	Prices   *frame.Frame
	Settings settings
	Notify   func()
	Attrs    map[string]any `datazip:",attrs"`
}

type other struct {
	Name string
}

func newModel(t *testing.T) *model {
	t.Helper()
	prices, err := frame.New([]any{"close"}, frame.Float64Column(1, 2, 3))
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	return &model{
		Name:     "baseline",
		Weights:  []float64{0.1, 0.9},
		Prices:   prices,
		Settings: settings{Region: "west", Limit: 5},
		Notify:   func() {},
		Attrs:    map[string]any{"note": "tuned"},
	}
}

func TestToFileFromFile(t *testing.T) {
	path := testutil.ArchivePath(t, "model")
	source := newModel(t)
	if err := ToFile(path, source); err != nil {
		t.Fatalf("ToFile: %v", err)
	}

	archive, err := datazip.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	keys := strings.Join(archive.Keys(), ",")
	archive.Close()
	if keys != "Name,Weights,Prices,Settings,note,"+MetaKey {
		t.Errorf("Keys = %s", keys)
	}

	meta, err := ReadMeta(path)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if meta.TypeID != typereg.TypeID(reflect.TypeFor[model]()) {
		t.Errorf("TypeID = %q", meta.TypeID)
	}
	if len(meta.Fields) != 5 {
		t.Errorf("Fields = %v, the func field should be left out", meta.Fields)
	}

	restored, err := FromFile[model](path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if restored.Name != source.Name || !value.Equal(restored.Weights, source.Weights) {
		t.Errorf("restored %+v", restored)
	}
	if !restored.Prices.Equal(source.Prices) {
		t.Errorf("Prices = %+v", restored.Prices)
	}
	if restored.Settings != source.Settings {
		t.Errorf("Settings = %+v, want %+v", restored.Settings, source.Settings)
	}
	if restored.Attrs["note"] != "tuned" {
		t.Errorf("Attrs = %v", restored.Attrs)
	}
	if restored.Notify != nil {
		t.Errorf("func field restored")
	}
}

func TestFromFileTypeMismatch(t *testing.T) {
	path := testutil.ArchivePath(t, "other")
	if err := ToFile(path, other{Name: "x"}); err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	if _, err := FromFile[model](path); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("FromFile[model]: got %v, want ErrTypeMismatch", err)
	}
	if restored, err := FromFile[other](path); err != nil || restored.Name != "x" {
		t.Errorf("FromFile[other] = %+v, %v", restored, err)
	}
}

func TestToFileRejectsNonStructs(t *testing.T) {
	path := testutil.ArchivePath(t, "scalar")
	for _, obj := range []any{3, "text", (*model)(nil), nil} {
		if err := ToFile(path, obj); !errors.Is(err, ErrNotObject) {
			t.Errorf("ToFile(%#v): got %v, want ErrNotObject", obj, err)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rejected value left an archive behind: %v", err)
	}
}

func TestToFileRefusesExisting(t *testing.T) {
	path := testutil.ArchivePath(t, "twice")
	if err := ToFile(path, other{Name: "a"}); err != nil {
		t.Fatalf("ToFile: %v", err)
	}
	if err := ToFile(path, other{Name: "b"}); !errors.Is(err, datazip.ErrFileExists) {
		t.Errorf("second ToFile: got %v, want ErrFileExists", err)
	}
	if err := ToFile(path, other{Name: "b"}, datazip.WithOverwrite()); err != nil {
		t.Fatalf("ToFile with overwrite: %v", err)
	}
	restored, err := FromFile[other](path)
	if err != nil || restored.Name != "b" {
		t.Errorf("FromFile = %+v, %v", restored, err)
	}
}

func TestWrapper(t *testing.T) {
	registry := typereg.New()
	typereg.RegisterObject[model](registry, "")

	path := testutil.ArchivePath(t, "wrapped")
	source := newModel(t)
	wrapper := Wrap(source)
	wrapper.SetMeta("owner", "research")
	if wrapper.Unwrap() != any(source) {
		t.Errorf("Unwrap returned a different value")
	}
	if err := wrapper.ToFile(path); err != nil {
		t.Fatalf("ToFile: %v", err)
	}

	loaded, err := FromFileWrapped(path, registry)
	if err != nil {
		t.Fatalf("FromFileWrapped: %v", err)
	}
	restored, ok := loaded.Unwrap().(*model)
	if !ok {
		t.Fatalf("Unwrap = %T, want *model", loaded.Unwrap())
	}
	if restored.Name != source.Name || restored.Settings != source.Settings {
		t.Errorf("restored %+v", restored)
	}
	if loaded.Meta()["owner"] != "research" {
		t.Errorf("Meta = %v", loaded.Meta())
	}

	if _, err := FromFileWrapped(path, typereg.New()); !errors.Is(err, datazip.ErrUnregisteredType) {
		t.Errorf("FromFileWrapped without registration: got %v", err)
	}
}
