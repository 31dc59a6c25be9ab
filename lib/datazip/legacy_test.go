// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datazip

import (
	"strings"
	"testing"

	"github.com/bureau-foundation/datazip/lib/arraycodec"
	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/tablecodec"
	"github.com/bureau-foundation/datazip/lib/testutil"
	"github.com/bureau-foundation/datazip/lib/value"
)

const legacyMetadata = `{
	"contents": {
		"prices": [], "volume": [], "grid": [], "weights": [],
		"nested": ["nested/a.npy"], "inner": [], "note": []
	},
	"obj_meta": {
		"prices": ["pandas.core.frame", "DataFrame", null],
		"volume": ["pandas.core.series", "Series", null]
	},
	"no_pqt_cols": {
		"grid": [[["a", "x"], ["a", "y"]], ["field", "ticker"]]
	}
}`

func parquetBlob(t *testing.T, f *frame.Frame) []byte {
	t.Helper()
	blob, _, err := tablecodec.EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	return blob
}

// writeLegacyArchive writes an archive in the layout that predates
// format revisions.
func writeLegacyArchive(t *testing.T, name string) string {
	t.Helper()
	weights, _, err := arraycodec.Encode([]float64{0.5, 1.5})
	if err != nil {
		t.Fatalf("arraycodec.Encode: %v", err)
	}
	grid := mustFrame(t, []any{value.Tuple{"a", "x"}, value.Tuple{"a", "y"}},
		frame.Float64Column(1, 2), frame.Float64Column(3, 4))

	return testutil.WriteZip(t, testutil.ArchivePath(t, name), map[string][]byte{
		"metadata.json":   []byte(legacyMetadata),
		"prices.parquet":  parquetBlob(t, mustFrame(t, []any{"close"}, frame.Float64Column(10, 11))),
		"volume.parquet":  parquetBlob(t, mustFrame(t, []any{"volume"}, frame.Float64Column(100, 200))),
		"grid.parquet":    parquetBlob(t, grid),
		"weights.npy":     weights,
		"inner.zip":       []byte("PK"),
		"attributes.json": []byte(`{"note": "hello", "extra": 5}`),
	})
}

func TestLegacyArchive(t *testing.T) {
	archive, err := OpenFile(writeLegacyArchive(t, "legacy"))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer archive.Close()

	if !archive.Metadata().Legacy() {
		t.Errorf("Metadata().Legacy() = false")
	}
	want := "prices,volume,grid,weights,note,extra"
	if got := strings.Join(archive.Keys(), ","); got != want {
		t.Errorf("Keys = %s, want %s", got, want)
	}

	warnings := strings.Join(archive.Warnings(), "\n")
	for _, fragment := range []string{"predates the current format revision", "key=nested", "key=inner"} {
		if !strings.Contains(warnings, fragment) {
			t.Errorf("warnings missing %q:\n%s", fragment, warnings)
		}
	}

	prices, ok := mustGet(t, archive, "prices").(*frame.Frame)
	if !ok || !value.Equal(prices.Labels, []any{"close"}) || !value.Equal(prices.Columns[0].Floats, []float64{10, 11}) {
		t.Errorf("prices = %#v", mustGet(t, archive, "prices"))
	}

	volume, ok := mustGet(t, archive, "volume").(*frame.Series)
	if !ok || volume.Name != "volume" || volume.Column.Len() != 2 {
		t.Errorf("volume = %#v", mustGet(t, archive, "volume"))
	}

	grid, ok := mustGet(t, archive, "grid").(*frame.Frame)
	if !ok {
		t.Fatalf("grid = %T", mustGet(t, archive, "grid"))
	}
	if !value.Equal(grid.Labels[1], value.Tuple{"a", "y"}) || !value.Equal(grid.LevelNames, []any{"field", "ticker"}) {
		t.Errorf("grid labels = %v, level names = %v", grid.Labels, grid.LevelNames)
	}

	if got := mustGet(t, archive, "weights"); !value.Equal(got, []float64{0.5, 1.5}) {
		t.Errorf("weights = %#v", got)
	}
	if got := mustGet(t, archive, "note"); got != "hello" {
		t.Errorf("note = %v", got)
	}
	if got := mustGet(t, archive, "extra"); got != 5 {
		t.Errorf("extra = %v", got)
	}
}

func TestLegacyAttributesOnly(t *testing.T) {
	path := testutil.WriteZip(t, testutil.ArchivePath(t, "oldest"), map[string][]byte{
		"other_attrs.json": []byte(`{"alpha": 1, "beta": [1, 2.5]}`),
	})
	archive, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer archive.Close()

	if got := strings.Join(archive.Keys(), ","); got != "alpha,beta" {
		t.Errorf("Keys = %s", got)
	}
	if got := mustGet(t, archive, "beta"); !value.Equal(got, []any{1, 2.5}) {
		t.Errorf("beta = %#v", got)
	}
}

func TestLegacyUntypedTables(t *testing.T) {
	path := testutil.WriteZip(t, testutil.ArchivePath(t, "untyped"), map[string][]byte{
		"metadata.json": []byte(`{"contents": {"flow": [], "pair": []}, "obj_meta": {}}`),
		"flow.parquet":  parquetBlob(t, mustFrame(t, []any{"flow"}, frame.Float64Column(1, 2, 3))),
		"pair.parquet": parquetBlob(t, mustFrame(t, []any{"a", "b"},
			frame.Float64Column(1), frame.Float64Column(2))),
	})
	archive, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer archive.Close()

	flow, ok := mustGet(t, archive, "flow").(*frame.Series)
	if !ok {
		t.Fatalf("flow = %T, want a series", mustGet(t, archive, "flow"))
	}
	if flow.Name != "flow" || !value.Equal(flow.Column.Floats, []float64{1, 2, 3}) {
		t.Errorf("flow = %#v", flow)
	}
	if _, ok := mustGet(t, archive, "pair").(*frame.Frame); !ok {
		t.Errorf("pair = %T, want a frame", mustGet(t, archive, "pair"))
	}
}
