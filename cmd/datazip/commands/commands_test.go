// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/datazip/lib/datazip"
	"github.com/bureau-foundation/datazip/lib/frame"
	"github.com/bureau-foundation/datazip/lib/persist"
	"github.com/bureau-foundation/datazip/lib/testutil"
	"github.com/bureau-foundation/datazip/lib/value"
)

// execute runs the command tree with args and returns its stdout and
// stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DATAZIP_CONFIG", "")
	var stdout, stderr bytes.Buffer
	err := New(&stdout, &stderr).Execute(args)
	return stdout.String(), stderr.String(), err
}

func writeArchive(t *testing.T, entries ...datazip.Entry) string {
	t.Helper()
	path := testutil.ArchivePath(t, testutil.UniqueID("results"))
	archive, err := datazip.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, entry := range entries {
		if err := archive.Set(entry.Name, entry.Value); err != nil {
			t.Fatalf("Set(%s): %v", entry.Name, err)
		}
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func readKey(t *testing.T, path, key string) any {
	t.Helper()
	archive, err := datazip.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer archive.Close()
	decoded, err := archive.Get(key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	return decoded
}

func TestLs(t *testing.T) {
	prices, err := frame.New([]any{"close"}, frame.Float64Column(1.5, 2.5))
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	path := writeArchive(t,
		datazip.Entry{Name: "label", Value: "baseline"},
		datazip.Entry{Name: "weights", Value: []float64{0.25, 0.75}},
		datazip.Entry{Name: "prices", Value: prices},
		datazip.Entry{Name: "raw", Value: []byte("payload")},
	)

	stdout, _, err := execute(t, "ls", "--json", path)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	var listing []keyListing
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("parsing ls output %q: %v", stdout, err)
	}
	want := []keyListing{
		{"label", "inline"},
		{"weights", "array"},
		{"prices", "frame"},
		{"raw", "image"},
	}
	if len(listing) != len(want) {
		t.Fatalf("ls listed %v, want %v", listing, want)
	}
	for i := range want {
		if listing[i] != want[i] {
			t.Errorf("entry %d = %v, want %v", i, listing[i], want[i])
		}
	}

	stdout, _, err = execute(t, "ls", "--entries", path)
	if err != nil {
		t.Fatalf("ls --entries: %v", err)
	}
	for _, name := range []string{"__attributes__.json", "__metadata__.json", "prices.parquet", "raw.pkl", "weights.npy"} {
		if !strings.Contains(stdout, name+"\n") {
			t.Errorf("ls --entries output missing %s:\n%s", name, stdout)
		}
	}
}

func TestCat(t *testing.T) {
	prices, err := frame.New([]any{value.Tuple{"px", "close"}}, frame.Float64Column(1.5, 2.5, 3.5))
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	path := writeArchive(t,
		datazip.Entry{Name: "runs", Value: []any{1, "two", 3.5}},
		datazip.Entry{Name: "prices", Value: prices},
	)

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"runs", "1"}, `"two"`},
		{[]string{"runs", "--", "-1"}, `3.5`},
		{[]string{"runs", "0"}, `1`},
	}
	for _, test := range tests {
		stdout, _, err := execute(t, append([]string{"cat", path}, test.args...)...)
		if err != nil {
			t.Fatalf("cat %v: %v", test.args, err)
		}
		if got := strings.TrimSpace(stdout); got != test.want {
			t.Errorf("cat %v = %s, want %s", test.args, got, test.want)
		}
	}

	stdout, _, err := execute(t, "cat", path, "prices")
	if err != nil {
		t.Fatalf("cat prices: %v", err)
	}
	var summary struct {
		Frame struct {
			Rows   int      `json:"rows"`
			Dtypes []string `json:"dtypes"`
		} `json:"frame"`
	}
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("parsing cat output %q: %v", stdout, err)
	}
	if summary.Frame.Rows != 3 || len(summary.Frame.Dtypes) != 1 || summary.Frame.Dtypes[0] != string(frame.Float64) {
		t.Errorf("frame summary = %+v", summary.Frame)
	}

	_, _, err = execute(t, "cat", path, "missing")
	testutil.RequireErrorIs(t, err, datazip.ErrKeyNotFound)
}

func TestPutCreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.zip")

	if _, _, err := execute(t, "put", path, "label", `"first" // initial label`); err != nil {
		t.Fatalf("put (create): %v", err)
	}
	if got := readKey(t, path, "label"); got != "first" {
		t.Errorf("label = %v, want first", got)
	}

	params := filepath.Join(t.TempDir(), "params.jsonc")
	if err := os.WriteFile(params, []byte(`{
		// lookback in days
		"window": 20,
		"shape": {"__tuple__": true, "items": [3, 4]},
	}`), 0o644); err != nil {
		t.Fatalf("writing params: %v", err)
	}
	if _, _, err := execute(t, "put", path, "params", "--file", params); err != nil {
		t.Fatalf("put --file: %v", err)
	}
	if _, _, err := execute(t, "put", path, "label", "42"); err != nil {
		t.Fatalf("put (replace): %v", err)
	}

	archive, err := datazip.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer archive.Close()
	if keys := strings.Join(archive.Keys(), ","); keys != "label,params" {
		t.Errorf("keys = %s, want label,params", keys)
	}
	label, err := archive.Get("label")
	if err != nil || label != 42 {
		t.Errorf("label = %v (%v), want 42", label, err)
	}
	shape, err := archive.Get("params", "shape")
	if err != nil || !value.Equal(shape, value.Tuple{3, 4}) {
		t.Errorf("params.shape = %#v (%v), want tuple (3, 4)", shape, err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "settings_old.zip")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("backup left behind: %v", err)
	}
}

func TestPutSaveOld(t *testing.T) {
	path := writeArchive(t, datazip.Entry{Name: "label", Value: "first"})
	if _, _, err := execute(t, "put", "--save-old", path, "label", `"second"`); err != nil {
		t.Fatalf("put: %v", err)
	}
	backup := strings.TrimSuffix(path, ".zip") + "_old.zip"
	if got := readKey(t, backup, "label"); got != "first" {
		t.Errorf("backup label = %v, want first", got)
	}

	_, _, err := execute(t, "put", "--save-old", path, "label", `"third"`)
	testutil.RequireErrorIs(t, err, datazip.ErrFileExists)
	if _, _, err := execute(t, "put", "--save-old", "--overwrite-backup", path, "label", `"third"`); err != nil {
		t.Fatalf("put --overwrite-backup: %v", err)
	}
	if got := readKey(t, path, "label"); got != "third" {
		t.Errorf("label = %v, want third", got)
	}
}

func TestPutRejectsBadInput(t *testing.T) {
	path := writeArchive(t, datazip.Entry{Name: "label", Value: "first"})

	if _, _, err := execute(t, "put", path, "label", "{not json"); err == nil {
		t.Error("put accepted malformed JSON")
	}
	if _, _, err := execute(t, "put", path, "label"); err == nil {
		t.Error("put accepted a missing value")
	}
	if got := readKey(t, path, "label"); got != "first" {
		t.Errorf("label = %v after failed puts, want first", got)
	}
}

func TestRm(t *testing.T) {
	path := writeArchive(t,
		datazip.Entry{Name: "a", Value: 1},
		datazip.Entry{Name: "b", Value: []float64{1, 2}},
		datazip.Entry{Name: "c", Value: "three"},
	)

	_, _, err := execute(t, "rm", path, "b", "nope")
	testutil.RequireErrorIs(t, err, datazip.ErrKeyNotFound)

	if _, _, err := execute(t, "rm", path, "b"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	archive, err := datazip.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer archive.Close()
	if keys := strings.Join(archive.Keys(), ","); keys != "a,c" {
		t.Errorf("keys = %s, want a,c", keys)
	}
	for _, name := range archive.EntryNames() {
		if strings.HasPrefix(name, "b.") {
			t.Errorf("entry %s of removed key still present", name)
		}
	}
}

func TestVerify(t *testing.T) {
	good := writeArchive(t, datazip.Entry{Name: "weights", Value: []float64{1, 2, 3}})
	stdout, _, err := execute(t, "verify", good)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(stdout), ": ok") {
		t.Errorf("verify output = %q, want ok", stdout)
	}

	entries := testutil.ReadZip(t, good)
	corrupted := bytes.Clone(entries["weights.npy"])
	corrupted[len(corrupted)-1] ^= 0xff
	entries["weights.npy"] = corrupted
	testutil.WriteZip(t, good, entries)

	stdout, _, err = execute(t, "verify", good)
	var exit interface{ ExitCode() int }
	if !errors.As(err, &exit) || exit.ExitCode() != 1 {
		t.Fatalf("verify error = %v, want exit code 1", err)
	}
	if !strings.Contains(stdout, "weights.npy") || !strings.Contains(stdout, "checksum") {
		t.Errorf("verify output does not name the tampered entry:\n%s", stdout)
	}
}

type experiment struct {
	Name    string
	Weights []float64
}

func TestInfo(t *testing.T) {
	path := testutil.ArchivePath(t, "experiment")
	if err := persist.ToFile(path, &experiment{Name: "momentum", Weights: []float64{0.5}}); err != nil {
		t.Fatalf("ToFile: %v", err)
	}

	stdout, _, err := execute(t, "info", "--json", "--checksums", path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	var info archiveInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("parsing info output %q: %v", stdout, err)
	}
	if info.FormatRevision != datazip.FormatRevision || info.Legacy {
		t.Errorf("revision = %d legacy = %v", info.FormatRevision, info.Legacy)
	}
	if info.Keys != 3 {
		t.Errorf("keys = %d, want 3", info.Keys)
	}
	if info.Object == nil || !strings.HasSuffix(info.Object.TypeID, ".experiment") {
		t.Fatalf("object = %+v, want an experiment record", info.Object)
	}
	if strings.Join(info.Object.Fields, ",") != "Name,Weights" {
		t.Errorf("fields = %v, want [Name Weights]", info.Object.Fields)
	}
	if _, ok := info.Checksums["Weights.npy"]; !ok {
		t.Errorf("checksums = %v, want Weights.npy", info.Checksums)
	}

	stdout, _, err = execute(t, "info", path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(stdout, "format revision") || !strings.Contains(stdout, "experiment") {
		t.Errorf("info text output:\n%s", stdout)
	}
}

func TestImage(t *testing.T) {
	path := writeArchive(t, datazip.Entry{Name: "raw", Value: []byte("payload")})
	stdout, _, err := execute(t, "image", path, "raw.pkl")
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	if !strings.Contains(stdout, `"bytes"`) {
		t.Errorf("image output = %q, want the bytes kind", stdout)
	}

	_, _, err = execute(t, "image", path, "missing.pkl")
	testutil.RequireErrorIs(t, err, datazip.ErrMissingEntry)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "datazip.yaml")
	if err := os.WriteFile(configPath, []byte("archive:\n  compression: zstd\n  save_old: true\nlog:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	path := writeArchive(t, datazip.Entry{Name: "a", Value: 1})

	_, stderr, err := execute(t, "put", "--config", configPath, path, "b", "2")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.Contains(stderr, "copying entry") {
		t.Errorf("debug progress not logged:\n%s", stderr)
	}
	if _, err := os.Stat(strings.TrimSuffix(path, ".zip") + "_old.zip"); err != nil {
		t.Errorf("save_old from config not honored: %v", err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("archive:\n  compression: brotli\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	if _, _, err := execute(t, "ls", "--config", bad, path); err == nil {
		t.Error("ls accepted an invalid compression setting")
	}
}

func TestRender(t *testing.T) {
	type leaf struct{ Name string }
	type loop struct {
		Self *loop
		Leaf leaf
	}
	cycle := &loop{Leaf: leaf{Name: "x"}}
	cycle.Self = cycle

	rendered, err := render(cycle)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(rendered)
	if !strings.Contains(text, `"ref"`) || !strings.Contains(text, `"x"`) {
		t.Errorf("render(cycle) = %s", text)
	}
}
