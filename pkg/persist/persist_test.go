package persist

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

var equateEmpty = cmpopts.EquateEmpty()

func quiet() Options {
	return Options{Logger: log.New(io.Discard)}
}

func sampleValue() value.Grouping {
	prices := &value.OrderedMapping{}
	prices.Append("close", "101.5", "102")
	prices.Append("open", "100", "101")
	prices.Append("adj", "99", "100")

	return value.Grouping{
		"a": value.Float(3.14),
		"b": value.NewFloatArray([]int{2, 2}, []float64{1, 2, 3, 4}),
		"c": &value.Table{Columns: []value.Column{
			&value.IntColumn{ColName: "x", Values: []int64{1, 2}},
			value.NewStringColumn("y", []string{"foo", ""}, []bool{true, false}),
		}},
		"meta": value.Grouping{
			"name":    value.Text("equities"),
			"count":   value.Int(42),
			"enabled": value.Bool(true),
			"tickers": value.Strings("AAPL", "MSFT"),
			"fields":  prices,
		},
		"ids": value.NewIntArray([]int{3}, []int64{7, 8, 9}),
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.lgc")
	if err := Save(path, sampleValue(), quiet()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := Load(path, quiet())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !res.Manifest.OK() {
		t.Fatalf("manifest not OK: %+v", res.Manifest)
	}

	want := sampleValue()
	want["c"] = &value.Table{Columns: []value.Column{
		&value.IntColumn{ColName: "x", Values: []int64{1, 2}},
		value.NewStringColumn("y", []string{"foo", Sentinel}, nil),
	}}
	if diff := cmp.Diff(want, res.Value, equateEmpty); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestLoadScalarArrayTable(t *testing.T) {
	root := value.Grouping{
		"a": value.Float(3.14),
		"b": value.NewIntArray([]int{2, 2}, []int64{1, 2, 3, 4}),
		"c": &value.Table{Columns: []value.Column{
			&value.IntColumn{ColName: "x", Values: []int64{1, 2}},
			value.NewStringColumn("y", []string{"foo", "ignored"}, []bool{true, false}),
		}},
	}
	path := filepath.Join(t.TempDir(), "abc.lgc")
	if err := Save(path, root, quiet()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	res, err := Load(path, quiet())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := value.Grouping{
		"a": value.Float(3.14),
		"b": value.NewIntArray([]int{2, 2}, []int64{1, 2, 3, 4}),
		"c": &value.Table{Columns: []value.Column{
			&value.IntColumn{ColName: "x", Values: []int64{1, 2}},
			value.NewStringColumn("y", []string{"foo", "NaN"}, nil),
		}},
	}
	if diff := cmp.Diff(want, res.Value, equateEmpty); diff != "" {
		t.Errorf("Load (-want +got):\n%s", diff)
	}
}

func TestOrderedMappingKeepsInsertionOrder(t *testing.T) {
	m := &value.OrderedMapping{}
	for _, label := range []string{"b", "a", "c"} {
		m.Append(label, label+"1")
	}
	var buf bytes.Buffer
	if err := Encode(&buf, value.Grouping{"m": m}, quiet()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := Decode(&buf, quiet())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := res.Value["m"].(*value.OrderedMapping)
	if diff := cmp.Diff([]string{"b", "a", "c"}, got.Labels()); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if vs, _ := got.Get("a"); !cmp.Equal(vs, []string{"a1"}) {
		t.Errorf("Get(a) = %v", vs)
	}
}

func TestOrderedMappingWithoutValues(t *testing.T) {
	m := &value.OrderedMapping{}
	m.Append("only")
	m.Append("labels")
	var buf bytes.Buffer
	if err := Encode(&buf, value.Grouping{"m": m}, quiet()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := Decode(&buf, quiet())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(m, res.Value["m"], equateEmpty); diff != "" {
		t.Errorf("mapping (-want +got):\n%s", diff)
	}
}

func TestRaggedOrderedMappingRejected(t *testing.T) {
	m := &value.OrderedMapping{}
	m.Append("a", "1", "2")
	m.Append("b", "1")
	err := Encode(io.Discard, value.Grouping{"m": m}, quiet())
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("Encode() error = %v, want INVALID_INPUT", err)
	}
}

func TestMetadataMirrorsTree(t *testing.T) {
	meta, err := BuildMeta(sampleValue())
	if err != nil {
		t.Fatalf("BuildMeta: %v", err)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := map[string]any{
		"a":   "scalar",
		"b":   "array",
		"c":   []any{[]any{"x", "int64"}, []any{"y", "string"}},
		"ids": "array",
		"meta": map[string]any{
			"name":    "scalar",
			"count":   "scalar",
			"enabled": "scalar",
			"tickers": "sequence",
			"fields":  "ordered_mapping",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("metadata JSON (-want +got):\n%s", diff)
	}

	var back Meta
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal Meta: %v", err)
	}
	wantPaths := []string{"a", "b", "c", "ids", "meta/count", "meta/enabled", "meta/fields", "meta/name", "meta/tickers"}
	if diff := cmp.Diff(wantPaths, back.Paths()); diff != "" {
		t.Errorf("Paths (-want +got):\n%s", diff)
	}
	if m, ok := back.Lookup("meta/tickers"); !ok || m.Tag != value.TagSequence {
		t.Errorf("Lookup(meta/tickers) = %+v, %v", m, ok)
	}
	if _, ok := back.Lookup("meta/missing"); ok {
		t.Error("Lookup(meta/missing) should fail")
	}
}

func TestBuildMetaRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		root value.Grouping
		code errors.Code
	}{
		{"nil node", value.Grouping{"a": nil}, errors.ErrCodeInvalidInput},
		{"empty key", value.Grouping{"": value.Int(1)}, errors.ErrCodeInvalidKey},
		{"slash key", value.Grouping{"a/b": value.Int(1)}, errors.ErrCodeInvalidKey},
		{"nested bad key", value.Grouping{"g": value.Grouping{"x\ny": value.Int(1)}}, errors.ErrCodeInvalidKey},
		{"ragged table", value.Grouping{"t": &value.Table{Columns: []value.Column{
			&value.IntColumn{ColName: "x", Values: []int64{1, 2}},
			&value.IntColumn{ColName: "y", Values: []int64{1}},
		}}}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildMeta(tt.root)
			if !errors.Is(err, tt.code) {
				t.Errorf("BuildMeta() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestUnregisteredNodeFailsSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lgc")
	err := Save(path, value.Grouping{"d": dateNode{"2024-01-31"}}, quiet())
	if !errors.Is(err, errors.ErrCodeUnregisteredType) {
		t.Fatalf("Save() error = %v, want UNREGISTERED_TYPE", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Errorf("destination should not exist after failed save, stat err = %v", statErr)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 0 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestFailedSaveKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.lgc")
	if err := Save(path, value.Grouping{"a": value.Int(1)}, quiet()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	bad := &value.OrderedMapping{Entries: []value.Entry{{Label: "a", Values: []string{"1"}}, {Label: "b"}}}
	if err := Save(path, value.Grouping{"a": value.Int(2), "m": bad}, quiet()); err == nil {
		t.Fatal("Save() should fail on ragged mapping")
	}
	res, err := Load(path, quiet())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(value.Grouping{"a": value.Int(1)}, res.Value); diff != "" {
		t.Errorf("previous file changed (-want +got):\n%s", diff)
	}
}

func TestUnknownTagDegradesToOpaque(t *testing.T) {
	root := value.Grouping{
		"ccy": &value.Opaque{Type: "currency", Values: []string{"EUR", "USD"}},
		"n":   value.Int(3),
	}
	var buf bytes.Buffer
	if err := Encode(&buf, root, quiet()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := Decode(&buf, quiet())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(root, res.Value, equateEmpty); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Degraded{{Path: "ccy", Tag: "currency"}}, res.Manifest.Degraded); diff != "" {
		t.Errorf("degraded (-want +got):\n%s", diff)
	}
	if res.Manifest.Err() != nil {
		t.Errorf("degraded entries are not failures: %v", res.Manifest.Err())
	}
}

type dateNode struct{ day string }

func (dateNode) Tag() value.Tag { return "date" }

func TestCustomTagRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.Register("date",
		func(w *Writer, parent *container.Group, key string, n value.Node) error {
			return parent.CreateDataset(key, container.NewString([]int{1}, []string{n.(dateNode).day}))
		},
		func(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
			ds, _ := parent.Dataset(key)
			cells, err := ds.Strings()
			if err != nil {
				return nil, err
			}
			return dateNode{cells[0]}, nil
		},
	)
	if !reg.Has("date") || NewRegistry().Has("date") {
		t.Fatal("Register should only affect its own registry")
	}

	root := value.Grouping{"asof": dateNode{"2024-01-31"}}
	opts := quiet()
	opts.Registry = reg
	var buf bytes.Buffer
	if err := Encode(&buf, root, opts); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data := buf.Bytes()

	res, err := Decode(bytes.NewReader(data), opts)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(root, res.Value, cmp.AllowUnexported(dateNode{})); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}

	// Without the strategy the same bytes degrade instead of failing.
	res, err = Decode(bytes.NewReader(data), quiet())
	if err != nil {
		t.Fatalf("Decode without registration: %v", err)
	}
	want := &value.Opaque{Type: "date", Values: []string{"2024-01-31"}}
	if diff := cmp.Diff(want, res.Value["asof"], equateEmpty); diff != "" {
		t.Errorf("opaque (-want +got):\n%s", diff)
	}
}

func TestRegistryClone(t *testing.T) {
	base := NewRegistry()
	clone := base.Clone()
	clone.Register("date", nil, nil)
	if base.Has("date") {
		t.Error("Clone should not share strategies with its source")
	}
	if diff := cmp.Diff(value.CoreTags(), base.Tags(), cmpopts.SortSlices(func(a, b value.Tag) bool { return a < b })); diff != "" {
		t.Errorf("core tags (-want +got):\n%s", diff)
	}
}

// encodeRaw writes a hand-built container so loads can be tested against
// contents the writer would never produce.
func encodeRaw(t *testing.T, meta string, build func(g *container.Group)) []byte {
	t.Helper()
	g := container.NewGroup()
	if meta != "" {
		g.SetAttr(MetadataKey, meta)
	}
	build(g)
	var buf bytes.Buffer
	if err := container.Encode(&buf, g, container.Options{}); err != nil {
		t.Fatalf("container.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestMetadataErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		meta string
	}{
		{"missing", ""},
		{"not json", "{not json"},
		{"root not grouping", `"scalar"`},
		{"null child", `{"a":null}`},
		{"bad column pair", `{"t":[["x"]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeRaw(t, tt.meta, func(*container.Group) {})
			_, err := Decode(bytes.NewReader(data), quiet())
			if !errors.Is(err, errors.ErrCodeFormat) {
				t.Errorf("Decode() error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func brokenContainer(t *testing.T) []byte {
	return encodeRaw(t, `{"good":"scalar","gone":"scalar","t":[["x","int64"],["y","float64"]]}`, func(g *container.Group) {
		ds := container.NewString([]int{1}, []string{"7"})
		ds.SetAttr(attrKind, string(value.KindInt))
		if err := g.CreateDataset("good", ds); err != nil {
			t.Fatal(err)
		}
		tg, err := g.CreateGroup("t")
		if err != nil {
			t.Fatal(err)
		}
		if err := tg.CreateDataset("x", container.NewInt64([]int{2}, []int64{1, 2})); err != nil {
			t.Fatal(err)
		}
		if err := tg.CreateDataset("y", container.NewString([]int{2}, []string{"1.5", "abc"})); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLoadIsolatesFailures(t *testing.T) {
	res, err := Decode(bytes.NewReader(brokenContainer(t)), quiet())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := value.Grouping{
		"good": value.Int(7),
		"t": &value.Table{Columns: []value.Column{
			&value.IntColumn{ColName: "x", Values: []int64{1, 2}},
		}},
	}
	if diff := cmp.Diff(want, res.Value); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}

	var paths []string
	for _, f := range res.Manifest.Failures {
		paths = append(paths, f.Path)
	}
	if diff := cmp.Diff([]string{"gone", "t/y"}, paths); diff != "" {
		t.Errorf("failure paths (-want +got):\n%s", diff)
	}
	if !errors.Is(res.Manifest.Failures[0].Err, errors.ErrCodeNotFound) {
		t.Errorf("gone: %v, want NOT_FOUND", res.Manifest.Failures[0].Err)
	}
	if !errors.Is(res.Manifest.Failures[1].Err, errors.ErrCodeColumnCast) {
		t.Errorf("t/y: %v, want COLUMN_CAST", res.Manifest.Failures[1].Err)
	}
	if !res.Manifest.Failed("t/y") || res.Manifest.Failed("t/x") || res.Manifest.Failed("good") {
		t.Error("Failed() disagrees with recorded failures")
	}
	if !errors.Is(res.Manifest.Err(), errors.ErrCodeColumnCast) {
		t.Errorf("Manifest.Err() = %v", res.Manifest.Err())
	}
}

func TestStrictLoadAborts(t *testing.T) {
	opts := quiet()
	opts.Strict = true
	_, err := Decode(bytes.NewReader(brokenContainer(t)), opts)
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("Decode() error = %v, want NOT_FOUND for the first failing key", err)
	}
}

func TestCastColumn(t *testing.T) {
	tests := []struct {
		name    string
		typ     value.ColumnType
		ds      *container.Dataset
		want    value.Column
		wantErr bool
	}{
		{"float from int", value.ColumnFloat, container.NewInt64([]int{2}, []int64{1, 2}),
			&value.FloatColumn{ColName: "c", Values: []float64{1, 2}}, false},
		{"float from text", value.ColumnFloat, container.NewString([]int{1}, []string{"2.5"}),
			&value.FloatColumn{ColName: "c", Values: []float64{2.5}}, false},
		{"int from integral float", value.ColumnInt, container.NewFloat64([]int{2}, []float64{3, -4}),
			&value.IntColumn{ColName: "c", Values: []int64{3, -4}}, false},
		{"int from fractional float", value.ColumnInt, container.NewFloat64([]int{1}, []float64{3.5}), nil, true},
		{"int from text", value.ColumnInt, container.NewString([]int{1}, []string{"12"}),
			&value.IntColumn{ColName: "c", Values: []int64{12}}, false},
		{"bool from text", value.ColumnBool, container.NewString([]int{2}, []string{"true", "false"}),
			&value.BoolColumn{ColName: "c", Values: []bool{true, false}}, false},
		{"bool from float", value.ColumnBool, container.NewFloat64([]int{1}, []float64{1}), nil, true},
		{"string from float", value.ColumnString, container.NewFloat64([]int{1}, []float64{1.5}),
			value.NewStringColumn("c", []string{"1.5"}, nil), false},
		{"unknown type", "decimal", container.NewFloat64([]int{1}, []float64{1}), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := castColumn(ColumnMeta{Name: "c", Type: tt.typ}, tt.ds)
			if (err != nil) != tt.wantErr {
				t.Fatalf("castColumn() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("castColumn() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.lgc")
	if err := Save(path, sampleValue(), quiet()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	meta, err := ReadMeta(path)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	c, ok := meta.Lookup("c")
	if !ok || !c.IsTable() {
		t.Fatalf("Lookup(c) = %+v, %v", c, ok)
	}
	want := []ColumnMeta{{Name: "x", Type: value.ColumnInt}, {Name: "y", Type: value.ColumnString}}
	if diff := cmp.Diff(want, c.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}

	if _, err := ReadMeta(filepath.Join(t.TempDir(), "missing.lgc")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("ReadMeta(missing) error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestEmptyValues(t *testing.T) {
	root := value.Grouping{
		"empty":  value.Grouping{},
		"seq":    &value.Sequence{},
		"text":   value.Text(""),
		"table":  &value.Table{},
		"matrix": value.NewFloatArray([]int{0, 3}, nil),
	}
	for _, c := range []container.Compression{container.CompressionNone, container.CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			opts := quiet()
			opts.Compression = c
			var buf bytes.Buffer
			if err := Encode(&buf, root, opts); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			res, err := Decode(&buf, opts)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(root, res.Value, equateEmpty); diff != "" {
				t.Errorf("value (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNonFiniteAndMixedKindsRoundTrip(t *testing.T) {
	root := value.Grouping{
		"nan": value.Float(math.NaN()),
		"inf": value.Float(math.Inf(-1)),
		"quotes": &value.Table{Columns: []value.Column{
			&value.FloatColumn{ColName: "px", Values: []float64{1.5, math.NaN(), math.Inf(1), math.Inf(-1)}},
			&value.BoolColumn{ColName: "live", Values: []bool{true, false, true, false}},
		}},
		"mixed": &value.Sequence{Items: []value.Scalar{
			value.Int(1), value.Float(2.5), value.Text("x"), value.Bool(true), value.Float(math.NaN()),
		}},
	}

	var buf bytes.Buffer
	if err := Encode(&buf, root, quiet()); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	res, err := Decode(&buf, quiet())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !res.Manifest.OK() {
		t.Fatalf("manifest not OK: %+v", res.Manifest)
	}
	if diff := cmp.Diff(root, res.Value, cmpopts.EquateNaNs(), equateEmpty); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestZeroValueWriterAndReader(t *testing.T) {
	root := value.Grouping{
		"a":    value.Int(7),
		"gone": value.Text("never written"),
	}
	meta, err := BuildMeta(root)
	if err != nil {
		t.Fatalf("BuildMeta: %v", err)
	}

	g := container.NewGroup()
	var w Writer
	if err := w.WriteGrouping(g, value.Grouping{"a": root["a"]}); err != nil {
		t.Fatalf("WriteGrouping: %v", err)
	}

	var r Reader
	got, err := r.ReadGrouping(g, meta)
	if err != nil {
		t.Fatalf("ReadGrouping: %v", err)
	}
	if diff := cmp.Diff(value.Grouping{"a": value.Int(7)}, got); diff != "" {
		t.Errorf("value (-want +got):\n%s", diff)
	}
	if m := r.Manifest(); !m.Failed("gone") || !errors.Is(m.Err(), errors.ErrCodeNotFound) {
		t.Errorf("manifest = %+v, want NOT_FOUND for gone", m)
	}
}
