package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/sariayt/LGC-EQTY/internal/config"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/marketdata"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
	"github.com/sariayt/LGC-EQTY/pkg/sheet"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// env is an isolated workspace with its own config file and cache directory.
type env struct {
	dir      string
	cacheDir string
	config   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv(config.EnvCacheDir, "")
	e := &env{dir: t.TempDir()}
	e.cacheDir = filepath.Join(e.dir, "cache")
	e.config = e.write(t, "config.toml", fmt.Sprintf("[cache]\ndir = %q\n", e.cacheDir))
	return e
}

func (e *env) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func (e *env) path(name string) string { return filepath.Join(e.dir, name) }

// run executes the root command and returns what it printed.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output does not contain %q:\n%s", w, out)
		}
	}
}

const indexCSV = "Index constituents\nISIN,Des,Weight\nXS1,Bond A,0.5\nXS2,Bond B,0.25\n"

func TestImportInspectDump(t *testing.T) {
	e := newEnv(t)
	src := e.write(t, "LGXSTRUU_20240903.csv", indexCSV)
	lgc := e.path("index.lgc")

	out := e.mustRun(t, "import", src, "-o", lgc)
	assertContains(t, out, "Saved container", lgc)

	out = e.mustRun(t, "inspect", lgc)
	assertContains(t, out, "index.lgc", "asOf", "info", "data", "Weight", "float64", "sequence")

	out = e.mustRun(t, "inspect", lgc, "--json")
	assertContains(t, out, `"asOf": "scalar"`, `"string"`)

	out = e.mustRun(t, "inspect", lgc, "data")
	assertContains(t, out, "Des", "table, 3 columns")

	out = e.mustRun(t, "dump", lgc, "data")
	assertContains(t, out, "ISIN", "Bond A", "XS2", "0.25")

	out = e.mustRun(t, "dump", lgc, "asOf")
	assertContains(t, out, "2024-09-03")

	out = e.mustRun(t, "dump", lgc, "info")
	assertContains(t, out, "Index constituents")

	out = e.mustRun(t, "dump", lgc, "/")
	assertContains(t, out, "asOf", "table")

	out = e.mustRun(t, "dump", lgc, "data", "--limit", "1")
	assertContains(t, out, "XS1", "1 more")
	if strings.Contains(out, "XS2") {
		t.Errorf("--limit 1 printed the second row:\n%s", out)
	}

	if _, err := e.run(t, "dump", lgc, "nope"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("dump nope error = %v, want NOT_FOUND", err)
	}
	if _, err := e.run(t, "inspect", lgc, "data/ISIN"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("inspect data/ISIN error = %v, want NOT_FOUND", err)
	}
}

func TestDumpXLSX(t *testing.T) {
	e := newEnv(t)
	lgc := e.path("index.lgc")
	e.mustRun(t, "import", e.write(t, "index.csv", indexCSV), "-o", lgc)

	xlsx := e.path("export.xlsx")
	out := e.mustRun(t, "dump", lgc, "data", "--xlsx", xlsx, "--sheet", "Index")
	assertContains(t, out, "Exported 2 rows")

	s, err := sheet.Load(xlsx, sheet.LoadOptions{Sheet: "Index"})
	if err != nil {
		t.Fatalf("Load(export): %v", err)
	}
	if diff := cmp.Diff([]string{"ISIN", "Des", "Weight"}, s.Table.ColumnNames()); diff != "" {
		t.Errorf("exported columns (-want +got):\n%s", diff)
	}

	if _, err := e.run(t, "dump", lgc, "info", "--xlsx", xlsx); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("dump info --xlsx error = %v, want INVALID_INPUT", err)
	}
}

func TestImportLatestFromDir(t *testing.T) {
	e := newEnv(t)
	downloads := filepath.Join(e.dir, "downloads")
	if err := os.Mkdir(downloads, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{
		"LGXSTRUU_20240801.csv": "ISIN,Weight\nOLD,1\n",
		"LGXSTRUU_20240903.csv": "ISIN,Weight\nNEW,1\n",
		"LGCPTRUU_20240903.csv": "ISIN,Weight\nXS9,1\n",
	} {
		if err := os.WriteFile(filepath.Join(downloads, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	lgc := e.path("both.lgc")
	e.mustRun(t, "import", "--dir", downloads, "--keys", "LGXSTRUU,LGCPTRUU", "-o", lgc)

	res, err := persist.Load(lgc, persist.Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	idx := res.Value["LGXSTRUU"].(value.Grouping)
	isin, _ := idx["data"].(*value.Table).Column("ISIN")
	if got := isin.(*value.StringColumn).Values; !cmp.Equal(got, []string{"NEW"}) {
		t.Errorf("LGXSTRUU ISIN = %v, want the latest file", got)
	}
	if _, ok := res.Value["LGCPTRUU"]; !ok {
		t.Error("LGCPTRUU missing")
	}
}

func TestImportArguments(t *testing.T) {
	e := newEnv(t)
	src := e.write(t, "index.csv", indexCSV)
	tests := []struct {
		name string
		args []string
	}{
		{"file and dir", []string{"import", src, "--dir", e.dir, "--keys", "X", "-o", e.path("a.lgc")}},
		{"dir without keys", []string{"import", "--dir", e.dir, "-o", e.path("a.lgc")}},
		{"nothing", []string{"import", "-o", e.path("a.lgc")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.run(t, tt.args...); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

const historyCSV = `Security,Date,PX_LAST,VOL
A,2024-01-01,1,10
A,2024-01-02,2,20
B,2024-01-01,3,30
C,2024-01-01,9,90
`

func TestFetch(t *testing.T) {
	e := newEnv(t)
	src := e.write(t, "history.csv", historyCSV)
	uni := e.write(t, "universe.csv", "Security ID\nB\n")
	lgc := e.path("fields.lgc")

	out := e.mustRun(t, "fetch", "--source", src, "--securities", "A", "--universe", uni,
		"--fields", "VOL,PX_LAST", "--start", "2024-01-01", "--end", "2024-01-02", "-o", lgc)
	assertContains(t, out, "Saved field data")

	res, err := persist.Load(lgc, persist.Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fd, err := marketdata.FieldDataFrom(res.Value)
	if err != nil {
		t.Fatalf("FieldDataFrom: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, fd.Securities); diff != "" {
		t.Errorf("securities (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"PX_LAST", "VOL"}, fd.Fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	if got := fd.At(1, 0, 1); got != 20 {
		t.Errorf("A VOL on 2024-01-02 = %v, want 20", got)
	}
	if got := fd.At(1, 1, 0); !math.IsNaN(got) {
		t.Errorf("B PX_LAST on 2024-01-02 = %v, want NaN", got)
	}

	entries, err := os.ReadDir(e.cacheDir)
	if err != nil || len(entries) == 0 {
		t.Errorf("no checkpoints written to %s: %v", e.cacheDir, err)
	}

	// Unknown fields are rejected by the source.
	_, err = e.run(t, "fetch", "--source", src, "--securities", "A", "--fields", "BETA",
		"--start", "2024-01-01", "-o", lgc, "--no-cache")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("fetch BETA error = %v, want NOT_FOUND", err)
	}
}

func TestFetchRequest(t *testing.T) {
	now := time.Date(2024, 3, 5, 15, 4, 0, 0, time.UTC)
	opts := fetchOptions{
		securities:  []string{"A"},
		fields:      []string{"BEST_EPS", "PX_LAST"},
		start:       "2024-01-01",
		periodicity: "DAILY",
		overrides:   []string{"BEST_EPS:BEST_FPERIOD_OVERRIDE=1BF", "BEST_EPS:BEST_DATA_SOURCE_OVERRIDE=BLI"},
	}
	got, err := opts.request(now)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	want := marketdata.Request{
		Securities:  []string{"A"},
		Fields:      []string{"BEST_EPS", "PX_LAST"},
		Start:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Periodicity: "DAILY",
		Overrides: map[string][]marketdata.Override{"BEST_EPS": {
			{Field: "BEST_FPERIOD_OVERRIDE", Value: "1BF"},
			{Field: "BEST_DATA_SOURCE_OVERRIDE", Value: "BLI"},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request (-want +got):\n%s", diff)
	}

	for _, bad := range []fetchOptions{
		{start: "01/01/2024"},
		{start: "2024-01-01", end: "soon"},
		{start: "2024-01-01", overrides: []string{"BEST_EPS=1BF"}},
		{start: "2024-01-01", overrides: []string{":X=1"}},
	} {
		if _, err := bad.request(now); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("request(%+v) error = %v, want INVALID_INPUT", bad, err)
		}
	}
}

func TestCacheCommands(t *testing.T) {
	e := newEnv(t)

	out := e.mustRun(t, "cache", "path")
	if strings.TrimSpace(out) != e.cacheDir {
		t.Errorf("cache path = %q, want %q", out, e.cacheDir)
	}

	out = e.mustRun(t, "cache", "clear")
	assertContains(t, out, "Cache is empty")

	src := e.write(t, "history.csv", historyCSV)
	e.mustRun(t, "fetch", "--source", src, "--securities", "A", "--fields", "PX_LAST",
		"--start", "2024-01-01", "--end", "2024-01-02", "-o", e.path("f.lgc"))

	out = e.mustRun(t, "cache", "clear")
	// One batch checkpoint and the assembled result.
	assertContains(t, out, "Cleared 2 cached entries")

	e.config = e.write(t, "redis.toml", "[cache]\nbackend = \"redis\"\n")
	if _, err := e.run(t, "cache", "path"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("cache path on redis error = %v, want UNSUPPORTED", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out := newEnv(t).mustRun(t, "version")
	assertContains(t, out, "version:", "commit:")
}

func TestLookupNode(t *testing.T) {
	root := value.Grouping{
		"a": value.Grouping{"b": value.Int(1)},
		"c": value.Text("x"),
	}
	n, err := lookupNode(root, "/a/b/")
	if err != nil || n != value.Node(value.Int(1)) {
		t.Errorf("lookupNode(a/b) = %v, %v", n, err)
	}
	if n, err := lookupNode(root, ""); err != nil || n.Tag() != value.TagGrouping {
		t.Errorf("lookupNode(root) = %v, %v", n, err)
	}
	if _, err := lookupNode(root, "c/d"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("lookupNode(c/d) error = %v, want NOT_FOUND", err)
	}
}

func TestPrintNode(t *testing.T) {
	tests := []struct {
		name string
		node value.Node
		want []string
	}{
		{"array", value.NewFloatArray([]int{2, 2}, []float64{1, 2, 3, math.NaN()}), []string{"float64", "[2 2]", "1 2 3 NaN"}},
		{"ordered mapping", &value.OrderedMapping{Entries: []value.Entry{{Label: "PX_LAST", Values: []string{"Last Price"}}}}, []string{"label", "PX_LAST", "Last Price"}},
		{"opaque", &value.Opaque{Type: "date", Values: []string{"2024-09-03"}}, []string{`"date"`, "2024-09-03"}},
		{"sequence", value.Strings("x", "y"), []string{"x\ny"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printNode(&buf, tt.node, 0); err != nil {
				t.Fatalf("printNode: %v", err)
			}
			assertContains(t, buf.String(), tt.want...)
		})
	}
}
