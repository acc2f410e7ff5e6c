package persist

import (
	"encoding/json"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/observability"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// MetadataKey is the root attribute holding the JSON metadata tree.
const MetadataKey = "_metadata"

// Sentinel replaces missing string cells in table columns. Readers return it
// as ordinary text.
const Sentinel = "NaN"

// Options configures [Save], [Load] and their stream variants. The zero value
// uses the core registry, the default compression, per-key isolation and the
// default logger.
type Options struct {
	Registry    *Registry
	Compression container.Compression
	// Strict aborts a load at the first entry or column that fails.
	Strict bool
	Logger *log.Logger
}

func (o Options) registry() *Registry {
	if o.Registry == nil {
		return defaultRegistry
	}
	return o.Registry
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// defaultRegistry is shared and never mutated. Callers needing extra tags
// build their own with NewRegistry.
// It is assigned in init to break the initialization cycle through
// Reader.defaults and Writer.defaults.
var defaultRegistry *Registry

func init() { defaultRegistry = NewRegistry() }

// Result is the outcome of a load.
type Result struct {
	Value    value.Grouping
	Meta     *Meta
	Manifest *Manifest
}

// Save writes root to path. The destination is replaced atomically: if any
// entry fails to write, the previous file at path, if one exists, is left as
// it was.
func Save(path string, root value.Grouping, opts Options) (err error) {
	start := time.Now()
	entries := 0
	defer func() { observability.Persist().OnSave(path, entries, time.Since(start), err) }()

	meta, err := BuildMeta(root)
	if err != nil {
		return err
	}
	f, err := container.Create(path, container.Options{Compression: opts.Compression})
	if err != nil {
		return err
	}
	defer f.Close()

	if entries, err = write(f.Root(), root, meta, opts); err != nil {
		return err
	}
	if err := f.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "commit %s", path)
	}
	opts.logger().Info("saved container", "path", path, "entries", entries)
	return nil
}

// Encode writes root as a container stream to w.
func Encode(w io.Writer, root value.Grouping, opts Options) error {
	meta, err := BuildMeta(root)
	if err != nil {
		return err
	}
	g := container.NewGroup()
	if _, err := write(g, root, meta, opts); err != nil {
		return err
	}
	return container.Encode(w, g, container.Options{Compression: opts.Compression})
}

func write(g *container.Group, root value.Grouping, meta *Meta, opts Options) (int, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "marshal metadata")
	}
	w := &Writer{Registry: opts.registry(), Logger: opts.logger()}
	if err := w.WriteGrouping(g, root); err != nil {
		return w.n, err
	}
	g.SetAttr(MetadataKey, string(data))
	return w.n, nil
}

// Load reads the container at path. Unless opts.Strict is set, an entry or
// table column that cannot be reconstructed is recorded in the result's
// manifest and omitted from the value; the rest is returned. A missing or
// unparsable metadata attribute always fails the whole load.
func Load(path string, opts Options) (res *Result, err error) {
	start := time.Now()
	defer func() {
		failures := 0
		if res != nil {
			failures = len(res.Manifest.Failures)
		}
		observability.Persist().OnLoad(path, failures, time.Since(start), err)
	}()

	f, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err = read(f.Root(), opts)
	if err != nil {
		return nil, err
	}
	logger := opts.logger()
	if n := len(res.Manifest.Failures); n > 0 {
		logger.Warn("loaded container with failures", "path", path, "failures", n)
	} else {
		logger.Info("loaded container", "path", path, "entries", len(res.Meta.Paths()))
	}
	return res, nil
}

// Decode reads a container stream written by [Encode].
func Decode(r io.Reader, opts Options) (*Result, error) {
	g, err := container.Decode(r)
	if err != nil {
		return nil, err
	}
	return read(g, opts)
}

func read(g *container.Group, opts Options) (*Result, error) {
	meta, err := metaFrom(g)
	if err != nil {
		return nil, err
	}
	rd := &Reader{
		Registry: opts.registry(),
		Logger:   opts.logger(),
		Strict:   opts.Strict,
	}
	v, err := rd.ReadGrouping(g, meta)
	if err != nil {
		return nil, err
	}
	return &Result{Value: v, Meta: meta, Manifest: rd.Manifest()}, nil
}

// ReadMeta returns the metadata tree of the container at path without
// reconstructing any values.
func ReadMeta(path string) (*Meta, error) {
	f, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return metaFrom(f.Root())
}

func metaFrom(g *container.Group) (*Meta, error) {
	raw, ok := g.Attr(MetadataKey)
	if !ok {
		return nil, errors.New(errors.ErrCodeFormat, "container has no %q attribute", MetadataKey)
	}
	var meta Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "parse %s", MetadataKey)
	}
	if !meta.IsGrouping() {
		return nil, errors.New(errors.ErrCodeFormat, "%s root is %q, want a grouping", MetadataKey, meta.Tag)
	}
	return &meta, nil
}
