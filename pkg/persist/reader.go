package persist

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Reader reconstructs a value from a container, navigating purely by the
// metadata tree. Custom [ReaderFunc]s receive the Reader so they can recurse
// through [Reader.ReadEntry]. The zero value reads the core tags, logs to
// log.Default() and isolates failures; see [Reader.Manifest].
type Reader struct {
	Registry *Registry
	Logger   *log.Logger
	// Strict makes the first per-key failure abort the whole load instead of
	// being recorded in the manifest.
	Strict bool

	manifest *Manifest
	path     string
}

// ReadEntry reads the node stored under key in parent using the reader
// registered for meta's tag, or the opaque-scalar reader for unknown tags.
func (r *Reader) ReadEntry(parent *container.Group, key string, meta *Meta) (value.Node, error) {
	r.defaults()
	prev := r.path
	r.path = joinPath(prev, key)
	defer func() { r.path = prev }()

	fn, ok := r.Registry.ResolveReader(meta.Tag)
	if !ok {
		r.Logger.Warn("unregistered tag, reading as opaque", "path", r.path, "tag", meta.Tag)
		r.manifest.degrade(r.path, meta.Tag)
	}
	n, err := fn(r, parent, key, meta)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	return n, nil
}

// ReadGrouping reads every key listed in meta from g. Outside strict mode a
// key that fails is recorded in the manifest and left out of the result.
func (r *Reader) ReadGrouping(g *container.Group, meta *Meta) (value.Grouping, error) {
	out := make(value.Grouping, len(meta.Children))
	for _, key := range meta.Keys() {
		n, err := r.ReadEntry(g, key, meta.Children[key])
		if err != nil {
			if err := r.isolate(joinPath(r.path, key), err); err != nil {
				return nil, err
			}
			continue
		}
		out[key] = n
	}
	return out, nil
}

// Path returns the path of the entry currently being read.
func (r *Reader) Path() string { return r.path }

// Manifest returns the failures and degraded entries recorded so far.
func (r *Reader) Manifest() *Manifest {
	r.defaults()
	return r.manifest
}

func (r *Reader) defaults() {
	if r.Registry == nil {
		r.Registry = defaultRegistry
	}
	if r.Logger == nil {
		r.Logger = log.Default()
	}
	if r.manifest == nil {
		r.manifest = &Manifest{}
	}
}

// isolate records err against path, or returns it in strict mode.
func (r *Reader) isolate(path string, err error) error {
	if r.Strict {
		return err
	}
	r.defaults()
	r.Logger.Debug("isolated read failure", "path", path, "err", err)
	r.manifest.fail(path, err)
	return nil
}

func dataset(parent *container.Group, key string) (*container.Dataset, error) {
	ds, ok := parent.Dataset(key)
	if !ok {
		if _, isGroup := parent.Group(key); isGroup {
			return nil, errors.New(errors.ErrCodeFormat, "entry %q is a group, want a dataset", key)
		}
		return nil, errors.New(errors.ErrCodeNotFound, "entry %q listed in metadata but missing from container", key)
	}
	return ds, nil
}

func group(parent *container.Group, key string) (*container.Group, error) {
	g, ok := parent.Group(key)
	if !ok {
		if _, isData := parent.Dataset(key); isData {
			return nil, errors.New(errors.ErrCodeFormat, "entry %q is a dataset, want a group", key)
		}
		return nil, errors.New(errors.ErrCodeNotFound, "entry %q listed in metadata but missing from container", key)
	}
	return g, nil
}

func readScalar(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	ds, err := dataset(parent, key)
	if err != nil {
		return nil, err
	}
	cells, err := ds.Strings()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "scalar")
	}
	if len(cells) != 1 {
		return nil, errors.New(errors.ErrCodeFormat, "scalar dataset holds %d elements", len(cells))
	}
	kind, _ := ds.Attr(attrKind)
	s, err := value.ParseScalar(value.ScalarKind(kind), cells[0])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "scalar")
	}
	return s, nil
}

func readArray(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	ds, err := dataset(parent, key)
	if err != nil {
		return nil, err
	}
	shape := append([]int(nil), ds.Shape...)
	switch ds.DType {
	case container.Float64:
		vs, _ := ds.Float64s()
		return value.NewFloatArray(shape, vs), nil
	case container.Int64:
		vs, _ := ds.Int64s()
		return value.NewIntArray(shape, vs), nil
	default:
		return nil, errors.New(errors.ErrCodeFormat, "array stored as %s", ds.DType)
	}
}

func readSequence(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	ds, err := dataset(parent, key)
	if err != nil {
		return nil, err
	}
	cells, err := ds.Strings()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "sequence")
	}
	var kinds []value.ScalarKind
	if raw, ok := ds.Attr(attrKinds); ok {
		if err := json.Unmarshal([]byte(raw), &kinds); err != nil {
			return nil, errors.Wrap(errors.ErrCodeFormat, err, "sequence kinds")
		}
		if len(kinds) != len(cells) {
			return nil, errors.New(errors.ErrCodeFormat, "sequence has %d items but %d kinds", len(cells), len(kinds))
		}
	}
	seq := &value.Sequence{Items: make([]value.Scalar, len(cells))}
	for i, c := range cells {
		kind := value.KindString
		if kinds != nil {
			kind = kinds[i]
		}
		s, err := value.ParseScalar(kind, c)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeFormat, err, "sequence item %d", i)
		}
		seq.Items[i] = s
	}
	return seq, nil
}

// readOrderedMapping rebuilds entries from row position.
func readOrderedMapping(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	ds, err := dataset(parent, key)
	if err != nil {
		return nil, err
	}
	if len(ds.Shape) != 2 || ds.Shape[1] < 1 {
		return nil, errors.New(errors.ErrCodeFormat, "ordered mapping stored with shape %v", ds.Shape)
	}
	cells, err := ds.Strings()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "ordered mapping")
	}
	rows, width := ds.Shape[0], ds.Shape[1]
	m := &value.OrderedMapping{Entries: make([]value.Entry, rows)}
	for i := range rows {
		row := cells[i*width : (i+1)*width]
		e := value.Entry{Label: row[0]}
		if width > 1 {
			e.Values = append([]string(nil), row[1:]...)
		}
		m.Entries[i] = e
	}
	return m, nil
}

func readGrouping(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	g, err := group(parent, key)
	if err != nil {
		return nil, err
	}
	return r.ReadGrouping(g, meta)
}

// readTable reconstructs columns in recorded order. Outside strict mode a
// column that cannot be cast is dropped and recorded in the manifest.
func readTable(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	g, err := group(parent, key)
	if err != nil {
		return nil, err
	}
	t := &value.Table{Columns: make([]value.Column, 0, len(meta.Columns))}
	for _, cm := range meta.Columns {
		col, err := readColumn(g, cm)
		if err != nil {
			if err := r.isolate(joinPath(r.path, cm.Name), err); err != nil {
				return nil, err
			}
			continue
		}
		t.Columns = append(t.Columns, col)
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFormat, err, "table")
	}
	return t, nil
}

func readColumn(g *container.Group, cm ColumnMeta) (value.Column, error) {
	ds, err := dataset(g, cm.Name)
	if err != nil {
		return nil, err
	}
	col, err := castColumn(cm, ds)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeColumnCast, err, "column %q as %s", cm.Name, cm.Type)
	}
	return col, nil
}

// castColumn honors the recorded column type against the stored encoding.
// Numeric types are read natively when stored natively and parsed when
// stored as text; text columns accept any storage.
func castColumn(cm ColumnMeta, ds *container.Dataset) (value.Column, error) {
	switch cm.Type {
	case value.ColumnString:
		return value.NewStringColumn(cm.Name, ds.Text(), nil), nil

	case value.ColumnFloat:
		switch ds.DType {
		case container.Float64:
			vs, _ := ds.Float64s()
			return &value.FloatColumn{ColName: cm.Name, Values: vs}, nil
		case container.Int64:
			ints, _ := ds.Int64s()
			vs := make([]float64, len(ints))
			for i, v := range ints {
				vs[i] = float64(v)
			}
			return &value.FloatColumn{ColName: cm.Name, Values: vs}, nil
		case container.String:
			cells, _ := ds.Strings()
			vs := make([]float64, len(cells))
			for i, c := range cells {
				f, err := strconv.ParseFloat(c, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				vs[i] = f
			}
			return &value.FloatColumn{ColName: cm.Name, Values: vs}, nil
		}

	case value.ColumnInt:
		switch ds.DType {
		case container.Int64:
			vs, _ := ds.Int64s()
			return &value.IntColumn{ColName: cm.Name, Values: vs}, nil
		case container.Float64:
			floats, _ := ds.Float64s()
			vs := make([]int64, len(floats))
			for i, f := range floats {
				if f != math.Trunc(f) || math.IsInf(f, 0) {
					return nil, fmt.Errorf("row %d: %v is not integral", i, f)
				}
				vs[i] = int64(f)
			}
			return &value.IntColumn{ColName: cm.Name, Values: vs}, nil
		case container.String:
			cells, _ := ds.Strings()
			vs := make([]int64, len(cells))
			for i, c := range cells {
				v, err := strconv.ParseInt(c, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				vs[i] = v
			}
			return &value.IntColumn{ColName: cm.Name, Values: vs}, nil
		}

	case value.ColumnBool:
		switch ds.DType {
		case container.Bool:
			vs, _ := ds.Bools()
			return &value.BoolColumn{ColName: cm.Name, Values: vs}, nil
		case container.String:
			cells, _ := ds.Strings()
			vs := make([]bool, len(cells))
			for i, c := range cells {
				v, err := strconv.ParseBool(c)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				vs[i] = v
			}
			return &value.BoolColumn{ColName: cm.Name, Values: vs}, nil
		}

	default:
		return nil, fmt.Errorf("unknown column type %q", cm.Type)
	}
	return nil, fmt.Errorf("stored as %s", ds.DType)
}

// readOpaque is the fallback for unregistered tags. It keeps whatever text
// the entry holds so nothing is silently discarded, at the cost of type
// fidelity.
func readOpaque(r *Reader, parent *container.Group, key string, meta *Meta) (value.Node, error) {
	entry, ok := parent.Entry(key)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "entry %q listed in metadata but missing from container", key)
	}
	o := &value.Opaque{Type: meta.Tag, Attrs: entry.Attrs()}
	if ds, ok := entry.(*container.Dataset); ok {
		o.Values = ds.Text()
	}
	return o, nil
}
