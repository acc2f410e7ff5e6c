package persist

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/sariayt/LGC-EQTY/pkg/container"
	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Dataset attributes written next to text-encoded leaves so their scalar
// kinds survive the round trip.
const (
	attrKind  = "kind"
	attrKinds = "kinds"
)

// Writer walks a value and persists it into a container group. Custom
// [WriterFunc]s receive the Writer so they can recurse through
// [Writer.WriteEntry]. A nil Registry or Logger selects the core tags and
// log.Default().
type Writer struct {
	Registry *Registry
	Logger   *log.Logger

	path string
	n    int
}

// WriteEntry resolves the writer for n and stores it under key in parent.
func (w *Writer) WriteEntry(parent *container.Group, key string, n value.Node) error {
	w.defaults()
	fn, err := w.Registry.ResolveWriter(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", joinPath(w.path, key), err)
	}

	prev := w.path
	w.path = joinPath(prev, key)
	defer func() { w.path = prev }()

	if err := fn(w, parent, key, n); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.n++
	w.Logger.Debug("wrote entry", "path", w.path, "tag", n.Tag())
	return nil
}

// WriteGrouping writes every entry of g into parent, in key order.
func (w *Writer) WriteGrouping(parent *container.Group, g value.Grouping) error {
	for _, key := range g.Keys() {
		if err := w.WriteEntry(parent, key, g[key]); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the path of the entry currently being written.
func (w *Writer) Path() string { return w.path }

func (w *Writer) defaults() {
	if w.Registry == nil {
		w.Registry = defaultRegistry
	}
	if w.Logger == nil {
		w.Logger = log.Default()
	}
}

func writeScalar(w *Writer, parent *container.Group, key string, n value.Node) error {
	s, ok := n.(value.Scalar)
	if !ok {
		return unexpectedNode(n, value.TagScalar)
	}
	ds := container.NewString([]int{1}, []string{s.String()})
	ds.SetAttr(attrKind, string(s.Kind))
	return parent.CreateDataset(key, ds)
}

func writeArray(w *Writer, parent *container.Group, key string, n value.Node) error {
	a, ok := n.(*value.Array)
	if !ok {
		return unexpectedNode(n, value.TagArray)
	}
	if err := a.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "array")
	}
	shape := append([]int(nil), a.Shape...)
	if a.DType == value.Int64 {
		return parent.CreateDataset(key, container.NewInt64(shape, a.Ints))
	}
	return parent.CreateDataset(key, container.NewFloat64(shape, a.Floats))
}

func writeSequence(w *Writer, parent *container.Group, key string, n value.Node) error {
	seq, ok := n.(*value.Sequence)
	if !ok {
		return unexpectedNode(n, value.TagSequence)
	}
	kinds := make([]value.ScalarKind, len(seq.Items))
	for i, it := range seq.Items {
		kinds[i] = it.Kind
	}
	data, err := json.Marshal(kinds)
	if err != nil {
		return err
	}
	ds := container.NewString([]int{seq.Len()}, seq.Texts())
	ds.SetAttr(attrKinds, string(data))
	return parent.CreateDataset(key, ds)
}

// writeOrderedMapping flattens m into rows of [label, values...]. Row order is
// the only record of insertion order.
func writeOrderedMapping(w *Writer, parent *container.Group, key string, n value.Node) error {
	m, ok := n.(*value.OrderedMapping)
	if !ok {
		return unexpectedNode(n, value.TagOrderedMapping)
	}
	width := m.Width()
	if width < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "ordered mapping rows have unequal lengths")
	}
	cells := make([]string, 0, len(m.Entries)*(width+1))
	for _, e := range m.Entries {
		cells = append(cells, e.Label)
		cells = append(cells, e.Values...)
	}
	return parent.CreateDataset(key, container.NewString([]int{len(m.Entries), width + 1}, cells))
}

func writeGrouping(w *Writer, parent *container.Group, key string, n value.Node) error {
	g, ok := n.(value.Grouping)
	if !ok {
		return unexpectedNode(n, value.TagGrouping)
	}
	child, err := parent.CreateGroup(key)
	if err != nil {
		return err
	}
	return w.WriteGrouping(child, g)
}

// writeTable stores one dataset per column. Missing string cells are written
// as [Sentinel], which a reader cannot tell apart from the literal text.
func writeTable(w *Writer, parent *container.Group, key string, n value.Node) error {
	t, ok := n.(*value.Table)
	if !ok {
		return unexpectedNode(n, value.TagTable)
	}
	if err := t.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "table")
	}
	group, err := parent.CreateGroup(key)
	if err != nil {
		return err
	}
	rows := []int{t.NumRows()}
	for _, c := range t.Columns {
		var ds *container.Dataset
		switch c := c.(type) {
		case *value.FloatColumn:
			ds = container.NewFloat64(rows, c.Values)
		case *value.IntColumn:
			ds = container.NewInt64(rows, c.Values)
		case *value.BoolColumn:
			ds = container.NewBool(rows, c.Values)
		case *value.StringColumn:
			cells := c.Values
			if c.HasMissing() {
				cells = make([]string, len(c.Values))
				for i, v := range c.Values {
					if c.IsMissing(i) {
						v = Sentinel
					}
					cells[i] = v
				}
			}
			ds = container.NewString(rows, cells)
		default:
			return errors.New(errors.ErrCodeUnregisteredType, "column %q has unsupported type %T", c.Name(), c)
		}
		if err := group.CreateDataset(c.Name(), ds); err != nil {
			return err
		}
	}
	return nil
}

func writeOpaque(w *Writer, parent *container.Group, key string, n value.Node) error {
	o, ok := n.(*value.Opaque)
	if !ok {
		return unexpectedNode(n, n.Tag())
	}
	ds := container.NewString([]int{len(o.Values)}, o.Values)
	for k, v := range o.Attrs {
		ds.SetAttr(k, v)
	}
	return parent.CreateDataset(key, ds)
}

func unexpectedNode(n value.Node, tag value.Tag) error {
	return errors.New(errors.ErrCodeInternal, "writer for %q received %T", tag, n)
}
