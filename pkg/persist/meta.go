package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// ColumnMeta records one table column: its name and element type.
type ColumnMeta struct {
	Name string
	Type value.ColumnType
}

// Meta is the metadata tree stored alongside a container's data. It mirrors
// the data tree path for path:
//
//   - a grouping holds Children, one per key
//   - a table holds Columns, in column order, and is not recursed into
//   - every other node holds only its Tag
//
// In JSON a grouping is an object, a table an array of [name, type] pairs and
// anything else the tag string.
type Meta struct {
	Tag      value.Tag
	Children map[string]*Meta
	Columns  []ColumnMeta
}

// BuildMeta derives the metadata tree for root. It validates keys, table
// columns and rejects nil nodes, so a value that passes BuildMeta has a name
// for every entry the writer will create.
func BuildMeta(root value.Grouping) (*Meta, error) {
	return buildMeta(root, "")
}

func buildMeta(n value.Node, path string) (*Meta, error) {
	switch n := n.(type) {
	case nil:
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s: nil node", displayPath(path))
	case value.Grouping:
		m := &Meta{Tag: value.TagGrouping, Children: make(map[string]*Meta, len(n))}
		for _, key := range n.Keys() {
			if err := errors.ValidateKey(key); err != nil {
				return nil, fmt.Errorf("%s: %w", displayPath(path), err)
			}
			child, err := buildMeta(n[key], joinPath(path, key))
			if err != nil {
				return nil, err
			}
			m.Children[key] = child
		}
		return m, nil
	case *value.Table:
		if err := n.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s", displayPath(path))
		}
		m := &Meta{Tag: value.TagTable, Columns: make([]ColumnMeta, len(n.Columns))}
		for i, c := range n.Columns {
			if err := errors.ValidateKey(c.Name()); err != nil {
				return nil, fmt.Errorf("%s: %w", displayPath(path), err)
			}
			m.Columns[i] = ColumnMeta{Name: c.Name(), Type: c.Type()}
		}
		return m, nil
	default:
		return &Meta{Tag: n.Tag()}, nil
	}
}

// IsGrouping reports whether m describes a grouping.
func (m *Meta) IsGrouping() bool { return m.Tag == value.TagGrouping }

// IsTable reports whether m describes a table.
func (m *Meta) IsTable() bool { return m.Tag == value.TagTable }

// Keys returns the child keys of a grouping, sorted.
func (m *Meta) Keys() []string {
	keys := make([]string, 0, len(m.Children))
	for k := range m.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Paths lists every non-grouping node as "a/b/c" paths, sorted. Table
// columns are not listed separately.
func (m *Meta) Paths() []string {
	var out []string
	var walk func(m *Meta, prefix string)
	walk = func(m *Meta, prefix string) {
		for _, k := range m.Keys() {
			child := m.Children[k]
			p := joinPath(prefix, k)
			if child.IsGrouping() {
				walk(child, p)
				continue
			}
			out = append(out, p)
		}
	}
	walk(m, "")
	return out
}

// Lookup returns the sub-tree at a "/"-separated path.
func (m *Meta) Lookup(path string) (*Meta, bool) {
	cur := m
	for _, seg := range splitPath(path) {
		next, ok := cur.Children[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// MarshalJSON implements json.Marshaler.
func (m *Meta) MarshalJSON() ([]byte, error) {
	switch m.Tag {
	case value.TagGrouping:
		children := m.Children
		if children == nil {
			children = map[string]*Meta{}
		}
		return json.Marshal(children)
	case value.TagTable:
		pairs := make([][2]string, len(m.Columns))
		for i, c := range m.Columns {
			pairs[i] = [2]string{c.Name, string(c.Type)}
		}
		return json.Marshal(pairs)
	default:
		return json.Marshal(string(m.Tag))
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Meta) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty metadata node")
	}
	switch data[0] {
	case '{':
		var children map[string]*Meta
		if err := json.Unmarshal(data, &children); err != nil {
			return err
		}
		for k, c := range children {
			if c == nil {
				return fmt.Errorf("metadata for %q is null", k)
			}
		}
		*m = Meta{Tag: value.TagGrouping, Children: children}
	case '[':
		var pairs [][]string
		if err := json.Unmarshal(data, &pairs); err != nil {
			return err
		}
		cols := make([]ColumnMeta, len(pairs))
		for i, p := range pairs {
			if len(p) != 2 {
				return fmt.Errorf("table column entry %d has %d fields, want 2", i, len(p))
			}
			cols[i] = ColumnMeta{Name: p[0], Type: value.ColumnType(p[1])}
		}
		*m = Meta{Tag: value.TagTable, Columns: cols}
	case '"':
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return err
		}
		if tag == "" {
			return fmt.Errorf("empty tag")
		}
		*m = Meta{Tag: value.Tag(tag)}
	default:
		return fmt.Errorf("unexpected metadata node %.20q", data)
	}
	return nil
}
