package value

import "fmt"

// ColumnType is the element type of a table column. Column types are recorded
// per column in the metadata tree.
type ColumnType string

// Column types.
const (
	ColumnFloat  ColumnType = "float64"
	ColumnInt    ColumnType = "int64"
	ColumnBool   ColumnType = "bool"
	ColumnString ColumnType = "string"
)

// Column is one homogeneous column of a [Table].
type Column interface {
	Name() string
	Type() ColumnType
	Len() int
}

// FloatColumn holds float64 cells. Missing cells are NaN.
type FloatColumn struct {
	ColName string
	Values  []float64
}

func (c *FloatColumn) Name() string     { return c.ColName }
func (c *FloatColumn) Type() ColumnType { return ColumnFloat }
func (c *FloatColumn) Len() int         { return len(c.Values) }

// IntColumn holds int64 cells.
type IntColumn struct {
	ColName string
	Values  []int64
}

func (c *IntColumn) Name() string     { return c.ColName }
func (c *IntColumn) Type() ColumnType { return ColumnInt }
func (c *IntColumn) Len() int         { return len(c.Values) }

// BoolColumn holds bool cells.
type BoolColumn struct {
	ColName string
	Values  []bool
}

func (c *BoolColumn) Name() string     { return c.ColName }
func (c *BoolColumn) Type() ColumnType { return ColumnBool }
func (c *BoolColumn) Len() int         { return len(c.Values) }

// StringColumn holds text cells. Valid marks present cells; a nil Valid
// means every cell is present.
type StringColumn struct {
	ColName string
	Values  []string
	Valid   []bool
}

// NewStringColumn returns a string column. Pass nil valid when no cell is
// missing.
func NewStringColumn(name string, values []string, valid []bool) *StringColumn {
	return &StringColumn{ColName: name, Values: values, Valid: valid}
}

func (c *StringColumn) Name() string     { return c.ColName }
func (c *StringColumn) Type() ColumnType { return ColumnString }
func (c *StringColumn) Len() int         { return len(c.Values) }

// IsMissing reports whether cell i is missing.
func (c *StringColumn) IsMissing(i int) bool {
	return c.Valid != nil && !c.Valid[i]
}

// HasMissing reports whether any cell is missing.
func (c *StringColumn) HasMissing() bool {
	for i := range c.Values {
		if c.IsMissing(i) {
			return true
		}
	}
	return false
}

// Table is a relation of named, independently typed columns of equal length.
// Column order is significant.
type Table struct {
	Columns []Column
}

func (*Table) Tag() Tag { return TagTable }

// NumRows returns the common column length.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return t.Columns[0].Len()
}

// Column returns the column called name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name()
	}
	return out
}

// Validate checks that columns have unique non-empty names and equal length,
// and that string validity masks line up with their values.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	rows := t.NumRows()
	for _, c := range t.Columns {
		if c.Name() == "" {
			return fmt.Errorf("table column with empty name")
		}
		if seen[c.Name()] {
			return fmt.Errorf("duplicate table column %q", c.Name())
		}
		seen[c.Name()] = true
		if c.Len() != rows {
			return fmt.Errorf("column %q has %d rows, want %d", c.Name(), c.Len(), rows)
		}
		if sc, ok := c.(*StringColumn); ok && sc.Valid != nil && len(sc.Valid) != len(sc.Values) {
			return fmt.Errorf("column %q validity mask has %d entries, want %d", c.Name(), len(sc.Valid), len(sc.Values))
		}
	}
	return nil
}

// Concat returns a table holding the rows of every table in order, matching
// columns by name. All tables must share the first table's columns and types.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}
	first := tables[0]
	out := &Table{Columns: make([]Column, len(first.Columns))}
	for i, c := range first.Columns {
		out.Columns[i] = emptyLike(c)
	}
	for _, t := range tables {
		if len(t.Columns) != len(first.Columns) {
			return nil, fmt.Errorf("table has %d columns, want %d", len(t.Columns), len(first.Columns))
		}
		for i, dst := range out.Columns {
			src, ok := t.Column(dst.Name())
			if !ok {
				return nil, fmt.Errorf("table is missing column %q", dst.Name())
			}
			if src.Type() != dst.Type() {
				return nil, fmt.Errorf("column %q is %s, want %s", dst.Name(), src.Type(), dst.Type())
			}
			out.Columns[i] = appendColumn(dst, src)
		}
	}
	return out, nil
}

func emptyLike(c Column) Column {
	switch c := c.(type) {
	case *FloatColumn:
		return &FloatColumn{ColName: c.ColName}
	case *IntColumn:
		return &IntColumn{ColName: c.ColName}
	case *BoolColumn:
		return &BoolColumn{ColName: c.ColName}
	case *StringColumn:
		return &StringColumn{ColName: c.ColName}
	}
	return c
}

func appendColumn(dst, src Column) Column {
	switch d := dst.(type) {
	case *FloatColumn:
		d.Values = append(d.Values, src.(*FloatColumn).Values...)
	case *IntColumn:
		d.Values = append(d.Values, src.(*IntColumn).Values...)
	case *BoolColumn:
		d.Values = append(d.Values, src.(*BoolColumn).Values...)
	case *StringColumn:
		s := src.(*StringColumn)
		if s.Valid != nil || d.Valid != nil {
			if d.Valid == nil {
				d.Valid = allTrue(len(d.Values))
			}
			if s.Valid != nil {
				d.Valid = append(d.Valid, s.Valid...)
			} else {
				d.Valid = append(d.Valid, allTrue(len(s.Values))...)
			}
		}
		d.Values = append(d.Values, s.Values...)
	}
	return dst
}

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
