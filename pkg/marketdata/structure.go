package marketdata

import (
	"math"
	"sort"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Keys of the grouping produced by [FieldData.Grouping].
const (
	KeyDates      = "dates"
	KeySecurities = "instrTicker"
	KeyFieldNames = "fieldNames"
	KeyFieldData  = "fieldData"
)

// FieldData is history arranged as a dense tensor. Data has shape
// (len(Dates), len(Securities), len(Fields)); absent observations are NaN.
type FieldData struct {
	Dates      []string
	Securities []string
	Fields     []string
	Data       *value.Array
}

// At returns the observation of field f for security s on date d.
func (fd *FieldData) At(d, s, f int) float64 { return fd.Data.At(d, s, f) }

// Grouping returns fd in the layout written to containers.
func (fd *FieldData) Grouping() value.Grouping {
	return value.Grouping{
		KeyDates:      value.Strings(fd.Dates...),
		KeySecurities: value.Strings(fd.Securities...),
		KeyFieldNames: value.Strings(fd.Fields...),
		KeyFieldData:  fd.Data,
	}
}

// FieldDataFrom reads back a grouping produced by [FieldData.Grouping].
func FieldDataFrom(g value.Grouping) (*FieldData, error) {
	seq := func(key string) ([]string, error) {
		s, ok := g[key].(*value.Sequence)
		if !ok {
			return nil, errors.New(errors.ErrCodeFormat, "field data: %q is %T, want a sequence", key, g[key])
		}
		return s.Texts(), nil
	}
	fd := &FieldData{}
	var err error
	if fd.Dates, err = seq(KeyDates); err != nil {
		return nil, err
	}
	if fd.Securities, err = seq(KeySecurities); err != nil {
		return nil, err
	}
	if fd.Fields, err = seq(KeyFieldNames); err != nil {
		return nil, err
	}
	arr, ok := g[KeyFieldData].(*value.Array)
	if !ok || arr.DType != value.Float64 {
		return nil, errors.New(errors.ErrCodeFormat, "field data: %q is not a float array", KeyFieldData)
	}
	want := []int{len(fd.Dates), len(fd.Securities), len(fd.Fields)}
	if len(arr.Shape) != 3 || arr.Shape[0] != want[0] || arr.Shape[1] != want[1] || arr.Shape[2] != want[2] {
		return nil, errors.New(errors.ErrCodeFormat, "field data: shape %v, want %v", arr.Shape, want)
	}
	fd.Data = arr
	return fd, nil
}

// Structure arranges a long table into a tensor. Securities and dates are the
// sorted unique values of [SecurityColumn] and [DateColumn]; fields are the
// remaining columns, sorted by name. Several rows for the same security and
// date are combined with a NaN-ignoring minimum.
func Structure(t *value.Table) (*FieldData, error) {
	secs, dates, err := keyColumns(t)
	if err != nil {
		return nil, err
	}

	var fields []string
	values := make(map[string][]float64)
	for _, c := range t.Columns {
		if c.Name() == SecurityColumn || c.Name() == DateColumn {
			continue
		}
		vs, err := floats(c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, c.Name())
		values[c.Name()] = vs
	}
	sort.Strings(fields)

	fd := &FieldData{
		Dates:      uniqueSorted(dates.Values),
		Securities: uniqueSorted(secs.Values),
		Fields:     fields,
	}
	dateIdx := indexMap(fd.Dates)
	secIdx := indexMap(fd.Securities)

	shape := []int{len(fd.Dates), len(fd.Securities), len(fields)}
	data := make([]float64, shape[0]*shape[1]*shape[2])
	for i := range data {
		data[i] = math.NaN()
	}
	for r := range t.NumRows() {
		d, s := dateIdx[dates.Values[r]], secIdx[secs.Values[r]]
		for f, name := range fields {
			v := values[name][r]
			i := (d*shape[1]+s)*shape[2] + f
			if math.IsNaN(data[i]) || v < data[i] {
				data[i] = v
			}
		}
	}
	fd.Data = value.NewFloatArray(shape, data)
	return fd, nil
}

// Stack appends long tables row-wise. The result has the key columns first,
// then every field column in order of first appearance; a table lacking a
// field contributes NaN for it.
func Stack(tables ...*value.Table) (*value.Table, error) {
	var (
		secs, dates []string
		order       []string
		fields      = make(map[string][]float64)
		rows        int
	)
	for _, t := range tables {
		if t == nil {
			continue
		}
		s, d, err := keyColumns(t)
		if err != nil {
			return nil, err
		}
		n := t.NumRows()
		for _, c := range t.Columns {
			if c.Name() == SecurityColumn || c.Name() == DateColumn {
				continue
			}
			vs, err := floats(c)
			if err != nil {
				return nil, err
			}
			col, ok := fields[c.Name()]
			if !ok {
				order = append(order, c.Name())
				col = nanSlice(rows)
			}
			fields[c.Name()] = append(col, vs...)
		}
		rows += n
		secs = append(secs, s.Values...)
		dates = append(dates, d.Values...)
		for name, col := range fields {
			if len(col) < rows {
				fields[name] = append(col, nanSlice(rows-len(col))...)
			}
		}
	}

	out := &value.Table{Columns: []value.Column{
		value.NewStringColumn(SecurityColumn, orEmpty(secs), nil),
		value.NewStringColumn(DateColumn, orEmpty(dates), nil),
	}}
	for _, name := range order {
		out.Columns = append(out.Columns, &value.FloatColumn{ColName: name, Values: fields[name]})
	}
	return out, nil
}

func keyColumns(t *value.Table) (secs, dates *value.StringColumn, err error) {
	get := func(name string) (*value.StringColumn, error) {
		c, ok := t.Column(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "history table has no %q column", name)
		}
		sc, ok := c.(*value.StringColumn)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidInput, "history column %q is %s, want string", name, c.Type())
		}
		if sc.HasMissing() {
			return nil, errors.New(errors.ErrCodeInvalidInput, "history column %q has missing cells", name)
		}
		return sc, nil
	}
	if secs, err = get(SecurityColumn); err != nil {
		return nil, nil, err
	}
	if dates, err = get(DateColumn); err != nil {
		return nil, nil, err
	}
	return secs, dates, nil
}

func floats(c value.Column) ([]float64, error) {
	switch c := c.(type) {
	case *value.FloatColumn:
		return c.Values, nil
	case *value.IntColumn:
		vs := make([]float64, len(c.Values))
		for i, v := range c.Values {
			vs[i] = float64(v)
		}
		return vs, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "field %q is %s, want numeric", c.Name(), c.Type())
	}
}

func uniqueSorted(vs []string) []string {
	seen := make(map[string]bool, len(vs))
	var out []string
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func indexMap(vs []string) map[string]int {
	m := make(map[string]int, len(vs))
	for i, v := range vs {
		m[v] = i
	}
	return m
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func orEmpty(vs []string) []string {
	if vs == nil {
		return []string{}
	}
	return vs
}
