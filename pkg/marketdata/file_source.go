package marketdata

import (
	"context"
	"slices"
	"time"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/sheet"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// TableSource answers requests from a long history table already in memory,
// such as a provider export. Overrides and periodicity cannot be applied to
// recorded data and are ignored.
type TableSource struct {
	table *value.Table
	dates []time.Time
}

// NewTableSource validates t as a history table.
func NewTableSource(t *value.Table) (*TableSource, error) {
	_, dates, err := keyColumns(t)
	if err != nil {
		return nil, err
	}
	parsed := make([]time.Time, len(dates.Values))
	for i, d := range dates.Values {
		if parsed[i], err = time.Parse(DateLayout, d); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "row %d date", i)
		}
	}
	return &TableSource{table: t, dates: parsed}, nil
}

// OpenFileSource loads a .csv or .xlsx export whose header row starts with
// the [SecurityColumn] column.
func OpenFileSource(path string) (*TableSource, error) {
	s, err := sheet.Load(path, sheet.LoadOptions{Options: sheet.Options{HeaderKey: SecurityColumn}})
	if err != nil {
		return nil, err
	}
	return NewTableSource(s.Table)
}

// Historical implements Source.
func (s *TableSource) Historical(ctx context.Context, req HistoricalRequest) (*value.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	secs, _, _ := keyColumns(s.table)
	start := req.Start.Truncate(24 * time.Hour)
	var rows []int
	for r := range s.table.NumRows() {
		d := s.dates[r]
		if d.Before(start) || d.After(req.End) {
			continue
		}
		if slices.Contains(req.Securities, secs.Values[r]) {
			rows = append(rows, r)
		}
	}

	out := &value.Table{}
	for _, name := range append([]string{SecurityColumn, DateColumn}, req.Fields...) {
		c, ok := s.table.Column(name)
		if !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "field %q not in source", name)
		}
		out.Columns = append(out.Columns, pick(c, rows))
	}
	return out, nil
}

func pick(c value.Column, rows []int) value.Column {
	switch c := c.(type) {
	case *value.StringColumn:
		vs := make([]string, len(rows))
		var valid []bool
		if c.HasMissing() {
			valid = make([]bool, len(rows))
		}
		for i, r := range rows {
			vs[i] = c.Values[r]
			if valid != nil {
				valid[i] = !c.IsMissing(r)
			}
		}
		return value.NewStringColumn(c.ColName, vs, valid)
	case *value.IntColumn:
		vs := make([]int64, len(rows))
		for i, r := range rows {
			vs[i] = c.Values[r]
		}
		return &value.IntColumn{ColName: c.ColName, Values: vs}
	case *value.BoolColumn:
		vs := make([]bool, len(rows))
		for i, r := range rows {
			vs[i] = c.Values[r]
		}
		return &value.BoolColumn{ColName: c.ColName, Values: vs}
	case *value.FloatColumn:
		vs := make([]float64, len(rows))
		for i, r := range rows {
			vs[i] = c.Values[r]
		}
		return &value.FloatColumn{ColName: c.ColName, Values: vs}
	}
	return c
}
