package sheet

import (
	"math"
	"strconv"
	"strings"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// DefaultHeaderKey is the column name that marks the header row.
const DefaultHeaderKey = "ISIN"

// Options controls [Normalize].
type Options struct {
	// HeaderKey is the cell text identifying the header row.
	HeaderKey string
	// DropDisclaimer drops the last row before any other cleaning.
	DropDisclaimer bool
	// DropNullKey, when set, drops rows whose cell in this column is empty.
	DropNullKey string
}

func (o Options) headerKey() string {
	if o.HeaderKey == "" {
		return DefaultHeaderKey
	}
	return o.HeaderKey
}

// Sheet is a normalized spreadsheet.
type Sheet struct {
	Table *value.Table
	// Info holds the first-column text of each row above the header. Rows
	// whose first cell is empty contribute nothing.
	Info []string
}

// Normalize locates the header row in rows and returns the data below it as a
// typed table.
//
// Columns without a name are dropped and names are trimmed. Trailing rows
// with no content are removed. Each column becomes int64 when every cell is an
// integer, bool when every cell is true/false, float64 when every non-empty
// cell is numeric (empty cells become NaN) and string otherwise, with empty
// cells marked missing. A column with no content at all is float64 NaN.
func Normalize(rows [][]string, opts Options) (*Sheet, error) {
	key := opts.headerKey()
	header := -1
	for i, row := range rows {
		if indexOf(row, key) >= 0 {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, errors.New(errors.ErrCodeInvalidSheet, "no header row containing %q", key)
	}

	var info []string
	for _, row := range rows[:header] {
		if c := strings.TrimSpace(cell(row, 0)); c != "" {
			info = append(info, c)
		}
	}

	data := rows[header+1:]
	if opts.DropDisclaimer && len(data) > 0 {
		data = data[:len(data)-1]
	}
	for len(data) > 0 && blank(data[len(data)-1]) {
		data = data[:len(data)-1]
	}

	type col struct {
		name  string
		index int
	}
	var cols []col
	seen := make(map[string]bool)
	for i, name := range rows[header] {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, errors.New(errors.ErrCodeInvalidSheet, "duplicate column %q", name)
		}
		seen[name] = true
		cols = append(cols, col{name: name, index: i})
	}

	if opts.DropNullKey != "" {
		k := -1
		for _, c := range cols {
			if c.name == strings.TrimSpace(opts.DropNullKey) {
				k = c.index
			}
		}
		if k < 0 {
			return nil, errors.New(errors.ErrCodeInvalidSheet, "column %q not found", opts.DropNullKey)
		}
		kept := make([][]string, 0, len(data))
		for _, row := range data {
			if strings.TrimSpace(cell(row, k)) != "" {
				kept = append(kept, row)
			}
		}
		data = kept
	}

	t := &value.Table{Columns: make([]value.Column, len(cols))}
	for i, c := range cols {
		cells := make([]string, len(data))
		for r, row := range data {
			cells[r] = strings.TrimSpace(cell(row, c.index))
		}
		t.Columns[i] = infer(c.name, cells)
	}
	return &Sheet{Table: t, Info: info}, nil
}

func indexOf(row []string, key string) int {
	for i, c := range row {
		if strings.TrimSpace(c) == key {
			return i
		}
	}
	return -1
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func infer(name string, cells []string) value.Column {
	empty := 0
	ints, floats, bools := true, true, true
	for _, c := range cells {
		if c == "" {
			empty++
			continue
		}
		if _, err := strconv.ParseInt(c, 10, 64); err != nil {
			ints = false
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			floats = false
		}
		if _, ok := parseBool(c); !ok {
			bools = false
		}
	}

	switch {
	case empty == len(cells):
		vs := make([]float64, len(cells))
		for i := range vs {
			vs[i] = math.NaN()
		}
		return &value.FloatColumn{ColName: name, Values: vs}
	case ints && empty == 0:
		vs := make([]int64, len(cells))
		for i, c := range cells {
			vs[i], _ = strconv.ParseInt(c, 10, 64)
		}
		return &value.IntColumn{ColName: name, Values: vs}
	case floats:
		vs := make([]float64, len(cells))
		for i, c := range cells {
			if c == "" {
				vs[i] = math.NaN()
				continue
			}
			vs[i], _ = strconv.ParseFloat(c, 64)
		}
		return &value.FloatColumn{ColName: name, Values: vs}
	case bools && empty == 0:
		vs := make([]bool, len(cells))
		for i, c := range cells {
			vs[i], _ = parseBool(c)
		}
		return &value.BoolColumn{ColName: name, Values: vs}
	default:
		var valid []bool
		if empty > 0 {
			valid = make([]bool, len(cells))
			for i, c := range cells {
				valid[i] = c != ""
			}
		}
		return value.NewStringColumn(name, cells, valid)
	}
}

// parseBool accepts the spellings spreadsheet tools emit for booleans.
// Numeric 0/1 stay numeric.
func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
