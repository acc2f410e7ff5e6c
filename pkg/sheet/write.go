package sheet

import (
	"math"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// WriteXLSX writes t to a new workbook at path with one worksheet named
// sheet. Missing string cells and NaN floats are left empty. Booleans are
// written as true/false text so [Normalize] reads them back as booleans.
func WriteXLSX(path, sheet string, t *value.Table) error {
	if err := t.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "table")
	}
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name()
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for r := range t.NumRows() {
		row := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			row[i] = cellValue(c, r)
		}
		addr, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, addr, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func cellValue(c value.Column, r int) any {
	switch c := c.(type) {
	case *value.FloatColumn:
		if math.IsNaN(c.Values[r]) {
			return nil
		}
		return c.Values[r]
	case *value.IntColumn:
		return c.Values[r]
	case *value.BoolColumn:
		return strconv.FormatBool(c.Values[r])
	case *value.StringColumn:
		if c.IsMissing(r) {
			return nil
		}
		return c.Values[r]
	}
	return nil
}
