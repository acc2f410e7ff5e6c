package sheet

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
)

// ReadCSV reads every record of a comma-separated file. Records may have
// different lengths.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSheet, err, "read csv")
	}
	return rows, nil
}

// ReadXLSX reads the raw cell values of one worksheet. An empty sheet name
// selects the first worksheet.
func ReadXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidSheet, err, "open %s", path)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidSheet, "%s has no worksheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSheet, err, "read sheet %q", sheet)
	}
	return rows, nil
}

// LoadOptions controls [Load].
type LoadOptions struct {
	Options
	// Sheet names the worksheet of an Excel file. Empty selects the first.
	Sheet string
}

// Load reads a .csv or .xlsx file and normalizes it.
func Load(path string, opts LoadOptions) (*Sheet, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			if os.IsNotExist(openErr) {
				return nil, errors.Wrap(errors.ErrCodeFileNotFound, openErr, "open %s", path)
			}
			return nil, openErr
		}
		defer f.Close()
		rows, err = ReadCSV(f)
	case ".xlsx", ".xlsm":
		rows, err = ReadXLSX(path, opts.Sheet)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported spreadsheet extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return Normalize(rows, opts.Options)
}
