package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
	"github.com/sariayt/LGC-EQTY/pkg/sheet"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

func (c *CLI) dumpCommand() *cobra.Command {
	var (
		limit     int
		xlsx      string
		sheetName string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "dump <container> <path>",
		Short: "Print one entry of a container",
		Long: `Print the value stored at a "/"-separated path of a container.

Tables are printed as a grid; --xlsx writes the table to a workbook instead.
Entries that fail to decode are reported and skipped unless --strict is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.persistOptions(cmd.Context())
			if err != nil {
				return err
			}
			opts.Strict = strict
			res, err := persist.Load(args[0], opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range res.Manifest.Failures {
				printWarning(out, "%s: %v", f.Path, f.Err)
			}
			n, err := lookupNode(res.Value, args[1])
			if err != nil {
				return err
			}

			if xlsx != "" {
				t, ok := n.(*value.Table)
				if !ok {
					return errors.New(errors.ErrCodeInvalidInput, "%s is %s, only tables can be exported", args[1], n.Tag())
				}
				if err := sheet.WriteXLSX(xlsx, sheetName, t); err != nil {
					return err
				}
				printSuccess(out, "Exported %d rows", t.NumRows())
				printFile(out, xlsx)
				return nil
			}
			return printNode(out, n, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows to print (0 prints all)")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "export a table to this .xlsx file")
	cmd.Flags().StringVar(&sheetName, "sheet", "Sheet1", "worksheet name for --xlsx")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on the first entry that cannot be decoded")
	return cmd
}

// lookupNode walks a "/"-separated path through nested groupings.
func lookupNode(root value.Grouping, path string) (value.Node, error) {
	var n value.Node = root
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		g, ok := n.(value.Grouping)
		if !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "%s: %q is not a grouping", path, seg)
		}
		if n, ok = g[seg]; !ok {
			return nil, errors.New(errors.ErrCodeNotFound, "%s: no entry %q", path, seg)
		}
	}
	return n, nil
}

func printNode(w io.Writer, n value.Node, limit int) error {
	switch n := n.(type) {
	case value.Scalar:
		fmt.Fprintln(w, n.String())
	case *value.Sequence:
		for _, item := range head(n.Items, limit) {
			fmt.Fprintln(w, item.String())
		}
		printTruncated(w, len(n.Items), limit)
	case *value.Array:
		printKeyValue(w, "dtype", string(n.DType))
		printKeyValue(w, "shape", fmt.Sprint(n.Shape))
		cells := make([]string, n.Len())
		for i := range cells {
			cells[i] = formatFloat(n.At(flatIndex(n.Shape, i)...))
		}
		fmt.Fprintln(w, strings.Join(head(cells, limit), " "))
		printTruncated(w, len(cells), limit)
	case *value.OrderedMapping:
		rows := make([][]string, 0, len(n.Entries))
		for _, e := range head(n.Entries, limit) {
			rows = append(rows, append([]string{e.Label}, e.Values...))
		}
		headers := []string{"label"}
		for i := range n.Width() {
			headers = append(headers, strconv.Itoa(i))
		}
		fmt.Fprintln(w, grid(headers, rows))
		printTruncated(w, len(n.Entries), limit)
	case *value.Table:
		var rows [][]string
		for r := range n.NumRows() {
			if limit > 0 && r == limit {
				break
			}
			row := make([]string, len(n.Columns))
			for i, col := range n.Columns {
				row[i] = cellText(col, r)
			}
			rows = append(rows, row)
		}
		fmt.Fprintln(w, grid(n.ColumnNames(), rows))
		printTruncated(w, n.NumRows(), limit)
	case value.Grouping:
		for _, key := range n.Keys() {
			printKeyValue(w, key, string(n[key].Tag()))
		}
	case *value.Opaque:
		printInfo(w, "unregistered type %q, shown as text", n.Type)
		for _, v := range head(n.Values, limit) {
			fmt.Fprintln(w, v)
		}
		printTruncated(w, len(n.Values), limit)
	default:
		return errors.New(errors.ErrCodeUnsupported, "cannot print %s", n.Tag())
	}
	return nil
}

func grid(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func cellText(c value.Column, r int) string {
	switch c := c.(type) {
	case *value.FloatColumn:
		return formatFloat(c.Values[r])
	case *value.IntColumn:
		return strconv.FormatInt(c.Values[r], 10)
	case *value.BoolColumn:
		return strconv.FormatBool(c.Values[r])
	case *value.StringColumn:
		if c.IsMissing(r) {
			return ""
		}
		return c.Values[r]
	}
	return ""
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// flatIndex converts a row-major offset back to per-dimension indices.
func flatIndex(shape []int, off int) []int {
	idx := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 0 {
			continue
		}
		idx[i] = off % shape[i]
		off /= shape[i]
	}
	return idx
}

func head[T any](vs []T, limit int) []T {
	if limit > 0 && len(vs) > limit {
		return vs[:limit]
	}
	return vs
}

func printTruncated(w io.Writer, total, limit int) {
	if limit > 0 && total > limit {
		printDetail(w, "... %d more (use --limit 0 to print all)", total-limit)
	}
}
