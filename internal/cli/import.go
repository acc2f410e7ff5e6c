package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
	"github.com/sariayt/LGC-EQTY/pkg/sheet"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

// Keys of an imported sheet's grouping.
const (
	importData = "data"
	importInfo = "info"
	importAsOf = "asOf"
)

type importOptions struct {
	output    string
	dir       string
	keys      []string
	exts      []string
	sheet     string
	headerKey string
	dropNull  string
	dropLast  bool
}

func (c *CLI) importCommand() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Convert a provider spreadsheet into a container",
		Long: `Normalize a provider spreadsheet (.csv or .xlsx) and save it as a container.

The header row is located by the --header-key column; lines above it are kept
as "info", and the file date, when the name ends in _YYYYMMDD or _YYYY_MM, as
"asOf".

With --dir and --keys, the latest file for each key is imported instead, one
grouping per key.`,
		Example: `  lgceqty import UT_PM_LGCPTRUU_20240903.xlsx -o portfolio.lgc --header-key "Security ID"
  lgceqty import --dir ./downloads --keys LGXSTRUU,LGCPTRUU -o index.lgc --drop-disclaimer`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "container to write (required)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "directory to pick the latest files from")
	cmd.Flags().StringSliceVar(&opts.keys, "keys", nil, "file name prefixes to import with --dir")
	cmd.Flags().StringSliceVar(&opts.exts, "ext", []string{".xlsx", ".csv"}, "file extensions considered with --dir")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "worksheet to read (default: first)")
	cmd.Flags().StringVar(&opts.headerKey, "header-key", sheet.DefaultHeaderKey, "column name identifying the header row")
	cmd.Flags().StringVar(&opts.dropNull, "drop-null-key", "", "drop rows where this column is empty")
	cmd.Flags().BoolVar(&opts.dropLast, "drop-disclaimer", false, "drop the last non-blank row")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (c *CLI) runImport(cmd *cobra.Command, args []string, opts importOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	load := sheet.LoadOptions{
		Options: sheet.Options{
			HeaderKey:      opts.headerKey,
			DropDisclaimer: opts.dropLast,
			DropNullKey:    opts.dropNull,
		},
		Sheet: opts.sheet,
	}

	var root value.Grouping
	switch {
	case opts.dir != "" && len(args) == 0:
		if len(opts.keys) == 0 {
			return errors.New(errors.ErrCodeInvalidInput, "--dir needs --keys")
		}
		files, err := sheet.Latest(logger, opts.dir, opts.keys, opts.exts)
		if err != nil {
			return err
		}
		root = value.Grouping{}
		for i, path := range files {
			g, err := importFile(path, load)
			if err != nil {
				return err
			}
			root[opts.keys[i]] = g
		}
	case opts.dir == "" && len(args) == 1:
		g, err := importFile(args[0], load)
		if err != nil {
			return err
		}
		root = g
	default:
		return errors.New(errors.ErrCodeInvalidInput, "give either a file or --dir with --keys")
	}

	popts, err := c.persistOptions(ctx)
	if err != nil {
		return err
	}
	if err := persist.Save(opts.output, root, popts); err != nil {
		return err
	}
	prog.done("Imported " + strings.Join(root.Keys(), ", "))
	printSuccess(cmd.OutOrStdout(), "Saved container")
	printFile(cmd.OutOrStdout(), opts.output)
	return nil
}

func importFile(path string, opts sheet.LoadOptions) (value.Grouping, error) {
	s, err := sheet.Load(path, opts)
	if err != nil {
		return nil, err
	}
	g := value.Grouping{importData: s.Table}
	if len(s.Info) > 0 {
		g[importInfo] = value.Strings(s.Info...)
	}
	if d, err := sheet.FileDate(filepath.Base(path)); err == nil {
		g[importAsOf] = value.Text(d.Format("2006-01-02"))
	}
	return g, nil
}
