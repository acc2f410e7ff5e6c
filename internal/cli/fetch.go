package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sariayt/LGC-EQTY/pkg/errors"
	"github.com/sariayt/LGC-EQTY/pkg/marketdata"
	"github.com/sariayt/LGC-EQTY/pkg/persist"
	"github.com/sariayt/LGC-EQTY/pkg/sheet"
	"github.com/sariayt/LGC-EQTY/pkg/value"
)

type fetchOptions struct {
	output      string
	source      string
	securities  []string
	universe    string
	column      string
	fields      []string
	start, end  string
	periodicity string
	overrides   []string
	concurrency int
	noCache     bool
}

func (c *CLI) fetchCommand() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download field history into a container",
		Long: `Download the history of --fields for a set of securities and save it as a
field-data container (dates x securities x fields).

The download is split into batches sized against the provider's daily limits.
Every batch is checkpointed in the configured cache, so an interrupted run
picks up where it stopped. --source replays a provider export (.csv or .xlsx
with Security and Date columns).`,
		Example: `  lgceqty fetch --source history.xlsx --universe UT_PM_LGCPTRUU_20240903.xlsx --column "Security ID" \
      --fields PX_LAST,CUR_MKT_CAP --start 2024-01-01 -o fields.lgc
  lgceqty fetch --source history.csv --securities "AAPL US Equity" --fields BEST_EPS \
      --override BEST_EPS:BEST_FPERIOD_OVERRIDE=1BF --start 2024-01-01 --end 2024-06-30 -o eps.lgc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "container to write (required)")
	cmd.Flags().StringVar(&opts.source, "source", "", "provider export to read history from (required)")
	cmd.Flags().StringSliceVar(&opts.securities, "securities", nil, "securities to download")
	cmd.Flags().StringVar(&opts.universe, "universe", "", "spreadsheet listing the securities to download")
	cmd.Flags().StringVar(&opts.column, "column", "Security ID", "column of --universe holding security identifiers")
	cmd.Flags().StringSliceVar(&opts.fields, "fields", nil, "fields to download (required)")
	cmd.Flags().StringVar(&opts.start, "start", "", "first date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&opts.end, "end", "", "last date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&opts.periodicity, "periodicity", "DAILY", "sampling periodicity")
	cmd.Flags().StringArrayVar(&opts.overrides, "override", nil, "per-field override FIELD:NAME=VALUE (repeatable)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "parallel batches (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not read or write batch checkpoints")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("fields")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func (c *CLI) runFetch(cmd *cobra.Command, opts fetchOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	req, err := opts.request(time.Now())
	if err != nil {
		return err
	}
	if opts.universe != "" {
		secs, err := universe(opts.universe, opts.column)
		if err != nil {
			return err
		}
		req.Securities = append(req.Securities, secs...)
	}

	src, err := marketdata.OpenFileSource(opts.source)
	if err != nil {
		return err
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}
	cc, err := c.openCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	runner := marketdata.NewRunner(src, cc, nil, logger)
	runner.Concurrency = cfg.Fetch.Concurrency
	if opts.concurrency > 0 {
		runner.Concurrency = opts.concurrency
	}
	runner.MaxFieldsPerBatch = cfg.Fetch.FieldsPerBatch
	runner.TTL = cfg.Cache.TTL
	runner.Compression = cfg.Compression()

	prog := newProgress(logger)
	fd, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	popts, err := c.persistOptions(ctx)
	if err != nil {
		return err
	}
	if err := persist.Save(opts.output, fd.Grouping(), popts); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Fetched %d fields for %d securities over %d dates", len(fd.Fields), len(fd.Securities), len(fd.Dates)))

	out := cmd.OutOrStdout()
	printSuccess(out, "Saved field data")
	printFile(out, opts.output)
	return nil
}

// request builds the download request from the flags. now supplies the
// default end date.
func (o fetchOptions) request(now time.Time) (marketdata.Request, error) {
	start, err := time.Parse(marketdata.DateLayout, o.start)
	if err != nil {
		return marketdata.Request{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "--start")
	}
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if o.end != "" {
		if end, err = time.Parse(marketdata.DateLayout, o.end); err != nil {
			return marketdata.Request{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "--end")
		}
	}
	overrides, err := parseOverrides(o.overrides)
	if err != nil {
		return marketdata.Request{}, err
	}
	return marketdata.Request{
		Securities:  o.securities,
		Fields:      o.fields,
		Start:       start,
		End:         end,
		Periodicity: o.periodicity,
		Overrides:   overrides,
	}, nil
}

// parseOverrides reads FIELD:NAME=VALUE specs.
func parseOverrides(specs []string) (map[string][]marketdata.Override, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string][]marketdata.Override)
	for _, spec := range specs {
		field, ov, ok := strings.Cut(spec, ":")
		name, val, ok2 := strings.Cut(ov, "=")
		if !ok || !ok2 || field == "" || name == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "override %q: want FIELD:NAME=VALUE", spec)
		}
		out[field] = append(out[field], marketdata.Override{Field: name, Value: val})
	}
	return out, nil
}

// universe reads the non-empty identifiers of column from a spreadsheet whose
// header row contains column.
func universe(path, column string) ([]string, error) {
	s, err := sheet.Load(path, sheet.LoadOptions{Options: sheet.Options{HeaderKey: column, DropNullKey: column}})
	if err != nil {
		return nil, err
	}
	col, _ := s.Table.Column(column)
	sc, ok := col.(*value.StringColumn)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidSheet, "%s: column %q is %s, want text", path, column, col.Type())
	}
	var out []string
	for i, v := range sc.Values {
		if !sc.IsMissing(i) {
			out = append(out, v)
		}
	}
	return out, nil
}
