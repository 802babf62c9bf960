package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"sofia/internal/core"
	applog "sofia/internal/log"

	"github.com/spf13/cobra"
)

var errNothingToExport = errors.New("no expenses to export")

type exportOptions struct {
	filter string
	preset string
	start  string
	end    string
	out    string
}

func newExportCommand(a *app) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write expenses as CSV",
		Example: `  sofia export --filter leslie --range month --out leslie.csv
  sofia export --range custom --start 2025-09-01 --end 2025-12-31 --out -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := a.export(cmd.Context(), cmd.OutOrStdout(), opts)
			if errors.Is(err, errNothingToExport) {
				fmt.Fprintln(cmd.ErrOrStderr(), "No expenses to export")
				return nil
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.filter, "filter", core.FilterAll, "payer filter: all, leslie or ian")
	f.StringVar(&opts.preset, "range", string(core.PresetAll), "date range: all, today, week, month, quarter, year or custom")
	f.StringVar(&opts.start, "start", "", "custom range start, YYYY-MM-DD")
	f.StringVar(&opts.end, "end", "", "custom range end, YYYY-MM-DD")
	f.StringVarP(&opts.out, "out", "o", "", "output file; - for stdout, empty for the default file name")
	return cmd
}

func (a *app) export(ctx context.Context, stdout io.Writer, opts exportOptions) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	filter, err := exportFilter(opts.filter)
	if err != nil {
		return err
	}
	preset, err := core.LookupPreset(opts.preset)
	if err != nil {
		return err
	}
	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeBackend(res, a.logger)

	all, err := res.Store.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}

	q := core.DefaultListQuery().WithFilter(filter).WithPreset(preset)
	if q.Preset == core.PresetCustom {
		q = q.WithCustomRange(opts.start, opts.end)
	}
	now := timeNow().In(loc)
	rng, err := q.Range(now)
	if err != nil {
		return err
	}

	out := core.ExportCSV(core.FilterByPayer(core.FilterByDateRange(all, rng), q.Filter), q.Filter, now)
	if out == nil {
		return errNothingToExport
	}

	path := opts.out
	if path == "" {
		path = out.FileName
	}
	if path == "-" {
		_, err = io.WriteString(stdout, out.Content)
		return err
	}
	if err := os.WriteFile(path, []byte(out.Content), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.logger.WithComponent(applog.ComponentExport).Info("Exported expenses",
		applog.FieldOperation, applog.OpExport,
		"filter", q.Filter,
		"range", string(q.Preset),
		"rows", out.Rows,
		"path", path)
	return nil
}

// exportFilter resolves --filter strictly, unlike the web query which
// falls back to all.
func exportFilter(s string) (string, error) {
	if strings.EqualFold(strings.TrimSpace(s), core.FilterAll) {
		return core.FilterAll, nil
	}
	p, err := core.ParsePayer(s)
	if err != nil {
		return "", err
	}
	return string(p), nil
}
