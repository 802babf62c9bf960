package http

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"sofia/internal/core"
	"sofia/internal/schedule"

	"github.com/shopspring/decimal"
)

var templateFuncs = template.FuncMap{
	"usd":      func(m core.Money) string { return m.String() },
	"dollars":  core.FormatUSD,
	"pct":      func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"positive": func(d decimal.Decimal) bool { return d.IsPositive() },
	"relative": core.RelativeTime,
	"listURL":  func(q core.ListQuery) string { return withQuery("/ui/expenses", q.Values()) },
	"pageURL":  func(q core.ListQuery) string { return withQuery("/", q.Values()) + "#expenses" },
	"exportURL": func(q core.ListQuery) string {
		v := q.Values()
		v.Del("page")
		return withQuery("/expenses/export.csv", v)
	},
	"withPage":   func(q core.ListQuery, n int) core.ListQuery { return q.WithPage(n) },
	"withFilter": func(q core.ListQuery, f string) core.ListQuery { return q.WithFilter(f) },
	"withPreset": func(q core.ListQuery, p core.Preset) core.ListQuery { return q.WithPreset(p) },
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// filterOption is one payer filter tab.
type filterOption struct {
	Value  string
	Label  string
	Count  int
	Active bool
}

type presetOption struct {
	Value  core.Preset
	Label  string
	Active bool
}

// listData feeds the "expenses" and "summary" templates.
type listData struct {
	View        core.View
	Balance     core.Balance
	Filters     []filterOption
	Presets     []presetOption
	RangeLabel  string
	ExportLabel string
	Error       string
	Now         time.Time
}

// indexData feeds the full page.
type indexData struct {
	listData
	Banner   schedule.Banner
	Activity []core.Activity
	Today    string
	Payers   []core.Payer
}

func newListData(v core.View, ranged []core.Expense, now time.Time) listData {
	d := listData{
		View:        v,
		Balance:     v.Summary.Balance(),
		RangeLabel:  v.Query.Preset.Label(),
		ExportLabel: core.ExportLabel(v.Query.Filter, len(v.Filtered)),
		Now:         now,
	}
	if v.Query.Preset == core.PresetCustom {
		d.RangeLabel = customLabel(v.Query)
	}

	d.Filters = append(d.Filters, filterOption{
		Value:  core.FilterAll,
		Label:  "All",
		Count:  len(ranged),
		Active: v.Query.Filter == core.FilterAll,
	})
	for _, p := range core.KnownPayers {
		d.Filters = append(d.Filters, filterOption{
			Value:  string(p),
			Label:  string(p),
			Count:  len(core.FilterByPayer(ranged, string(p))),
			Active: strings.EqualFold(v.Query.Filter, string(p)),
		})
	}
	for _, p := range core.Presets {
		d.Presets = append(d.Presets, presetOption{Value: p, Label: p.Label(), Active: v.Query.Preset == p})
	}
	return d
}

func customLabel(q core.ListQuery) string {
	switch {
	case q.Start != "" && q.End != "":
		return q.Start + " to " + q.End
	case q.Start != "":
		return "From " + q.Start
	case q.End != "":
		return "Until " + q.End
	}
	return core.PresetCustom.Label()
}
