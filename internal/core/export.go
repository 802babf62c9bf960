package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

var csvHeader = []string{"Date", "Payer", "Amount", "Description", "Note"}

// CSVExport is a rendered export ready to be downloaded.
type CSVExport struct {
	FileName string
	Content  string
	Rows     int
}

// ExportCSV renders expenses as CSV text. It returns nil when there is
// nothing to export.
//
// Only the description and note columns are quoted; the other columns
// never contain commas or quotes.
func ExportCSV(expenses []Expense, filterName string, now time.Time) *CSVExport {
	if len(expenses) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	for _, e := range expenses {
		b.WriteByte('\n')
		b.WriteString(e.Date.String())
		b.WriteByte(',')
		b.WriteString(string(e.Payer))
		b.WriteByte(',')
		b.WriteString(e.Amount.Decimal().String())
		b.WriteByte(',')
		b.WriteString(quoteField(e.Description))
		b.WriteByte(',')
		b.WriteString(quoteField(e.Note))
	}
	return &CSVExport{
		FileName: ExportFileName(filterName, now),
		Content:  b.String(),
		Rows:     len(expenses),
	}
}

// ExportFileName is sofia-expenses-<filter>-<YYYY-MM-DD>.csv.
func ExportFileName(filterName string, now time.Time) string {
	token := slug.Make(filterName)
	if token == "" {
		token = FilterAll
	}
	return fmt.Sprintf("sofia-expenses-%s-%s.csv", token, DateOf(now))
}

// ExportLabel is the export button caption, e.g. "Export Leslie's (3)".
func ExportLabel(filterName string, count int) string {
	if count == 0 {
		return "Export CSV"
	}
	who := "All"
	if !strings.EqualFold(filterName, FilterAll) && filterName != "" {
		who = filterName + "'s"
	}
	return fmt.Sprintf("Export %s (%d)", who, count)
}

func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
