package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"sofia/internal/core"
)

func expenseRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.Date.String(),
		e.Payer.String(),
		e.Amount.Decimal().StringFixed(2),
		e.Description,
		e.Note,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func activityRow(a core.Activity) []any {
	return []any{
		a.At.UTC().Format(time.RFC3339Nano),
		string(a.Action),
		a.ExpenseID,
		a.Description,
		a.Amount.Decimal().StringFixed(2),
		a.Payer.String(),
		a.Date.String(),
	}
}

// toStrings renders cells as text. Numbers come back from the API as
// float64 and are printed without exponent.
func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func isHeader(cols []string) bool {
	return strings.EqualFold(safeGet(cols, 0), "id") || strings.EqualFold(safeGet(cols, 0), "at")
}

// parseExpenseRow reads one row. A malformed date leaves the zero Date;
// a missing ID or amount makes the row unusable.
func parseExpenseRow(cols []string) (core.Expense, error) {
	id := safeGet(cols, 0)
	if id == "" {
		return core.Expense{}, fmt.Errorf("missing id")
	}
	cents, err := core.ParseDecimalToCents(safeGet(cols, 3))
	if err != nil {
		return core.Expense{}, fmt.Errorf("row %s: %w", id, err)
	}
	date, _ := core.ParseDate(safeGet(cols, 1))
	payer := core.Payer(safeGet(cols, 2)).Canonical()
	ts, _ := time.Parse(time.RFC3339Nano, safeGet(cols, 6))
	return core.Expense{
		ID:          id,
		Date:        date,
		Payer:       payer,
		Amount:      core.Money{Cents: cents},
		Description: safeGet(cols, 4),
		Note:        safeGet(cols, 5),
		Timestamp:   ts,
	}, nil
}

// parseExpenseRows converts a values matrix. The header row and blank rows
// are ignored; skipped counts rows that could not be read.
func parseExpenseRows(values [][]any) (out []core.Expense, skipped int) {
	for _, row := range values {
		cols := toStrings(row)
		if len(cols) == 0 || isHeader(cols) || strings.Join(cols, "") == "" {
			continue
		}
		e, err := parseExpenseRow(cols)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

// findRow returns the zero-based index of the row whose first cell is id.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		cols := toStrings(row)
		if safeGet(cols, 0) == id {
			return i
		}
	}
	return -1
}

// parseActivityRows returns entries in sheet order (oldest first). IDs are
// the one-based sheet row numbers.
func parseActivityRows(values [][]any) []core.Activity {
	var out []core.Activity
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 3 || isHeader(cols) {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, safeGet(cols, 0))
		if err != nil {
			continue
		}
		cents, _ := core.ParseDecimalToCents(safeGet(cols, 4))
		date, _ := core.ParseDate(safeGet(cols, 6))
		out = append(out, core.Activity{
			ID:          int64(i + 1),
			At:          at,
			Action:      core.ActivityAction(safeGet(cols, 1)),
			ExpenseID:   safeGet(cols, 2),
			Description: safeGet(cols, 3),
			Amount:      core.Money{Cents: cents},
			Payer:       core.Payer(safeGet(cols, 5)),
			Date:        date,
		})
	}
	return out
}
