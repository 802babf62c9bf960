package core

import "time"

// View is everything the dashboard renders for one list query.
type View struct {
	Query ListQuery
	Range DateRange

	// Summary covers the date range only, regardless of payer filter.
	Summary Totals
	// Filtered applies both the payer filter and the date range.
	Filtered []Expense
	Counts   Totals
	Page     Page[Expense]
}

// BuildView applies the payer and date filters to all and computes both
// totals bases plus the requested page.
func BuildView(all []Expense, q ListQuery, pageSize int, now time.Time) (View, error) {
	r, err := q.Range(now)
	if err != nil {
		return View{}, err
	}
	ranged := FilterByDateRange(all, r)
	filtered := FilterByPayer(ranged, q.Filter)
	page := Paginate(filtered, q.Page, pageSize)
	q.Page = page.Number
	return View{
		Query:    q,
		Range:    r,
		Summary:  CalculateTotals(ranged),
		Filtered: filtered,
		Counts:   CalculateTotals(filtered),
		Page:     page,
	}, nil
}
