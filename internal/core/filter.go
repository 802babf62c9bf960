package core

import (
	"errors"
	"strings"
	"time"
)

var ErrInvertedRange = errors.New("start date is after end date")

// DateRange bounds a date filter. A zero bound means unbounded on that side.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range has no bounds at all.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r DateRange) location() *time.Location {
	if !r.Start.IsZero() {
		return r.Start.Location()
	}
	return r.End.Location()
}

// Contains reports whether the calendar date d, taken at local midnight,
// falls within the range. Unresolvable dates are never contained.
func (r DateRange) Contains(d Date) bool {
	if d.Validate() != nil {
		return false
	}
	t := d.In(r.location())
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// FilterByPayer keeps expenses whose payer matches filter case-insensitively.
// "all" returns expenses unchanged.
func FilterByPayer(expenses []Expense, filter string) []Expense {
	filter = strings.TrimSpace(filter)
	if filter == "" || strings.EqualFold(filter, FilterAll) {
		return expenses
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Payer.Is(Payer(filter)) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByDateRange keeps expenses whose date lies within r, both ends
// inclusive. A range with no bounds returns expenses unchanged.
func FilterByDateRange(expenses []Expense, r DateRange) []Expense {
	if r.IsZero() {
		return expenses
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}
