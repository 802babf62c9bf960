// Package schedule holds the static college payment calendar and the
// helpers behind the "next payment due" banner.
package schedule

import (
	"math"
	"sort"
	"time"

	"sofia/internal/core"
)

// Payment is one instalment on the billing calendar.
type Payment struct {
	Due         core.Date
	Description string
	Amount      core.Money
}

// Banner is what the page header shows about the next due date.
type Banner struct {
	Due      core.Date
	Payments []Payment
	Total    core.Money
	DaysLeft int
}

// Empty reports whether the schedule has no upcoming payments.
func (b Banner) Empty() bool { return len(b.Payments) == 0 }

// Calendar is an ordered list of payments.
type Calendar []Payment

// Default is the 2025-26 dining and housing calendar.
var Default = Calendar{
	{core.NewDate(2025, 10, 1), "Dining", core.Money{Cents: 71000}},
	{core.NewDate(2025, 10, 1), "Housing", core.Money{Cents: 143900}},
	{core.NewDate(2025, 11, 1), "Dining", core.Money{Cents: 75500}},
	{core.NewDate(2025, 11, 1), "Housing", core.Money{Cents: 143900}},
	{core.NewDate(2025, 12, 1), "Dining", core.Money{Cents: 75500}},
	{core.NewDate(2025, 12, 1), "Housing", core.Money{Cents: 125300}},
	{core.NewDate(2026, 1, 1), "Dining", core.Money{Cents: 75500}},
	{core.NewDate(2026, 1, 1), "Housing", core.Money{Cents: 125300}},
	{core.NewDate(2026, 2, 1), "Dining", core.Money{Cents: 75500}},
	{core.NewDate(2026, 2, 1), "Housing", core.Money{Cents: 125300}},
	{core.NewDate(2026, 3, 1), "Dining", core.Money{Cents: 75500}},
	{core.NewDate(2026, 3, 1), "Housing", core.Money{Cents: 123800}},
	{core.NewDate(2026, 4, 1), "Dining", core.Money{Cents: 75500}},
	{core.NewDate(2026, 4, 1), "Housing", core.Money{Cents: 123800}},
}

// NextDue returns every payment on the earliest due date strictly after
// now. Due dates are taken at local midnight in now's location.
func (c Calendar) NextDue(now time.Time) []Payment {
	var future []Payment
	for _, p := range c {
		if p.Due.In(now.Location()).After(now) {
			future = append(future, p)
		}
	}
	if len(future) == 0 {
		return nil
	}
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].Due.Before(future[j].Due)
	})
	first := future[0].Due
	out := future[:0]
	for _, p := range future {
		if p.Due == first {
			out = append(out, p)
		}
	}
	return out
}

// DaysUntil is the whole number of days, rounded up, until the next due
// date. Zero when nothing is due.
func (c Calendar) DaysUntil(now time.Time) int {
	next := c.NextDue(now)
	if len(next) == 0 {
		return 0
	}
	diff := next[0].Due.In(now.Location()).Sub(now)
	return int(math.Ceil(diff.Hours() / 24))
}

// Banner bundles the next due payments for display.
func (c Calendar) Banner(now time.Time) Banner {
	next := c.NextDue(now)
	if len(next) == 0 {
		return Banner{}
	}
	b := Banner{Due: next[0].Due, Payments: next, DaysLeft: c.DaysUntil(now)}
	for _, p := range next {
		b.Total.Cents += p.Amount.Cents
	}
	return b
}
