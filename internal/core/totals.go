package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BalanceTolerance is the owed amount at or below which the household
// is considered even.
var BalanceTolerance = decimal.New(1, -2)

var two = decimal.NewFromInt(2)

// Totals summarises a set of expenses for the two household members.
type Totals struct {
	Count int
	Total Money

	Leslie Money
	Ian    Money

	// Share of Total, rounded to one decimal place with ties to even so the
	// two shares never add up to more than 100. Zero when Total is zero.
	LesliePercentage float64
	IanPercentage    float64

	// What each member still has to contribute to reach an even split.
	// At most one is positive when every payer is recognised.
	LeslieOwes decimal.Decimal
	IanOwes    decimal.Decimal

	// Target is Total/2 in dollars.
	Target decimal.Decimal
}

// Balance says who owes whom after a Totals computation.
type Balance struct {
	Debtor   Payer
	Creditor Payer
	Amount   decimal.Decimal
}

// CalculateTotals sums amounts overall and per payer. It is a pure function
// of the multiset of (payer, amount) pairs in expenses.
func CalculateTotals(expenses []Expense) Totals {
	var t Totals
	t.Count = len(expenses)
	for _, e := range expenses {
		t.Total.Cents += e.Amount.Cents
		switch {
		case e.Payer.Is(PayerLeslie):
			t.Leslie.Cents += e.Amount.Cents
		case e.Payer.Is(PayerIan):
			t.Ian.Cents += e.Amount.Cents
		}
	}
	if t.Total.Cents == 0 {
		t.LeslieOwes = decimal.Zero
		t.IanOwes = decimal.Zero
		t.Target = decimal.Zero
		return t
	}

	total := t.Total.Decimal()
	t.LesliePercentage = percentage(t.Leslie.Decimal(), total)
	t.IanPercentage = percentage(t.Ian.Decimal(), total)

	t.Target = total.Div(two)
	t.LeslieOwes = owes(t.Target, t.Leslie.Decimal())
	t.IanOwes = owes(t.Target, t.Ian.Decimal())
	return t
}

func percentage(part, total decimal.Decimal) float64 {
	return part.Div(total).Mul(hundred).RoundBank(1).InexactFloat64()
}

func owes(target, paid decimal.Decimal) decimal.Decimal {
	diff := target.Sub(paid)
	if diff.LessThanOrEqual(BalanceTolerance) {
		return decimal.Zero
	}
	return diff
}

// Balance reports the member who owes money, if any.
func (t Totals) Balance() Balance {
	switch {
	case t.LeslieOwes.IsPositive():
		return Balance{Debtor: PayerLeslie, Creditor: PayerIan, Amount: t.LeslieOwes}
	case t.IanOwes.IsPositive():
		return Balance{Debtor: PayerIan, Creditor: PayerLeslie, Amount: t.IanOwes}
	}
	return Balance{Amount: decimal.Zero}
}

// Settled reports whether neither member owes anything.
func (b Balance) Settled() bool {
	return b.Debtor == ""
}

func (b Balance) Message() string {
	if b.Settled() {
		return "Expenses are balanced!"
	}
	return fmt.Sprintf("%s owes %s %s", b.Debtor, b.Creditor, FormatUSD(b.Amount))
}
