package core

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func sampleExpenses() []Expense {
	return []Expense{
		{ID: "1", Payer: PayerLeslie, Amount: Money{Cents: 25000}, Description: "Textbooks", Date: NewDate(2024, 1, 15)},
		{ID: "2", Payer: PayerIan, Amount: Money{Cents: 45000}, Description: "Dorm supplies", Date: NewDate(2024, 1, 10)},
		{ID: "3", Payer: PayerLeslie, Amount: Money{Cents: 12550}, Description: "Groceries", Date: NewDate(2024, 1, 8)},
	}
}

func TestCalculateTotalsScenario(t *testing.T) {
	got := CalculateTotals(sampleExpenses())

	if got.Count != 3 {
		t.Fatalf("expected count 3, got %d", got.Count)
	}
	if got.Total.Cents != 82550 {
		t.Fatalf("expected total 825.50, got %s", got.Total)
	}
	if got.Leslie.Cents != 37550 || got.Ian.Cents != 45000 {
		t.Fatalf("unexpected buckets leslie=%s ian=%s", got.Leslie, got.Ian)
	}
	if got.LesliePercentage != 45.5 || got.IanPercentage != 54.5 {
		t.Fatalf("unexpected percentages %v / %v", got.LesliePercentage, got.IanPercentage)
	}
	if !got.IanOwes.IsZero() {
		t.Fatalf("expected Ian owes 0, got %s", got.IanOwes)
	}
	if !got.LeslieOwes.Equal(decimal.RequireFromString("37.25")) {
		t.Fatalf("expected Leslie owes 37.25, got %s", got.LeslieOwes)
	}
	if !got.Target.Equal(decimal.RequireFromString("412.75")) {
		t.Fatalf("expected target 412.75, got %s", got.Target)
	}
	if msg := got.Balance().Message(); msg != "Leslie owes Ian $37.25" {
		t.Fatalf("unexpected balance message %q", msg)
	}
}

func TestCalculateTotalsEmpty(t *testing.T) {
	got := CalculateTotals(nil)
	if got.Total.Cents != 0 || got.Count != 0 {
		t.Fatalf("expected zero totals, got %+v", got)
	}
	if got.LesliePercentage != 0 || got.IanPercentage != 0 {
		t.Fatalf("expected zero percentages")
	}
	if !got.LeslieOwes.IsZero() || !got.IanOwes.IsZero() {
		t.Fatalf("expected nobody owes")
	}
	if !got.Balance().Settled() {
		t.Fatalf("expected settled balance")
	}
	if got.Balance().Message() != "Expenses are balanced!" {
		t.Fatalf("unexpected message %q", got.Balance().Message())
	}
}

func TestCalculateTotalsCaseInsensitiveAndUnknownPayer(t *testing.T) {
	list := []Expense{
		{Payer: "leslie", Amount: Money{Cents: 1000}},
		{Payer: "IAN", Amount: Money{Cents: 2000}},
		{Payer: "Sofia", Amount: Money{Cents: 500}},
	}
	got := CalculateTotals(list)
	if got.Total.Cents != 3500 {
		t.Fatalf("unknown payer must count toward total, got %s", got.Total)
	}
	if got.Leslie.Cents != 1000 || got.Ian.Cents != 2000 {
		t.Fatalf("unexpected buckets %s / %s", got.Leslie, got.Ian)
	}
	if got.Leslie.Cents+got.Ian.Cents > got.Total.Cents {
		t.Fatalf("buckets exceed total")
	}
}

func TestCalculateTotalsPercentagesNeverExceedHundred(t *testing.T) {
	got := CalculateTotals([]Expense{
		{Payer: PayerLeslie, Amount: Money{Cents: 909}},
		{Payer: PayerIan, Amount: Money{Cents: 1091}},
	})
	if got.LesliePercentage != 45.4 || got.IanPercentage != 54.6 {
		t.Fatalf("unexpected percentages %v / %v", got.LesliePercentage, got.IanPercentage)
	}
}

func TestCalculateTotalsBalancedWithinTolerance(t *testing.T) {
	cases := []struct {
		leslie, ian int64
	}{
		{10000, 10000},
		{10000, 10001},
		{10002, 10000},
		{1, 3},
	}
	for _, tc := range cases {
		got := CalculateTotals([]Expense{
			{Payer: PayerLeslie, Amount: Money{Cents: tc.leslie}},
			{Payer: PayerIan, Amount: Money{Cents: tc.ian}},
		})
		if !got.LeslieOwes.IsZero() || !got.IanOwes.IsZero() {
			t.Fatalf("%d/%d expected nobody owes, got %s / %s", tc.leslie, tc.ian, got.LeslieOwes, got.IanOwes)
		}
	}
}

func TestCalculateTotalsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		n := rng.Intn(30)
		list := make([]Expense, n)
		var sum int64
		for i := range list {
			p := PayerLeslie
			if rng.Intn(2) == 0 {
				p = PayerIan
			}
			c := int64(rng.Intn(100000))
			sum += c
			list[i] = Expense{Payer: p, Amount: Money{Cents: c}}
		}
		got := CalculateTotals(list)
		if got.Total.Cents != sum {
			t.Fatalf("round %d: total %d != sum %d", round, got.Total.Cents, sum)
		}
		if got.Leslie.Cents+got.Ian.Cents != got.Total.Cents {
			t.Fatalf("round %d: buckets do not add up", round)
		}
		if got.LesliePercentage+got.IanPercentage > 100.0+1e-9 {
			t.Fatalf("round %d: percentages exceed 100: %v", round, got.LesliePercentage+got.IanPercentage)
		}
		if got.LeslieOwes.IsPositive() && got.IanOwes.IsPositive() {
			t.Fatalf("round %d: both owe", round)
		}

		shuffled := append([]Expense(nil), list...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again := CalculateTotals(shuffled)
		if again.Total != got.Total || !again.LeslieOwes.Equal(got.LeslieOwes) || again.IanPercentage != got.IanPercentage {
			t.Fatalf("round %d: result depends on order", round)
		}
	}
}
