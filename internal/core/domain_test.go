package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-01-15", NewDate(2024, 1, 15), true},
		{"2024-1-5", NewDate(2024, 1, 5), true},
		{" 2025-12-31 ", NewDate(2025, 12, 31), true},
		{"2024-02-29", NewDate(2024, 2, 29), true},
		{"2023-02-29", Date{}, false},
		{"2024-13-01", Date{}, false},
		{"2024-00-10", Date{}, false},
		{"2024-01-32", Date{}, false},
		{"2024/01/15", Date{}, false},
		{"2024-01", Date{}, false},
		{"2024--15", Date{}, false},
		{"abcd-01-15", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if err == nil {
			t.Fatalf("%q expected error, got %v", tc.in, got)
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateInKeepsCalendarDay(t *testing.T) {
	// A west-of-UTC zone is where UTC parsing used to shift dates back a day.
	la := time.FixedZone("PST", -8*3600)
	d := NewDate(2024, 1, 15)
	got := d.In(la)
	if got.Year() != 2024 || got.Month() != time.January || got.Day() != 15 || got.Hour() != 0 {
		t.Fatalf("unexpected local midnight: %v", got)
	}
	if DateOf(got) != d {
		t.Fatalf("round trip mismatch: %v", DateOf(got))
	}
	if d.String() != "2024-01-15" {
		t.Fatalf("unexpected string %q", d.String())
	}
	if (Date{}).String() != "" {
		t.Fatalf("zero date should render empty")
	}
}

func TestDateBefore(t *testing.T) {
	if !NewDate(2024, 1, 8).Before(NewDate(2024, 1, 9)) {
		t.Fatalf("expected 01-08 before 01-09")
	}
	if NewDate(2024, 2, 1).Before(NewDate(2024, 1, 31)) {
		t.Fatalf("02-01 is not before 01-31")
	}
	if NewDate(2024, 1, 1).Before(NewDate(2024, 1, 1)) {
		t.Fatalf("equal dates are not before each other")
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Payer:       PayerLeslie,
		Date:        NewDate(2025, 1, 1),
		Description: "Books",
		Amount:      Money{Cents: 100},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	lower := good
	lower.Payer = "ian"
	if err := lower.Validate(); err != nil {
		t.Fatalf("lowercase payer should be accepted, got %v", err)
	}

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	bads := []struct {
		mutate func(*Expense)
		want   error
	}{
		{func(e *Expense) { e.Date = Date{} }, ErrInvalidDate},
		{func(e *Expense) { e.Description = "  " }, ErrEmptyDescription},
		{func(e *Expense) { e.Description = string(long) }, ErrDescriptionLong},
		{func(e *Expense) { e.Description = strings.Repeat("é", 201) }, ErrDescriptionLong},
		{func(e *Expense) { e.Note = strings.Repeat("n", 501) }, ErrNoteLong},
		{func(e *Expense) { e.Amount = Money{} }, ErrInvalidAmount},
		{func(e *Expense) { e.Payer = "Sofia" }, ErrUnknownPayer},
	}
	// Limits count characters, not bytes.
	multibyte := good
	multibyte.Description = strings.Repeat("教", 200)
	multibyte.Note = strings.Repeat("ü", 500)
	if err := multibyte.Validate(); err != nil {
		t.Fatalf("200-character description should be accepted, got %v", err)
	}

	for i, tc := range bads {
		e := good
		tc.mutate(&e)
		err := e.Validate()
		if !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
		if !IsValidation(err) {
			t.Fatalf("case %d expected validation error", i)
		}
	}
}

func TestPayerHelpers(t *testing.T) {
	if !Payer("LESLIE").Known() || Payer("Sofia").Known() {
		t.Fatalf("Known mismatch")
	}
	if Payer("ian").Canonical() != PayerIan {
		t.Fatalf("expected canonical Ian")
	}
	if Payer("bob").Canonical() != "bob" {
		t.Fatalf("unknown payer should stay unchanged")
	}
	if PayerIan.Other() != PayerLeslie || PayerLeslie.Other() != PayerIan {
		t.Fatalf("Other mismatch")
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	list := []Expense{
		{ID: "a", Timestamp: base},
		{ID: "b", Timestamp: base.Add(2 * time.Hour)},
		{ID: "c", Timestamp: base.Add(time.Hour)},
	}
	SortNewestFirst(list)
	got := list[0].ID + list[1].ID + list[2].ID
	if got != "bca" {
		t.Fatalf("expected bca, got %s", got)
	}
}
