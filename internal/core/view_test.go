package core

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestBuildViewKeepsTotalsBasesApart(t *testing.T) {
	now := time.Date(2024, 1, 16, 10, 0, 0, 0, time.Local)
	q := DefaultListQuery().WithCustomRange("2024-01-09", "2024-01-16").WithFilter("Leslie")

	v, err := BuildView(sampleExpenses(), q, DefaultPageSize, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// summary ignores the payer filter
	if v.Summary.Count != 2 || v.Summary.Total.Cents != 70000 {
		t.Fatalf("unexpected summary %+v", v.Summary)
	}
	if v.Counts.Count != 1 || v.Counts.Total.Cents != 25000 {
		t.Fatalf("unexpected list counts %+v", v.Counts)
	}
	if ids(v.Page.Items) != "1" {
		t.Fatalf("unexpected page items %q", ids(v.Page.Items))
	}
}

func TestBuildViewPaginatesFilteredList(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var list []Expense
	for i := 0; i < 23; i++ {
		list = append(list, Expense{ID: fmt.Sprintf("e%02d", i), Payer: PayerIan, Amount: Money{Cents: 100}, Date: NewDate(2024, 2, 1)})
	}
	list = append(list, Expense{ID: "x", Payer: PayerLeslie, Amount: Money{Cents: 100}, Date: NewDate(2024, 2, 1)})

	q := DefaultListQuery().WithFilter("Ian").WithPage(3)
	v, err := BuildView(list, q, DefaultPageSize, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Page.TotalPages != 3 || len(v.Page.Items) != 3 {
		t.Fatalf("expected 3 items on page 3 of 3, got %d of %d", len(v.Page.Items), v.Page.TotalPages)
	}

	q = v.Query.WithFilter("all")
	v, _ = BuildView(list, q, DefaultPageSize, now)
	if v.Page.Number != 1 {
		t.Fatalf("changing filter must land on page 1, got %d", v.Page.Number)
	}
}

func TestBuildViewClampsPage(t *testing.T) {
	v, err := BuildView(sampleExpenses(), DefaultListQuery().WithPage(7), DefaultPageSize, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Query.Page != 1 {
		t.Fatalf("expected clamped page 1, got %d", v.Query.Page)
	}
}

func TestBuildViewRejectsInvertedRange(t *testing.T) {
	q := DefaultListQuery().WithCustomRange("2024-02-01", "2024-01-01")
	if _, err := BuildView(sampleExpenses(), q, DefaultPageSize, time.Now()); !errors.Is(err, ErrInvertedRange) {
		t.Fatalf("expected ErrInvertedRange, got %v", err)
	}
}
