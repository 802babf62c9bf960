package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	PayerLeslie Payer = "Leslie"
	PayerIan    Payer = "Ian"
)

const (
	maxDescriptionLen = 200
	maxNoteLen        = 500
)

type (
	// Payer is the household member who paid for an expense.
	Payer string

	// Date is a calendar date with no time of day and no zone.
	// The zero value means the date could not be resolved.
	Date struct {
		Year  int
		Month int
		Day   int
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID          string
		Payer       Payer
		Amount      Money
		Description string
		Date        Date
		Note        string
		Timestamp   time.Time // creation instant, ordering only
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrUnknownPayer     = errors.New("unknown payer")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrNoteLong         = errors.New("note too long (max 500 characters)")
	ErrUnknownPreset    = errors.New("unknown date range")

	ErrNotFound = errors.New("expense not found")
)

// IsValidation reports whether err was caused by invalid user input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidDay, ErrInvalidMonth, ErrInvalidDate, ErrInvalidAmount,
		ErrEmptyDescription, ErrUnknownPayer, ErrDescriptionLong, ErrNoteLong,
		ErrInvertedRange, ErrUnknownPreset,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// KnownPayers lists the household members in display order.
var KnownPayers = []Payer{PayerLeslie, PayerIan}

// Known reports whether p is one of the household members.
func (p Payer) Known() bool {
	_, ok := canonicalPayer(string(p))
	return ok
}

// Canonical returns the display spelling of p, or p unchanged when unknown.
func (p Payer) Canonical() Payer {
	if c, ok := canonicalPayer(string(p)); ok {
		return c
	}
	return p
}

// Is compares payers case-insensitively.
func (p Payer) Is(other Payer) bool {
	return strings.EqualFold(strings.TrimSpace(string(p)), strings.TrimSpace(string(other)))
}

// Other returns the counterpart household member.
func (p Payer) Other() Payer {
	if p.Is(PayerLeslie) {
		return PayerIan
	}
	return PayerLeslie
}

func (p Payer) String() string { return string(p) }

func canonicalPayer(s string) (Payer, bool) {
	s = strings.TrimSpace(s)
	for _, k := range KnownPayers {
		if strings.EqualFold(s, string(k)) {
			return k, true
		}
	}
	return "", false
}

// NewDate creates a Date from year, month and day components.
func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// ParseDate reads a YYYY-MM-DD string component by component.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var nums [3]int
	for i, p := range parts {
		if p == "" {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	d := NewDate(nums[0], nums[1], nums[2])
	if err := d.Validate(); err != nil {
		return Date{}, fmt.Errorf("%w: %w: %q", ErrInvalidDate, err, s)
	}
	return d, nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if d.Year < 1 || d.Year > 9999 {
		return ErrInvalidDate
	}
	if d.Month < 1 || d.Month > 12 {
		return ErrInvalidMonth
	}
	if d.Day < 1 || d.Day > daysIn(d.Year, d.Month) {
		return ErrInvalidDay
	}
	return nil
}

// In returns local midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if _, ok := canonicalPayer(string(e.Payer)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPayer, e.Payer)
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	if utf8.RuneCountInString(e.Note) > maxNoteLen {
		return ErrNoteLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// SortNewestFirst orders expenses by creation timestamp, most recent first.
func SortNewestFirst(expenses []Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		return expenses[i].Timestamp.After(expenses[j].Timestamp)
	})
}
