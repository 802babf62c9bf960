package memory

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"sofia/internal/core"

	"github.com/google/uuid"
)

// Store keeps expenses and their activity log in process memory.
type Store struct {
	mu       sync.Mutex
	items    []core.Expense
	activity []core.Activity
	nextID   int64
	now      func() time.Time

	reminders map[core.Date]time.Time
}

func New(seed ...core.Expense) *Store {
	s := &Store{now: time.Now, reminders: map[core.Date]time.Time{}}
	s.items = append(s.items, seed...)
	return s
}

// NewFromFile seeds the store from a text file with one expense per line:
//
//	2024-01-15,Leslie,250.00,Textbooks,optional note
//
// Blank lines and lines starting with # are skipped. A missing file yields
// an empty store.
func NewFromFile(path string) *Store {
	return New(readSeed(path)...)
}

// Append stores the expense and returns its ID as the row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.items = append(s.items, e)
	s.record(core.ActionAdd, e)
	return e.ID, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID != id {
			continue
		}
		s.items = append(s.items[:i], s.items[i+1:]...)
		s.record(core.ActionDelete, e)
		return e, nil
	}
	return core.Expense{}, core.ErrNotFound
}

// ListExpenses returns a copy of the snapshot, newest first.
func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	out := append([]core.Expense(nil), s.items...)
	s.mu.Unlock()
	core.SortNewestFirst(out)
	return out, nil
}

func (s *Store) ListActivity(_ context.Context, limit int) ([]core.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.activity)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.Activity, 0, n)
	for i := len(s.activity) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.activity[i])
	}
	return out, nil
}

// LastReminder returns when a reminder for due was recorded, or the zero
// time.
func (s *Store) LastReminder(_ context.Context, due core.Date) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders[due], nil
}

func (s *Store) RecordReminder(_ context.Context, due core.Date, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[due] = at
	return nil
}

// record must be called with mu held.
func (s *Store) record(action core.ActivityAction, e core.Expense) {
	s.nextID++
	a := core.NewActivity(action, e, s.now())
	a.ID = s.nextID
	s.activity = append(s.activity, a)
}

func readSeed(path string) []core.Expense {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []core.Expense
	base := time.Now()
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseSeedLine(line)
		if err != nil {
			slog.Warn("Skipping seed line", "path", path, "line", lineNo, "error", err)
			continue
		}
		e.ID = uuid.NewString()
		// Later lines are newer.
		e.Timestamp = base.Add(time.Duration(lineNo) * time.Millisecond)
		out = append(out, e)
	}
	return out
}

func parseSeedLine(line string) (core.Expense, error) {
	parts := strings.SplitN(line, ",", 5)
	if len(parts) < 4 {
		return core.Expense{}, fmt.Errorf("expected date,payer,amount,description[,note], got %q", line)
	}
	date, err := core.ParseDate(parts[0])
	if err != nil {
		return core.Expense{}, err
	}
	payer, err := core.ParsePayer(parts[1])
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseMoney(parts[2])
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Payer:       payer,
		Amount:      amount,
		Description: strings.TrimSpace(parts[3]),
		Date:        date,
	}
	if len(parts) == 5 {
		e.Note = strings.TrimSpace(parts[4])
	}
	return e, e.Validate()
}
