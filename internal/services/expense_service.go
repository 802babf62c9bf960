// Package services provides business logic and orchestration services.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sofia/internal/core"
	"sofia/internal/metrics"
	"sofia/internal/sheets"

	"github.com/google/uuid"
)

// ErrNotFound is returned when deleting an expense that does not exist.
var ErrNotFound = core.ErrNotFound

// ExpenseStore is the backend the service writes through. Each backend
// records its own activity entries on Append and DeleteExpense.
type ExpenseStore interface {
	sheets.ExpenseWriter
	sheets.ExpenseDeleter
	sheets.ExpenseLister
	sheets.ActivityReader
}

// EventPublisher announces expense writes to other processes.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
	PublishExpenseDeleted(ctx context.Context, e core.Expense) error
}

// NewExpense is the raw user input for a new expense.
type NewExpense struct {
	Payer       string `json:"payer"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Note        string `json:"note"`
}

// Parse converts raw input into a validated expense without ID or timestamp.
func (n NewExpense) Parse() (core.Expense, error) {
	payer, err := core.ParsePayer(n.Payer)
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseMoney(n.Amount)
	if err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(n.Date)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		Payer:       payer,
		Amount:      amount,
		Description: strings.TrimSpace(n.Description),
		Date:        date,
		Note:        strings.TrimSpace(n.Note),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ExpenseService orchestrates expense writes across the store and the broker.
type ExpenseService struct {
	store     ExpenseStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

// NewExpenseService wires a store with an optional publisher and metrics.
func NewExpenseService(store ExpenseStore, publisher EventPublisher, m *metrics.Metrics) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateExpense validates input, saves the expense and publishes
// expense.created. Publish failures are logged, not returned.
func (s *ExpenseService) CreateExpense(ctx context.Context, in NewExpense) (core.Expense, error) {
	e, err := in.Parse()
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = s.newID()
	e.Timestamp = s.now()

	ref, err := s.store.Append(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.metrics.ExpenseWritten(string(core.ActionAdd))

	slog.InfoContext(ctx, "Expense created",
		"id", e.ID,
		"ref", ref,
		"payer", e.Payer,
		"amount", e.Amount.String())

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseCreated(ctx, e); err != nil {
			s.metrics.PublishFailed()
			slog.ErrorContext(ctx, "Failed to publish expense event",
				"id", e.ID, "event", "expense.created", "error", err)
		}
	}
	return e, nil
}

// DeleteExpense removes an expense permanently and publishes
// expense.deleted. Unknown IDs yield ErrNotFound.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) (core.Expense, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Expense{}, ErrNotFound
	}
	removed, err := s.store.DeleteExpense(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("delete expense: %w", err)
	}
	s.metrics.ExpenseWritten(string(core.ActionDelete))

	slog.InfoContext(ctx, "Expense deleted", "id", id, "description", removed.Description)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseDeleted(ctx, removed); err != nil {
			s.metrics.PublishFailed()
			slog.ErrorContext(ctx, "Failed to publish expense event",
				"id", id, "event", "expense.deleted", "error", err)
		}
	}
	return removed, nil
}

// ListExpenses returns the full snapshot, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	list, err := s.store.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	core.SortNewestFirst(list)
	return list, nil
}

// ListActivity returns up to limit audit entries, newest first.
func (s *ExpenseService) ListActivity(ctx context.Context, limit int) ([]core.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.store.ListActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}
