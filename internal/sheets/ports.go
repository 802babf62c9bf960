package sheets

import (
	"context"

	"sofia/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// ExpenseDeleter removes an expense by ID and returns what was removed.
	// Unknown IDs yield core.ErrNotFound.
	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, id string) (core.Expense, error)
	}

	// ExpenseLister returns the full expense snapshot, newest first.
	ExpenseLister interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	// ActivityReader returns up to limit audit entries, newest first.
	ActivityReader interface {
		ListActivity(ctx context.Context, limit int) ([]core.Activity, error)
	}
)
