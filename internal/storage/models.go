package storage

import "database/sql"

// Row types mirror the schema one to one. Timestamps are stored as
// fixed-width UTC text (see timeLayout) so they sort lexically.

type Expense struct {
	ID          string
	Payer       string
	AmountCents int64
	Description string
	Date        string
	Note        string
	CreatedAt   string
	SyncStatus  string
	SyncedAt    sql.NullString
}

type ActivityHistory struct {
	ID          int64
	Action      string
	ExpenseID   string
	Description string
	AmountCents int64
	Payer       string
	Date        string
	CreatedAt   string
}

type SyncQueue struct {
	ID                 int64
	ExpenseID          string
	Operation          string
	Status             string
	Attempts           int64
	LastError          sql.NullString
	NextAttemptAt      string
	CreatedAt          string
	UpdatedAt          string
	ExpensePayer       string
	ExpenseAmountCents int64
	ExpenseDescription string
	ExpenseDate        string
	ExpenseNote        string
}

type SyncQueueStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

type Reminder struct {
	DueDate string
	SentAt  string
}
