package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// --- expenses ---

const expenseColumns = `id, payer, amount_cents, description, date, note, created_at, sync_status, synced_at`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.Payer, &e.AmountCents, &e.Description, &e.Date, &e.Note,
		&e.CreatedAt, &e.SyncStatus, &e.SyncedAt)
	return e, err
}

const createExpense = `INSERT INTO expenses (id, payer, amount_cents, description, date, note, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type CreateExpenseParams struct {
	ID          string
	Payer       string
	AmountCents int64
	Description string
	Date        string
	Note        string
	CreatedAt   string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) error {
	_, err := q.db.ExecContext(ctx, createExpense,
		arg.ID, arg.Payer, arg.AmountCents, arg.Description, arg.Date, arg.Note, arg.CreatedAt)
	return err
}

const getExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`

func (q *Queries) GetExpense(ctx context.Context, id string) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getExpense, id))
}

const listExpenses = `SELECT ` + expenseColumns + ` FROM expenses ORDER BY created_at DESC, id`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

// DeleteExpense returns the number of rows removed.
func (q *Queries) DeleteExpense(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markExpenseSynced = `UPDATE expenses SET sync_status = 'synced', synced_at = ? WHERE id = ?`

func (q *Queries) MarkExpenseSynced(ctx context.Context, id, at string) error {
	_, err := q.db.ExecContext(ctx, markExpenseSynced, at, id)
	return err
}

const markExpenseSyncError = `UPDATE expenses SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkExpenseSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markExpenseSyncError, id)
	return err
}

const countExpensesBySyncStatus = `SELECT COUNT(*) FROM expenses WHERE sync_status = ?`

func (q *Queries) CountExpensesBySyncStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countExpensesBySyncStatus, status).Scan(&n)
	return n, err
}

// --- activity ---

const createActivity = `INSERT INTO activity_history (action, expense_id, description, amount_cents, payer, date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type CreateActivityParams struct {
	Action      string
	ExpenseID   string
	Description string
	AmountCents int64
	Payer       string
	Date        string
	CreatedAt   string
}

func (q *Queries) CreateActivity(ctx context.Context, arg CreateActivityParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createActivity,
		arg.Action, arg.ExpenseID, arg.Description, arg.AmountCents, arg.Payer, arg.Date, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listActivity = `SELECT id, action, expense_id, description, amount_cents, payer, date, created_at
FROM activity_history ORDER BY created_at DESC, id DESC LIMIT ?`

func (q *Queries) ListActivity(ctx context.Context, limit int64) ([]ActivityHistory, error) {
	rows, err := q.db.QueryContext(ctx, listActivity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ActivityHistory
	for rows.Next() {
		var a ActivityHistory
		if err := rows.Scan(&a.ID, &a.Action, &a.ExpenseID, &a.Description, &a.AmountCents,
			&a.Payer, &a.Date, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// --- sync queue ---

const syncQueueColumns = `id, expense_id, operation, status, attempts, last_error, next_attempt_at, created_at, updated_at,
expense_payer, expense_amount_cents, expense_description, expense_date, expense_note`

const enqueueSync = `INSERT INTO sync_queue (expense_id, operation, next_attempt_at, created_at, updated_at,
expense_payer, expense_amount_cents, expense_description, expense_date, expense_note)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type EnqueueSyncParams struct {
	ExpenseID          string
	Operation          string
	Now                string
	ExpensePayer       string
	ExpenseAmountCents int64
	ExpenseDescription string
	ExpenseDate        string
	ExpenseNote        string
}

func (q *Queries) EnqueueSync(ctx context.Context, arg EnqueueSyncParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, enqueueSync,
		arg.ExpenseID, arg.Operation, arg.Now, arg.Now, arg.Now,
		arg.ExpensePayer, arg.ExpenseAmountCents, arg.ExpenseDescription, arg.ExpenseDate, arg.ExpenseNote)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const dequeueSyncBatch = `SELECT ` + syncQueueColumns + ` FROM sync_queue
WHERE status = 'pending' AND next_attempt_at <= ?
ORDER BY id LIMIT ?`

func (q *Queries) DequeueSyncBatch(ctx context.Context, now string, limit int64) ([]SyncQueue, error) {
	rows, err := q.db.QueryContext(ctx, dequeueSyncBatch, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncQueue
	for rows.Next() {
		var i SyncQueue
		if err := rows.Scan(&i.ID, &i.ExpenseID, &i.Operation, &i.Status, &i.Attempts, &i.LastError,
			&i.NextAttemptAt, &i.CreatedAt, &i.UpdatedAt,
			&i.ExpensePayer, &i.ExpenseAmountCents, &i.ExpenseDescription, &i.ExpenseDate, &i.ExpenseNote); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markSyncProcessing = `UPDATE sync_queue SET status = 'processing', updated_at = ? WHERE id = ? AND status = 'pending'`

func (q *Queries) MarkSyncProcessing(ctx context.Context, id int64, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSyncProcessing, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markSyncComplete = `UPDATE sync_queue SET status = 'completed', last_error = NULL, updated_at = ? WHERE id = ?`

func (q *Queries) MarkSyncComplete(ctx context.Context, id int64, now string) error {
	_, err := q.db.ExecContext(ctx, markSyncComplete, now, id)
	return err
}

const markSyncFailed = `UPDATE sync_queue SET status = 'failed', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`

func (q *Queries) MarkSyncFailed(ctx context.Context, id int64, lastError, now string) error {
	_, err := q.db.ExecContext(ctx, markSyncFailed, lastError, now, id)
	return err
}

const incrementSyncAttempt = `UPDATE sync_queue
SET status = 'pending', attempts = attempts + 1, last_error = ?, next_attempt_at = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) IncrementSyncAttempt(ctx context.Context, id int64, lastError, nextAttemptAt, now string) error {
	_, err := q.db.ExecContext(ctx, incrementSyncAttempt, lastError, nextAttemptAt, now, id)
	return err
}

const resetStaleProcessing = `UPDATE sync_queue SET status = 'pending', updated_at = ? WHERE status = 'processing'`

func (q *Queries) ResetStaleProcessing(ctx context.Context, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, resetStaleProcessing, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const cleanupCompletedSyncs = `DELETE FROM sync_queue WHERE status = 'completed' AND updated_at < ?`

func (q *Queries) CleanupCompletedSyncs(ctx context.Context, cutoff string) (int64, error) {
	res, err := q.db.ExecContext(ctx, cleanupCompletedSyncs, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const retryFailedSyncs = `UPDATE sync_queue SET status = 'pending', attempts = 0, next_attempt_at = ?, updated_at = ? WHERE status = 'failed'`

func (q *Queries) RetryFailedSyncs(ctx context.Context, now string) (int64, error) {
	res, err := q.db.ExecContext(ctx, retryFailedSyncs, now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getSyncQueueStats = `SELECT
	COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
FROM sync_queue`

func (q *Queries) GetSyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	var s SyncQueueStats
	err := q.db.QueryRowContext(ctx, getSyncQueueStats).Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed)
	return s, err
}

// --- reminders ---

const getReminder = `SELECT due_date, sent_at FROM reminders WHERE due_date = ?`

func (q *Queries) GetReminder(ctx context.Context, dueDate string) (Reminder, error) {
	var r Reminder
	err := q.db.QueryRowContext(ctx, getReminder, dueDate).Scan(&r.DueDate, &r.SentAt)
	return r, err
}

const upsertReminder = `INSERT INTO reminders (due_date, sent_at) VALUES (?, ?)
ON CONFLICT(due_date) DO UPDATE SET sent_at = excluded.sent_at`

func (q *Queries) UpsertReminder(ctx context.Context, dueDate, sentAt string) error {
	_, err := q.db.ExecContext(ctx, upsertReminder, dueDate, sentAt)
	return err
}
