package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sofia/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored instants compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	OpSync   = "sync"
	OpDelete = "delete"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Append implements sheets.ExpenseWriter. The expense row, its activity
// entry and the mirror queue item are written in one transaction.
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (string, error) {
	now := r.now()
	err := r.withTx(ctx, func(q *Queries) error {
		if err := q.CreateExpense(ctx, CreateExpenseParams{
			ID:          e.ID,
			Payer:       e.Payer.String(),
			AmountCents: e.Amount.Cents,
			Description: e.Description,
			Date:        e.Date.String(),
			Note:        e.Note,
			CreatedAt:   formatTime(e.Timestamp),
		}); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if _, err := q.CreateActivity(ctx, activityParams(core.ActionAdd, e, now)); err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		if _, err := q.EnqueueSync(ctx, enqueueParams(OpSync, e, now)); err != nil {
			return fmt.Errorf("enqueue sync: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"payer", e.Payer,
		"date", e.Date.String())

	return e.ID, nil
}

// DeleteExpense implements sheets.ExpenseDeleter and returns the removed row.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) (core.Expense, error) {
	now := r.now()
	var removed core.Expense
	err := r.withTx(ctx, func(q *Queries) error {
		row, err := q.GetExpense(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get expense: %w", err)
		}
		removed = r.toCore(ctx, row)

		if _, err := q.DeleteExpense(ctx, id); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		if _, err := q.CreateActivity(ctx, activityParams(core.ActionDelete, removed, now)); err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		if _, err := q.EnqueueSync(ctx, enqueueParams(OpDelete, removed, now)); err != nil {
			return fmt.Errorf("enqueue delete: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return removed, nil
}

// GetExpense retrieves a single expense by ID
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return r.toCore(ctx, row), nil
}

// ListExpenses implements sheets.ExpenseLister, newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses := make([]core.Expense, len(rows))
	for i, row := range rows {
		expenses[i] = r.toCore(ctx, row)
	}
	return expenses, nil
}

// ListActivity implements sheets.ActivityReader, newest first.
func (r *SQLiteRepository) ListActivity(ctx context.Context, limit int) ([]core.Activity, error) {
	rows, err := r.queries.ListActivity(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	out := make([]core.Activity, len(rows))
	for i, row := range rows {
		at, err := parseTime(row.CreatedAt)
		if err != nil {
			slog.WarnContext(ctx, "Malformed activity timestamp", "id", row.ID, "created_at", row.CreatedAt)
		}
		date, _ := core.ParseDate(row.Date)
		out[i] = core.Activity{
			ID:          row.ID,
			Action:      core.ActivityAction(row.Action),
			ExpenseID:   row.ExpenseID,
			Description: row.Description,
			Amount:      core.Money{Cents: row.AmountCents},
			Payer:       core.Payer(row.Payer),
			Date:        date,
			At:          at,
		}
	}
	return out, nil
}

// toCore converts a row. A malformed date loads as the zero Date so the
// record still counts toward unfiltered totals.
func (r *SQLiteRepository) toCore(ctx context.Context, row Expense) core.Expense {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		slog.WarnContext(ctx, "Malformed expense date", "id", row.ID, "date", row.Date, "error", err)
		date = core.Date{}
	}
	ts, err := parseTime(row.CreatedAt)
	if err != nil {
		slog.WarnContext(ctx, "Malformed expense timestamp", "id", row.ID, "created_at", row.CreatedAt)
	}
	return core.Expense{
		ID:          row.ID,
		Payer:       core.Payer(row.Payer),
		Amount:      core.Money{Cents: row.AmountCents},
		Description: row.Description,
		Date:        date,
		Note:        row.Note,
		Timestamp:   ts,
	}
}

func activityParams(action core.ActivityAction, e core.Expense, at time.Time) CreateActivityParams {
	return CreateActivityParams{
		Action:      string(action),
		ExpenseID:   e.ID,
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		Payer:       e.Payer.String(),
		Date:        e.Date.String(),
		CreatedAt:   formatTime(at),
	}
}

func enqueueParams(op string, e core.Expense, at time.Time) EnqueueSyncParams {
	return EnqueueSyncParams{
		ExpenseID:          e.ID,
		Operation:          op,
		Now:                formatTime(at),
		ExpensePayer:       e.Payer.String(),
		ExpenseAmountCents: e.Amount.Cents,
		ExpenseDescription: e.Description,
		ExpenseDate:        e.Date.String(),
		ExpenseNote:        e.Note,
	}
}

// QueuedExpense rebuilds the expense snapshot carried by a queue item.
func QueuedExpense(item SyncQueue) core.Expense {
	date, _ := core.ParseDate(item.ExpenseDate)
	ts, _ := parseTime(item.CreatedAt)
	return core.Expense{
		ID:          item.ExpenseID,
		Payer:       core.Payer(item.ExpensePayer),
		Amount:      core.Money{Cents: item.ExpenseAmountCents},
		Description: item.ExpenseDescription,
		Date:        date,
		Note:        item.ExpenseNote,
		Timestamp:   ts,
	}
}

// DequeueSyncBatch returns pending queue items whose retry time has come.
func (r *SQLiteRepository) DequeueSyncBatch(ctx context.Context, limit int64) ([]SyncQueue, error) {
	items, err := r.queries.DequeueSyncBatch(ctx, formatTime(r.now()), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	return items, nil
}

// MarkSyncProcessing claims an item. It reports false when another
// processor already took it.
func (r *SQLiteRepository) MarkSyncProcessing(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.MarkSyncProcessing(ctx, id, formatTime(r.now()))
	if err != nil {
		return false, fmt.Errorf("mark sync processing: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkSyncComplete(ctx context.Context, id int64) error {
	if err := r.queries.MarkSyncComplete(ctx, id, formatTime(r.now())); err != nil {
		return fmt.Errorf("mark sync complete: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, lastError string) error {
	if err := r.queries.MarkSyncFailed(ctx, id, lastError, formatTime(r.now())); err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}
	return nil
}

// IncrementSyncAttempt puts the item back in the queue, not before retryAt.
func (r *SQLiteRepository) IncrementSyncAttempt(ctx context.Context, id int64, lastError string, retryAt time.Time) error {
	if err := r.queries.IncrementSyncAttempt(ctx, id, lastError, formatTime(retryAt), formatTime(r.now())); err != nil {
		return fmt.Errorf("increment sync attempt: %w", err)
	}
	return nil
}

// ResetStaleProcessing requeues items left in processing by a crash.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	n, err := r.queries.ResetStaleProcessing(ctx, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("reset stale processing: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Reset stale sync items", "count", n)
	}
	return nil
}

func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) error {
	n, err := r.queries.CleanupCompletedSyncs(ctx, formatTime(cutoff))
	if err != nil {
		return fmt.Errorf("cleanup completed syncs: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up completed sync items", "count", n)
	}
	return nil
}

func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	n, err := r.queries.RetryFailedSyncs(ctx, formatTime(r.now()))
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetSyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	stats, err := r.queries.GetSyncQueueStats(ctx)
	if err != nil {
		return SyncQueueStats{}, fmt.Errorf("get sync queue stats: %w", err)
	}
	return stats, nil
}

// MarkSynced marks an expense as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if err := r.queries.MarkExpenseSynced(ctx, id, formatTime(r.now())); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	return nil
}

// MarkSyncError flags an expense whose mirror attempts are exhausted.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if err := r.queries.MarkExpenseSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// CountUnsynced returns how many expenses are not yet mirrored.
func (r *SQLiteRepository) CountUnsynced(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpensesBySyncStatus(ctx, "pending")
	if err != nil {
		return 0, fmt.Errorf("count unsynced expenses: %w", err)
	}
	return n, nil
}

// LastReminder returns when a reminder for due was last sent, or the zero
// time if never.
func (r *SQLiteRepository) LastReminder(ctx context.Context, due core.Date) (time.Time, error) {
	rem, err := r.queries.GetReminder(ctx, due.String())
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get reminder: %w", err)
	}
	return parseTime(rem.SentAt)
}

func (r *SQLiteRepository) RecordReminder(ctx context.Context, due core.Date, at time.Time) error {
	if err := r.queries.UpsertReminder(ctx, due.String(), formatTime(at)); err != nil {
		return fmt.Errorf("record reminder: %w", err)
	}
	return nil
}
