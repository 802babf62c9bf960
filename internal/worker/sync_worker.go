// Package worker runs the background side of sofia: mirroring the SQLite
// sync queue into Google Sheets, reacting to broker events and sending
// payment reminders.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sofia/internal/amqp"
	"sofia/internal/services"

	"golang.org/x/sync/errgroup"
)

const stopTimeout = 30 * time.Second

// Processor drains the sync queue.
type Processor interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Trigger()
}

// Consumer delivers broker events until ctx ends.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.EventMessage) error) error
}

// ReminderChecker sends a payment reminder when one is owed.
type ReminderChecker interface {
	Check(ctx context.Context, now time.Time) (services.ReminderResult, error)
}

// Config selects the optional parts of the worker. Nil parts are skipped.
type Config struct {
	Processor   Processor
	Consumer    Consumer
	Reminders   ReminderChecker
	RemindEvery time.Duration
}

// SyncWorker ties the queue processor, the event consumer and the
// reminder loop together.
type SyncWorker struct {
	processor   Processor
	consumer    Consumer
	reminders   ReminderChecker
	remindEvery time.Duration
	now         func() time.Time
}

func NewSyncWorker(cfg Config) *SyncWorker {
	if cfg.RemindEvery <= 0 {
		cfg.RemindEvery = 6 * time.Hour
	}
	return &SyncWorker{
		processor:   cfg.Processor,
		consumer:    cfg.Consumer,
		reminders:   cfg.Reminders,
		remindEvery: cfg.RemindEvery,
		now:         time.Now,
	}
}

// HandleEvent reacts to one broker message. Expense writes wake the queue
// processor so the mirror catches up without waiting for the next poll.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.EventMessage) error {
	switch msg.Type {
	case amqp.EventExpenseCreated, amqp.EventExpenseDeleted:
		slog.InfoContext(ctx, "Processing expense event",
			"event_type", msg.Type,
			"id", msg.Expense.ID,
			"amount_cents", msg.Expense.AmountCents)
		if w.processor != nil {
			w.processor.Trigger()
		}
	case amqp.EventPaymentDue:
		slog.InfoContext(ctx, "Payment due",
			"due_date", msg.Payment.DueDate,
			"days_left", msg.Payment.DaysLeft,
			"total_cents", msg.Payment.TotalCents,
			"items", len(msg.Payment.Items))
	default:
		slog.WarnContext(ctx, "Ignoring unknown event", "event_type", msg.Type)
	}
	return nil
}

// Run blocks until ctx is cancelled or one of the loops fails.
func (w *SyncWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if w.processor != nil {
		if err := w.processor.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return w.processor.Stop(stopCtx)
		})
	} else {
		slog.InfoContext(ctx, "Sheets mirror disabled, sync queue is not drained")
	}

	if w.consumer != nil {
		g.Go(func() error {
			return ignoreCanceled(w.consumer.Consume(gctx, w.HandleEvent))
		})
	} else {
		slog.InfoContext(ctx, "AMQP disabled, relying on queue polling")
	}

	if w.reminders != nil {
		g.Go(func() error {
			return w.remindLoop(gctx)
		})
	}

	slog.InfoContext(ctx, "Worker started",
		"mirror", w.processor != nil,
		"events", w.consumer != nil,
		"reminders", w.reminders != nil)

	err := g.Wait()
	slog.InfoContext(ctx, "Worker stopped", "error", err)
	return err
}

// remindLoop checks once at start and then every remindEvery. Check
// errors are logged so a flaky broker does not stop the worker.
func (w *SyncWorker) remindLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.remindEvery)
	defer ticker.Stop()

	for {
		if _, err := w.reminders.Check(ctx, w.now()); err != nil {
			slog.ErrorContext(ctx, "Payment reminder check failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
