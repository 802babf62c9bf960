package backend

import (
	"context"
	"errors"

	"sofia/internal/amqp"
	"sofia/internal/services"
	"sofia/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the store selected by configuration plus the optional
// pieces that only some backends provide.
type Result struct {
	Store     services.ExpenseStore
	Reminders services.ReminderLog

	// Repository is set only for the sqlite backend; the worker drains its
	// sync queue.
	Repository *storage.SQLiteRepository

	// Broker is nil when AMQP is not configured or unreachable.
	Broker *amqp.Client

	cleanups []CleanupFunc
}

// Publisher returns the broker as an EventPublisher, or a nil interface.
func (r *Result) Publisher() services.EventPublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// PaymentPublisher returns the broker as a PaymentPublisher, or a nil
// interface.
func (r *Result) PaymentPublisher() services.PaymentPublisher {
	if r.Broker == nil {
		return nil
	}
	return r.Broker
}

// Ping reports whether the store can serve requests.
func (r *Result) Ping(ctx context.Context) error {
	if p, ok := r.Store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	_, err := r.Store.ListExpenses(ctx)
	return err
}

// Close releases everything the factory opened, last opened first.
func (r *Result) Close() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	return errors.Join(errs...)
}

func (r *Result) onClose(fn CleanupFunc) {
	r.cleanups = append(r.cleanups, fn)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
