package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sofia/internal/core"
	"sofia/internal/metrics"
	"sofia/internal/sheets"
	"sofia/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// RetryBase is the first retry delay; later retries double it (default: 30s)
	RetryBase time.Duration

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		RetryBase:       30 * time.Second,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncQueue is the persistent mirror queue the processor drains.
type SyncQueue interface {
	ResetStaleProcessing(ctx context.Context) error
	DequeueSyncBatch(ctx context.Context, limit int64) ([]storage.SyncQueue, error)
	MarkSyncProcessing(ctx context.Context, id int64) (bool, error)
	MarkSyncComplete(ctx context.Context, id int64) error
	MarkSyncFailed(ctx context.Context, id int64, lastError string) error
	IncrementSyncAttempt(ctx context.Context, id int64, lastError string, retryAt time.Time) error
	CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) error
	RetryFailedSyncs(ctx context.Context) (int64, error)
	GetSyncQueueStats(ctx context.Context) (storage.SyncQueueStats, error)
	MarkSynced(ctx context.Context, expenseID string) error
	MarkSyncError(ctx context.Context, expenseID string) error
}

// Mirror is the secondary copy expenses are replicated to.
type Mirror interface {
	sheets.ExpenseWriter
	sheets.ExpenseDeleter
}

// SyncProcessor replicates queued expense writes to the mirror.
type SyncProcessor struct {
	queue   SyncQueue
	mirror  Mirror
	config  SyncProcessorConfig
	metrics *metrics.Metrics
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(queue SyncQueue, mirror Mirror, config SyncProcessorConfig, m *metrics.Metrics) *SyncProcessor {
	return &SyncProcessor{
		queue:   queue,
		mirror:  mirror,
		config:  config,
		metrics: m,
		now:     time.Now,
		wakeCh:  make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left processing by a crash go back to pending.
	if err := p.queue.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger asks the loop to process a batch now instead of waiting for the
// next tick. It never blocks.
func (p *SyncProcessor) Trigger() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-p.wakeCh:
			p.ProcessBatch(ctx)
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessBatch drains one batch of due queue items and reports how many
// were mirrored successfully.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.queue.DequeueSyncBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue sync batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	done := 0
	for _, item := range items {
		if ctx.Err() != nil || p.stopping() {
			return done
		}

		claimed, err := p.queue.MarkSyncProcessing(ctx, item.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to mark item as processing",
				"id", item.ID, "error", err)
			continue
		}
		if !claimed {
			// Another processor took it.
			continue
		}

		var processErr error
		switch item.Operation {
		case storage.OpSync:
			processErr = p.processSyncItem(ctx, item)
		case storage.OpDelete:
			processErr = p.processDeleteItem(ctx, item)
		default:
			processErr = fmt.Errorf("unknown operation: %s", item.Operation)
		}

		if processErr != nil {
			p.handleFailure(ctx, item, processErr)
			continue
		}
		p.handleSuccess(ctx, item)
		done++
	}
	return done
}

func (p *SyncProcessor) stopping() bool {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

func (p *SyncProcessor) processSyncItem(ctx context.Context, item storage.SyncQueue) error {
	e := storage.QueuedExpense(item)
	ref, err := p.mirror.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("append to mirror: %w", err)
	}

	if err := p.queue.MarkSynced(ctx, item.ExpenseID); err != nil {
		// The row may already be deleted locally; the mirror write stands.
		slog.WarnContext(ctx, "Failed to mark expense as synced",
			"expense_id", item.ExpenseID, "error", err)
	}

	slog.InfoContext(ctx, "Mirrored expense",
		"expense_id", item.ExpenseID,
		"ref", ref)
	return nil
}

func (p *SyncProcessor) processDeleteItem(ctx context.Context, item storage.SyncQueue) error {
	_, err := p.mirror.DeleteExpense(ctx, item.ExpenseID)
	switch {
	case errors.Is(err, core.ErrNotFound):
		slog.InfoContext(ctx, "Expense already absent from mirror", "expense_id", item.ExpenseID)
	case err != nil:
		return fmt.Errorf("delete from mirror: %w", err)
	default:
		slog.InfoContext(ctx, "Deleted expense from mirror", "expense_id", item.ExpenseID)
	}
	return nil
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.SyncQueue) {
	p.metrics.SyncItem(item.Operation, "ok")
	if err := p.queue.MarkSyncComplete(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync complete",
			"id", item.ID, "error", err)
	}
}

// handleFailure schedules a retry with exponential backoff, or gives up
// once MaxRetries attempts have failed.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncQueue, processErr error) {
	attempt := item.Attempts + 1
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"operation", item.Operation,
		"attempt", attempt,
		"error", processErr)

	if attempt >= int64(p.config.MaxRetries) {
		p.metrics.SyncItem(item.Operation, "failed")
		if err := p.queue.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync as failed",
				"id", item.ID, "error", err)
		}
		if item.Operation == storage.OpSync {
			if err := p.queue.MarkSyncError(ctx, item.ExpenseID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark expense sync error",
					"expense_id", item.ExpenseID, "error", err)
			}
		}
		slog.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID,
			"expense_id", item.ExpenseID,
			"attempts", attempt)
		return
	}

	p.metrics.SyncItem(item.Operation, "retry")
	retryAt := p.now().Add(retryDelay(p.config.RetryBase, item.Attempts))
	if err := p.queue.IncrementSyncAttempt(ctx, item.ID, processErr.Error(), retryAt); err != nil {
		slog.ErrorContext(ctx, "Failed to increment sync attempt",
			"id", item.ID, "error", err)
	}
}

// retryDelay is base * 2^attempts, capped at one hour.
func retryDelay(base time.Duration, attempts int64) time.Duration {
	const maxDelay = time.Hour
	if base <= 0 {
		base = 30 * time.Second
	}
	d := base
	for i := int64(0); i < attempts; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupAge)
	if err := p.queue.CleanupCompletedSyncs(ctx, cutoff); err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed syncs", "error", err)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncQueueStats, error) {
	return p.queue.GetSyncQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	n, err := p.queue.RetryFailedSyncs(ctx)
	if err == nil && n > 0 {
		p.Trigger()
	}
	return n, err
}
