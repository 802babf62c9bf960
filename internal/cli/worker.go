package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sofia/internal/backend"
	applog "sofia/internal/log"
	"sofia/internal/metrics"
	"sofia/internal/schedule"
	"sofia/internal/services"
	gsheet "sofia/internal/sheets/google"
	"sofia/internal/worker"

	"github.com/spf13/cobra"
)

func newWorkerCommand(a *app) *cobra.Command {
	var (
		metricsAddr string
		remindEvery time.Duration
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Mirror expenses to Google Sheets, consume events and send payment reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runWorker(cmd.Context(), metricsAddr, remindEvery)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9091")
	cmd.Flags().DurationVar(&remindEvery, "remind-every", 6*time.Hour, "how often to check the payment calendar")
	return cmd
}

func (a *app) runWorker(parent context.Context, metricsAddr string, remindEvery time.Duration) error {
	ctx, stop := GracefulShutdown(parent, a.logger)
	defer stop()
	logger := a.logger.WithComponent(applog.ComponentWorker)

	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeBackend(res, a.logger)

	m := metrics.New()
	wcfg := worker.Config{RemindEvery: remindEvery}

	processor, err := a.syncProcessor(ctx, res, m)
	if err != nil {
		return err
	}
	if processor != nil {
		wcfg.Processor = processor
	} else {
		logger.Info("Sheets mirror disabled", "backend", a.cfg.DataBackend, "sheets_configured", a.cfg.SheetsConfigured())
	}

	if res.Broker != nil {
		wcfg.Consumer = res.Broker
	} else {
		logger.Info("No event broker configured, consumer disabled")
	}

	policy, err := schedule.PolicyFor(a.cfg.RemindMode, a.cfg.RemindDaysBefore)
	if err != nil {
		return err
	}
	wcfg.Reminders = services.NewReminderService(schedule.Default, policy, res.Reminders, res.PaymentPublisher(), m)

	if metricsAddr != "" {
		msrv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err, "addr", metricsAddr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = msrv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("Starting sofia worker",
		"mirror", processor != nil,
		"consumer", res.Broker != nil,
		"remind_mode", a.cfg.RemindMode,
		"remind_every", remindEvery)

	err = worker.NewSyncWorker(wcfg).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Worker stopped")
	return nil
}

// syncProcessor wires the SQLite sync queue to the Sheets mirror. It
// returns nil when either side is missing.
func (a *app) syncProcessor(ctx context.Context, res *backend.Result, m *metrics.Metrics) (*services.SyncProcessor, error) {
	if res.Repository == nil || !a.cfg.SheetsConfigured() {
		return nil, nil
	}
	mirror, err := gsheet.New(ctx, backend.SheetsConfig(a.cfg))
	if err != nil {
		return nil, fmt.Errorf("initialize sheets mirror: %w", err)
	}

	pc := services.DefaultSyncProcessorConfig()
	if a.cfg.SyncBatchSize > 0 {
		pc.BatchSize = a.cfg.SyncBatchSize
	}
	if a.cfg.SyncInterval > 0 {
		pc.PollInterval = a.cfg.SyncInterval
	}
	if a.cfg.SyncMaxRetries > 0 {
		pc.MaxRetries = a.cfg.SyncMaxRetries
	}
	return services.NewSyncProcessor(res.Repository, mirror, pc, m), nil
}
