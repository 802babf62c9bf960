package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apphttp "sofia/internal/http"
	applog "sofia/internal/log"
	"sofia/internal/metrics"
	"sofia/internal/schedule"
	"sofia/internal/services"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringP("port", "p", "", "HTTP port (overrides PORT)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := GracefulShutdown(parent, a.logger)
	defer stop()

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeBackend(res, a.logger)

	m := metrics.New()
	svc := services.NewExpenseService(res.Store, res.Publisher(), m)
	srv, err := apphttp.NewServer(":"+a.cfg.Port, apphttp.Options{
		Service:  svc,
		Ready:    res.Ping,
		Metrics:  m,
		Logger:   a.logger.WithComponent(applog.ComponentHTTP),
		Calendar: schedule.Default,
		Location: loc,
		PageSize: a.cfg.PageSize,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("Starting sofia server",
		"port", a.cfg.Port,
		"backend", a.cfg.DataBackend,
		"timezone", loc.String(),
		"events", res.Broker != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}
