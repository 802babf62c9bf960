package cli

import (
	"context"
	"errors"
	"fmt"

	"sofia/internal/storage"

	"github.com/spf13/cobra"
)

var errNoQueue = errors.New("the sync queue needs the sqlite backend")

func newSyncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect the Google Sheets mirror queue",
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Print queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withQueue(cmd.Context(), func(repo *storage.SQLiteRepository) error {
				ctx := cmd.Context()
				stats, err := repo.GetSyncQueueStats(ctx)
				if err != nil {
					return err
				}
				unsynced, err := repo.CountUnsynced(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "pending     %d\n", stats.Pending)
				fmt.Fprintf(w, "processing  %d\n", stats.Processing)
				fmt.Fprintf(w, "completed   %d\n", stats.Completed)
				fmt.Fprintf(w, "failed      %d\n", stats.Failed)
				fmt.Fprintf(w, "unsynced    %d\n", unsynced)
				return nil
			})
		},
	}
	retry := &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed mirror writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withQueue(cmd.Context(), func(repo *storage.SQLiteRepository) error {
				n, err := repo.RetryFailedSyncs(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d items\n", n)
				return nil
			})
		},
	}
	cmd.AddCommand(status, retry)
	return cmd
}

func (a *app) withQueue(ctx context.Context, fn func(*storage.SQLiteRepository) error) error {
	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeBackend(res, a.logger)
	if res.Repository == nil {
		return errNoQueue
	}
	return fn(res.Repository)
}
