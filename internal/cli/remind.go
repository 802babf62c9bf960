package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"sofia/internal/schedule"
	"sofia/internal/services"

	"github.com/spf13/cobra"
)

// timeNow is replaced in tests.
var timeNow = time.Now

func newRemindCommand(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Check the payment calendar and announce the next due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.remind(cmd.Context(), cmd.OutOrStdout(), dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the next payment without publishing a reminder")
	return cmd
}

func (a *app) remind(ctx context.Context, stdout io.Writer, dryRun bool) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	now := timeNow().In(loc)

	if dryRun {
		printBanner(stdout, schedule.Default.Banner(now))
		return nil
	}

	policy, err := schedule.PolicyFor(a.cfg.RemindMode, a.cfg.RemindDaysBefore)
	if err != nil {
		return err
	}
	res, err := OpenBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeBackend(res, a.logger)

	svc := services.NewReminderService(schedule.Default, policy, res.Reminders, res.PaymentPublisher(), nil)
	result, err := svc.Check(ctx, now)
	if err != nil {
		return err
	}
	printBanner(stdout, result.Banner)
	if result.Sent {
		fmt.Fprintln(stdout, "Reminder sent.")
	}
	return nil
}

func printBanner(w io.Writer, b schedule.Banner) {
	if b.Empty() {
		fmt.Fprintln(w, "No upcoming payments.")
		return
	}
	fmt.Fprintf(w, "Next payment due %s (%s)\n", b.Due, daysLabel(b.DaysLeft))
	for _, p := range b.Payments {
		fmt.Fprintf(w, "  %-10s %12s\n", p.Description, p.Amount)
	}
	fmt.Fprintf(w, "  %-10s %12s\n", "Total", b.Total)
}

func daysLabel(n int) string {
	switch n {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", n)
}
