package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sofia/internal/core"
	"sofia/internal/metrics"
	"sofia/internal/schedule"
)

// ReminderLog remembers when a reminder for a due date was last sent.
type ReminderLog interface {
	LastReminder(ctx context.Context, due core.Date) (time.Time, error)
	RecordReminder(ctx context.Context, due core.Date, at time.Time) error
}

// PaymentPublisher announces an upcoming payment.
type PaymentPublisher interface {
	PublishPaymentDue(ctx context.Context, b schedule.Banner) error
}

// ReminderResult describes one reminder check.
type ReminderResult struct {
	Banner schedule.Banner
	Sent   bool
}

// ReminderService publishes payment.due events for the college calendar.
type ReminderService struct {
	calendar  schedule.Calendar
	policy    schedule.ReminderPolicy
	log       ReminderLog
	publisher PaymentPublisher
	metrics   *metrics.Metrics
}

func NewReminderService(calendar schedule.Calendar, policy schedule.ReminderPolicy, log ReminderLog, publisher PaymentPublisher, m *metrics.Metrics) *ReminderService {
	return &ReminderService{
		calendar:  calendar,
		policy:    policy,
		log:       log,
		publisher: publisher,
		metrics:   m,
	}
}

// Check looks at the next due date and publishes a reminder when the
// policy says one is owed. Without a publisher it only reports the banner.
func (s *ReminderService) Check(ctx context.Context, now time.Time) (ReminderResult, error) {
	b := s.calendar.Banner(now)
	res := ReminderResult{Banner: b}
	if b.Empty() {
		slog.InfoContext(ctx, "No upcoming payments on the calendar")
		return res, nil
	}

	slog.InfoContext(ctx, "Next payment due",
		"due_date", b.Due.String(),
		"days_left", b.DaysLeft,
		"total", b.Total.String(),
		"items", len(b.Payments))

	var last time.Time
	if s.log != nil {
		var err error
		if last, err = s.log.LastReminder(ctx, b.Due); err != nil {
			return res, fmt.Errorf("read reminder log: %w", err)
		}
	}
	if !s.policy.ShouldRemind(b, last, now) {
		return res, nil
	}
	if s.publisher == nil {
		slog.WarnContext(ctx, "No event publisher configured, reminder not sent", "due_date", b.Due.String())
		return res, nil
	}

	if err := s.publisher.PublishPaymentDue(ctx, b); err != nil {
		s.metrics.PublishFailed()
		return res, fmt.Errorf("publish payment reminder: %w", err)
	}
	s.metrics.ReminderSent()
	res.Sent = true

	if s.log != nil {
		if err := s.log.RecordReminder(ctx, b.Due, now); err != nil {
			slog.ErrorContext(ctx, "Failed to record reminder", "due_date", b.Due.String(), "error", err)
		}
	}
	slog.InfoContext(ctx, "Payment reminder sent", "due_date", b.Due.String(), "days_left", b.DaysLeft)
	return res, nil
}
