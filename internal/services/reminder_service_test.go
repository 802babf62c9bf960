package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"sofia/internal/core"
	"sofia/internal/schedule"
)

type memReminderLog struct {
	sent map[core.Date]time.Time
}

func (l *memReminderLog) LastReminder(_ context.Context, due core.Date) (time.Time, error) {
	return l.sent[due], nil
}

func (l *memReminderLog) RecordReminder(_ context.Context, due core.Date, at time.Time) error {
	if l.sent == nil {
		l.sent = map[core.Date]time.Time{}
	}
	l.sent[due] = at
	return nil
}

type capturePublisher struct {
	banners []schedule.Banner
	err     error
}

func (p *capturePublisher) PublishPaymentDue(_ context.Context, b schedule.Banner) error {
	if p.err != nil {
		return p.err
	}
	p.banners = append(p.banners, b)
	return nil
}

var testCalendar = schedule.Calendar{
	{Due: core.NewDate(2025, 10, 1), Description: "Dining", Amount: core.Money{Cents: 71000}},
	{Due: core.NewDate(2025, 10, 1), Description: "Housing", Amount: core.Money{Cents: 143900}},
	{Due: core.NewDate(2025, 11, 1), Description: "Dining", Amount: core.Money{Cents: 75500}},
}

func TestReminderService_Check(t *testing.T) {
	ctx := context.Background()
	farAway := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	near := time.Date(2025, 9, 29, 12, 0, 0, 0, time.UTC)
	after := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		policy   schedule.ReminderPolicy
		checks   []time.Time
		wantSent []bool
	}{
		{"outside window", schedule.DaysBefore(3), []time.Time{farAway}, []bool{false}},
		{"once within window", schedule.DaysBefore(3), []time.Time{near, near.Add(time.Hour)}, []bool{true, false}},
		{"daily within window", schedule.Daily(3), []time.Time{near, near.Add(time.Hour), near.Add(24 * time.Hour)}, []bool{true, false, true}},
		{"calendar exhausted", schedule.DaysBefore(3), []time.Time{after}, []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &capturePublisher{}
			svc := NewReminderService(testCalendar, tt.policy, &memReminderLog{}, pub, nil)
			for i, now := range tt.checks {
				res, err := svc.Check(ctx, now)
				if err != nil {
					t.Fatalf("check %d: %v", i, err)
				}
				if res.Sent != tt.wantSent[i] {
					t.Fatalf("check %d sent = %v, want %v", i, res.Sent, tt.wantSent[i])
				}
			}
		})
	}
}

func TestReminderService_PublishedBanner(t *testing.T) {
	pub := &capturePublisher{}
	svc := NewReminderService(testCalendar, schedule.DaysBefore(3), &memReminderLog{}, pub, nil)

	res, err := svc.Check(context.Background(), time.Date(2025, 9, 29, 12, 0, 0, 0, time.UTC))
	if err != nil || !res.Sent {
		t.Fatalf("Check = %+v, %v", res, err)
	}
	if len(pub.banners) != 1 {
		t.Fatalf("published %d banners", len(pub.banners))
	}
	b := pub.banners[0]
	if b.Due != core.NewDate(2025, 10, 1) || b.Total.Cents != 214900 || b.DaysLeft != 2 || len(b.Payments) != 2 {
		t.Fatalf("banner = %+v", b)
	}
}

func TestReminderService_PublishFailureNotRecorded(t *testing.T) {
	log := &memReminderLog{}
	pub := &capturePublisher{err: errors.New("broker down")}
	svc := NewReminderService(testCalendar, schedule.DaysBefore(3), log, pub, nil)
	now := time.Date(2025, 9, 29, 12, 0, 0, 0, time.UTC)

	if _, err := svc.Check(context.Background(), now); err == nil {
		t.Fatal("expected publish error")
	}
	if len(log.sent) != 0 {
		t.Fatal("failed reminder must not be recorded")
	}

	pub.err = nil
	res, err := svc.Check(context.Background(), now)
	if err != nil || !res.Sent {
		t.Fatalf("retry Check = %+v, %v", res, err)
	}
}

func TestReminderService_NoPublisher(t *testing.T) {
	svc := NewReminderService(testCalendar, schedule.DaysBefore(3), nil, nil, nil)
	res, err := svc.Check(context.Background(), time.Date(2025, 9, 29, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent || res.Banner.Empty() {
		t.Fatalf("result = %+v", res)
	}
}
