package schedule

import (
	"fmt"
	"time"
)

// ReminderPolicy decides whether a reminder should go out for an upcoming
// due date, given when the last reminder for that date was sent.
type ReminderPolicy interface {
	ShouldRemind(b Banner, lastSent, now time.Time) bool
}

// DaysBefore reminds once, as soon as the due date is within N days.
type DaysBefore int

func (n DaysBefore) ShouldRemind(b Banner, lastSent, _ time.Time) bool {
	if b.Empty() || !lastSent.IsZero() {
		return false
	}
	return b.DaysLeft <= int(n)
}

// Daily reminds every calendar day once the due date is within N days.
type Daily int

func (n Daily) ShouldRemind(b Banner, lastSent, now time.Time) bool {
	if b.Empty() || b.DaysLeft > int(n) {
		return false
	}
	if lastSent.IsZero() {
		return true
	}
	return lastSent.Format(time.DateOnly) != now.Format(time.DateOnly)
}

// PolicyFor maps a configured mode name to a policy.
func PolicyFor(mode string, days int) (ReminderPolicy, error) {
	switch mode {
	case "", "once":
		return DaysBefore(days), nil
	case "daily":
		return Daily(days), nil
	}
	return nil, fmt.Errorf("unknown reminder mode: %s", mode)
}
