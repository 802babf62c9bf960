package core

import (
	"fmt"
	"time"
)

type ActivityAction string

const (
	ActionAdd    ActivityAction = "add"
	ActionDelete ActivityAction = "delete"
)

// Activity is one entry of the audit log appended on every write.
type Activity struct {
	ID          int64
	Action      ActivityAction
	ExpenseID   string
	Description string
	Amount      Money
	Payer       Payer
	Date        Date
	At          time.Time
}

// NewActivity snapshots e for the audit log.
func NewActivity(action ActivityAction, e Expense, at time.Time) Activity {
	return Activity{
		Action:      action,
		ExpenseID:   e.ID,
		Description: e.Description,
		Amount:      e.Amount,
		Payer:       e.Payer,
		Date:        e.Date,
		At:          at,
	}
}

// Summary is the one-line human description of the entry.
func (a Activity) Summary() string {
	var s string
	switch a.Action {
	case ActionAdd:
		s = fmt.Sprintf("Added expense: %s for %s", a.Description, a.Amount)
		if a.Payer != "" {
			s += fmt.Sprintf(" (paid by %s)", a.Payer)
		}
	case ActionDelete:
		s = fmt.Sprintf("Deleted expense: %s for %s", a.Description, a.Amount)
		if a.Payer != "" {
			s += fmt.Sprintf(" (was paid by %s)", a.Payer)
		}
	default:
		s = "Unknown action"
	}
	return s
}

// RelativeTime renders at relative to now: "just now", "5 minutes ago",
// and so on up to a week, then an absolute date.
func RelativeTime(at, now time.Time) string {
	if at.IsZero() {
		return ""
	}
	diff := now.Sub(at)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))
	switch {
	case mins < 1:
		return "just now"
	case mins < 60:
		return plural(mins, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	case days < 7:
		return plural(days, "day") + " ago"
	}
	return at.Format("Jan 2, 2006, 03:04 PM")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
