package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"sofia/internal/core"
	"sofia/internal/schedule"
)

// Event types carried in EventMessage.Type.
const (
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
	EventPaymentDue     = "payment.due"
)

// ExpensePayload is the wire form of an expense.
type ExpensePayload struct {
	ID          string `json:"id"`
	Payer       string `json:"payer"`
	AmountCents int64  `json:"amount_cents"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Note        string `json:"note,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type PaymentItem struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// PaymentPayload describes the next instalment date.
type PaymentPayload struct {
	DueDate    string        `json:"due_date"`
	TotalCents int64         `json:"total_cents"`
	DaysLeft   int           `json:"days_left"`
	Items      []PaymentItem `json:"items"`
}

// EventMessage is the envelope published on the exchange.
type EventMessage struct {
	Type      string          `json:"type"`
	Expense   *ExpensePayload `json:"expense,omitempty"`
	Payment   *PaymentPayload `json:"payment,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewExpenseMessage(eventType string, e core.Expense) *EventMessage {
	p := &ExpensePayload{
		ID:          e.ID,
		Payer:       e.Payer.String(),
		AmountCents: e.Amount.Cents,
		Description: e.Description,
		Date:        e.Date.String(),
		Note:        e.Note,
	}
	if !e.Timestamp.IsZero() {
		p.CreatedAt = e.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return &EventMessage{Type: eventType, Expense: p, Timestamp: time.Now()}
}

func NewPaymentDueMessage(b schedule.Banner) *EventMessage {
	p := &PaymentPayload{
		DueDate:    b.Due.String(),
		TotalCents: b.Total.Cents,
		DaysLeft:   b.DaysLeft,
	}
	for _, item := range b.Payments {
		p.Items = append(p.Items, PaymentItem{Description: item.Description, AmountCents: item.Amount.Cents})
	}
	return &EventMessage{Type: EventPaymentDue, Payment: p, Timestamp: time.Now()}
}

// CoreExpense converts the payload back to a domain expense. A malformed
// date yields the zero Date.
func (p *ExpensePayload) CoreExpense() core.Expense {
	date, _ := core.ParseDate(p.Date)
	ts, _ := time.Parse(time.RFC3339Nano, p.CreatedAt)
	return core.Expense{
		ID:          p.ID,
		Payer:       core.Payer(p.Payer),
		Amount:      core.Money{Cents: p.AmountCents},
		Description: p.Description,
		Date:        date,
		Note:        p.Note,
		Timestamp:   ts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and checks a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case EventExpenseCreated, EventExpenseDeleted:
		if msg.Expense == nil || msg.Expense.ID == "" {
			return nil, fmt.Errorf("%s message without expense", msg.Type)
		}
	case EventPaymentDue:
		if msg.Payment == nil {
			return nil, fmt.Errorf("%s message without payment", msg.Type)
		}
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
