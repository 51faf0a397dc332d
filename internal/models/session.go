package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutState is the state of a session's checkout coordinator.
type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "idle"
	CheckoutSubmitting CheckoutState = "submitting"
	CheckoutCommitted  CheckoutState = "committed"
	CheckoutFailed     CheckoutState = "failed"
)

// SessionSnapshot is a point-in-time copy of a POS session.
type SessionSnapshot struct {
	ID            string             `json:"id"`
	Items         []LineItem         `json:"items"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	Discount      decimal.Decimal    `json:"discount"`
	Total         decimal.Decimal    `json:"total"`
	Customer      *CustomerRef       `json:"customer"`
	Prescription  *PrescriptionRef   `json:"prescription"`
	PaymentMethod PaymentMethod      `json:"payment_method,omitempty"`
	Deposit       decimal.Decimal    `json:"deposit"`
	State         CheckoutState      `json:"state"`
	LastError     string             `json:"last_error,omitempty"`
	Confirmation  *OrderConfirmation `json:"confirmation,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SessionView is the response shape for a session.
type SessionView struct {
	SessionSnapshot
	Lines      []LineView      `json:"lines"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

func NewSessionView(s *SessionSnapshot) *SessionView {
	lines := make([]LineView, len(s.Items))
	for i, item := range s.Items {
		lines[i] = NewLineView(item)
	}
	return &SessionView{
		SessionSnapshot: *s,
		Lines:           lines,
		BalanceDue:      s.Total.Sub(s.Deposit),
	}
}
