package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutLine is one line of a submitted sale.
type CheckoutLine struct {
	LineID    string          `json:"line_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// PrescriptionSnapshot is the prescription reference sent with an order.
type PrescriptionSnapshot struct {
	ID   string           `json:"id"`
	Type PrescriptionType `json:"type"`
}

// CheckoutRequest is the snapshot handed to the order service.
// It is built once per submission and must not be modified afterwards.
type CheckoutRequest struct {
	RequestID     string                `json:"request_id"`
	SessionID     string                `json:"session_id"`
	Items         []CheckoutLine        `json:"items"`
	CustomerID    *string               `json:"customer_id"`
	Prescription  *PrescriptionSnapshot `json:"prescription"`
	PaymentMethod PaymentMethod         `json:"payment_method"`
	Deposit       decimal.Decimal       `json:"deposit"`
	Subtotal      decimal.Decimal       `json:"subtotal"`
	Discount      decimal.Decimal       `json:"discount"`
	Total         decimal.Decimal       `json:"total"`
	CreatedAt     time.Time             `json:"created_at"`
}

// BalanceDue is the amount left to settle after the deposit.
func (r *CheckoutRequest) BalanceDue() decimal.Decimal {
	return r.Total.Sub(r.Deposit)
}

// OrderConfirmation is returned by the order service for a created order.
type OrderConfirmation struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleRecord is the local audit entry for a committed sale.
type SaleRecord struct {
	ID             string                `json:"id"`
	OrderID        string                `json:"order_id"`
	SessionID      string                `json:"session_id"`
	RequestID      string                `json:"request_id"`
	CustomerID     string                `json:"customer_id,omitempty"`
	PrescriptionID string                `json:"prescription_id,omitempty"`
	Items          []CheckoutLine        `json:"items"`
	PaymentMethod  PaymentMethod         `json:"payment_method"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	Discount       decimal.Decimal       `json:"discount"`
	Total          decimal.Decimal       `json:"total"`
	Deposit        decimal.Decimal       `json:"deposit"`
	BalanceDue     decimal.Decimal       `json:"balance_due"`
	CommittedAt    time.Time             `json:"committed_at"`
	Prescription   *PrescriptionSnapshot `json:"prescription,omitempty"`
}

// NewSaleRecord builds an audit entry from a submitted request and its confirmation.
func NewSaleRecord(id string, req *CheckoutRequest, conf *OrderConfirmation) *SaleRecord {
	rec := &SaleRecord{
		ID:            id,
		OrderID:       conf.OrderID,
		SessionID:     req.SessionID,
		RequestID:     req.RequestID,
		Items:         append([]CheckoutLine(nil), req.Items...),
		PaymentMethod: req.PaymentMethod,
		Subtotal:      req.Subtotal,
		Discount:      req.Discount,
		Total:         req.Total,
		Deposit:       req.Deposit,
		BalanceDue:    req.BalanceDue(),
		CommittedAt:   conf.CreatedAt,
	}
	if req.CustomerID != nil {
		rec.CustomerID = *req.CustomerID
	}
	if req.Prescription != nil {
		rec.PrescriptionID = req.Prescription.ID
		p := *req.Prescription
		rec.Prescription = &p
	}
	if rec.CommittedAt.IsZero() {
		rec.CommittedAt = req.CreatedAt
	}
	return rec
}
