package models

import "strings"

// PaymentMethod is the tender used for a sale.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

// ParsePaymentMethod returns the method and whether it is supported.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch m := PaymentMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case PaymentMethodCash, PaymentMethodCard:
		return m, true
	}
	return "", false
}
