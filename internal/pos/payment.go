package pos

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// PaymentPlan holds the tender and the deposit collected now.
// The deposit is checked against the total only at checkout, so it may
// exceed the total while the cashier is still typing.
type PaymentPlan struct {
	method  models.PaymentMethod
	deposit decimal.Decimal
}

// SetMethod selects cash or card.
func (p *PaymentPlan) SetMethod(method string) error {
	m, ok := models.ParsePaymentMethod(method)
	if !ok {
		return apperrors.NewValidationError("payment_method",
			fmt.Sprintf("unsupported payment method %q, expected cash or card", method))
	}
	p.method = m
	return nil
}

// SetDeposit records the deposit amount.
func (p *PaymentPlan) SetDeposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewValidationError("deposit", "deposit cannot be negative")
	}
	p.deposit = amount
	return nil
}

func (p *PaymentPlan) Method() models.PaymentMethod {
	return p.method
}

func (p *PaymentPlan) Deposit() decimal.Decimal {
	return p.deposit
}

// check enforces the checkout-time rules against total.
func (p *PaymentPlan) check(total decimal.Decimal) error {
	if p.deposit.GreaterThan(total) {
		return apperrors.NewPreconditionError(apperrors.ConditionDepositExceedsTotal,
			fmt.Sprintf("deposit %s exceeds total %s", p.deposit.StringFixed(2), total.StringFixed(2)))
	}
	if p.method == "" {
		return apperrors.NewPreconditionError(apperrors.ConditionPaymentMethodMissing,
			"payment method must be selected")
	}
	return nil
}

func (p *PaymentPlan) restore(method models.PaymentMethod, deposit decimal.Decimal) {
	p.method = method
	p.deposit = deposit
}
