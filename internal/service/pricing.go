package service

import (
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ResolveDiscount turns a discount request into an amount for the given
// subtotal. Percentages are rounded to cents. The result never exceeds the
// subtotal.
func ResolveDiscount(subtotal decimal.Decimal, req *models.DiscountRequest, maxPercent int) (decimal.Decimal, error) {
	if (req.Amount == nil) == (req.Percent == nil) {
		return decimal.Zero, apperrors.NewValidationError("discount", "exactly one of amount or percent is required")
	}

	var amount decimal.Decimal
	if req.Amount != nil {
		if req.Amount.IsNegative() {
			return decimal.Zero, apperrors.NewValidationError("amount", "discount cannot be negative")
		}
		amount = *req.Amount
	} else {
		pct := *req.Percent
		if pct.IsNegative() {
			return decimal.Zero, apperrors.NewValidationError("percent", "discount cannot be negative")
		}
		if pct.GreaterThan(decimal.NewFromInt(int64(maxPercent))) {
			return decimal.Zero, apperrors.NewValidationError("percent", "discount exceeds the allowed percentage")
		}
		amount = subtotal.Mul(pct).Div(hundred).Round(2)
	}

	return decimal.Min(amount, subtotal), nil
}
