package models

import (
	"github.com/shopspring/decimal"
)

// Product is a resolved catalog entry ready to be added to a cart.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineItem is one priced, quantified row in a cart.
type LineItem struct {
	LineID    string          `json:"line_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Total is always derived from unit price and quantity.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SameProduct reports whether the line holds exactly the given product.
func (l LineItem) SameProduct(p Product) bool {
	return l.ProductID == p.ID && l.Variant == p.Variant
}

// LineView is a line item with its computed total, used in responses.
type LineView struct {
	LineItem
	LineTotal decimal.Decimal `json:"line_total"`
}

func NewLineView(l LineItem) LineView {
	return LineView{LineItem: l, LineTotal: l.Total()}
}
