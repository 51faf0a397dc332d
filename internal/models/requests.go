package models

import "github.com/shopspring/decimal"

// AddItemRequest adds a resolved catalog product to a cart.
type AddItemRequest struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Variant   string          `json:"variant,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (r *AddItemRequest) Product() Product {
	return Product{ID: r.ProductID, Name: r.Name, Variant: r.Variant, UnitPrice: r.UnitPrice}
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// DiscountRequest carries exactly one of a fixed amount or a percentage.
type DiscountRequest struct {
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Percent *decimal.Decimal `json:"percent,omitempty"`
}

type SelectPrescriptionRequest struct {
	ID   string           `json:"id"`
	Type PrescriptionType `json:"type"`
}

type PaymentMethodRequest struct {
	Method string `json:"method"`
}

type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CustomerSearchRequest struct {
	Query string `json:"query"`
}
