package service

import (
	"strings"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

const (
	maxLineQuantity = 999
	maxSearchLength = 100
)

// ValidateAddItemRequest validates an add-item request. A missing or
// non-positive quantity is allowed; the cart coerces it to 1.
func ValidateAddItemRequest(req *models.AddItemRequest) error {
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		return apperrors.NewValidationError("product_id", "product ID is required")
	}
	if req.UnitPrice.IsNegative() {
		return apperrors.NewValidationError("unit_price", "unit price cannot be negative")
	}
	if req.Quantity > maxLineQuantity {
		return apperrors.NewValidationError("quantity", "quantity is too large")
	}
	return nil
}

// ValidateQuantity validates a quantity update. Zero or below removes the line.
func ValidateQuantity(quantity int) error {
	if quantity > maxLineQuantity {
		return apperrors.NewValidationError("quantity", "quantity is too large")
	}
	return nil
}

func ValidateCustomer(c *models.CustomerRef) error {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		return apperrors.NewValidationError("id", "customer ID is required")
	}
	return nil
}

func ValidateSelectPrescriptionRequest(req *models.SelectPrescriptionRequest) error {
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		return apperrors.NewValidationError("id", "prescription ID is required")
	}
	if !req.Type.Valid() {
		return apperrors.NewValidationError("type", "prescription type must be spectacle or contact_lens")
	}
	return nil
}

func ValidateSearchQuery(query string) error {
	if len(query) > maxSearchLength {
		return apperrors.NewValidationError("query", "search text is too long")
	}
	return nil
}

// ValidatePagination clamps limit into [1, 100] and rejects negative offsets.
func ValidatePagination(limit, offset int) (int, int, error) {
	if offset < 0 {
		return 0, 0, apperrors.NewValidationError("offset", "offset cannot be negative")
	}
	if limit < 0 {
		return 0, 0, apperrors.NewValidationError("limit", "limit cannot be negative")
	}
	if limit == 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit, offset, nil
}
