package pos

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// MergePolicy decides what AddItem does when the product is already in the cart.
type MergePolicy int

const (
	// MergeIntoExisting increments the quantity of the matching line.
	MergeIntoExisting MergePolicy = iota
	// AlwaysNewLine appends a separate line for every add.
	AlwaysNewLine
)

func (p MergePolicy) String() string {
	if p == AlwaysNewLine {
		return "new_line"
	}
	return "merge"
}

// ParseMergePolicy accepts "merge" or "new_line".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "merge":
		return MergeIntoExisting, nil
	case "new_line", "newline", "separate":
		return AlwaysNewLine, nil
	}
	return MergeIntoExisting, fmt.Errorf("unknown merge policy %q", s)
}

// Cart is the ordered collection of line items for one session.
// It is not safe for concurrent use; Session serializes access.
type Cart struct {
	policy   MergePolicy
	items    []models.LineItem
	discount decimal.Decimal
	subtotal decimal.Decimal
	newID    func() string
}

// NewCart creates an empty cart.
func NewCart(policy MergePolicy) *Cart {
	return &Cart{
		policy: policy,
		newID:  uuid.NewString,
	}
}

func (c *Cart) Policy() MergePolicy {
	return c.policy
}

// AddItem adds quantity units of product and returns the affected line.
// Quantities below one are treated as one.
func (c *Cart) AddItem(product models.Product, quantity int) models.LineItem {
	if quantity < 1 {
		quantity = 1
	}

	if c.policy == MergeIntoExisting {
		if i := c.indexOfProduct(product); i >= 0 {
			c.items[i].Quantity += quantity
			c.recompute()
			return c.items[i]
		}
	}

	line := models.LineItem{
		LineID:    c.newID(),
		ProductID: product.ID,
		Name:      product.Name,
		Variant:   product.Variant,
		UnitPrice: product.UnitPrice,
		Quantity:  quantity,
	}
	c.items = append(c.items, line)
	c.recompute()
	return line
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
// Unknown line ids are ignored.
func (c *Cart) UpdateQuantity(lineID string, quantity int) {
	i := c.indexOf(lineID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.removeAt(i)
		return
	}
	c.items[i].Quantity = quantity
	c.recompute()
}

// RemoveItem drops a line if present.
func (c *Cart) RemoveItem(lineID string) {
	if i := c.indexOf(lineID); i >= 0 {
		c.removeAt(i)
	}
}

// SetDiscount replaces the externally computed discount.
func (c *Cart) SetDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewValidationError("discount", "discount cannot be negative")
	}
	c.discount = amount
	return nil
}

// Clear empties the cart and resets the discount.
func (c *Cart) Clear() {
	c.items = nil
	c.discount = decimal.Zero
	c.recompute()
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []models.LineItem {
	out := make([]models.LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Line(lineID string) (models.LineItem, bool) {
	if i := c.indexOf(lineID); i >= 0 {
		return c.items[i], true
	}
	return models.LineItem{}, false
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

func (c *Cart) Subtotal() decimal.Decimal {
	return c.subtotal
}

func (c *Cart) Discount() decimal.Decimal {
	return c.discount
}

// Total is subtotal minus discount, never below zero.
func (c *Cart) Total() decimal.Decimal {
	return decimal.Max(decimal.Zero, c.subtotal.Sub(c.discount))
}

func (c *Cart) recompute() {
	sum := decimal.Zero
	for _, item := range c.items {
		sum = sum.Add(item.Total())
	}
	c.subtotal = sum
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
	c.recompute()
}

func (c *Cart) indexOf(lineID string) int {
	for i := range c.items {
		if c.items[i].LineID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfProduct(p models.Product) int {
	for i := range c.items {
		if c.items[i].SameProduct(p) {
			return i
		}
	}
	return -1
}

// restore replaces the cart contents, keeping line ids.
func (c *Cart) restore(items []models.LineItem, discount decimal.Decimal) {
	c.items = append([]models.LineItem(nil), items...)
	c.discount = discount
	c.recompute()
}
