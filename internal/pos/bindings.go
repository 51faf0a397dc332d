package pos

import (
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// Bindings ties a sale to an optional customer and, through that customer,
// an optional prescription. A prescription is never bound without its owner.
type Bindings struct {
	customer     *models.CustomerRef
	prescription *models.PrescriptionRef
}

// SelectCustomer binds a customer. Switching to a different customer drops
// the prescription; re-selecting the same one keeps it.
func (b *Bindings) SelectCustomer(c models.CustomerRef) {
	if b.customer == nil || b.customer.ID != c.ID {
		b.prescription = nil
	}
	b.customer = &c
}

// ClearCustomer unbinds the customer and the prescription.
func (b *Bindings) ClearCustomer() {
	b.customer = nil
	b.prescription = nil
}

// SelectPrescription binds a prescription of the current customer.
// It returns false and changes nothing when no customer is bound.
func (b *Bindings) SelectPrescription(id string, kind models.PrescriptionType) bool {
	if b.customer == nil {
		return false
	}
	b.prescription = &models.PrescriptionRef{
		ID:         id,
		Type:       kind,
		CustomerID: b.customer.ID,
	}
	return true
}

func (b *Bindings) ClearPrescription() {
	b.prescription = nil
}

func (b *Bindings) Customer() (models.CustomerRef, bool) {
	if b.customer == nil {
		return models.CustomerRef{}, false
	}
	return *b.customer, true
}

func (b *Bindings) Prescription() (models.PrescriptionRef, bool) {
	if b.prescription == nil {
		return models.PrescriptionRef{}, false
	}
	return *b.prescription, true
}

// prescriptionOwnedByCustomer reports whether a bound prescription still
// belongs to the bound customer. It is true when no prescription is bound.
func (b *Bindings) prescriptionOwnedByCustomer() bool {
	if b.prescription == nil {
		return true
	}
	return b.customer != nil && b.customer.ID == b.prescription.CustomerID
}

func (b *Bindings) restore(c *models.CustomerRef, p *models.PrescriptionRef) {
	b.customer = nil
	b.prescription = nil
	if c != nil {
		cc := *c
		b.customer = &cc
	}
	if p != nil {
		pp := *p
		b.prescription = &pp
	}
}
