package models

// CustomerRef identifies a known customer bound to a sale.
type CustomerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// PrescriptionType is the clinical type of a prescription.
type PrescriptionType string

const (
	PrescriptionSpectacle   PrescriptionType = "spectacle"
	PrescriptionContactLens PrescriptionType = "contact_lens"
)

func (t PrescriptionType) Valid() bool {
	switch t {
	case PrescriptionSpectacle, PrescriptionContactLens:
		return true
	}
	return false
}

// PrescriptionRef is a prescription and the customer that owns it.
type PrescriptionRef struct {
	ID         string           `json:"id"`
	Type       PrescriptionType `json:"type"`
	CustomerID string           `json:"customer_id"`
}
