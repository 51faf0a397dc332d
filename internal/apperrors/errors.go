package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session or sale does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCheckoutInProgress is returned when a checkout is already submitting.
	ErrCheckoutInProgress = errors.New("checkout already in progress")

	// ErrAlreadyCommitted is returned when checkout is attempted on a committed sale.
	ErrAlreadyCommitted = errors.New("sale already committed")

	// ErrDependencyUnavailable wraps failures of collaborators other than the
	// order service, such as the customer directory.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// ValidationError reports malformed input. State is never changed when one is returned.
type ValidationError struct {
	Field   string            `json:"field"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Details: map[string]string{field: message},
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Condition names a checkout precondition.
type Condition string

const (
	ConditionCartEmpty            Condition = "cart_empty"
	ConditionDepositExceedsTotal  Condition = "deposit_exceeds_total"
	ConditionPaymentMethodMissing Condition = "payment_method_missing"
	ConditionPrescriptionNotOwned Condition = "prescription_customer_mismatch"
)

// PreconditionError is returned by checkout before anything is submitted.
type PreconditionError struct {
	Condition Condition `json:"condition"`
	Message   string    `json:"message"`
}

func NewPreconditionError(cond Condition, message string) *PreconditionError {
	return &PreconditionError{Condition: cond, Message: message}
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("checkout precondition %s: %s", e.Condition, e.Message)
}

// SubmissionError wraps a failed call to the order service.
// Rejected is true when the service answered and refused the order.
type SubmissionError struct {
	Rejected bool
	Reason   string
	Err      error
}

func NewRejectedError(reason string) *SubmissionError {
	return &SubmissionError{Rejected: true, Reason: reason}
}

func NewUnavailableError(err error) *SubmissionError {
	reason := "order service unavailable"
	if err != nil {
		reason = err.Error()
	}
	return &SubmissionError{Reason: reason, Err: err}
}

func (e *SubmissionError) Error() string {
	if e.Rejected {
		return "order rejected: " + e.Reason
	}
	return "order submission failed: " + e.Reason
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}

func IsSubmission(err error) bool {
	var s *SubmissionError
	return errors.As(err, &s)
}
