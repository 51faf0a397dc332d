package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// OrderSubmitter creates an order from a checkout snapshot.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req *models.CheckoutRequest) (*models.OrderConfirmation, error)
}

var validTransitions = map[models.CheckoutState][]models.CheckoutState{
	models.CheckoutIdle:       {models.CheckoutSubmitting},
	models.CheckoutSubmitting: {models.CheckoutCommitted, models.CheckoutFailed},
	models.CheckoutFailed:     {models.CheckoutIdle},
	models.CheckoutCommitted:  {},
}

func isValidTransition(from, to models.CheckoutState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrOutcomeUnknown marks a sale restored from a snapshot taken mid-submission.
// The order may exist, so the sale cannot be submitted again.
var ErrOutcomeUnknown = errors.New("checkout outcome unknown")

// Coordinator runs at most one submission at a time for a sale.
type Coordinator struct {
	submitter    OrderSubmitter
	timeout      time.Duration
	logger       *logging.Logger
	beforeSubmit func(ctx context.Context, req *models.CheckoutRequest) error

	mu           sync.Mutex
	state        models.CheckoutState
	cancel       context.CancelFunc
	lastErr      error
	confirmation *models.OrderConfirmation
}

// NewCoordinator creates an idle coordinator. A zero timeout means the
// submission is bounded only by the caller's context and Cancel.
func NewCoordinator(submitter OrderSubmitter, timeout time.Duration, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		submitter: submitter,
		timeout:   timeout,
		logger:    logger,
		state:     models.CheckoutIdle,
	}
}

// Checkout validates and builds a request through prepare, then submits it.
// prepare runs while the coordinator is locked, so two callers can never
// both pass the in-progress check. Nothing is submitted if prepare fails.
func (c *Coordinator) Checkout(ctx context.Context, prepare func() (*models.CheckoutRequest, error)) (*models.OrderConfirmation, error) {
	c.mu.Lock()
	switch c.state {
	case models.CheckoutSubmitting:
		c.mu.Unlock()
		return nil, apperrors.ErrCheckoutInProgress
	case models.CheckoutCommitted:
		c.mu.Unlock()
		return nil, apperrors.ErrAlreadyCommitted
	case models.CheckoutFailed:
		c.moveTo(models.CheckoutIdle)
		c.lastErr = nil
	}

	req, err := prepare()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	submitCtx, cancel := c.submitContext(ctx)
	c.moveTo(models.CheckoutSubmitting)
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("Submitting order", logging.Fields{
		"request_id": req.RequestID,
		"session_id": req.SessionID,
		"items":      len(req.Items),
		"total":      req.Total.StringFixed(2),
	})

	var conf *models.OrderConfirmation
	if c.beforeSubmit != nil {
		err = c.beforeSubmit(submitCtx, req)
	}
	if err == nil {
		conf, err = c.submitter.SubmitOrder(submitCtx, req)
		if err == nil && conf == nil {
			err = errors.New("order service returned no confirmation")
		}
	}
	ctxErr := submitCtx.Err()
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel = nil

	if err != nil {
		serr := toSubmissionError(ctxErr, err)
		c.lastErr = serr
		c.moveTo(models.CheckoutFailed)
		c.logger.Warn("Order submission failed", logging.Fields{
			"request_id": req.RequestID,
			"rejected":   serr.Rejected,
			"error":      serr.Error(),
		})
		return nil, serr
	}

	c.confirmation = conf
	c.moveTo(models.CheckoutCommitted)
	c.logger.Info("Order committed", logging.Fields{
		"request_id": req.RequestID,
		"order_id":   conf.OrderID,
	})
	return conf, nil
}

// Hold runs fn while no submission can start. It refuses with
// ErrCheckoutInProgress while submitting and ErrAlreadyCommitted after a commit.
func (c *Coordinator) Hold(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case models.CheckoutSubmitting:
		return apperrors.ErrCheckoutInProgress
	case models.CheckoutCommitted:
		return apperrors.ErrAlreadyCommitted
	}
	return fn()
}

// Cancel aborts an in-flight submission. It reports whether one was running.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.CheckoutSubmitting || c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

func (c *Coordinator) State() models.CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the error of the most recent failed submission, if any.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Coordinator) Confirmation() *models.OrderConfirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmation
}

func (c *Coordinator) submitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// restoreInDoubt parks a restored coordinator as committed.
func (c *Coordinator) restoreInDoubt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = models.CheckoutCommitted
	c.lastErr = ErrOutcomeUnknown
}

// moveTo must be called with mu held.
func (c *Coordinator) moveTo(to models.CheckoutState) {
	if !isValidTransition(c.state, to) {
		panic(fmt.Sprintf("pos: invalid checkout transition %s -> %s", c.state, to))
	}
	c.state = to
}

func toSubmissionError(ctxErr, err error) *apperrors.SubmissionError {
	var serr *apperrors.SubmissionError
	if errors.As(err, &serr) {
		return serr
	}
	if ctxErr != nil {
		reason := "checkout cancelled"
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			reason = "checkout timed out"
		}
		return &apperrors.SubmissionError{Reason: reason, Err: err}
	}
	return apperrors.NewUnavailableError(err)
}
