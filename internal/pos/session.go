package pos

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// Options configures a session.
type Options struct {
	MergePolicy    MergePolicy
	SubmitTimeout  time.Duration
	Directory      CustomerDirectory
	SearchDebounce time.Duration
	Logger         *logging.Logger
	Now            func() time.Time
	OnSearchResult func(SearchResult)
	// BeforeSubmit sees the sale in the submitting state right before the
	// order is sent. An error aborts the submission as a failure.
	BeforeSubmit func(ctx context.Context, snap *models.SessionSnapshot) error
}

// Session is one POS sale in progress. All mutations are serialized.
type Session struct {
	id          string
	now         func() time.Time
	logger      *logging.Logger
	coordinator *Coordinator
	search      *CustomerSearch

	mu        sync.RWMutex
	cart      *Cart
	bindings  Bindings
	payment   PaymentPlan
	createdAt time.Time
	updatedAt time.Time
}

// NewSession starts an empty sale.
func NewSession(id string, submitter OrderSubmitter, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	logger := opts.Logger.With(logging.Fields{"session_id": id})

	s := &Session{
		id:          id,
		now:         opts.Now,
		logger:      logger,
		coordinator: NewCoordinator(submitter, opts.SubmitTimeout, logger),
		cart:        NewCart(opts.MergePolicy),
	}
	if opts.BeforeSubmit != nil {
		s.coordinator.beforeSubmit = func(ctx context.Context, _ *models.CheckoutRequest) error {
			return opts.BeforeSubmit(ctx, s.Snapshot())
		}
	}
	if opts.Directory != nil {
		s.search = NewCustomerSearch(opts.Directory, opts.SearchDebounce, opts.OnSearchResult)
	}
	s.createdAt = s.now()
	s.updatedAt = s.createdAt
	return s
}

// RestoreSession rebuilds a session from a snapshot. A snapshot taken after a
// failure comes back idle. One taken while submitting or after a commit comes
// back committed with ErrOutcomeUnknown, since the order may already exist;
// only a reset makes it usable again.
func RestoreSession(snap *models.SessionSnapshot, submitter OrderSubmitter, opts Options) *Session {
	s := NewSession(snap.ID, submitter, opts)
	switch snap.State {
	case models.CheckoutSubmitting, models.CheckoutCommitted:
		s.coordinator.restoreInDoubt()
	}
	s.cart.restore(snap.Items, snap.Discount)
	s.bindings.restore(snap.Customer, snap.Prescription)
	s.payment.restore(snap.PaymentMethod, snap.Deposit)
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}
	if !snap.UpdatedAt.IsZero() {
		s.updatedAt = snap.UpdatedAt
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) AddItem(product models.Product, quantity int) models.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := s.cart.AddItem(product, quantity)
	s.touch()
	s.logger.Debug("Item added", logging.Fields{
		"line_id":    line.LineID,
		"product_id": product.ID,
		"quantity":   line.Quantity,
	})
	return line
}

func (s *Session) UpdateQuantity(lineID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.UpdateQuantity(lineID, quantity)
	s.touch()
}

func (s *Session) RemoveItem(lineID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.RemoveItem(lineID)
	s.touch()
}

func (s *Session) SetDiscount(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cart.SetDiscount(amount); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Subtotal()
}

func (s *Session) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Total()
}

func (s *Session) SelectCustomer(c models.CustomerRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings.SelectCustomer(c)
	s.touch()
}

func (s *Session) ClearCustomer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings.ClearCustomer()
	s.touch()
}

// ClearCustomerIf clears the bindings when customerID is the bound customer.
func (s *Session) ClearCustomerIf(customerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.bindings.Customer(); !ok || c.ID != customerID {
		return false
	}
	s.bindings.ClearCustomer()
	s.touch()
	return true
}

// Customer returns the bound customer, if any.
func (s *Session) Customer() (models.CustomerRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bindings.Customer()
}

// SelectPrescription is ignored when no customer is bound.
func (s *Session) SelectPrescription(id string, kind models.PrescriptionType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.bindings.SelectPrescription(id, kind)
	if ok {
		s.touch()
	} else {
		s.logger.Debug("Prescription ignored without customer", logging.Fields{"prescription_id": id})
	}
	return ok
}

// SelectPrescriptionFor binds a prescription only while customerID is still
// the bound customer. It is used after the owner has been verified remotely.
func (s *Session) SelectPrescriptionFor(customerID, id string, kind models.PrescriptionType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.bindings.Customer(); !ok || c.ID != customerID {
		return false
	}
	ok := s.bindings.SelectPrescription(id, kind)
	if ok {
		s.touch()
	}
	return ok
}

// ClearPrescriptionIf clears the bound prescription when its id matches.
func (s *Session) ClearPrescriptionIf(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.bindings.Prescription(); !ok || p.ID != id {
		return false
	}
	s.bindings.ClearPrescription()
	s.touch()
	return true
}

func (s *Session) ClearPrescription() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings.ClearPrescription()
	s.touch()
}

func (s *Session) SetPaymentMethod(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.payment.SetMethod(method); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) SetDeposit(amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.payment.SetDeposit(amount); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Checkout validates the sale, snapshots it and submits it once.
// An empty requestID gets a generated one. The returned request is the
// exact payload that was submitted, or nil if nothing was submitted.
func (s *Session) Checkout(ctx context.Context, requestID string) (*models.CheckoutRequest, *models.OrderConfirmation, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var built *models.CheckoutRequest
	conf, err := s.coordinator.Checkout(ctx, func() (*models.CheckoutRequest, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if err := s.checkPreconditions(); err != nil {
			return nil, err
		}
		built = s.buildRequest(requestID)
		return built, nil
	})
	return built, conf, err
}

// Edit runs fn unless a submission is running or the sale is committed, in
// which case it returns ErrCheckoutInProgress or ErrAlreadyCommitted. No
// checkout can start while fn runs. fn must not call Snapshot or State.
func (s *Session) Edit(fn func() error) error {
	return s.coordinator.Hold(fn)
}

// CancelCheckout aborts a running submission.
func (s *Session) CancelCheckout() bool {
	return s.coordinator.Cancel()
}

// UpdatedAt is the time of the last successful edit.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *Session) State() models.CheckoutState {
	return s.coordinator.State()
}

// Search returns the session's debounced customer search, or nil when the
// session has no directory.
func (s *Session) Search() *CustomerSearch {
	return s.search
}

// Close releases background work owned by the session.
func (s *Session) Close() {
	if s.search != nil {
		s.search.Close()
	}
}

// Snapshot copies the current state.
// Coordinator state is read before taking mu; Checkout holds the
// coordinator lock while it reads the session.
func (s *Session) Snapshot() *models.SessionSnapshot {
	state := s.coordinator.State()
	conf := s.coordinator.Confirmation()
	lastErr := s.coordinator.LastError()

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &models.SessionSnapshot{
		ID:            s.id,
		Items:         s.cart.Items(),
		Subtotal:      s.cart.Subtotal(),
		Discount:      s.cart.Discount(),
		Total:         s.cart.Total(),
		PaymentMethod: s.payment.Method(),
		Deposit:       s.payment.Deposit(),
		State:         state,
		Confirmation:  conf,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
	if c, ok := s.bindings.Customer(); ok {
		snap.Customer = &c
	}
	if p, ok := s.bindings.Prescription(); ok {
		snap.Prescription = &p
	}
	if lastErr != nil {
		snap.LastError = lastErr.Error()
	}
	return snap
}

func (s *Session) checkPreconditions() error {
	if s.cart.IsEmpty() {
		return apperrors.NewPreconditionError(apperrors.ConditionCartEmpty, "cart has no items")
	}
	if err := s.payment.check(s.cart.Total()); err != nil {
		return err
	}
	if !s.bindings.prescriptionOwnedByCustomer() {
		return apperrors.NewPreconditionError(apperrors.ConditionPrescriptionNotOwned,
			"bound prescription does not belong to the bound customer")
	}
	return nil
}

func (s *Session) buildRequest(requestID string) *models.CheckoutRequest {
	items := s.cart.Items()
	lines := make([]models.CheckoutLine, len(items))
	for i, item := range items {
		lines[i] = models.CheckoutLine{
			LineID:    item.LineID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.Total(),
		}
	}

	req := &models.CheckoutRequest{
		RequestID:     requestID,
		SessionID:     s.id,
		Items:         lines,
		PaymentMethod: s.payment.Method(),
		Deposit:       s.payment.Deposit(),
		Subtotal:      s.cart.Subtotal(),
		Discount:      s.cart.Discount(),
		Total:         s.cart.Total(),
		CreatedAt:     s.now(),
	}
	if c, ok := s.bindings.Customer(); ok {
		id := c.ID
		req.CustomerID = &id
	}
	if p, ok := s.bindings.Prescription(); ok {
		req.Prescription = &models.PrescriptionSnapshot{ID: p.ID, Type: p.Type}
	}
	return req
}

func (s *Session) touch() {
	s.updatedAt = s.now()
}
