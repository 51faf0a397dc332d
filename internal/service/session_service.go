package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/pos"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/repository"
)

const checkoutScope = "pos_checkout"

// CustomerDirectory is the customer service as seen by the till.
type CustomerDirectory interface {
	pos.CustomerDirectory
	ListPrescriptions(ctx context.Context, customerID string) ([]models.PrescriptionRef, error)
}

// SalePublisher announces checkout outcomes.
type SalePublisher interface {
	PublishSaleCommitted(ctx context.Context, sale *models.SaleRecord) error
	PublishCheckoutFailed(ctx context.Context, req *models.CheckoutRequest, reason string) error
}

// ReceiptSender delivers a receipt for a committed sale.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, phone string, sale *models.SaleRecord) error
}

// CheckoutResult is a committed sale. Replayed is set when the sale was
// returned from an earlier request with the same idempotency key.
type CheckoutResult struct {
	Sale     *models.SaleRecord `json:"sale"`
	Replayed bool               `json:"replayed"`
}

// SessionService owns the live sessions of this instance.
type SessionService struct {
	submitter   pos.OrderSubmitter
	directory   CustomerDirectory
	cache       repository.SessionCache
	idempotency repository.IdempotencyStore
	sales       repository.SaleRepository
	publisher   SalePublisher
	receipts    ReceiptSender
	metrics     metrics.Recorder
	config      *config.Config
	logger      *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*pos.Session

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewSessionService creates the service. Any collaborator except submitter
// may be nil, which disables the feature that uses it.
func NewSessionService(
	submitter pos.OrderSubmitter,
	directory CustomerDirectory,
	cache repository.SessionCache,
	idempotency repository.IdempotencyStore,
	sales repository.SaleRepository,
	publisher SalePublisher,
	receipts ReceiptSender,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *logging.Logger,
) *SessionService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &SessionService{
		submitter:   submitter,
		directory:   directory,
		cache:       cache,
		idempotency: idempotency,
		sales:       sales,
		publisher:   publisher,
		receipts:    receipts,
		metrics:     recorder,
		config:      cfg,
		logger:      logger.Named("session-service"),
		sessions:    make(map[string]*pos.Session),
		stopCh:      make(chan struct{}),
	}
}

// CreateSession starts a new empty sale.
func (s *SessionService) CreateSession(ctx context.Context) *models.SessionSnapshot {
	sess := s.newSession(uuid.NewString())

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	s.metrics.SessionOpened()

	s.logger.Info("Session created", logging.Fields{"session_id": sess.ID()})
	return s.persist(ctx, sess)
}

// GetSession returns a live session, restoring it from the cache when this
// instance does not hold it.
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// ResetSession replaces the sale with an empty one under the same id.
func (s *SessionService) ResetSession(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State() == models.CheckoutSubmitting {
		return nil, apperrors.ErrCheckoutInProgress
	}

	fresh := s.replace(id)
	s.logger.Info("Session reset", logging.Fields{"session_id": id})
	return s.persist(ctx, fresh), nil
}

func (s *SessionService) AddItem(ctx context.Context, id string, req *models.AddItemRequest) (*models.LineItem, *models.SessionSnapshot, error) {
	if err := ValidateAddItemRequest(req); err != nil {
		return nil, nil, err
	}
	var line models.LineItem
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		line = sess.AddItem(req.Product(), req.Quantity)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.metrics.CartMutation("add_item")
	return &line, s.persist(ctx, sess), nil
}

// UpdateQuantity sets a line's quantity. Zero or below removes the line and
// an unknown line is ignored.
func (s *SessionService) UpdateQuantity(ctx context.Context, id, lineID string, quantity int) (*models.SessionSnapshot, error) {
	if err := ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		sess.UpdateQuantity(lineID, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("update_quantity")
	return s.persist(ctx, sess), nil
}

func (s *SessionService) RemoveItem(ctx context.Context, id, lineID string) (*models.SessionSnapshot, error) {
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		sess.RemoveItem(lineID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("remove_item")
	return s.persist(ctx, sess), nil
}

func (s *SessionService) ApplyDiscount(ctx context.Context, id string, req *models.DiscountRequest) (*models.SessionSnapshot, error) {
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		amount, err := ResolveDiscount(sess.Subtotal(), req, s.config.POS.MaxDiscountPct)
		if err != nil {
			return err
		}
		return sess.SetDiscount(amount)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("discount")
	return s.persist(ctx, sess), nil
}

func (s *SessionService) SelectCustomer(ctx context.Context, id string, customer *models.CustomerRef) (*models.SessionSnapshot, error) {
	if err := ValidateCustomer(customer); err != nil {
		return nil, err
	}
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		sess.SelectCustomer(*customer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("select_customer")
	return s.persist(ctx, sess), nil
}

func (s *SessionService) ClearCustomer(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		sess.ClearCustomer()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("clear_customer")
	return s.persist(ctx, sess), nil
}

// SelectPrescription binds a prescription of the bound customer. Without a
// bound customer the request is ignored and applied is false. When owner
// verification is on, the prescription must be listed for the customer.
func (s *SessionService) SelectPrescription(ctx context.Context, id string, req *models.SelectPrescriptionRequest) (applied bool, snap *models.SessionSnapshot, err error) {
	if err := ValidateSelectPrescriptionRequest(req); err != nil {
		return false, nil, err
	}
	var (
		customer models.CustomerRef
		ok       bool
	)
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		customer, ok = sess.Customer()
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if !ok {
		s.logger.Debug("Prescription ignored without customer", logging.Fields{
			"session_id":      id,
			"prescription_id": req.ID,
		})
		return false, sess.Snapshot(), nil
	}

	if s.config.Features.VerifyPrescriptionOwner && s.directory != nil {
		if err := s.verifyPrescription(ctx, customer.ID, req); err != nil {
			return false, nil, err
		}
	}

	// The customer may have changed while the directory was consulted.
	if err := sess.Edit(func() error {
		applied = sess.SelectPrescriptionFor(customer.ID, req.ID, req.Type)
		return nil
	}); err != nil {
		return false, nil, err
	}
	if applied {
		s.metrics.CartMutation("select_prescription")
	}
	return applied, s.persist(ctx, sess), nil
}

func (s *SessionService) verifyPrescription(ctx context.Context, customerID string, req *models.SelectPrescriptionRequest) error {
	prescriptions, err := s.directory.ListPrescriptions(ctx, customerID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.NewValidationError("customer", "customer is not in the directory")
	}
	if err != nil {
		s.logger.Error("Failed to list prescriptions", logging.Fields{
			"customer_id": customerID,
			"error":       err.Error(),
		})
		return fmt.Errorf("list prescriptions: %w: %v", apperrors.ErrDependencyUnavailable, err)
	}

	for _, p := range prescriptions {
		if p.ID != req.ID {
			continue
		}
		if p.CustomerID != customerID {
			break
		}
		if p.Type != req.Type {
			return apperrors.NewValidationError("type", "prescription is a "+string(p.Type)+" prescription")
		}
		return nil
	}
	return apperrors.NewValidationError("id", "prescription does not belong to the bound customer")
}

func (s *SessionService) ClearPrescription(ctx context.Context, id string) (*models.SessionSnapshot, error) {
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		sess.ClearPrescription()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("clear_prescription")
	return s.persist(ctx, sess), nil
}

func (s *SessionService) SetPaymentMethod(ctx context.Context, id, method string) (*models.SessionSnapshot, error) {
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		return sess.SetPaymentMethod(method)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("payment_method")
	return s.persist(ctx, sess), nil
}

func (s *SessionService) SetDeposit(ctx context.Context, id string, amount decimal.Decimal) (*models.SessionSnapshot, error) {
	sess, err := s.edit(ctx, id, func(sess *pos.Session) error {
		return sess.SetDeposit(amount)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CartMutation("deposit")
	return s.persist(ctx, sess), nil
}

// Checkout submits the sale. With an idempotency key, a repeat of a
// committed checkout returns the original sale, and a repeat while the first
// is still running fails with ErrCheckoutInProgress. The key is also the
// request id sent to the order service.
//
// The submission is not tied to ctx's cancellation: a dropped HTTP request
// must not abandon an order the service may already have accepted. Use
// CancelCheckout to abort.
func (s *SessionService) Checkout(ctx context.Context, id, idempotencyKey string) (*CheckoutResult, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}

	guarded := idempotencyKey != "" && s.idempotency != nil && s.config.Features.EnableIdempotentCheckouts
	locked := false
	if guarded {
		scopedKey := id + ":" + idempotencyKey
		if sale, ok := s.recallSale(ctx, scopedKey); ok {
			s.metrics.Checkout(metrics.OutcomeReplayed)
			s.logger.Info("Checkout replayed", logging.Fields{
				"session_id": id,
				"order_id":   sale.OrderID,
			})
			return &CheckoutResult{Sale: sale, Replayed: true}, nil
		}

		ok, err := s.idempotency.TryLock(ctx, checkoutScope, scopedKey)
		switch {
		case err != nil:
			s.logger.Warn("Idempotency lock unavailable", logging.Fields{
				"session_id": id,
				"error":      err.Error(),
			})
		case !ok:
			s.metrics.Checkout(metrics.OutcomeInProgress)
			return nil, apperrors.ErrCheckoutInProgress
		default:
			locked = true
		}
		defer func() {
			if locked {
				if err := s.idempotency.Release(context.WithoutCancel(ctx), checkoutScope, scopedKey); err != nil {
					s.logger.Warn("Failed to release idempotency key", logging.Fields{"error": err.Error()})
				}
			}
		}()
	}

	submitCtx := context.WithoutCancel(ctx)
	start := time.Now()
	req, conf, err := sess.Checkout(submitCtx, idempotencyKey)
	if req != nil {
		s.metrics.SubmitDuration(time.Since(start))
	}
	if err != nil {
		s.checkoutFailed(submitCtx, sess, req, err)
		return nil, err
	}

	sale := models.NewSaleRecord("", req, conf)
	s.recordSale(submitCtx, sale)

	if guarded {
		if s.rememberSale(submitCtx, id+":"+idempotencyKey, sale) {
			// The remembered sale answers retries from now on.
			locked = false
		}
	}

	if customer, ok := sess.Customer(); ok && customer.Phone != "" {
		s.sendReceipt(customer.Phone, sale)
	}

	fresh := s.replace(id)
	s.persist(submitCtx, fresh)

	s.metrics.Checkout(metrics.OutcomeCommitted)
	s.logger.Info("Sale committed", logging.Fields{
		"session_id": id,
		"order_id":   sale.OrderID,
		"total":      sale.Total.String(),
	})
	return &CheckoutResult{Sale: sale}, nil
}

func (s *SessionService) checkoutFailed(ctx context.Context, sess *pos.Session, req *models.CheckoutRequest, err error) {
	var sub *apperrors.SubmissionError
	switch {
	case errors.As(err, &sub):
		outcome := metrics.OutcomeUnavailable
		if sub.Rejected {
			outcome = metrics.OutcomeRejected
		}
		s.metrics.Checkout(outcome)
		s.logger.Warn("Checkout failed", logging.Fields{
			"session_id": sess.ID(),
			"rejected":   sub.Rejected,
			"reason":     sub.Reason,
		})
		if s.publisher != nil && s.config.Features.EnableSaleEvents && req != nil {
			if err := s.publisher.PublishCheckoutFailed(ctx, req, sub.Reason); err != nil {
				// Log but don't fail
				s.logger.Error("Failed to publish checkout failed event", logging.Fields{
					"session_id": sess.ID(),
					"error":      err.Error(),
				})
			}
		}
		// Persist the failed state so another instance reports it.
		s.persist(ctx, sess)
	case apperrors.IsPrecondition(err):
		s.metrics.Checkout(metrics.OutcomePrecondition)
	case errors.Is(err, apperrors.ErrCheckoutInProgress):
		s.metrics.Checkout(metrics.OutcomeInProgress)
	}
}

func (s *SessionService) recordSale(ctx context.Context, sale *models.SaleRecord) {
	if s.sales != nil && s.config.Features.EnableSaleAudit {
		if err := s.sales.Create(ctx, sale); err != nil {
			// Log but don't fail
			s.logger.Error("Failed to record sale", logging.Fields{
				"order_id": sale.OrderID,
				"error":    err.Error(),
			})
		}
	}
	if sale.ID == "" {
		sale.ID = "sale_" + uuid.NewString()
	}

	if s.publisher != nil && s.config.Features.EnableSaleEvents {
		if err := s.publisher.PublishSaleCommitted(ctx, sale); err != nil {
			// Log but don't fail
			s.logger.Error("Failed to publish sale committed event", logging.Fields{
				"order_id": sale.OrderID,
				"error":    err.Error(),
			})
		}
	}
}

func (s *SessionService) recallSale(ctx context.Context, key string) (*models.SaleRecord, bool) {
	raw, ok, err := s.idempotency.Recall(ctx, checkoutScope, key)
	if err != nil {
		s.logger.Warn("Failed to recall checkout", logging.Fields{"error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var sale models.SaleRecord
	if err := json.Unmarshal([]byte(raw), &sale); err != nil {
		s.logger.Error("Corrupt remembered checkout", logging.Fields{"error": err.Error()})
		return nil, false
	}
	return &sale, true
}

func (s *SessionService) rememberSale(ctx context.Context, key string, sale *models.SaleRecord) bool {
	data, err := json.Marshal(sale)
	if err != nil {
		return false
	}
	if err := s.idempotency.Remember(ctx, checkoutScope, key, string(data)); err != nil {
		s.logger.Error("Failed to remember checkout", logging.Fields{
			"order_id": sale.OrderID,
			"error":    err.Error(),
		})
		return false
	}
	return true
}

func (s *SessionService) sendReceipt(phone string, sale *models.SaleRecord) {
	if s.receipts == nil || !s.config.Features.EnableReceipts {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timeout := s.config.NotificationService.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.receipts.SendReceipt(ctx, phone, sale); err != nil {
			s.logger.Error("Failed to send receipt", logging.Fields{
				"order_id": sale.OrderID,
				"error":    err.Error(),
			})
		}
	}()
}

// CancelCheckout aborts a running submission. It reports whether one was running.
func (s *SessionService) CancelCheckout(ctx context.Context, id string) (bool, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return false, err
	}
	cancelled := sess.CancelCheckout()
	if cancelled {
		s.logger.Info("Checkout cancelled", logging.Fields{"session_id": id})
	}
	return cancelled, nil
}

// SearchCustomers schedules a debounced lookup and returns its sequence number.
func (s *SessionService) SearchCustomers(ctx context.Context, id, query string) (uint64, error) {
	if err := ValidateSearchQuery(query); err != nil {
		return 0, err
	}
	search, err := s.search(ctx, id)
	if err != nil {
		return 0, err
	}
	return search.Query(query), nil
}

// SearchResults returns the newest search result of the session.
func (s *SessionService) SearchResults(ctx context.Context, id string) (pos.SearchResult, error) {
	search, err := s.search(ctx, id)
	if err != nil {
		return pos.SearchResult{}, err
	}
	return search.Latest(), nil
}

func (s *SessionService) search(ctx context.Context, id string) (*pos.CustomerSearch, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	search := sess.Search()
	if search == nil {
		return nil, fmt.Errorf("customer search: %w", apperrors.ErrDependencyUnavailable)
	}
	return search, nil
}

// HandleCustomerRemoved unbinds a deleted customer from every live session.
func (s *SessionService) HandleCustomerRemoved(ctx context.Context, customerID string) int {
	changed := 0
	for _, sess := range s.live() {
		if sess.ClearCustomerIf(customerID) {
			s.persist(ctx, sess)
			changed++
		}
	}
	return changed
}

// HandlePrescriptionRevoked unbinds a revoked prescription from every live session.
func (s *SessionService) HandlePrescriptionRevoked(ctx context.Context, customerID, prescriptionID string) int {
	if prescriptionID == "" {
		return 0
	}
	changed := 0
	for _, sess := range s.live() {
		if c, ok := sess.Customer(); ok && c.ID != customerID {
			continue
		}
		if sess.ClearPrescriptionIf(prescriptionID) {
			s.persist(ctx, sess)
			changed++
		}
	}
	return changed
}

// GetSale looks up an audited sale by order id.
func (s *SessionService) GetSale(ctx context.Context, orderID string) (*models.SaleRecord, error) {
	if s.sales == nil || !s.config.Features.EnableSaleAudit {
		return nil, fmt.Errorf("sale audit: %w", apperrors.ErrDependencyUnavailable)
	}
	return s.sales.GetByOrderID(ctx, orderID)
}

// ListCustomerSales lists audited sales of a customer, newest first.
func (s *SessionService) ListCustomerSales(ctx context.Context, customerID string, limit, offset int) ([]*models.SaleRecord, int, error) {
	if s.sales == nil || !s.config.Features.EnableSaleAudit {
		return nil, 0, fmt.Errorf("sale audit: %w", apperrors.ErrDependencyUnavailable)
	}
	limit, offset, err := ValidatePagination(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return s.sales.ListByCustomer(ctx, customerID, limit, offset)
}

// EvictIdle drops sessions untouched for longer than idle from memory.
// Their cached snapshots stay available until the cache expires them.
func (s *SessionService) EvictIdle(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	var evicted []*pos.Session
	for id, sess := range s.sessions {
		if sess.State() == models.CheckoutSubmitting || now.Sub(sess.UpdatedAt()) < idle {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, sess)
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.Close()
		s.metrics.SessionClosed()
	}
	if len(evicted) > 0 {
		s.logger.Info("Evicted idle sessions", logging.Fields{"count": len(evicted)})
	}
	return len(evicted)
}

// RunJanitor evicts idle sessions every interval until ctx ends or Close is called.
func (s *SessionService) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.EvictIdle(now, idle)
		}
	}
}

// Close stops background work and waits for pending receipts.
func (s *SessionService) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	live := s.sessions
	s.sessions = make(map[string]*pos.Session)
	s.mu.Unlock()

	for _, sess := range live {
		sess.Close()
		s.metrics.SessionClosed()
	}
	s.wg.Wait()
}

func (s *SessionService) newSession(id string) *pos.Session {
	return pos.NewSession(id, s.submitter, s.sessionOptions())
}

func (s *SessionService) sessionOptions() pos.Options {
	opts := pos.Options{
		MergePolicy:    s.config.MergePolicy(),
		SubmitTimeout:  s.config.POS.SubmitTimeout,
		SearchDebounce: s.config.POS.SearchDebounce,
		Logger:         s.logger,
		OnSearchResult: s.searchFinished,
		BeforeSubmit:   s.markSubmitting,
	}
	if s.directory != nil {
		opts.Directory = s.directory
	}
	return opts
}

func (s *SessionService) searchFinished(r pos.SearchResult) {
	switch {
	case r.Err != nil:
		s.metrics.CustomerSearch("error")
		s.logger.Warn("Customer search failed", logging.Fields{"error": r.Err.Error()})
	case len(r.Customers) == 0:
		s.metrics.CustomerSearch("empty")
	default:
		s.metrics.CustomerSearch("hit")
	}
}

// session finds a live session or restores it from the cache.
func (s *SessionService) session(ctx context.Context, id string) (*pos.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	if s.cache == nil || !s.config.Features.EnableSessionCache {
		return nil, apperrors.ErrNotFound
	}
	snap, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Error("Failed to read session cache", logging.Fields{
			"session_id": id,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("session cache: %w", apperrors.ErrDependencyUnavailable)
	}
	if snap == nil {
		return nil, apperrors.ErrNotFound
	}

	restored := pos.RestoreSession(snap, s.submitter, s.sessionOptions())

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have restored it first.
	if existing, ok := s.sessions[id]; ok {
		restored.Close()
		return existing, nil
	}
	s.sessions[id] = restored
	s.metrics.SessionOpened()
	s.logger.Info("Session restored from cache", logging.Fields{"session_id": id})
	return restored, nil
}

// edit runs fn on the session while no checkout can start. A sale that is
// being submitted or is committed is refused.
func (s *SessionService) edit(ctx context.Context, id string, fn func(sess *pos.Session) error) (*pos.Session, error) {
	sess, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.Edit(func() error { return fn(sess) }); err != nil {
		return nil, err
	}
	return sess, nil
}

// live copies the sessions held by this instance.
func (s *SessionService) live() []*pos.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*pos.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// replace swaps in an empty session under the same id.
func (s *SessionService) replace(id string) *pos.Session {
	fresh := s.newSession(id)

	s.mu.Lock()
	old, ok := s.sessions[id]
	s.sessions[id] = fresh
	s.mu.Unlock()

	if ok {
		old.Close()
	} else {
		s.metrics.SessionOpened()
	}
	return fresh
}

// markSubmitting caches the sale as submitting before the order is sent, so
// a restore of it elsewhere comes back committed instead of resubmittable.
// The submission is aborted when the marker cannot be written.
func (s *SessionService) markSubmitting(ctx context.Context, snap *models.SessionSnapshot) error {
	if s.cache == nil || !s.config.Features.EnableSessionCache {
		return nil
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.Error("Failed to cache submitting session", logging.Fields{
			"session_id": snap.ID,
			"error":      err.Error(),
		})
		return fmt.Errorf("session cache: %w", err)
	}
	return nil
}

// persist caches the session's snapshot and returns it.
func (s *SessionService) persist(ctx context.Context, sess *pos.Session) *models.SessionSnapshot {
	snap := sess.Snapshot()
	if s.cache == nil || !s.config.Features.EnableSessionCache {
		return snap
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to cache session", logging.Fields{
			"session_id": snap.ID,
			"error":      err.Error(),
		})
	}
	return snap
}
