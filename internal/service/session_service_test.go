package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/pos"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/repository"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   []*models.CheckoutRequest
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) SubmitOrder(ctx context.Context, req *models.CheckoutRequest) (*models.OrderConfirmation, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err := f.err
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &models.OrderConfirmation{OrderID: "ord_" + req.RequestID, Status: "created", CreatedAt: time.Now()}, nil
}

func (f *fakeSubmitter) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeDirectory struct {
	customers     []models.CustomerRef
	prescriptions map[string][]models.PrescriptionRef
	err           error
}

func (d *fakeDirectory) SearchCustomers(ctx context.Context, query string) ([]models.CustomerRef, error) {
	return d.customers, d.err
}

func (d *fakeDirectory) ListPrescriptions(ctx context.Context, customerID string) ([]models.PrescriptionRef, error) {
	if d.err != nil {
		return nil, d.err
	}
	rx, ok := d.prescriptions[customerID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rx, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	committed []*models.SaleRecord
	failed    []string
}

func (p *fakePublisher) PublishSaleCommitted(ctx context.Context, sale *models.SaleRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.committed = append(p.committed, sale)
	return nil
}

func (p *fakePublisher) PublishCheckoutFailed(ctx context.Context, req *models.CheckoutRequest, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, reason)
	return nil
}

type fakeReceipts struct {
	mu     sync.Mutex
	phones []string
}

func (r *fakeReceipts) SendReceipt(ctx context.Context, phone string, sale *models.SaleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phones = append(r.phones, phone)
	return nil
}

func (r *fakeReceipts) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.phones...)
}

type fakeSales struct {
	mu    sync.Mutex
	sales []*models.SaleRecord
}

func (f *fakeSales) Create(ctx context.Context, sale *models.SaleRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sale.ID = "sale_test"
	f.sales = append(f.sales, sale)
	return nil
}

func (f *fakeSales) GetByOrderID(ctx context.Context, orderID string) (*models.SaleRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sales {
		if s.OrderID == orderID {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeSales) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]*models.SaleRecord, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SaleRecord
	for _, s := range f.sales {
		if s.CustomerID == customerID {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

type testDeps struct {
	submitter *fakeSubmitter
	directory *fakeDirectory
	publisher *fakePublisher
	receipts  *fakeReceipts
	sales     *fakeSales
	redis     *redis.Client
	mr        *miniredis.Miniredis
	cfg       *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		POS: config.POSConfig{
			MergePolicy:    "merge",
			SubmitTimeout:  5 * time.Second,
			SearchDebounce: 5 * time.Millisecond,
			MaxDiscountPct: 50,
		},
		Redis: config.RedisConfig{SessionTTL: time.Hour, IdempotencyTTL: time.Hour},
		Features: config.FeatureFlags{
			EnableSaleEvents:          true,
			EnableSessionCache:        true,
			EnableSaleAudit:           true,
			EnableReceipts:            true,
			VerifyPrescriptionOwner:   true,
			EnableIdempotentCheckouts: true,
		},
	}
}

func newTestDeps(t *testing.T) *testDeps {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return &testDeps{
		submitter: &fakeSubmitter{},
		directory: &fakeDirectory{
			customers: []models.CustomerRef{alice},
			prescriptions: map[string][]models.PrescriptionRef{
				"cus_alice": {{ID: "rx_1", Type: models.PrescriptionSpectacle, CustomerID: "cus_alice"}},
				"cus_bob":   {},
			},
		},
		publisher: &fakePublisher{},
		receipts:  &fakeReceipts{},
		sales:     &fakeSales{},
		redis:     client,
		mr:        mr,
		cfg:       testConfig(),
	}
}

func (d *testDeps) service(t *testing.T) *SessionService {
	logger := logging.NewNop()
	svc := NewSessionService(
		d.submitter,
		d.directory,
		repository.NewRedisSessionCache(d.redis, d.cfg.Redis.SessionTTL, logger),
		repository.NewRedisIdempotencyStore(d.redis, d.cfg.Redis.IdempotencyTTL),
		d.sales,
		d.publisher,
		d.receipts,
		metrics.Nop{},
		d.cfg,
		logger,
	)
	t.Cleanup(svc.Close)
	return svc
}

var (
	alice = models.CustomerRef{ID: "cus_alice", Name: "Alice", Phone: "+15550001"}
	bob   = models.CustomerRef{ID: "cus_bob", Name: "Bob"}
)

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func frameRequest() *models.AddItemRequest {
	return &models.AddItemRequest{ProductID: "frame_a", Name: "Frame A", UnitPrice: money("50"), Quantity: 2}
}

// readySale builds a sale that passes every checkout precondition.
func readySale(t *testing.T, svc *SessionService) string {
	t.Helper()
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	_, _, err := svc.AddItem(ctx, id, frameRequest())
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(ctx, id, &models.DiscountRequest{Amount: ptr(money("10"))})
	require.NoError(t, err)
	c := alice
	_, err = svc.SelectCustomer(ctx, id, &c)
	require.NoError(t, err)
	applied, _, err := svc.SelectPrescription(ctx, id, &models.SelectPrescriptionRequest{ID: "rx_1", Type: models.PrescriptionSpectacle})
	require.NoError(t, err)
	require.True(t, applied)
	_, err = svc.SetPaymentMethod(ctx, id, "card")
	require.NoError(t, err)
	_, err = svc.SetDeposit(ctx, id, money("20"))
	require.NoError(t, err)
	return id
}

func TestSessionService_CartOperations(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	line, snap, err := svc.AddItem(ctx, id, frameRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, money("100").Equal(snap.Subtotal))

	_, snap, err = svc.AddItem(ctx, id, &models.AddItemRequest{ProductID: "frame_a", Name: "Frame A", UnitPrice: money("50")})
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)

	snap, err = svc.UpdateQuantity(ctx, id, "no_such_line", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Items[0].Quantity)

	snap, err = svc.ApplyDiscount(ctx, id, &models.DiscountRequest{Percent: ptr(money("10"))})
	require.NoError(t, err)
	assert.True(t, money("15").Equal(snap.Discount))
	assert.True(t, money("135").Equal(snap.Total))

	snap, err = svc.UpdateQuantity(ctx, id, line.LineID, 0)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())

	_, err = svc.RemoveItem(ctx, id, line.LineID)
	assert.NoError(t, err)
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc := newTestDeps(t).service(t)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, _, err = svc.AddItem(context.Background(), "missing", frameRequest())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_ValidationLeavesStateAlone(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID
	_, _, err := svc.AddItem(ctx, id, frameRequest())
	require.NoError(t, err)
	before, err := svc.GetSession(ctx, id)
	require.NoError(t, err)

	_, err = svc.SetPaymentMethod(ctx, id, "cheque")
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.SetDeposit(ctx, id, money("-1"))
	assert.True(t, apperrors.IsValidation(err))
	_, err = svc.ApplyDiscount(ctx, id, &models.DiscountRequest{Percent: ptr(money("80"))})
	assert.True(t, apperrors.IsValidation(err))
	_, _, err = svc.AddItem(ctx, id, &models.AddItemRequest{ProductID: " "})
	assert.True(t, apperrors.IsValidation(err))

	after, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, before.Items, after.Items)
	assert.Empty(t, after.PaymentMethod)
}

func TestSessionService_SelectPrescription(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID
	req := func(rx string) *models.SelectPrescriptionRequest {
		return &models.SelectPrescriptionRequest{ID: rx, Type: models.PrescriptionSpectacle}
	}

	applied, snap, err := svc.SelectPrescription(ctx, id, req("rx_1"))
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, snap.Prescription)

	c := bob
	_, err = svc.SelectCustomer(ctx, id, &c)
	require.NoError(t, err)
	_, _, err = svc.SelectPrescription(ctx, id, req("rx_1"))
	assert.True(t, apperrors.IsValidation(err))

	c = alice
	_, err = svc.SelectCustomer(ctx, id, &c)
	require.NoError(t, err)
	_, _, err = svc.SelectPrescription(ctx, id, &models.SelectPrescriptionRequest{ID: "rx_1", Type: models.PrescriptionContactLens})
	assert.True(t, apperrors.IsValidation(err))

	applied, snap, err = svc.SelectPrescription(ctx, id, req("rx_1"))
	require.NoError(t, err)
	assert.True(t, applied)
	require.NotNil(t, snap.Prescription)
	assert.Equal(t, "cus_alice", snap.Prescription.CustomerID)

	d.directory.prescriptions["cus_alice"] = append(d.directory.prescriptions["cus_alice"],
		models.PrescriptionRef{ID: "rx_bob", Type: models.PrescriptionSpectacle, CustomerID: "cus_bob"})
	_, _, err = svc.SelectPrescription(ctx, id, req("rx_bob"))
	assert.True(t, apperrors.IsValidation(err))

	d.directory.err = errors.New("connection refused")
	_, _, err = svc.SelectPrescription(ctx, id, req("rx_1"))
	assert.ErrorIs(t, err, apperrors.ErrDependencyUnavailable)
}

func TestSessionService_CheckoutCommits(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	ctx := context.Background()
	id := readySale(t, svc)

	result, err := svc.Checkout(ctx, id, "key-1")
	require.NoError(t, err)
	assert.False(t, result.Replayed)

	sale := result.Sale
	assert.Equal(t, "ord_key-1", sale.OrderID)
	assert.Equal(t, "sale_test", sale.ID)
	assert.Equal(t, "cus_alice", sale.CustomerID)
	assert.Equal(t, "rx_1", sale.PrescriptionID)
	assert.True(t, money("90").Equal(sale.Total))
	assert.True(t, money("70").Equal(sale.BalanceDue))

	require.Len(t, d.submitter.calls, 1)
	assert.Equal(t, "key-1", d.submitter.calls[0].RequestID)
	assert.Len(t, d.sales.sales, 1)
	assert.Len(t, d.publisher.committed, 1)
	require.Eventually(t, func() bool {
		return len(d.receipts.sent()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"+15550001"}, d.receipts.sent())

	snap, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.Customer)
	assert.Equal(t, models.CheckoutIdle, snap.State)
}

func TestSessionService_CheckoutReplay(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	ctx := context.Background()
	id := readySale(t, svc)

	first, err := svc.Checkout(ctx, id, "key-1")
	require.NoError(t, err)

	second, err := svc.Checkout(ctx, id, "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Sale.OrderID, second.Sale.OrderID)
	assert.Equal(t, 1, d.submitter.callCount())
}

func TestSessionService_CheckoutKeyInUse(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	id := readySale(t, svc)

	locked, err := repository.NewRedisIdempotencyStore(d.redis, time.Minute).
		TryLock(context.Background(), checkoutScope, id+":key-1")
	require.NoError(t, err)
	require.True(t, locked)

	_, err = svc.Checkout(context.Background(), id, "key-1")
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)
	assert.Zero(t, d.submitter.callCount())
}

func TestSessionService_CheckoutRejectedThenRetried(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	ctx := context.Background()
	id := readySale(t, svc)
	before, err := svc.GetSession(ctx, id)
	require.NoError(t, err)

	d.submitter.setErr(apperrors.NewRejectedError("frame out of stock"))
	_, err = svc.Checkout(ctx, id, "key-1")
	var sub *apperrors.SubmissionError
	require.ErrorAs(t, err, &sub)
	assert.True(t, sub.Rejected)
	assert.Equal(t, []string{"frame out of stock"}, d.publisher.failed)

	after, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutFailed, after.State)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, before.Total.Equal(after.Total))

	// The same key is free again after a failure.
	d.submitter.setErr(nil)
	result, err := svc.Checkout(ctx, id, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "ord_key-1", result.Sale.OrderID)
	assert.Equal(t, 2, d.submitter.callCount())
}

func TestSessionService_CheckoutPrecondition(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	id := svc.CreateSession(context.Background()).ID

	_, err := svc.Checkout(context.Background(), id, "key-1")
	assert.True(t, apperrors.IsPrecondition(err))
	assert.Zero(t, d.submitter.callCount())

	ok, err := repository.NewRedisIdempotencyStore(d.redis, time.Minute).
		TryLock(context.Background(), checkoutScope, id+":key-1")
	require.NoError(t, err)
	assert.True(t, ok, "key must be released after a precondition failure")
}

func TestSessionService_InFlightCheckout(t *testing.T) {
	d := newTestDeps(t)
	d.submitter.block = make(chan struct{})
	d.submitter.started = make(chan struct{}, 1)
	svc := d.service(t)
	ctx := context.Background()
	id := readySale(t, svc)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Checkout(ctx, id, "")
		done <- err
	}()
	<-d.submitter.started

	_, err := svc.ResetSession(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)
	_, err = svc.Checkout(ctx, id, "")
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)

	cancelled, err := svc.CancelCheckout(ctx, id)
	require.NoError(t, err)
	assert.True(t, cancelled)

	select {
	case err := <-done:
		assert.True(t, apperrors.IsSubmission(err))
	case <-time.After(time.Second):
		t.Fatal("checkout did not return after cancel")
	}

	snap, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutFailed, snap.State)
	assert.Len(t, snap.Items, 1)
}

func TestSessionService_EditsRefusedDuringCheckout(t *testing.T) {
	d := newTestDeps(t)
	d.submitter.block = make(chan struct{})
	d.submitter.started = make(chan struct{}, 1)
	svc := d.service(t)
	ctx := context.Background()
	id := readySale(t, svc)

	type outcome struct {
		result *CheckoutResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := svc.Checkout(ctx, id, "")
		done <- outcome{result, err}
	}()
	<-d.submitter.started

	_, _, err := svc.AddItem(ctx, id, &models.AddItemRequest{ProductID: "lens", UnitPrice: money("30")})
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)
	_, err = svc.SetDeposit(ctx, id, money("0"))
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)
	_, err = svc.ClearCustomer(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)
	_, err = svc.ApplyDiscount(ctx, id, &models.DiscountRequest{Amount: ptr(money("1"))})
	assert.ErrorIs(t, err, apperrors.ErrCheckoutInProgress)

	snap, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)

	close(d.submitter.block)
	out := <-done
	require.NoError(t, out.err)
	assert.Len(t, out.result.Sale.Items, 1)
	assert.True(t, money("20").Equal(out.result.Sale.Deposit))
}

func TestSessionService_CommitDuringCacheOutageIsNotResubmitted(t *testing.T) {
	d := newTestDeps(t)
	d.submitter.block = make(chan struct{})
	d.submitter.started = make(chan struct{}, 1)
	first := d.service(t)
	ctx := context.Background()
	id := readySale(t, first)

	done := make(chan error, 1)
	go func() {
		_, err := first.Checkout(ctx, id, "")
		done <- err
	}()
	<-d.submitter.started
	d.mr.SetError("ERR simulated outage")
	close(d.submitter.block)
	require.NoError(t, <-done)
	d.mr.SetError("")

	second := d.service(t)
	snap, err := second.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutCommitted, snap.State)
	assert.Equal(t, pos.ErrOutcomeUnknown.Error(), snap.LastError)

	_, err = second.Checkout(ctx, id, "")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCommitted)
	_, _, err = second.AddItem(ctx, id, frameRequest())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCommitted)
	assert.Equal(t, 1, d.submitter.callCount())

	snap, err = second.ResetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutIdle, snap.State)
	assert.Empty(t, snap.Items)
}

func TestSessionService_CheckoutAbortsWhenCacheUnavailable(t *testing.T) {
	d := newTestDeps(t)
	svc := d.service(t)
	ctx := context.Background()
	id := readySale(t, svc)

	d.mr.SetError("ERR simulated outage")
	_, err := svc.Checkout(ctx, id, "")
	d.mr.SetError("")

	var serr *apperrors.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Rejected)
	assert.Equal(t, 0, d.submitter.callCount())

	snap, err := svc.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutFailed, snap.State)

	result, err := svc.Checkout(ctx, id, "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Sale.OrderID)
	assert.Equal(t, 1, d.submitter.callCount())
}

func TestSessionService_RestoresFromCache(t *testing.T) {
	d := newTestDeps(t)
	first := d.service(t)
	ctx := context.Background()
	id := readySale(t, first)

	second := d.service(t)
	snap, err := second.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
	assert.True(t, money("90").Equal(snap.Total))
	require.NotNil(t, snap.Customer)
	assert.Equal(t, "cus_alice", snap.Customer.ID)

	result, err := second.Checkout(ctx, id, "key-2")
	require.NoError(t, err)
	assert.Equal(t, "ord_key-2", result.Sale.OrderID)
}

func TestSessionService_CacheDisabled(t *testing.T) {
	d := newTestDeps(t)
	d.cfg.Features.EnableSessionCache = false
	first := d.service(t)
	id := first.CreateSession(context.Background()).ID

	_, err := d.service(t).GetSession(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, d.mr.Exists("pos_session:"+id))
}

func TestSessionService_DirectoryEvents(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	withAlice := readySale(t, svc)
	withBob := svc.CreateSession(ctx).ID
	c := bob
	_, err := svc.SelectCustomer(ctx, withBob, &c)
	require.NoError(t, err)

	assert.Equal(t, 0, svc.HandlePrescriptionRevoked(ctx, "cus_bob", "rx_1"))
	assert.Equal(t, 1, svc.HandlePrescriptionRevoked(ctx, "cus_alice", "rx_1"))
	snap, err := svc.GetSession(ctx, withAlice)
	require.NoError(t, err)
	assert.Nil(t, snap.Prescription)
	assert.NotNil(t, snap.Customer)

	assert.Equal(t, 1, svc.HandleCustomerRemoved(ctx, "cus_bob"))
	snap, err = svc.GetSession(ctx, withBob)
	require.NoError(t, err)
	assert.Nil(t, snap.Customer)
	assert.Equal(t, 0, svc.HandleCustomerRemoved(ctx, "cus_bob"))
}

func TestSessionService_CustomerSearch(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	seq, err := svc.SearchCustomers(ctx, id, "ali")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, err := svc.SearchResults(ctx, id)
		return err == nil && !r.Pending && r.Seq == seq
	}, time.Second, 5*time.Millisecond)

	r, err := svc.SearchResults(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []models.CustomerRef{alice}, r.Customers)
}

func TestSessionService_SearchWithoutDirectory(t *testing.T) {
	d := newTestDeps(t)
	svc := NewSessionService(d.submitter, nil, nil, nil, nil, nil, nil, nil, d.cfg, logging.NewNop())
	t.Cleanup(svc.Close)
	id := svc.CreateSession(context.Background()).ID

	_, err := svc.SearchCustomers(context.Background(), id, "ali")
	assert.ErrorIs(t, err, apperrors.ErrDependencyUnavailable)

	_, err = svc.GetSale(context.Background(), "ord_1")
	assert.ErrorIs(t, err, apperrors.ErrDependencyUnavailable)
}

func TestSessionService_Sales(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	id := readySale(t, svc)
	result, err := svc.Checkout(ctx, id, "key-1")
	require.NoError(t, err)

	sale, err := svc.GetSale(ctx, result.Sale.OrderID)
	require.NoError(t, err)
	assert.Equal(t, id, sale.SessionID)

	sales, total, err := svc.ListCustomerSales(ctx, "cus_alice", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, sales, 1)

	_, _, err = svc.ListCustomerSales(ctx, "cus_alice", 10, -1)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSessionService_EvictIdle(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	id := svc.CreateSession(ctx).ID

	assert.Equal(t, 0, svc.EvictIdle(time.Now(), time.Hour))
	assert.Equal(t, 1, svc.EvictIdle(time.Now().Add(2*time.Hour), time.Hour))

	// Still restorable from the cache.
	_, err := svc.GetSession(ctx, id)
	assert.NoError(t, err)
}

func TestSessionService_CommittedSessionReset(t *testing.T) {
	svc := newTestDeps(t).service(t)
	ctx := context.Background()
	id := readySale(t, svc)
	_, err := svc.Checkout(ctx, id, "")
	require.NoError(t, err)

	_, snap, err := svc.AddItem(ctx, id, frameRequest())
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
	assert.Equal(t, models.CheckoutIdle, snap.State)
}
