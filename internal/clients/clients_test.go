package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

func testRequest() *models.CheckoutRequest {
	return &models.CheckoutRequest{
		RequestID:     "req_1",
		SessionID:     "sess_1",
		Items:         []models.CheckoutLine{{LineID: "l1", ProductID: "frame_a", Quantity: 2, UnitPrice: decimal.NewFromInt(50), LineTotal: decimal.NewFromInt(100)}},
		PaymentMethod: models.PaymentMethodCash,
		Subtotal:      decimal.NewFromInt(100),
		Discount:      decimal.NewFromInt(10),
		Total:         decimal.NewFromInt(90),
		Deposit:       decimal.NewFromInt(90),
	}
}

func newOrderClient(url string) *HTTPOrderClient {
	return NewHTTPOrderClient(config.ServiceConfig{BaseURL: url, Timeout: 2 * time.Second, APIKey: "key"}, logging.NewNop())
}

func TestHTTPOrderClient_SubmitOrder(t *testing.T) {
	var got models.CheckoutRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/orders", r.URL.Path)
		assert.Equal(t, "req_1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "trace-1", r.Header.Get(middleware.RequestIDHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"ord_42","status":"pending"}`))
	}))
	defer srv.Close()

	ctx := middleware.WithRequestID(context.Background(), "trace-1")
	conf, err := newOrderClient(srv.URL).SubmitOrder(ctx, testRequest())

	require.NoError(t, err)
	assert.Equal(t, "ord_42", conf.OrderID)
	assert.Equal(t, "pending", conf.Status)
	assert.Equal(t, "sess_1", got.SessionID)
	assert.True(t, decimal.NewFromInt(90).Equal(got.Total))
	require.Len(t, got.Items, 1)
}

func TestHTTPOrderClient_Rejection(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"frame out of stock"}`))
			}))
			defer srv.Close()

			_, err := newOrderClient(srv.URL).SubmitOrder(context.Background(), testRequest())

			var serr *apperrors.SubmissionError
			require.ErrorAs(t, err, &serr)
			assert.True(t, serr.Rejected)
			assert.Equal(t, "frame out of stock", serr.Reason)
		})
	}
}

func TestHTTPOrderClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newOrderClient(srv.URL).SubmitOrder(context.Background(), testRequest())

	require.Error(t, err)
	assert.False(t, apperrors.IsSubmission(err))
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPOrderClient_MissingOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	_, err := newOrderClient(srv.URL).SubmitOrder(context.Background(), testRequest())
	assert.Error(t, err)
}

func TestHTTPOrderClient_BreakerOpensOnFailuresNotRejections(t *testing.T) {
	var calls int32
	var reject atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if reject.Load() {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"bad"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newOrderClient(srv.URL)

	reject.Store(true)
	for i := 0; i < 10; i++ {
		_, _ = client.SubmitOrder(context.Background(), testRequest())
	}
	assert.Equal(t, "closed", client.BreakerState())

	reject.Store(false)
	for i := 0; i < 5; i++ {
		_, _ = client.SubmitOrder(context.Background(), testRequest())
	}
	assert.Equal(t, "open", client.BreakerState())

	before := atomic.LoadInt32(&calls)
	_, err := client.SubmitOrder(context.Background(), testRequest())

	var serr *apperrors.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Rejected)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestHTTPCustomerClient_SearchCustomers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/customers", r.URL.Path)
		assert.Equal(t, "ali ce", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"customers":[{"id":"cus_1","name":"Alice","phone":"+1555"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPCustomerClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: time.Second}, logging.NewNop())
	customers, err := client.SearchCustomers(context.Background(), "ali ce")

	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, models.CustomerRef{ID: "cus_1", Name: "Alice", Phone: "+1555"}, customers[0])
}

func TestHTTPCustomerClient_CoalescesConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(`{"customers":[{"id":"cus_1","name":"Alice"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPCustomerClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, logging.NewNop())

	var wg sync.WaitGroup
	results := make([][]models.CustomerRef, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = client.SearchCustomers(context.Background(), "alice")
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.Len(t, r, 1)
		assert.Equal(t, "cus_1", r[0].ID)
	}
}

func TestHTTPCustomerClient_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"customers":[]}`))
	}))
	defer srv.Close()
	defer close(release)

	client := NewHTTPCustomerClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, logging.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.SearchCustomers(ctx, "slow")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHTTPCustomerClient_ListPrescriptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/customers/cus_1/prescriptions":
			_, _ = w.Write([]byte(`{"prescriptions":[{"id":"rx_1","type":"spectacle"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPCustomerClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: time.Second}, logging.NewNop())

	rx, err := client.ListPrescriptions(context.Background(), "cus_1")
	require.NoError(t, err)
	require.Len(t, rx, 1)
	assert.Equal(t, models.PrescriptionRef{ID: "rx_1", Type: models.PrescriptionSpectacle, CustomerID: "cus_1"}, rx[0])

	_, err = client.ListPrescriptions(context.Background(), "cus_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHTTPNotificationClient_SendReceipt(t *testing.T) {
	var got SMSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/notifications/sms", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewHTTPNotificationClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: time.Second}, logging.NewNop())
	sale := models.NewSaleRecord("sale_1", testRequest(), &models.OrderConfirmation{OrderID: "ord_42"})

	require.NoError(t, client.SendReceipt(context.Background(), "+15550001", sale))

	assert.Equal(t, "+15550001", got.To)
	assert.Equal(t, receiptTemplate, got.Template)
	assert.Equal(t, "ord_42", got.Data["order_id"])
	assert.Equal(t, "90.00", got.Data["total"])
	assert.Equal(t, "0.00", got.Data["balance_due"])

	assert.Error(t, client.SendReceipt(context.Background(), "", sale))
}
