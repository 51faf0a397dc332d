package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/pos"
)

var _ pos.OrderSubmitter = (*HTTPOrderClient)(nil)

// HTTPOrderClient creates orders on the order service.
type HTTPOrderClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	breaker    *gobreaker.CircuitBreaker[*models.OrderConfirmation]
	logger     *logging.Logger
}

// NewHTTPOrderClient creates an order client. The breaker opens after five
// consecutive transport or server failures; rejections never count.
func NewHTTPOrderClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPOrderClient {
	c := &HTTPOrderClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*models.OrderConfirmation](gobreaker.Settings{
		Name:        "order-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var serr *apperrors.SubmissionError
			return err == nil || (errors.As(err, &serr) && serr.Rejected) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})
	return c
}

// SubmitOrder posts the checkout snapshot. The request id doubles as the
// order service idempotency key.
func (c *HTTPOrderClient) SubmitOrder(ctx context.Context, req *models.CheckoutRequest) (*models.OrderConfirmation, error) {
	conf, err := c.breaker.Execute(func() (*models.OrderConfirmation, error) {
		return c.submit(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("Order service circuit open", logging.Fields{"request_id": req.RequestID})
		return nil, apperrors.NewUnavailableError(err)
	}
	return conf, err
}

// BreakerState reports the breaker state for health output.
func (c *HTTPOrderClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *HTTPOrderClient) submit(ctx context.Context, req *models.CheckoutRequest) (*models.OrderConfirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/orders", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	setHeaders(ctx, httpReq, c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.RequestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Order request failed", logging.Fields{
			"request_id": req.RequestID,
			"error":      err.Error(),
		})
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		reason := errorMessage(resp)
		c.logger.Warn("Order rejected", logging.Fields{
			"request_id":  req.RequestID,
			"status_code": resp.StatusCode,
			"reason":      reason,
		})
		return nil, apperrors.NewRejectedError(reason)
	default:
		c.logger.Error("Order request returned error", logging.Fields{
			"request_id":  req.RequestID,
			"status_code": resp.StatusCode,
		})
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var conf models.OrderConfirmation
	if err := json.NewDecoder(resp.Body).Decode(&conf); err != nil {
		return nil, fmt.Errorf("decode order confirmation: %w", err)
	}
	if conf.OrderID == "" {
		return nil, errors.New("order service returned no order id")
	}

	c.logger.Info("Order created", logging.Fields{
		"request_id": req.RequestID,
		"order_id":   conf.OrderID,
		"status":     conf.Status,
	})
	return &conf, nil
}
