package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/pos"
	"golang.org/x/sync/singleflight"
)

var _ pos.CustomerDirectory = (*HTTPCustomerClient)(nil)

// HTTPCustomerClient reads customers and their prescriptions from the
// customer service. Identical concurrent lookups share one request.
type HTTPCustomerClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	group      singleflight.Group
	logger     *logging.Logger
}

func NewHTTPCustomerClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPCustomerClient {
	return &HTTPCustomerClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// SearchCustomers finds customers matching free text.
func (c *HTTPCustomerClient) SearchCustomers(ctx context.Context, query string) ([]models.CustomerRef, error) {
	v, err := c.shared(ctx, "search:"+query, func(ctx context.Context) (interface{}, error) {
		endpoint := fmt.Sprintf("%s/api/v2/customers?q=%s", c.baseURL, url.QueryEscape(query))
		var out struct {
			Customers []models.CustomerRef `json:"customers"`
		}
		if err := c.get(ctx, endpoint, &out); err != nil {
			return nil, err
		}
		return out.Customers, nil
	})
	if err != nil {
		return nil, err
	}
	customers := v.([]models.CustomerRef)
	return append([]models.CustomerRef(nil), customers...), nil
}

// ListPrescriptions returns the prescriptions on file for a customer.
// An unknown customer is apperrors.ErrNotFound.
func (c *HTTPCustomerClient) ListPrescriptions(ctx context.Context, customerID string) ([]models.PrescriptionRef, error) {
	v, err := c.shared(ctx, "rx:"+customerID, func(ctx context.Context) (interface{}, error) {
		endpoint := fmt.Sprintf("%s/api/v2/customers/%s/prescriptions", c.baseURL, url.PathEscape(customerID))
		var out struct {
			Prescriptions []models.PrescriptionRef `json:"prescriptions"`
		}
		if err := c.get(ctx, endpoint, &out); err != nil {
			return nil, err
		}
		for i := range out.Prescriptions {
			if out.Prescriptions[i].CustomerID == "" {
				out.Prescriptions[i].CustomerID = customerID
			}
		}
		return out.Prescriptions, nil
	})
	if err != nil {
		return nil, err
	}
	rx := v.([]models.PrescriptionRef)
	return append([]models.PrescriptionRef(nil), rx...), nil
}

// shared runs fn once per key across concurrent callers. The shared call is
// detached from any single caller's cancellation; each caller still stops
// waiting when its own context ends.
func (c *HTTPCustomerClient) shared(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("Coalesced customer lookup", logging.Fields{"key": key})
		}
		return res.Val, res.Err
	}
}

func (c *HTTPCustomerClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	setHeaders(ctx, req, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Customer service request failed", logging.Fields{"error": err.Error()})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("customer service returned status %d: %s", resp.StatusCode, errorMessage(resp))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
