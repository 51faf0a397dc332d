package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

const receiptTemplate = "pos_receipt"

// SMSRequest is the notification service SMS payload.
type SMSRequest struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// HTTPNotificationClient sends customer notifications.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *logging.Logger
}

func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *logging.Logger) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// SendReceipt texts a sale summary to the customer.
func (c *HTTPNotificationClient) SendReceipt(ctx context.Context, phone string, sale *models.SaleRecord) error {
	if phone == "" {
		return errors.New("customer has no phone number")
	}

	data := map[string]string{
		"order_id":       sale.OrderID,
		"total":          sale.Total.StringFixed(2),
		"deposit":        sale.Deposit.StringFixed(2),
		"balance_due":    sale.BalanceDue.StringFixed(2),
		"payment_method": string(sale.PaymentMethod),
		"items":          fmt.Sprintf("%d", len(sale.Items)),
	}
	return c.SendSMS(ctx, &SMSRequest{To: phone, Template: receiptTemplate, Data: data})
}

// SendSMS sends an SMS notification.
func (c *HTTPNotificationClient) SendSMS(ctx context.Context, req *SMSRequest) error {
	c.logger.Debug("Sending SMS", logging.Fields{
		"template": req.Template,
	})

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v2/notifications/sms", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	setHeaders(ctx, httpReq, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Failed to send SMS", logging.Fields{
			"template": req.Template,
			"error":    err.Error(),
		})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("SMS service returned status %d", resp.StatusCode)
	}

	c.logger.Info("SMS sent", logging.Fields{"template": req.Template, "order_id": req.Data["order_id"]})
	return nil
}
