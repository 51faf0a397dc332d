package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/middleware"
)

const userAgent = "acme-shop-pos-service"

// maxErrorBody bounds how much of an error response is read for its message.
const maxErrorBody = 4 << 10

func setHeaders(ctx context.Context, req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}
}

// errorMessage extracts a human readable message from an error response.
// It understands {"error": "..."} and {"message": "..."} bodies and falls
// back to the raw text.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}
