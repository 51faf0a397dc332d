package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-pos-service/internal/models"
)

// IdempotencyKeyHeader makes checkout retries safe.
const IdempotencyKeyHeader = "Idempotency-Key"

// CreateSession handles POST /api/v1/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	snap := h.sessions.CreateSession(c.Request.Context())
	c.JSON(http.StatusCreated, models.NewSessionView(snap))
}

// GetSession handles GET /api/v1/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	snap, err := h.sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewSessionView(snap))
}

// ResetSession handles DELETE /api/v1/sessions/:id
func (h *Handlers) ResetSession(c *gin.Context) {
	snap, err := h.sessions.ResetSession(c.Request.Context(), c.Param("id"))
	h.respond(c, snap, err)
}

// AddItem handles POST /api/v1/sessions/:id/items
func (h *Handlers) AddItem(c *gin.Context) {
	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	line, snap, err := h.sessions.AddItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"line":    models.NewLineView(*line),
		"session": models.NewSessionView(snap),
	})
}

// UpdateQuantity handles PATCH /api/v1/sessions/:id/items/:line_id
func (h *Handlers) UpdateQuantity(c *gin.Context) {
	var req models.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	snap, err := h.sessions.UpdateQuantity(c.Request.Context(), c.Param("id"), c.Param("line_id"), req.Quantity)
	h.respond(c, snap, err)
}

// RemoveItem handles DELETE /api/v1/sessions/:id/items/:line_id
func (h *Handlers) RemoveItem(c *gin.Context) {
	snap, err := h.sessions.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("line_id"))
	h.respond(c, snap, err)
}

// ApplyDiscount handles PUT /api/v1/sessions/:id/discount
func (h *Handlers) ApplyDiscount(c *gin.Context) {
	var req models.DiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	snap, err := h.sessions.ApplyDiscount(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, snap, err)
}

// SelectCustomer handles PUT /api/v1/sessions/:id/customer
func (h *Handlers) SelectCustomer(c *gin.Context) {
	var req models.CustomerRef
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	snap, err := h.sessions.SelectCustomer(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, snap, err)
}

// ClearCustomer handles DELETE /api/v1/sessions/:id/customer
func (h *Handlers) ClearCustomer(c *gin.Context) {
	snap, err := h.sessions.ClearCustomer(c.Request.Context(), c.Param("id"))
	h.respond(c, snap, err)
}

// SelectPrescription handles PUT /api/v1/sessions/:id/prescription
// Without a bound customer the selection is ignored and "applied" is false.
func (h *Handlers) SelectPrescription(c *gin.Context) {
	var req models.SelectPrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	applied, snap, err := h.sessions.SelectPrescription(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"applied": applied,
		"session": models.NewSessionView(snap),
	})
}

// ClearPrescription handles DELETE /api/v1/sessions/:id/prescription
func (h *Handlers) ClearPrescription(c *gin.Context) {
	snap, err := h.sessions.ClearPrescription(c.Request.Context(), c.Param("id"))
	h.respond(c, snap, err)
}

// SetPaymentMethod handles PUT /api/v1/sessions/:id/payment/method
func (h *Handlers) SetPaymentMethod(c *gin.Context) {
	var req models.PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	snap, err := h.sessions.SetPaymentMethod(c.Request.Context(), c.Param("id"), req.Method)
	h.respond(c, snap, err)
}

// SetDeposit handles PUT /api/v1/sessions/:id/payment/deposit
func (h *Handlers) SetDeposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	snap, err := h.sessions.SetDeposit(c.Request.Context(), c.Param("id"), req.Amount)
	h.respond(c, snap, err)
}

// Checkout handles POST /api/v1/sessions/:id/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	result, err := h.sessions.Checkout(c.Request.Context(), c.Param("id"), c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		h.handleError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// CancelCheckout handles POST /api/v1/sessions/:id/checkout/cancel
func (h *Handlers) CancelCheckout(c *gin.Context) {
	cancelled, err := h.sessions.CancelCheckout(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// SearchCustomers handles POST /api/v1/sessions/:id/customer-search
func (h *Handlers) SearchCustomers(c *gin.Context) {
	var req models.CustomerSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	seq, err := h.sessions.SearchCustomers(c.Request.Context(), c.Param("id"), req.Query)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"seq": seq})
}

// SearchResults handles GET /api/v1/sessions/:id/customer-search
func (h *Handlers) SearchResults(c *gin.Context) {
	result, err := h.sessions.SearchResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := gin.H{
		"seq":       result.Seq,
		"query":     result.Query,
		"pending":   result.Pending,
		"customers": result.Customers,
	}
	if result.Customers == nil {
		resp["customers"] = []models.CustomerRef{}
	}
	if result.Err != nil {
		resp["error"] = "customer search failed"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) respond(c *gin.Context, snap *models.SessionSnapshot, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewSessionView(snap))
}
