package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetSale handles GET /api/v1/sales/:order_id
func (h *Handlers) GetSale(c *gin.Context) {
	sale, err := h.sessions.GetSale(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

// ListCustomerSales handles GET /api/v1/customers/:id/sales
func (h *Handlers) ListCustomerSales(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	sales, total, err := h.sessions.ListCustomerSales(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sales":  sales,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
