package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts every POS endpoint on router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/live", h.Live)
	router.GET("/version", h.Version)
	router.GET("/metrics", h.Metrics())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sessions", h.CreateSession)
		v1.GET("/sessions/:id", h.GetSession)
		v1.DELETE("/sessions/:id", h.ResetSession)

		v1.POST("/sessions/:id/items", h.AddItem)
		v1.PATCH("/sessions/:id/items/:line_id", h.UpdateQuantity)
		v1.DELETE("/sessions/:id/items/:line_id", h.RemoveItem)
		v1.PUT("/sessions/:id/discount", h.ApplyDiscount)

		v1.PUT("/sessions/:id/customer", h.SelectCustomer)
		v1.DELETE("/sessions/:id/customer", h.ClearCustomer)
		v1.PUT("/sessions/:id/prescription", h.SelectPrescription)
		v1.DELETE("/sessions/:id/prescription", h.ClearPrescription)

		v1.PUT("/sessions/:id/payment/method", h.SetPaymentMethod)
		v1.PUT("/sessions/:id/payment/deposit", h.SetDeposit)

		v1.POST("/sessions/:id/checkout", h.Checkout)
		v1.POST("/sessions/:id/checkout/cancel", h.CancelCheckout)

		v1.POST("/sessions/:id/customer-search", h.SearchCustomers)
		v1.GET("/sessions/:id/customer-search", h.SearchResults)

		v1.GET("/sales/:order_id", h.GetSale)
		v1.GET("/customers/:id/sales", h.ListCustomerSales)
	}
}
