package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Origin-Inc/e-invoicing-backend/middleware"
	"github.com/Origin-Inc/e-invoicing-backend/services"
)

type RouterDeps struct {
	Ledger  *services.LedgerService
	Health  *HealthHandler
	Limiter middleware.RateLimiter // nil disables rate limiting
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	router.GET("/health", deps.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/v1/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is running"})
	})

	api := router.Group("/api/v1")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimit(deps.Limiter))
	}
	{
		clientHandler := NewClientHandler(deps.Ledger)
		api.POST("/clients", clientHandler.CreateClient)
		api.GET("/clients", clientHandler.ListClients)
		api.GET("/clients/:id", clientHandler.GetClient)
		api.PATCH("/clients/:id", clientHandler.UpdateClient)
		api.DELETE("/clients/:id", clientHandler.DeleteClient)

		invoiceHandler := NewInvoiceHandler(deps.Ledger)
		api.POST("/invoices", invoiceHandler.CreateInvoice)
		api.GET("/invoices", invoiceHandler.ListInvoices)
		api.GET("/invoices/:id", invoiceHandler.GetInvoice)
		api.PATCH("/invoices/:id", invoiceHandler.UpdateInvoice)
		api.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)
		api.POST("/invoices/:id/pdf", invoiceHandler.GeneratePDF)
		api.POST("/invoices/:id/attachments", invoiceHandler.AttachFile)

		paymentHandler := NewPaymentHandler(deps.Ledger)
		api.POST("/payments", paymentHandler.CreatePayment)
		api.GET("/payments", paymentHandler.ListPayments)
		api.GET("/payments/:id", paymentHandler.GetPayment)
		api.PATCH("/payments/:id", paymentHandler.UpdatePayment)
		api.DELETE("/payments/:id", paymentHandler.DeletePayment)
	}

	return router
}
