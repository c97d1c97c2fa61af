package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/services"
)

type PaymentHandler struct {
	ledger *services.LedgerService
}

func NewPaymentHandler(ledger *services.LedgerService) *PaymentHandler {
	return &PaymentHandler{ledger: ledger}
}

func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req services.PaymentInput
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.ledger.CreatePayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.ledger.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	skip, limit, ok := pageParams(c)
	if !ok {
		return
	}

	page, err := h.ledger.ListPayments(c.Request.Context(), skip, limit, c.Query("invoice_id"), models.PaymentStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	var req services.PaymentPatch
	if !bindJSON(c, &req) {
		return
	}

	payment, err := h.ledger.UpdatePayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) DeletePayment(c *gin.Context) {
	deleted, err := h.ledger.DeletePayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully"})
}
