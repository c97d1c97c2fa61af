package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Origin-Inc/e-invoicing-backend/models"
	"github.com/Origin-Inc/e-invoicing-backend/services"
)

const maxAttachmentSize = 10 << 20

type InvoiceHandler struct {
	ledger *services.LedgerService
}

func NewInvoiceHandler(ledger *services.LedgerService) *InvoiceHandler {
	return &InvoiceHandler{ledger: ledger}
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req services.InvoiceInput
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.ledger.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.ledger.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	skip, limit, ok := pageParams(c)
	if !ok {
		return
	}

	page, err := h.ledger.ListInvoices(c.Request.Context(), skip, limit,
		c.Query("client_id"), models.InvoiceStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req services.InvoicePatch
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.ledger.UpdateInvoice(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	deleted, err := h.ledger.DeleteInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}

func (h *InvoiceHandler) GeneratePDF(c *gin.Context) {
	invoice, err := h.ledger.GenerateInvoicePDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) AttachFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required", "field": "file"})
		return
	}
	if fh.Size > maxAttachmentSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds 10 MB"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxAttachmentSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	invoice, err := h.ledger.AttachFile(c.Request.Context(), c.Param("id"), fh.Filename, data, fh.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}
