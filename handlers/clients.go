package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Origin-Inc/e-invoicing-backend/services"
)

type ClientHandler struct {
	ledger *services.LedgerService
}

func NewClientHandler(ledger *services.LedgerService) *ClientHandler {
	return &ClientHandler{ledger: ledger}
}

func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req services.ClientInput
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.ledger.CreateClient(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *ClientHandler) GetClient(c *gin.Context) {
	client, err := h.ledger.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) ListClients(c *gin.Context) {
	skip, limit, ok := pageParams(c)
	if !ok {
		return
	}
	activeOnly, err := strconv.ParseBool(c.DefaultQuery("active_only", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active_only must be a boolean", "field": "active_only"})
		return
	}

	page, err := h.ledger.ListClients(c.Request.Context(), skip, limit, activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ClientHandler) UpdateClient(c *gin.Context) {
	var req services.ClientPatch
	if !bindJSON(c, &req) {
		return
	}

	client, err := h.ledger.UpdateClient(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) DeleteClient(c *gin.Context) {
	deleted, err := h.ledger.DeleteClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted successfully"})
}
