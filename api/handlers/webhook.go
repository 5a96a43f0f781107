package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emredeveloper/invoice-ai-extractor/api/middleware"
	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/webhook"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

type WebhookHandler struct {
	manager *webhook.Manager
	logger  logger.Logger
}

func NewWebhookHandler(manager *webhook.Manager, logger logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		manager: manager,
		logger:  logger,
	}
}

// Create registers a subscription. The response carries the signing
// secret exactly once.
func (h *WebhookHandler) Create(c *gin.Context) {
	var in webhook.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	wh, err := h.manager.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to create webhook", err)
		return
	}

	c.JSON(http.StatusCreated, wh)
}

func (h *WebhookHandler) List(c *gin.Context) {
	webhooks, err := h.manager.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to list webhooks", err)
		return
	}

	// The secret is shown only at creation time.
	for _, wh := range webhooks {
		wh.Secret = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(webhooks),
		"webhooks": webhooks,
	})
}

func (h *WebhookHandler) Get(c *gin.Context) {
	wh, err := h.manager.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}

	wh.Secret = ""
	c.JSON(http.StatusOK, wh)
}

func (h *WebhookHandler) Update(c *gin.Context) {
	var in webhook.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	wh, err := h.manager.Update(c.Request.Context(), c.Param("id"), middleware.UserID(c), in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Webhook not found", err)
			return
		}
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to update webhook", err)
		return
	}

	wh.Secret = ""
	c.JSON(http.StatusOK, wh)
}

func (h *WebhookHandler) Delete(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted"})
}

// Test sends a sample signed delivery to the subscription endpoint.
func (h *WebhookHandler) Test(c *gin.Context) {
	delivered, err := h.manager.Test(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event":     models.EventInvoiceProcessed,
		"delivered": delivered,
	})
}

func (h *WebhookHandler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		h.handleError(c, http.StatusNotFound, "Webhook not found", err)
		return
	}
	h.handleError(c, http.StatusInternalServerError, "Webhook operation failed", err)
}

func (h *WebhookHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{Message: message}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
