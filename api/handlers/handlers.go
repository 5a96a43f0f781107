package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emredeveloper/invoice-ai-extractor/internal/service/invoice"
	"github.com/emredeveloper/invoice-ai-extractor/internal/webhook"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

type Handlers struct {
	Invoice *InvoiceHandler
	Webhook *WebhookHandler
}

func NewHandlers(
	invoiceService invoice.Processor,
	webhookManager *webhook.Manager,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Invoice: NewInvoiceHandler(invoiceService, logger),
		Webhook: NewWebhookHandler(webhookManager, logger),
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
