package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/emredeveloper/invoice-ai-extractor/api/handlers"
	"github.com/emredeveloper/invoice-ai-extractor/api/middleware"
	"github.com/emredeveloper/invoice-ai-extractor/config"
)

// SetupRoutes wires the HTTP surface.
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, cfg *config.Config) {
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/health", handlers.HealthCheck)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.Auth.JWTSecret))

	invoices := v1.Group("/invoices")
	{
		invoices.POST("/upload", h.Invoice.Upload)
		invoices.POST("/batch", h.Invoice.UploadBatch)
		invoices.GET("/status/:taskId", h.Invoice.GetStatus)
		invoices.GET("/task/:taskId", h.Invoice.GetByTask)
		invoices.GET("/:id", h.Invoice.GetInvoice)
		invoices.GET("", h.Invoice.ListInvoices)
		invoices.DELETE("/task/:taskId", h.Invoice.CancelTask)
	}

	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("", h.Webhook.Create)
		webhooks.GET("", h.Webhook.List)
		webhooks.GET("/:id", h.Webhook.Get)
		webhooks.PUT("/:id", h.Webhook.Update)
		webhooks.DELETE("/:id", h.Webhook.Delete)
		webhooks.POST("/:id/test", h.Webhook.Test)
	}
}
