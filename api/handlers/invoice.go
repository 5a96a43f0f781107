package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emredeveloper/invoice-ai-extractor/api/middleware"
	"github.com/emredeveloper/invoice-ai-extractor/internal/service/invoice"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

type InvoiceHandler struct {
	service invoice.Processor
	logger  logger.Logger
}

// UploadResponse is the accepted-upload acknowledgement. The record is
// still pending; results arrive via status polling or webhooks.
type UploadResponse struct {
	InvoiceID string `json:"invoice_id"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"file_size"`
	FileType  string `json:"file_type"`
	CreatedAt string `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewInvoiceHandler(service invoice.Processor, logger logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		service: service,
		logger:  logger,
	}
}

// Upload accepts one invoice file and starts processing.
func (h *InvoiceHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	inv, err := h.service.ProcessFile(c.Request.Context(), middleware.UserID(c), file, header)
	if err != nil {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to accept file", err)
		return
	}

	c.JSON(http.StatusAccepted, UploadResponse{
		InvoiceID: inv.ID,
		TaskID:    inv.TaskID,
		Status:    string(inv.Status),
		Filename:  inv.OriginalFilename,
		FileSize:  inv.FileSize,
		FileType:  inv.FileType,
		CreatedAt: inv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// UploadBatch accepts multiple invoice files in one multipart form.
func (h *InvoiceHandler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	invoices, err := h.service.ProcessBatch(c.Request.Context(), middleware.UserID(c), files)
	if err != nil && len(invoices) == 0 {
		h.handleError(c, http.StatusUnprocessableEntity, "Failed to accept files", err)
		return
	}

	responses := make([]UploadResponse, len(invoices))
	for i, inv := range invoices {
		responses[i] = UploadResponse{
			InvoiceID: inv.ID,
			TaskID:    inv.TaskID,
			Status:    string(inv.Status),
			Filename:  inv.OriginalFilename,
			FileSize:  inv.FileSize,
			FileType:  inv.FileType,
			CreatedAt: inv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	resp := gin.H{
		"message":  fmt.Sprintf("Processing %d invoices", len(invoices)),
		"invoices": responses,
	}
	if err != nil {
		resp["error"] = err.Error()
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetStatus reports queue-level progress for one task.
func (h *InvoiceHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	status, err := h.service.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetInvoice returns the full invoice record, validations included.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	id := c.Param("id")

	inv, err := h.service.GetInvoice(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Invoice not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// GetByTask returns the invoice record produced by one task.
func (h *InvoiceHandler) GetByTask(c *gin.Context) {
	taskID := c.Param("taskId")

	inv, err := h.service.GetByTaskID(c.Request.Context(), middleware.UserID(c), taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.handleError(c, http.StatusNotFound, "Invoice not found", err)
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}

	c.JSON(http.StatusOK, inv)
}

// ListInvoices returns the caller's invoice records.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.service.ListInvoices(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(invoices),
		"invoices": invoices,
	})
}

// CancelTask cancels a task that has not started yet.
func (h *InvoiceHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, http.StatusConflict, "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"task_id": taskID,
	})
}

func (h *InvoiceHandler) handleError(c *gin.Context, status int, message string, err error) {
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
