package invoice

import (
	"context"
	"mime/multipart"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/queue"
)

// Processor accepts uploads and exposes the resulting records.
type Processor interface {
	ProcessFile(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*models.Invoice, error)
	ProcessBatch(ctx context.Context, userID string, files []*multipart.FileHeader) ([]*models.Invoice, error)
	GetInvoice(ctx context.Context, userID, id string) (*models.Invoice, error)
	GetByTaskID(ctx context.Context, userID, taskID string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userID string) ([]*models.Invoice, error)
	GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	CleanupFiles(ctx context.Context) error
}
