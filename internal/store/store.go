// Package store persists invoice records and webhook subscriptions. The
// Redis implementation backs the deployed service; the memory
// implementation backs the in-process execution mode and tests.
package store

import (
	"context"
	"errors"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

// ErrNotFound is returned when a record does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("store: record not found")

// InvoiceStore handles invoice record persistence. Updates replace the
// whole record atomically; the caller guarantees at most one in-flight
// writer per invoice id.
type InvoiceStore interface {
	Insert(ctx context.Context, inv *models.Invoice) error
	Get(ctx context.Context, id string) (*models.Invoice, error)
	GetByTaskID(ctx context.Context, taskID string) (*models.Invoice, error)
	Update(ctx context.Context, inv *models.Invoice) error
	ListByUser(ctx context.Context, userID string) ([]*models.Invoice, error)
}

// WebhookStore handles webhook subscriptions.
type WebhookStore interface {
	Insert(ctx context.Context, wh *models.Webhook) error
	Get(ctx context.Context, id, userID string) (*models.Webhook, error)
	Update(ctx context.Context, wh *models.Webhook) error
	Delete(ctx context.Context, id, userID string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Webhook, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}
