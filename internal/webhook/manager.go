package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// Manager owns the subscription lifecycle. Secrets are generated here and
// returned exactly once, on creation.
type Manager struct {
	webhooks   store.WebhookStore
	dispatcher *Dispatcher
	maxPerUser int
	logger     logger.Logger
}

func NewManager(webhooks store.WebhookStore, dispatcher *Dispatcher, maxPerUser int, log logger.Logger) *Manager {
	if maxPerUser <= 0 {
		maxPerUser = 5
	}
	return &Manager{
		webhooks:   webhooks,
		dispatcher: dispatcher,
		maxPerUser: maxPerUser,
		logger:     log,
	}
}

// CreateInput carries the user-settable subscription fields.
type CreateInput struct {
	URL       string `json:"url" binding:"required"`
	OnSuccess *bool  `json:"on_success"`
	OnFailure *bool  `json:"on_failure"`
}

// UpdateInput updates a subscription. Nil fields are left unchanged.
type UpdateInput struct {
	URL       *string `json:"url"`
	IsActive  *bool   `json:"is_active"`
	OnSuccess *bool   `json:"on_success"`
	OnFailure *bool   `json:"on_failure"`
}

// Create registers a subscription, enforcing the per-user cap. The
// returned record carries the plaintext secret; it is never shown again.
func (m *Manager) Create(ctx context.Context, userID string, in CreateInput) (*models.Webhook, error) {
	if err := validateURL(in.URL); err != nil {
		return nil, err
	}

	count, err := m.webhooks.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count webhooks: %w", err)
	}
	if count >= m.maxPerUser {
		return nil, fmt.Errorf("webhook limit reached: at most %d per user", m.maxPerUser)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	wh := &models.Webhook{
		ID:        uuid.New().String(),
		UserID:    userID,
		URL:       in.URL,
		Secret:    secret,
		IsActive:  true,
		OnSuccess: true,
		OnFailure: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.OnSuccess != nil {
		wh.OnSuccess = *in.OnSuccess
	}
	if in.OnFailure != nil {
		wh.OnFailure = *in.OnFailure
	}

	if err := m.webhooks.Insert(ctx, wh); err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}

	m.logger.Info("Webhook subscription created",
		logger.String("webhook_id", wh.ID),
		logger.String("user_id", userID),
	)

	return wh, nil
}

func (m *Manager) Get(ctx context.Context, id, userID string) (*models.Webhook, error) {
	return m.webhooks.Get(ctx, id, userID)
}

func (m *Manager) List(ctx context.Context, userID string) ([]*models.Webhook, error) {
	return m.webhooks.ListByUser(ctx, userID)
}

func (m *Manager) Update(ctx context.Context, id, userID string, in UpdateInput) (*models.Webhook, error) {
	wh, err := m.webhooks.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if in.URL != nil {
		if err := validateURL(*in.URL); err != nil {
			return nil, err
		}
		wh.URL = *in.URL
	}
	if in.IsActive != nil {
		wh.IsActive = *in.IsActive
	}
	if in.OnSuccess != nil {
		wh.OnSuccess = *in.OnSuccess
	}
	if in.OnFailure != nil {
		wh.OnFailure = *in.OnFailure
	}
	wh.UpdatedAt = time.Now().UTC()

	if err := m.webhooks.Update(ctx, wh); err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}

	return wh, nil
}

func (m *Manager) Delete(ctx context.Context, id, userID string) error {
	return m.webhooks.Delete(ctx, id, userID)
}

// Test delivers a sample payload so the subscriber can verify endpoint
// and signature handling without processing a real invoice.
func (m *Manager) Test(ctx context.Context, id, userID string) (bool, error) {
	wh, err := m.webhooks.Get(ctx, id, userID)
	if err != nil {
		return false, err
	}

	number := "TEST-0001"
	supplier := "Test Supplier"
	amount := 118.0
	currency := "TRY"

	sample := &models.Invoice{
		ID:     "test-" + uuid.New().String(),
		UserID: userID,
		Status: models.StatusCompleted,
		NormalizedInvoice: models.NormalizedInvoice{
			InvoiceNumber: &number,
			SupplierName:  &supplier,
			TotalAmount:   &amount,
			Currency:      &currency,
		},
		CreatedAt: time.Now().UTC(),
	}

	delivered := m.dispatcher.Deliver(ctx, wh, models.EventInvoiceProcessed, sample, map[string]interface{}{
		"test": true,
	})
	return delivered, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid webhook url: %s", raw)
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
