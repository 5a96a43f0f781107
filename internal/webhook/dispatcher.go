// Package webhook delivers signed event notifications to user-registered
// endpoints. Delivery is fire-and-forget relative to invoice status: a
// failed delivery never re-opens a task.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// Payload is the canonical JSON body POSTed to subscribers.
type Payload struct {
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Invoice   InvoicePayload         `json:"invoice"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// InvoicePayload is the subset of the invoice record shared with
// subscribers.
type InvoicePayload struct {
	ID            string   `json:"id"`
	TaskID        string   `json:"task_id,omitempty"`
	Status        string   `json:"status"`
	InvoiceNumber *string  `json:"invoice_number"`
	SupplierName  *string  `json:"supplier_name"`
	TotalAmount   *float64 `json:"total_amount"`
	Currency      *string  `json:"currency"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// Dispatcher signs and delivers payloads with a bounded retry loop and
// updates delivery statistics on the subscription record.
type Dispatcher struct {
	httpClient *http.Client
	maxRetries int
	webhooks   store.WebhookStore
	logger     logger.Logger
}

func NewDispatcher(timeout time.Duration, maxRetries int, webhooks store.WebhookStore, log logger.Logger) *Dispatcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		webhooks:   webhooks,
		logger:     log,
	}
}

// Sign computes the hex HMAC-SHA256 of the payload under the secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver POSTs the event to one subscription. Returns true when a
// 2xx response arrives within the retry budget.
func (d *Dispatcher) Deliver(ctx context.Context, wh *models.Webhook, event string, inv *models.Invoice, extra map[string]interface{}) bool {
	payload := Payload{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Invoice: InvoicePayload{
			ID:            inv.ID,
			TaskID:        inv.TaskID,
			Status:        string(inv.Status),
			InvoiceNumber: inv.InvoiceNumber,
			SupplierName:  inv.SupplierName,
			TotalAmount:   inv.TotalAmount,
			Currency:      inv.Currency,
			CreatedAt:     inv.CreatedAt.UTC().Format(time.RFC3339),
		},
		Data: extra,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Failed to encode webhook payload", logger.Error(err))
		return false
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("X-Webhook-Event", event)
	headers.Set("X-Webhook-Timestamp", payload.Timestamp)
	if wh.Secret != "" {
		headers.Set("X-Webhook-Signature", "sha256="+Sign(body, wh.Secret))
	}

	var lastStatus *int
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts.
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				d.recordDelivery(ctx, wh, lastStatus, false)
				return false
			}
		}

		status, err := d.post(ctx, wh.URL, headers, body)
		if err != nil {
			d.logger.Warn("Webhook delivery attempt failed",
				logger.String("webhook_id", wh.ID),
				logger.Int("attempt", attempt+1),
				logger.Error(err),
			)
			continue
		}

		lastStatus = &status
		if status < 300 {
			d.recordDelivery(ctx, wh, lastStatus, true)
			return true
		}
	}

	d.recordDelivery(ctx, wh, lastStatus, false)
	return false
}

func (d *Dispatcher) post(ctx context.Context, url string, headers http.Header, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header = headers.Clone()

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func (d *Dispatcher) recordDelivery(ctx context.Context, wh *models.Webhook, status *int, success bool) {
	wh.TotalCalls++
	if success {
		wh.SuccessfulCalls++
	}
	now := time.Now().UTC()
	wh.LastCalledAt = &now
	wh.LastStatusCode = status

	if err := d.webhooks.Update(ctx, wh); err != nil {
		d.logger.Warn("Failed to update webhook stats",
			logger.String("webhook_id", wh.ID),
			logger.Error(err),
		)
	}
}
