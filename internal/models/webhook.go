package models

import (
	"time"
)

// Webhook is a user-owned delivery subscription.
type Webhook struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	URL      string `json:"url"`
	Secret   string `json:"secret,omitempty"`
	IsActive bool   `json:"is_active"`

	OnSuccess bool `json:"on_success"`
	OnFailure bool `json:"on_failure"`

	TotalCalls      int        `json:"total_calls"`
	SuccessfulCalls int        `json:"successful_calls"`
	LastCalledAt    *time.Time `json:"last_called_at,omitempty"`
	LastStatusCode  *int       `json:"last_status_code,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookEvent names the outcome a delivery announces.
const (
	EventInvoiceProcessed = "invoice.processed"
	EventInvoiceFailed    = "invoice.failed"
)
