package task

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emredeveloper/invoice-ai-extractor/internal/document"
	"github.com/emredeveloper/invoice-ai-extractor/internal/extraction"
	"github.com/emredeveloper/invoice-ai-extractor/internal/fx"
	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/review"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/webhook"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// seqProvider returns queued responses in order, repeating the last one.
type seqProvider struct {
	responses []string
	errs      []error
	idx       int
}

func (s *seqProvider) Name() string { return "stub" }

func (s *seqProvider) GenerateJSON(context.Context, string, []string) (string, error) {
	i := s.idx
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.idx++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return s.responses[i], nil
}

const extractionJSON = `{
	"general_fields": {
		"invoice_number": "INV-42",
		"date": "2024-03-01",
		"supplier_name": "Acme Ltd",
		"total_amount": "35,40",
		"currency": "TRY",
		"tax_rate": 18
	},
	"items": [
		{"product_name": "Widget", "quantity": 3, "unit_price": 10, "total_price": 30}
	]
}`

const reviewJSON = `{"summary": "Widgets from Acme.", "risk_level": "Low", "risk_reason": "Consistent totals", "suggested_action": "Approve"}`

func newTestProcessor(t *testing.T, prov *seqProvider, invoices store.InvoiceStore, webhooks store.WebhookStore) *Processor {
	t.Helper()
	log := logger.NewTestLogger()

	pre := document.NewPreprocessor(10, 1.5, log)
	engine := extraction.NewEngine(prov, pre, log)
	converter := fx.NewConverter("http://invalid.localhost", nil, log)
	reviewer := review.NewAgent(prov, log)
	dispatcher := webhook.NewDispatcher(2*time.Second, 1, webhooks, log)
	notifier := webhook.NewNotifier(webhooks, dispatcher, log)

	return NewProcessor(engine, converter, reviewer, invoices, notifier, 18.0, log)
}

func insertPendingInvoice(t *testing.T, invoices store.InvoiceStore, filePath string) *models.Invoice {
	t.Helper()
	inv := &models.Invoice{
		ID:        "inv-1",
		UserID:    "user-1",
		TaskID:    "task-1",
		FilePath:  filePath,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, invoices.Insert(context.Background(), inv))
	return inv
}

func writeInvoiceFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte("Acme Ltd invoice, 3 x Widget @ 10, total 35,40 TRY"), 0o644))
	return path
}

func TestProcessCompletesPipeline(t *testing.T) {
	invoices := store.NewMemoryInvoiceStore()
	webhooks := store.NewMemoryWebhookStore()
	prov := &seqProvider{responses: []string{extractionJSON, reviewJSON}}

	path := writeInvoiceFile(t)
	insertPendingInvoice(t, invoices, path)

	p := newTestProcessor(t, prov, invoices, webhooks)

	inv, err := p.Process(context.Background(), Request{
		InvoiceID:   "inv-1",
		FilePath:    path,
		ContentType: "text/plain",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, inv.Status)
	assert.Empty(t, inv.ErrorMessage)
	assert.GreaterOrEqual(t, inv.ProcessingTimeMS, int64(0))

	require.NotNil(t, inv.TotalAmount)
	assert.Equal(t, 35.4, *inv.TotalAmount)
	assert.Equal(t, "Acme Ltd", *inv.SupplierName)

	// 3 * 10 == 30 passes the per-item check.
	require.Len(t, inv.ArithmeticValidation, 1)
	assert.True(t, inv.ArithmeticValidation[0].IsValid)

	// 30 * 1.18 == 35.4 matches the stated total.
	require.NotNil(t, inv.TaxValidation)
	assert.Equal(t, 30.0, inv.TaxValidation.SumItemsNet)
	assert.Equal(t, 35.4, inv.TaxValidation.ExpectedTotalWithTax)
	assert.True(t, inv.TaxValidation.MatchesTaxCalculation)

	// TRY to TRY converts at rate 1 without a network call.
	require.NotNil(t, inv.Conversion)
	assert.Equal(t, 35.4, inv.Conversion.AmountTRY)
	assert.Equal(t, 1.0, inv.Conversion.Rate)

	require.NotNil(t, inv.Review)
	assert.Equal(t, "Approve", inv.Review.SuggestedAction)

	stored, err := invoices.Get(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestProcessDeliversWebhook(t *testing.T) {
	var gotBody []byte
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Webhook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	invoices := store.NewMemoryInvoiceStore()
	webhooks := store.NewMemoryWebhookStore()
	require.NoError(t, webhooks.Insert(context.Background(), &models.Webhook{
		ID: "wh-1", UserID: "user-1", URL: srv.URL, Secret: "whsec_test",
		IsActive: true, OnSuccess: true, OnFailure: true,
	}))

	prov := &seqProvider{responses: []string{extractionJSON, reviewJSON}}
	path := writeInvoiceFile(t)
	insertPendingInvoice(t, invoices, path)

	p := newTestProcessor(t, prov, invoices, webhooks)

	_, err := p.Process(context.Background(), Request{InvoiceID: "inv-1", FilePath: path, ContentType: "text/plain"})
	require.NoError(t, err)

	require.NotEmpty(t, gotBody)
	assert.Equal(t, "sha256="+webhook.Sign(gotBody, "whsec_test"), gotSig)

	var payload webhook.Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, models.EventInvoiceProcessed, payload.Event)
	assert.Equal(t, "inv-1", payload.Invoice.ID)
	assert.Equal(t, "completed", payload.Invoice.Status)
}

func TestProcessLeavesRecordInProcessingOnError(t *testing.T) {
	invoices := store.NewMemoryInvoiceStore()
	webhooks := store.NewMemoryWebhookStore()
	prov := &seqProvider{responses: []string{"this is not json"}}

	path := writeInvoiceFile(t)
	insertPendingInvoice(t, invoices, path)

	p := newTestProcessor(t, prov, invoices, webhooks)

	_, err := p.Process(context.Background(), Request{InvoiceID: "inv-1", FilePath: path, ContentType: "text/plain"})
	require.Error(t, err)
	assert.ErrorIs(t, err, extraction.ErrParse)

	// The terminal failed write is the caller's retry decision.
	stored, getErr := invoices.Get(context.Background(), "inv-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusProcessing, stored.Status)
}

func TestFailWritesTerminalStatusAndNotifies(t *testing.T) {
	var gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEvent = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	invoices := store.NewMemoryInvoiceStore()
	webhooks := store.NewMemoryWebhookStore()
	require.NoError(t, webhooks.Insert(context.Background(), &models.Webhook{
		ID: "wh-1", UserID: "user-1", URL: srv.URL,
		IsActive: true, OnSuccess: true, OnFailure: true,
	}))

	path := writeInvoiceFile(t)
	insertPendingInvoice(t, invoices, path)

	p := newTestProcessor(t, &seqProvider{responses: []string{"garbage"}}, invoices, webhooks)

	p.Fail("inv-1", "provider returned malformed JSON", time.Now().Add(-50*time.Millisecond))

	stored, err := invoices.Get(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Equal(t, "provider returned malformed JSON", stored.ErrorMessage)
	assert.GreaterOrEqual(t, stored.ProcessingTimeMS, int64(50))
	assert.Equal(t, models.EventInvoiceFailed, gotEvent)
}

func TestProcessUnknownInvoice(t *testing.T) {
	invoices := store.NewMemoryInvoiceStore()
	p := newTestProcessor(t, &seqProvider{responses: []string{extractionJSON}}, invoices, store.NewMemoryWebhookStore())

	_, err := p.Process(context.Background(), Request{InvoiceID: "missing", FilePath: "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
