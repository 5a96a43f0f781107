package webhook

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

func f(v float64) *float64 { return &v }
func sp(v string) *string  { return &v }

func testInvoice() *models.Invoice {
	return &models.Invoice{
		ID:     "inv-1",
		UserID: "user-1",
		TaskID: "task-1",
		Status: models.StatusCompleted,
		NormalizedInvoice: models.NormalizedInvoice{
			InvoiceNumber: sp("INV-1"),
			SupplierName:  sp("Acme"),
			TotalAmount:   f(118),
			Currency:      sp("TRY"),
		},
		CreatedAt: time.Now().UTC(),
	}
}

func insertWebhook(t *testing.T, ws store.WebhookStore, url string) *models.Webhook {
	t.Helper()
	wh := &models.Webhook{
		ID:        "wh-1",
		UserID:    "user-1",
		URL:       url,
		Secret:    "whsec_test",
		IsActive:  true,
		OnSuccess: true,
		OnFailure: true,
	}
	require.NoError(t, ws.Insert(context.Background(), wh))
	return wh
}

func TestDeliverSignsPayload(t *testing.T) {
	var gotSig, gotEvent string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws := store.NewMemoryWebhookStore()
	wh := insertWebhook(t, ws, srv.URL)

	d := NewDispatcher(5*time.Second, 3, ws, logger.NewTestLogger())
	ok := d.Deliver(context.Background(), wh, models.EventInvoiceProcessed, testInvoice(), nil)
	require.True(t, ok)

	assert.Equal(t, models.EventInvoiceProcessed, gotEvent)

	// hex HMAC-SHA256 of the exact body, sha256= prefixed.
	require.NotEmpty(t, gotSig)
	assert.True(t, hmac.Equal([]byte(gotSig), []byte("sha256="+Sign(gotBody, "whsec_test"))))

	var payload Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "inv-1", payload.Invoice.ID)
	assert.Equal(t, "completed", payload.Invoice.Status)
}

func TestDeliverRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws := store.NewMemoryWebhookStore()
	wh := insertWebhook(t, ws, srv.URL)

	d := NewDispatcher(5*time.Second, 3, ws, logger.NewTestLogger())
	ok := d.Deliver(context.Background(), wh, models.EventInvoiceProcessed, testInvoice(), nil)

	assert.True(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	stored, err := ws.Get(context.Background(), "wh-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalCalls)
	assert.Equal(t, 1, stored.SuccessfulCalls)
	require.NotNil(t, stored.LastStatusCode)
	assert.Equal(t, http.StatusOK, *stored.LastStatusCode)
}

func TestDeliverGivesUpAfterRetryBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ws := store.NewMemoryWebhookStore()
	wh := insertWebhook(t, ws, srv.URL)

	d := NewDispatcher(5*time.Second, 3, ws, logger.NewTestLogger())
	ok := d.Deliver(context.Background(), wh, models.EventInvoiceFailed, testInvoice(), nil)

	assert.False(t, ok)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	stored, err := ws.Get(context.Background(), "wh-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalCalls)
	assert.Equal(t, 0, stored.SuccessfulCalls)
}

func TestNotifierFiltersByEventPreference(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ws := store.NewMemoryWebhookStore()
	require.NoError(t, ws.Insert(context.Background(), &models.Webhook{
		ID: "wh-success", UserID: "user-1", URL: srv.URL, IsActive: true, OnSuccess: true,
	}))
	require.NoError(t, ws.Insert(context.Background(), &models.Webhook{
		ID: "wh-failure", UserID: "user-1", URL: srv.URL, IsActive: true, OnFailure: true,
	}))
	require.NoError(t, ws.Insert(context.Background(), &models.Webhook{
		ID: "wh-disabled", UserID: "user-1", URL: srv.URL, IsActive: false, OnSuccess: true, OnFailure: true,
	}))

	d := NewDispatcher(5*time.Second, 1, ws, logger.NewTestLogger())
	n := NewNotifier(ws, d, logger.NewTestLogger())

	// Completed invoice: only the on-success subscription fires.
	n.Notify(context.Background(), testInvoice())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	failed := testInvoice()
	failed.Status = models.StatusFailed
	n.Notify(context.Background(), failed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotifierIgnoresNonTerminalStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	ws := store.NewMemoryWebhookStore()
	insertWebhook(t, ws, srv.URL)

	d := NewDispatcher(5*time.Second, 1, ws, logger.NewTestLogger())
	n := NewNotifier(ws, d, logger.NewTestLogger())

	inv := testInvoice()
	inv.Status = models.StatusProcessing
	n.Notify(context.Background(), inv)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
