package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emredeveloper/invoice-ai-extractor/api/handlers"
	"github.com/emredeveloper/invoice-ai-extractor/api/routes"
	"github.com/emredeveloper/invoice-ai-extractor/config"
	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/webhook"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/queue"
)

// fakeService returns canned records without touching the pipeline.
type fakeService struct {
	invoices map[string]*models.Invoice
}

func (f *fakeService) ProcessFile(_ context.Context, userID string, _ multipart.File, header *multipart.FileHeader) (*models.Invoice, error) {
	inv := &models.Invoice{
		ID:               "inv-1",
		UserID:           userID,
		TaskID:           "task-1",
		OriginalFilename: header.Filename,
		FileSize:         header.Size,
		FileType:         ".txt",
		Status:           models.StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
	f.invoices[inv.ID] = inv
	return inv, nil
}

func (f *fakeService) ProcessBatch(ctx context.Context, userID string, files []*multipart.FileHeader) ([]*models.Invoice, error) {
	out := make([]*models.Invoice, 0, len(files))
	for _, h := range files {
		inv, _ := f.ProcessFile(ctx, userID, nil, h)
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeService) GetInvoice(_ context.Context, userID, id string) (*models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok || inv.UserID != userID {
		return nil, store.ErrNotFound
	}
	return inv, nil
}

func (f *fakeService) GetByTaskID(_ context.Context, userID, taskID string) (*models.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.TaskID == taskID && inv.UserID == userID {
			return inv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeService) ListInvoices(_ context.Context, userID string) ([]*models.Invoice, error) {
	out := make([]*models.Invoice, 0)
	for _, inv := range f.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeService) GetTaskStatus(_ context.Context, taskID string) (*queue.TaskStatus, error) {
	for _, inv := range f.invoices {
		if inv.TaskID == taskID {
			return &queue.TaskStatus{TaskID: taskID, Status: string(inv.Status)}, nil
		}
	}
	return nil, fmt.Errorf("task not found")
}

func (f *fakeService) CancelTask(context.Context, string) error { return nil }
func (f *fakeService) CleanupFiles(context.Context) error       { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *fakeService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewTestLogger()
	svc := &fakeService{invoices: make(map[string]*models.Invoice)}

	ws := store.NewMemoryWebhookStore()
	dispatcher := webhook.NewDispatcher(time.Second, 1, ws, log)
	manager := webhook.NewManager(ws, dispatcher, 5, log)

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"

	r := gin.New()
	routes.SetupRoutes(r, handlers.NewHandlers(svc, manager, log), cfg)
	return r, svc
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func signedToken(t *testing.T, secret, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestUploadRequiresCredentials(t *testing.T) {
	r, _ := newTestRouter(t)

	req := uploadRequest(t, "invoice.txt", "body")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadWithAPIKey(t *testing.T) {
	r, _ := newTestRouter(t)

	req := uploadRequest(t, "invoice.txt", "body")
	req.Header.Set("X-API-Key", "tenant-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp handlers.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "inv-1", resp.InvoiceID)
	assert.Equal(t, "task-1", resp.TaskID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, "invoice.txt", resp.Filename)
}

func TestUploadWithJWT(t *testing.T) {
	r, svc := newTestRouter(t)

	req := uploadRequest(t, "invoice.txt", "body")
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "test-secret", "user-42"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "user-42", svc.invoices["inv-1"].UserID)
}

func TestUploadRejectsForgedJWT(t *testing.T) {
	r, _ := newTestRouter(t)

	req := uploadRequest(t, "invoice.txt", "body")
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "wrong-secret", "user-42"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetInvoiceScopedToCaller(t *testing.T) {
	r, svc := newTestRouter(t)
	svc.invoices["inv-9"] = &models.Invoice{ID: "inv-9", UserID: "someone-else", Status: models.StatusCompleted}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/inv-9", nil)
	req.Header.Set("X-API-Key", "tenant-key")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookLifecycle(t *testing.T) {
	r, _ := newTestRouter(t)
	auth := func(req *http.Request) { req.Header.Set("X-API-Key", "tenant-key") }

	// Create: the secret is returned exactly once.
	body := bytes.NewBufferString(`{"url": "https://example.com/hook"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks", body)
	req.Header.Set("Content-Type", "application/json")
	auth(req)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Webhook
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Secret)
	assert.True(t, created.IsActive)

	// List: the secret is redacted.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/webhooks", nil)
	auth(req)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Count    int              `json:"count"`
		Webhooks []models.Webhook `json:"webhooks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Empty(t, list.Webhooks[0].Secret)

	// Delete.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/webhooks/"+created.ID, nil)
	auth(req)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpointNeedsNoAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
