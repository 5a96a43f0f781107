package store

import (
	"context"
	"sync"
	"time"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

// MemoryInvoiceStore is the process-local store used by the in-process
// execution mode and by tests.
type MemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*models.Invoice
	byTask   map[string]string
}

func NewMemoryInvoiceStore() *MemoryInvoiceStore {
	return &MemoryInvoiceStore{
		invoices: make(map[string]*models.Invoice),
		byTask:   make(map[string]string),
	}
}

func (s *MemoryInvoiceStore) Insert(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(inv)
	return nil
}

func (s *MemoryInvoiceStore) Get(_ context.Context, id string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryInvoiceStore) GetByTaskID(ctx context.Context, taskID string) (*models.Invoice, error) {
	s.mu.RLock()
	id, ok := s.byTask[taskID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *MemoryInvoiceStore) Update(_ context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	inv.UpdatedAt = time.Now().UTC()
	s.put(inv)
	return nil
}

func (s *MemoryInvoiceStore) ListByUser(_ context.Context, userID string) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Invoice, 0)
	for _, inv := range s.invoices {
		if inv.UserID == userID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryInvoiceStore) put(inv *models.Invoice) {
	cp := *inv
	s.invoices[inv.ID] = &cp
	if inv.TaskID != "" {
		s.byTask[inv.TaskID] = inv.ID
	}
}

// MemoryWebhookStore mirrors the Redis webhook store in memory.
type MemoryWebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*models.Webhook
}

func NewMemoryWebhookStore() *MemoryWebhookStore {
	return &MemoryWebhookStore{webhooks: make(map[string]*models.Webhook)}
}

func (s *MemoryWebhookStore) Insert(_ context.Context, wh *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *wh
	s.webhooks[wh.ID] = &cp
	return nil
}

func (s *MemoryWebhookStore) Get(_ context.Context, id, userID string) (*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wh, ok := s.webhooks[id]
	if !ok || wh.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *wh
	return &cp, nil
}

func (s *MemoryWebhookStore) Update(_ context.Context, wh *models.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[wh.ID]; !ok {
		return ErrNotFound
	}
	wh.UpdatedAt = time.Now().UTC()
	cp := *wh
	s.webhooks[wh.ID] = &cp
	return nil
}

func (s *MemoryWebhookStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wh, ok := s.webhooks[id]
	if !ok || wh.UserID != userID {
		return ErrNotFound
	}
	delete(s.webhooks, id)
	return nil
}

func (s *MemoryWebhookStore) ListByUser(_ context.Context, userID string) ([]*models.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Webhook, 0)
	for _, wh := range s.webhooks {
		if wh.UserID == userID {
			cp := *wh
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryWebhookStore) CountByUser(ctx context.Context, userID string) (int, error) {
	list, err := s.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
