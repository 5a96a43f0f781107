package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

const recordTTL = 30 * 24 * time.Hour

// RedisInvoiceStore keeps each invoice as a JSON value with per-user and
// per-task indexes.
type RedisInvoiceStore struct {
	client *redis.Client
}

func NewRedisInvoiceStore(client *redis.Client) *RedisInvoiceStore {
	return &RedisInvoiceStore{client: client}
}

func invoiceKey(id string) string      { return "invoice:" + id }
func userInvoicesKey(uid string) string { return "user:" + uid + ":invoices" }
func taskIndexKey(taskID string) string { return "task:" + taskID + ":invoice" }

func (s *RedisInvoiceStore) Insert(ctx context.Context, inv *models.Invoice) error {
	if err := s.write(ctx, inv); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, userInvoicesKey(inv.UserID), inv.ID).Err(); err != nil {
		return fmt.Errorf("index invoice: %w", err)
	}
	return nil
}

func (s *RedisInvoiceStore) Get(ctx context.Context, id string) (*models.Invoice, error) {
	data, err := s.client.Get(ctx, invoiceKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	var inv models.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &inv, nil
}

func (s *RedisInvoiceStore) GetByTaskID(ctx context.Context, taskID string) (*models.Invoice, error) {
	id, err := s.client.Get(ctx, taskIndexKey(taskID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve task id: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *RedisInvoiceStore) Update(ctx context.Context, inv *models.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	return s.write(ctx, inv)
}

func (s *RedisInvoiceStore) ListByUser(ctx context.Context, userID string) ([]*models.Invoice, error) {
	ids, err := s.client.SMembers(ctx, userInvoicesKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user invoices: %w", err)
	}

	invoices := make([]*models.Invoice, 0, len(ids))
	for _, id := range ids {
		inv, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (s *RedisInvoiceStore) write(ctx context.Context, inv *models.Invoice) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	if err := s.client.Set(ctx, invoiceKey(inv.ID), data, recordTTL).Err(); err != nil {
		return fmt.Errorf("store invoice: %w", err)
	}
	if inv.TaskID != "" {
		if err := s.client.Set(ctx, taskIndexKey(inv.TaskID), inv.ID, recordTTL).Err(); err != nil {
			return fmt.Errorf("index task id: %w", err)
		}
	}
	return nil
}

// RedisWebhookStore keeps webhook subscriptions the same way.
type RedisWebhookStore struct {
	client *redis.Client
}

func NewRedisWebhookStore(client *redis.Client) *RedisWebhookStore {
	return &RedisWebhookStore{client: client}
}

func webhookKey(id string) string       { return "webhook:" + id }
func userWebhooksKey(uid string) string { return "user:" + uid + ":webhooks" }

func (s *RedisWebhookStore) Insert(ctx context.Context, wh *models.Webhook) error {
	if err := s.write(ctx, wh); err != nil {
		return err
	}
	if err := s.client.SAdd(ctx, userWebhooksKey(wh.UserID), wh.ID).Err(); err != nil {
		return fmt.Errorf("index webhook: %w", err)
	}
	return nil
}

func (s *RedisWebhookStore) Get(ctx context.Context, id, userID string) (*models.Webhook, error) {
	data, err := s.client.Get(ctx, webhookKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook: %w", err)
	}

	var wh models.Webhook
	if err := json.Unmarshal(data, &wh); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if wh.UserID != userID {
		return nil, ErrNotFound
	}
	return &wh, nil
}

func (s *RedisWebhookStore) Update(ctx context.Context, wh *models.Webhook) error {
	wh.UpdatedAt = time.Now().UTC()
	return s.write(ctx, wh)
}

func (s *RedisWebhookStore) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, webhookKey(id)).Err(); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return s.client.SRem(ctx, userWebhooksKey(userID), id).Err()
}

func (s *RedisWebhookStore) ListByUser(ctx context.Context, userID string) ([]*models.Webhook, error) {
	ids, err := s.client.SMembers(ctx, userWebhooksKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list user webhooks: %w", err)
	}

	webhooks := make([]*models.Webhook, 0, len(ids))
	for _, id := range ids {
		wh, err := s.Get(ctx, id, userID)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, wh)
	}
	return webhooks, nil
}

func (s *RedisWebhookStore) CountByUser(ctx context.Context, userID string) (int, error) {
	n, err := s.client.SCard(ctx, userWebhooksKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count user webhooks: %w", err)
	}
	return int(n), nil
}

func (s *RedisWebhookStore) write(ctx context.Context, wh *models.Webhook) error {
	data, err := json.Marshal(wh)
	if err != nil {
		return fmt.Errorf("encode webhook: %w", err)
	}
	if err := s.client.Set(ctx, webhookKey(wh.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store webhook: %w", err)
	}
	return nil
}
