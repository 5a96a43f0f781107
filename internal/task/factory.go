package task

import (
	"github.com/redis/go-redis/v9"

	"github.com/emredeveloper/invoice-ai-extractor/config"
	"github.com/emredeveloper/invoice-ai-extractor/internal/document"
	"github.com/emredeveloper/invoice-ai-extractor/internal/extraction"
	"github.com/emredeveloper/invoice-ai-extractor/internal/fx"
	"github.com/emredeveloper/invoice-ai-extractor/internal/provider"
	"github.com/emredeveloper/invoice-ai-extractor/internal/review"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/webhook"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// NewProcessorFromConfig assembles the full pipeline: provider,
// preprocessor, extraction engine, currency converter, reviewer and
// webhook notifier, all against the given stores.
func NewProcessorFromConfig(
	cfg *config.Config,
	rdb *redis.Client,
	invoices store.InvoiceStore,
	webhooks store.WebhookStore,
	log logger.Logger,
) (*Processor, error) {
	prov, err := provider.FromConfig(cfg.Provider, log)
	if err != nil {
		return nil, err
	}

	pre := document.NewPreprocessor(cfg.Pipeline.MaxPDFPages, cfg.Pipeline.DPIScale, log)
	engine := extraction.NewEngine(prov, pre, log)
	converter := fx.NewConverter("", rdb, log)
	reviewer := review.NewAgent(prov, log)

	dispatcher := webhook.NewDispatcher(cfg.Webhook.Timeout, cfg.Webhook.MaxRetries, webhooks, log)
	notifier := webhook.NewNotifier(webhooks, dispatcher, log)

	return NewProcessor(engine, converter, reviewer, invoices, notifier, cfg.Pipeline.DefaultTaxRate, log), nil
}
