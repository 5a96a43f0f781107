package webhook

import (
	"context"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// Notifier fans a terminal invoice outcome out to every matching active
// subscription of the owning user.
type Notifier struct {
	webhooks   store.WebhookStore
	dispatcher *Dispatcher
	logger     logger.Logger
}

func NewNotifier(webhooks store.WebhookStore, dispatcher *Dispatcher, log logger.Logger) *Notifier {
	return &Notifier{
		webhooks:   webhooks,
		dispatcher: dispatcher,
		logger:     log,
	}
}

// Notify delivers the invoice outcome. Errors are logged, never
// propagated: notification failure does not affect task status.
func (n *Notifier) Notify(ctx context.Context, inv *models.Invoice) {
	isSuccess := inv.Status == models.StatusCompleted
	isFailure := inv.Status == models.StatusFailed
	if !isSuccess && !isFailure {
		return
	}

	event := models.EventInvoiceProcessed
	if isFailure {
		event = models.EventInvoiceFailed
	}

	subs, err := n.webhooks.ListByUser(ctx, inv.UserID)
	if err != nil {
		n.logger.Warn("Failed to list webhook subscriptions",
			logger.String("user_id", inv.UserID),
			logger.Error(err),
		)
		return
	}

	for _, wh := range subs {
		if !wh.IsActive {
			continue
		}
		if (isSuccess && wh.OnSuccess) || (isFailure && wh.OnFailure) {
			delivered := n.dispatcher.Deliver(ctx, wh, event, inv, nil)
			n.logger.Info("Webhook dispatched",
				logger.String("webhook_id", wh.ID),
				logger.String("invoice_id", inv.ID),
				logger.String("event", event),
				logger.Bool("delivered", delivered),
			)
		}
	}
}
