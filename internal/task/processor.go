// Package task sequences the invoice pipeline: extraction,
// normalization, validation, conversion, review, persistence and
// notification, with the error taxonomy the retry envelope needs.
package task

import (
	"context"
	"time"

	"github.com/emredeveloper/invoice-ai-extractor/internal/extraction"
	"github.com/emredeveloper/invoice-ai-extractor/internal/fx"
	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/review"
	"github.com/emredeveloper/invoice-ai-extractor/internal/store"
	"github.com/emredeveloper/invoice-ai-extractor/internal/validate"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// Notifier receives the terminal invoice outcome. Implementations must
// never let delivery failures surface back into task status.
type Notifier interface {
	Notify(ctx context.Context, inv *models.Invoice)
}

// Request identifies one unit of pipeline work. The caller guarantees at
// most one in-flight request per invoice id.
type Request struct {
	InvoiceID   string `json:"invoice_id"`
	FilePath    string `json:"file_path"`
	ContentType string `json:"content_type"`
}

// Processor runs the pipeline against one invoice record.
type Processor struct {
	engine         *extraction.Engine
	converter      *fx.Converter
	reviewer       *review.Agent
	invoices       store.InvoiceStore
	notifier       Notifier
	defaultTaxRate float64
	logger         logger.Logger
}

func NewProcessor(
	engine *extraction.Engine,
	converter *fx.Converter,
	reviewer *review.Agent,
	invoices store.InvoiceStore,
	notifier Notifier,
	defaultTaxRate float64,
	log logger.Logger,
) *Processor {
	if defaultTaxRate <= 0 {
		defaultTaxRate = 18.0
	}
	return &Processor{
		engine:         engine,
		converter:      converter,
		reviewer:       reviewer,
		invoices:       invoices,
		notifier:       notifier,
		defaultTaxRate: defaultTaxRate,
		logger:         log,
	}
}

// Process runs the full pipeline. On success the record is persisted as
// completed and the notifier is invoked. On failure the record is left in
// processing and the error returned, so the caller can decide between a
// retry and a terminal Fail: the record must not flip to failed while an
// attempt is still pending.
func (p *Processor) Process(ctx context.Context, req Request) (*models.Invoice, error) {
	start := time.Now()

	inv, err := p.invoices.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	if inv.Status == models.StatusPending {
		inv.Status = models.StatusProcessing
		if err := p.invoices.Update(ctx, inv); err != nil {
			return nil, err
		}
	}

	p.logger.Info("Processing invoice",
		logger.String("invoice_id", inv.ID),
		logger.String("file", req.FilePath),
	)

	raw, err := p.engine.ProcessInvoice(ctx, req.FilePath, req.ContentType)
	if err != nil {
		return inv, err
	}

	norm := extraction.Normalize(raw)
	inv.NormalizedInvoice = norm

	inv.ArithmeticValidation, inv.TaxValidation = validate.Full(&norm, p.defaultTaxRate)

	// Conversion and review are best-effort: both degrade, neither
	// aborts the pipeline.
	conv := p.converter.ConvertToTRY(ctx, norm.TotalAmount, norm.Currency)
	inv.Conversion = &conv

	rev := p.reviewer.ReviewInvoice(ctx, &norm, inv.TaxValidation)
	inv.Review = &rev

	inv.Status = models.StatusCompleted
	inv.ErrorMessage = ""
	inv.ProcessingTimeMS = time.Since(start).Milliseconds()

	if err := p.invoices.Update(ctx, inv); err != nil {
		return inv, err
	}

	p.logger.Info("Invoice processing completed",
		logger.String("invoice_id", inv.ID),
		logger.Int64("processing_time_ms", inv.ProcessingTimeMS),
		logger.Int("items", len(inv.Items)),
	)

	if p.notifier != nil {
		p.notifier.Notify(ctx, inv)
	}

	return inv, nil
}

// Fail writes the terminal failed status with the error message and
// notifies subscribers. Safe to call after a timeout: it uses a fresh
// context so the record never stays in processing indefinitely.
func (p *Processor) Fail(invoiceID, errMsg string, started time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	inv, err := p.invoices.Get(ctx, invoiceID)
	if err != nil {
		p.logger.Error("Failed to load invoice for failure write",
			logger.String("invoice_id", invoiceID),
			logger.Error(err),
		)
		return
	}

	inv.Status = models.StatusFailed
	inv.ErrorMessage = errMsg
	if !started.IsZero() {
		inv.ProcessingTimeMS = time.Since(started).Milliseconds()
	}

	if err := p.invoices.Update(ctx, inv); err != nil {
		p.logger.Error("Failed to persist failed status",
			logger.String("invoice_id", invoiceID),
			logger.Error(err),
		)
		return
	}

	if p.notifier != nil {
		p.notifier.Notify(ctx, inv)
	}
}
