// Package review implements the risk reviewer agent. The agent asks the
// LLM provider for a qualitative assessment of the extracted data and
// falls back to a deterministic result on any failure, so the review step
// can never fail the pipeline.
package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emredeveloper/invoice-ai-extractor/internal/extraction"
	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
	"github.com/emredeveloper/invoice-ai-extractor/internal/provider"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

const reviewPromptTemplate = `As an expert financial auditor, review the following extracted invoice data and provide:
1. A brief business summary (1 sentence).
2. A risk assessment (Low, Medium, High) with a reason.
3. A suggested action (e.g., 'Approve', 'Check Supplier', 'Verify Tax').

Data: %s

Return the response in JSON format like this:
{
    "summary": "...",
    "risk_level": "...",
    "risk_reason": "...",
    "suggested_action": "..."
}`

// Agent reviews validated invoice data.
type Agent struct {
	provider provider.Provider
	logger   logger.Logger
}

func NewAgent(p provider.Provider, log logger.Logger) *Agent {
	return &Agent{provider: p, logger: log}
}

// invoiceSummary is the compact view sent to the model.
type invoiceSummary struct {
	Supplier   *string  `json:"supplier"`
	Total      *float64 `json:"total"`
	Currency   *string  `json:"currency"`
	Category   *string  `json:"category"`
	ItemsCount int      `json:"items_count"`
	TaxOK      bool     `json:"tax_ok"`
}

// ReviewInvoice produces a ReviewResult for the invoice. It never
// returns an error: any provider or parse failure yields the
// deterministic fallback.
func (a *Agent) ReviewInvoice(ctx context.Context, inv *models.NormalizedInvoice, tax *models.TaxValidation) models.ReviewResult {
	summary := invoiceSummary{
		Supplier:   inv.SupplierName,
		Total:      inv.TotalAmount,
		Currency:   inv.Currency,
		Category:   inv.Category,
		ItemsCount: len(inv.Items),
		TaxOK:      tax == nil || tax.MatchesTaxCalculation,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return a.fallback(summary)
	}

	raw, err := a.provider.GenerateJSON(ctx, fmt.Sprintf(reviewPromptTemplate, string(data)), nil)
	if err != nil {
		a.logger.Warn("Reviewer provider call failed, using fallback", logger.Error(err))
		return a.fallback(summary)
	}

	var result models.ReviewResult
	if err := json.Unmarshal([]byte(extraction.RepairJSON(raw)), &result); err != nil {
		a.logger.Warn("Reviewer response unparsable, using fallback", logger.Error(err))
		return a.fallback(summary)
	}

	return result
}

// fallback is the terminal safety net for the review step.
func (a *Agent) fallback(summary invoiceSummary) models.ReviewResult {
	supplier := "unknown supplier"
	if summary.Supplier != nil {
		supplier = *summary.Supplier
	}

	total := "an unknown amount"
	if summary.Total != nil {
		currency := ""
		if summary.Currency != nil {
			currency = " " + *summary.Currency
		}
		total = fmt.Sprintf("%.2f%s", *summary.Total, currency)
	}

	return models.ReviewResult{
		Summary:         fmt.Sprintf("Invoice from %s for %s.", supplier, total),
		RiskLevel:       "Low",
		RiskReason:      "Automated basic check passed",
		SuggestedAction: "Proceed",
	}
}
