package models

import (
	"time"
)

// Status of an invoice record. Transitions are
// pending -> processing -> completed | failed; completed and failed are
// terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ExtractionMetadata is attached to every successful extraction.
type ExtractionMetadata struct {
	PagesProcessed int    `json:"pages_processed"`
	FileType       string `json:"file_type"`
	Provider       string `json:"provider"`
}

// RawExtraction is the provider's JSON output after repair and parsing.
// Numeric fields may still be locale-formatted strings at this point, so
// both maps stay untyped until normalization.
type RawExtraction struct {
	GeneralFields map[string]interface{} `json:"general_fields"`
	Items         []map[string]interface{} `json:"items"`
	Metadata      *ExtractionMetadata      `json:"_metadata,omitempty"`
}

// InvoiceItem is a normalized line item. Every numeric field is either a
// valid float or nil, never a string.
type InvoiceItem struct {
	ProductName *string  `json:"product_name"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	TotalPrice  *float64 `json:"total_price"`
	Description *string  `json:"description"`
}

// NormalizedInvoice flattens the general fields to the top level with all
// numbers coerced to floats.
type NormalizedInvoice struct {
	InvoiceNumber *string  `json:"invoice_number"`
	Date          *string  `json:"date"`
	SupplierName  *string  `json:"supplier_name"`
	TotalAmount   *float64 `json:"total_amount"`
	Currency      *string  `json:"currency"`
	TaxAmount     *float64 `json:"tax_amount"`
	TaxRate       *float64 `json:"tax_rate"`
	Category      *string  `json:"category"`

	Items []InvoiceItem `json:"items"`

	Metadata *ExtractionMetadata `json:"_metadata,omitempty"`
}

// ArithmeticEntry is one per line item that carries all three of
// quantity, unit price and total price.
type ArithmeticEntry struct {
	ItemIndex int     `json:"item_index"`
	IsValid   bool    `json:"is_valid"`
	Expected  float64 `json:"expected"`
	Found     float64 `json:"found"`
}

// TaxValidation reports invoice-level tax consistency.
type TaxValidation struct {
	SumItemsNet           float64 `json:"sum_items_net"`
	DetectedTaxRate       float64 `json:"detected_tax_rate"`
	ExpectedTotalWithTax  float64 `json:"expected_total_with_tax"`
	ActualTotalAmount     float64 `json:"actual_total_amount"`
	MatchesTaxCalculation bool    `json:"matches_tax_calculation"`
}

// ConversionResult is the outcome of converting the invoice total to TRY.
type ConversionResult struct {
	AmountTRY float64 `json:"amount_try"`
	Rate      float64 `json:"rate"`
	Currency  string  `json:"currency,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// ReviewResult is the reviewer agent's qualitative assessment.
type ReviewResult struct {
	Summary         string `json:"summary"`
	RiskLevel       string `json:"risk_level"`
	RiskReason      string `json:"risk_reason"`
	SuggestedAction string `json:"suggested_action"`
}

// Invoice is the persisted record. Created on upload, mutated exactly
// once by the processing task on terminal success or failure.
type Invoice struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	TaskID string `json:"task_id,omitempty"`

	OriginalFilename string `json:"original_filename,omitempty"`
	FileType         string `json:"file_type,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	FilePath         string `json:"file_path,omitempty"`

	Status           Status `json:"status"`
	ErrorMessage     string `json:"error_message,omitempty"`
	ProcessingTimeMS int64  `json:"processing_time_ms,omitempty"`

	NormalizedInvoice

	ArithmeticValidation []ArithmeticEntry `json:"arithmetic_validation,omitempty"`
	TaxValidation        *TaxValidation    `json:"tax_validation,omitempty"`
	Conversion           *ConversionResult `json:"conversion,omitempty"`
	Review               *ReviewResult     `json:"review,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
