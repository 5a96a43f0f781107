// Package validate holds the pure checks run over a normalized invoice.
// Mismatches are recorded as data, never returned as errors.
package validate

import (
	"math"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

const (
	// arithmeticTolerance is the absolute tolerance for per-item
	// quantity * unit_price checks.
	arithmeticTolerance = 0.01
	// taxTolerance is the absolute tolerance for the invoice-level
	// gross total check.
	taxTolerance = 1.0

	// DefaultTaxRate applies when the invoice carries no extracted rate.
	DefaultTaxRate = 18.0
)

// Arithmetic checks quantity * unit_price against total_price for every
// item that has all three operands. Items missing an operand produce no
// entry.
func Arithmetic(items []models.InvoiceItem) []models.ArithmeticEntry {
	entries := make([]models.ArithmeticEntry, 0, len(items))

	for i, item := range items {
		if item.Quantity == nil || item.UnitPrice == nil || item.TotalPrice == nil {
			continue
		}

		expected := round2(*item.Quantity * *item.UnitPrice)
		entries = append(entries, models.ArithmeticEntry{
			ItemIndex: i,
			IsValid:   math.Abs(expected-*item.TotalPrice) < arithmeticTolerance,
			Expected:  expected,
			Found:     *item.TotalPrice,
		})
	}

	return entries
}

// Tax verifies the stated total against the items' net sum grossed up by
// the detected tax rate. Nil item totals count as zero; the extracted
// rate wins over defaultRate. Returns nil when the invoice states no
// total amount.
func Tax(inv *models.NormalizedInvoice, defaultRate float64) *models.TaxValidation {
	if inv.TotalAmount == nil {
		return nil
	}

	var sumItems float64
	for _, item := range inv.Items {
		if item.TotalPrice != nil {
			sumItems += *item.TotalPrice
		}
	}

	rate := defaultRate
	if inv.TaxRate != nil {
		rate = *inv.TaxRate
	}

	expected := round2(sumItems * (1 + rate/100))

	return &models.TaxValidation{
		SumItemsNet:           sumItems,
		DetectedTaxRate:       rate,
		ExpectedTotalWithTax:  expected,
		ActualTotalAmount:     *inv.TotalAmount,
		MatchesTaxCalculation: math.Abs(expected-*inv.TotalAmount) < taxTolerance,
	}
}

// Full runs both validations; they are independent and order-insensitive.
func Full(inv *models.NormalizedInvoice, defaultRate float64) ([]models.ArithmeticEntry, *models.TaxValidation) {
	return Arithmetic(inv.Items), Tax(inv, defaultRate)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
