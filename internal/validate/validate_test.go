package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

func f(v float64) *float64 { return &v }

func item(qty, unit, total *float64) models.InvoiceItem {
	return models.InvoiceItem{Quantity: qty, UnitPrice: unit, TotalPrice: total}
}

func TestArithmeticValidItem(t *testing.T) {
	entries := Arithmetic([]models.InvoiceItem{
		item(f(2), f(50), f(100)),
	})

	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsValid)
	assert.Equal(t, 100.0, entries[0].Expected)
	assert.Equal(t, 100.0, entries[0].Found)
	assert.Equal(t, 0, entries[0].ItemIndex)
}

func TestArithmeticMismatch(t *testing.T) {
	entries := Arithmetic([]models.InvoiceItem{
		item(f(3), f(10), f(35)),
	})

	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsValid)
	assert.Equal(t, 30.0, entries[0].Expected)
	assert.Equal(t, 35.0, entries[0].Found)
}

func TestArithmeticWithinTolerance(t *testing.T) {
	// 3 * 33.333 rounds to 100.0, inside the 0.01 band.
	entries := Arithmetic([]models.InvoiceItem{
		item(f(3), f(33.333), f(100.0)),
	})

	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsValid)
}

func TestArithmeticSkipsIncompleteItems(t *testing.T) {
	entries := Arithmetic([]models.InvoiceItem{
		item(f(2), nil, f(100)),
		item(nil, nil, nil),
		item(f(1), f(5), f(5)),
	})

	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ItemIndex)
}

func TestTaxMatches(t *testing.T) {
	inv := &models.NormalizedInvoice{
		TotalAmount: f(118.0),
		TaxRate:     f(18.0),
		Items: []models.InvoiceItem{
			item(f(1), f(100), f(100)),
		},
	}

	tax := Tax(inv, DefaultTaxRate)
	require.NotNil(t, tax)
	assert.Equal(t, 100.0, tax.SumItemsNet)
	assert.Equal(t, 18.0, tax.DetectedTaxRate)
	assert.Equal(t, 118.0, tax.ExpectedTotalWithTax)
	assert.True(t, tax.MatchesTaxCalculation)
}

func TestTaxUsesDefaultRate(t *testing.T) {
	inv := &models.NormalizedInvoice{
		TotalAmount: f(118.0),
		Items: []models.InvoiceItem{
			item(f(1), f(100), f(100)),
		},
	}

	tax := Tax(inv, DefaultTaxRate)
	require.NotNil(t, tax)
	assert.Equal(t, 18.0, tax.DetectedTaxRate)
	assert.True(t, tax.MatchesTaxCalculation)
}

func TestTaxMismatchOutsideTolerance(t *testing.T) {
	inv := &models.NormalizedInvoice{
		TotalAmount: f(130.0),
		TaxRate:     f(18.0),
		Items: []models.InvoiceItem{
			item(f(1), f(100), f(100)),
		},
	}

	tax := Tax(inv, DefaultTaxRate)
	require.NotNil(t, tax)
	assert.False(t, tax.MatchesTaxCalculation)
}

func TestTaxWithinOneUnitTolerance(t *testing.T) {
	inv := &models.NormalizedInvoice{
		TotalAmount: f(118.9),
		TaxRate:     f(18.0),
		Items: []models.InvoiceItem{
			item(f(1), f(100), f(100)),
		},
	}

	tax := Tax(inv, DefaultTaxRate)
	require.NotNil(t, tax)
	assert.True(t, tax.MatchesTaxCalculation)
}

func TestTaxNilWithoutTotal(t *testing.T) {
	inv := &models.NormalizedInvoice{
		Items: []models.InvoiceItem{item(f(1), f(100), f(100))},
	}

	assert.Nil(t, Tax(inv, DefaultTaxRate))
}

func TestFullRunsBoth(t *testing.T) {
	inv := &models.NormalizedInvoice{
		TotalAmount: f(118.0),
		Items: []models.InvoiceItem{
			item(f(2), f(50), f(100)),
		},
	}

	entries, tax := Full(inv, DefaultTaxRate)
	require.Len(t, entries, 1)
	require.NotNil(t, tax)
	assert.True(t, entries[0].IsValid)
	assert.True(t, tax.MatchesTaxCalculation)
}
