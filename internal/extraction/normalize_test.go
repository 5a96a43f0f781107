package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

func TestNormalizeCoercesNumericStrings(t *testing.T) {
	raw := &models.RawExtraction{
		GeneralFields: map[string]interface{}{
			"invoice_number": "INV-2024-001",
			"supplier_name":  "Acme Ltd",
			"total_amount":   "1.180,00",
			"currency":       "TL",
			"tax_rate":       18.0,
		},
		Items: []map[string]interface{}{
			{
				"product_name": "Widget",
				"quantity":     "2",
				"unit_price":   "500,00",
				"total_price":  1000.0,
			},
		},
	}

	inv := Normalize(raw)

	require.NotNil(t, inv.TotalAmount)
	assert.Equal(t, 1180.0, *inv.TotalAmount)
	require.NotNil(t, inv.TaxRate)
	assert.Equal(t, 18.0, *inv.TaxRate)
	assert.Equal(t, "Acme Ltd", *inv.SupplierName)

	require.Len(t, inv.Items, 1)
	item := inv.Items[0]
	assert.Equal(t, 2.0, *item.Quantity)
	assert.Equal(t, 500.0, *item.UnitPrice)
	assert.Equal(t, 1000.0, *item.TotalPrice)
}

func TestNormalizeMissingFieldsStayNil(t *testing.T) {
	inv := Normalize(&models.RawExtraction{
		GeneralFields: map[string]interface{}{},
	})

	assert.Nil(t, inv.InvoiceNumber)
	assert.Nil(t, inv.TotalAmount)
	assert.Nil(t, inv.TaxRate)
	assert.Empty(t, inv.Items)
}

func TestNormalizeStringifiesNumericFreeFormFields(t *testing.T) {
	inv := Normalize(&models.RawExtraction{
		GeneralFields: map[string]interface{}{
			"invoice_number": 20240012.0,
		},
	})

	require.NotNil(t, inv.InvoiceNumber)
	assert.Equal(t, "2.0240012e+07", *inv.InvoiceNumber)
}
