package extraction

import (
	"fmt"

	"github.com/emredeveloper/invoice-ai-extractor/internal/models"
)

// Normalize flattens a raw extraction into the canonical invoice shape:
// general fields promoted to the top level, every numeric field coerced
// through CleanNumber.
func Normalize(raw *models.RawExtraction) models.NormalizedInvoice {
	gf := raw.GeneralFields

	inv := models.NormalizedInvoice{
		InvoiceNumber: stringField(gf, "invoice_number"),
		Date:          stringField(gf, "date"),
		SupplierName:  stringField(gf, "supplier_name"),
		TotalAmount:   CleanNumber(gf["total_amount"]),
		Currency:      stringField(gf, "currency"),
		TaxAmount:     CleanNumber(gf["tax_amount"]),
		TaxRate:       CleanNumber(gf["tax_rate"]),
		Category:      stringField(gf, "category"),
		Items:         make([]models.InvoiceItem, 0, len(raw.Items)),
		Metadata:      raw.Metadata,
	}

	for _, item := range raw.Items {
		inv.Items = append(inv.Items, models.InvoiceItem{
			ProductName: stringField(item, "product_name"),
			Quantity:    CleanNumber(item["quantity"]),
			UnitPrice:   CleanNumber(item["unit_price"]),
			TotalPrice:  CleanNumber(item["total_price"]),
			Description: stringField(item, "description"),
		})
	}

	return inv
}

func stringField(m map[string]interface{}, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}

	switch s := v.(type) {
	case string:
		return &s
	default:
		// Models occasionally return numbers for free-form fields such
		// as invoice_number.
		str := fmt.Sprintf("%v", v)
		return &str
	}
}
