// Package pricing holds the pure totals calculation shared by quotes and invoices.
package pricing

// LineInput is the priced portion of a document line.
type LineInput struct {
	Quantity  float64
	UnitPrice float64
}

// Totals is the computed money breakdown of a document.
type Totals struct {
	ItemsSubtotal float64
	LaborSubtotal float64
	Subtotal      float64
	VATAmount     float64
	Total         float64
}

// LineTotal recomputes a line total from quantity and unit price. Stored line
// totals are never trusted; this is the single source of truth.
func LineTotal(quantity, unitPrice float64) float64 {
	return quantity * unitPrice
}

// Calculate computes document totals from line inputs, labor and a VAT
// percentage. No rounding is applied; formatting is a presentation concern.
func Calculate(lines []LineInput, laborHours, hourlyRate, vatRate float64) Totals {
	var items float64
	for _, l := range lines {
		items += LineTotal(l.Quantity, l.UnitPrice)
	}
	labor := laborHours * hourlyRate
	subtotal := items + labor
	vat := subtotal * (vatRate / 100)
	return Totals{
		ItemsSubtotal: items,
		LaborSubtotal: labor,
		Subtotal:      subtotal,
		VATAmount:     vat,
		Total:         subtotal + vat,
	}
}
