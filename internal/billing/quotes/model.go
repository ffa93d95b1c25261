package quotes

import "time"

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusApproved QuoteStatus = "APPROVED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

// transitions lists the legal status moves. Conversion to an invoice is not a
// status: it is recorded by setting InvoiceID on an APPROVED quote.
var transitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft: {QuoteStatusSent},
	QuoteStatusSent:  {QuoteStatusApproved, QuoteStatusRejected, QuoteStatusExpired},
}

// CanTransition reports whether moving from s to target is legal.
func (s QuoteStatus) CanTransition(target QuoteStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type Quote struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	CustomerID   int64       `json:"customer_id"`
	CustomerName string      `json:"customer_name"`
	LaborHours   float64     `json:"labor_hours"`
	HourlyRate   float64     `json:"hourly_rate"`
	Subtotal     float64     `json:"subtotal"`
	VATRate      float64     `json:"vat_rate"`
	VATAmount    float64     `json:"vat_amount"`
	Total        float64     `json:"total"`
	Status       QuoteStatus `json:"status"`
	ValidUntil   *time.Time  `json:"valid_until,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
	WorkOrderID  *int64      `json:"work_order_id,omitempty"`
	InvoiceID    *int64      `json:"invoice_id,omitempty"`
	CreatedBy    string      `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Lines        []QuoteLine `json:"lines,omitempty"`
}

type QuoteLine struct {
	ID              int64   `json:"id"`
	QuoteID         int64   `json:"quote_id"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	LineTotal       float64 `json:"line_total"`
	InventoryItemID *int64  `json:"inventory_item_id,omitempty"`
	LineOrder       int     `json:"line_order"`
}

// QuoteStats aggregates the collection grouped by status.
type QuoteStats struct {
	Count      int64                        `json:"count"`
	TotalValue float64                      `json:"total_value"`
	ByStatus   map[QuoteStatus]StatusBucket `json:"by_status"`
}

type StatusBucket struct {
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}
