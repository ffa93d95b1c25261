package invoices

import "time"

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusSent      InvoiceStatus = "SENT"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// transitions lists the legal status moves. PAID -> SENT models reverting a
// payment recorded in error; the paid timestamp is cleared on that move.
// CANCELLED is terminal and reachable from every non-paid status.
var transitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusCancelled},
	InvoiceStatusSent:    {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPaid:    {InvoiceStatusSent},
}

// CanTransition reports whether moving from s to target is legal.
func (s InvoiceStatus) CanTransition(target InvoiceStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

type Invoice struct {
	ID           int64         `json:"id"`
	Number       string        `json:"number"`
	CustomerID   int64         `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	IssueDate    time.Time     `json:"issue_date"`
	DueDate      time.Time     `json:"due_date"`
	PaidAt       *time.Time    `json:"paid_at,omitempty"`
	LaborHours   float64       `json:"labor_hours"`
	HourlyRate   float64       `json:"hourly_rate"`
	Subtotal     float64       `json:"subtotal"`
	VATRate      float64       `json:"vat_rate"`
	VATAmount    float64       `json:"vat_amount"`
	Total        float64       `json:"total"`
	Status       InvoiceStatus `json:"status"`
	Notes        *string       `json:"notes,omitempty"`
	QuoteID      *int64        `json:"quote_id,omitempty"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Lines        []InvoiceLine `json:"lines,omitempty"`
}

type InvoiceLine struct {
	ID              int64   `json:"id"`
	InvoiceID       int64   `json:"invoice_id"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	LineTotal       float64 `json:"line_total"`
	InventoryItemID *int64  `json:"inventory_item_id,omitempty"`
	LineOrder       int     `json:"line_order"`
}

// InvoiceStats aggregates the collection grouped by status. Outstanding covers
// SENT and OVERDUE invoices.
type InvoiceStats struct {
	Count       int64                          `json:"count"`
	TotalValue  float64                        `json:"total_value"`
	Outstanding float64                        `json:"outstanding"`
	ByStatus    map[InvoiceStatus]StatusBucket `json:"by_status"`
}

type StatusBucket struct {
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}
