package invoices

import "time"

type CreateInvoiceRequest struct {
	CustomerID   int64               `json:"customer_id" validate:"required,gt=0"`
	CustomerName string              `json:"customer_name" validate:"required"`
	IssueDate    time.Time           `json:"issue_date" validate:"required"`
	DueDate      time.Time           `json:"due_date" validate:"required"`
	LaborHours   float64             `json:"labor_hours" validate:"gte=0"`
	HourlyRate   float64             `json:"hourly_rate" validate:"gte=0"`
	VATRate      float64             `json:"vat_rate" validate:"gte=0,lte=100"`
	Notes        *string             `json:"notes,omitempty"`
	Lines        []CreateLineRequest `json:"lines" validate:"dive"`
}

type CreateLineRequest struct {
	Description     string  `json:"description" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"gte=0"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	InventoryItemID *int64  `json:"inventory_item_id,omitempty"`
	LineOrder       int     `json:"line_order" validate:"gte=0"`
}

type UpdateInvoiceRequest struct {
	CustomerID   *int64               `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName *string              `json:"customer_name,omitempty"`
	IssueDate    *time.Time           `json:"issue_date,omitempty"`
	DueDate      *time.Time           `json:"due_date,omitempty"`
	LaborHours   *float64             `json:"labor_hours,omitempty" validate:"omitempty,gte=0"`
	HourlyRate   *float64             `json:"hourly_rate,omitempty" validate:"omitempty,gte=0"`
	VATRate      *float64             `json:"vat_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes        *string              `json:"notes,omitempty"`
	Lines        *[]CreateLineRequest `json:"lines,omitempty" validate:"omitempty,dive"`
}

type ListInvoicesRequest struct {
	Status *InvoiceStatus `json:"status,omitempty"`
	Search string         `json:"search,omitempty"`
	Limit  int            `json:"limit" validate:"gte=0,lte=1000"`
	Offset int            `json:"offset" validate:"gte=0"`
}
