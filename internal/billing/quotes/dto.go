package quotes

import "time"

type CreateQuoteRequest struct {
	CustomerID   int64               `json:"customer_id" validate:"required,gt=0"`
	CustomerName string              `json:"customer_name" validate:"required"`
	LaborHours   float64             `json:"labor_hours" validate:"gte=0"`
	HourlyRate   float64             `json:"hourly_rate" validate:"gte=0"`
	VATRate      float64             `json:"vat_rate" validate:"gte=0,lte=100"`
	ValidUntil   *time.Time          `json:"valid_until,omitempty"`
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

type UpdateQuoteRequest struct {
	CustomerID   *int64               `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	CustomerName *string              `json:"customer_name,omitempty"`
	LaborHours   *float64             `json:"labor_hours,omitempty" validate:"omitempty,gte=0"`
	HourlyRate   *float64             `json:"hourly_rate,omitempty" validate:"omitempty,gte=0"`
	VATRate      *float64             `json:"vat_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	ValidUntil   *time.Time           `json:"valid_until,omitempty"`
	Notes        *string              `json:"notes,omitempty"`
	Lines        *[]CreateLineRequest `json:"lines,omitempty" validate:"omitempty,dive"`
}

type ListQuotesRequest struct {
	Status *QuoteStatus `json:"status,omitempty"`
	Search string       `json:"search,omitempty"`
	Limit  int          `json:"limit" validate:"gte=0,lte=1000"`
	Offset int          `json:"offset" validate:"gte=0"`
}
