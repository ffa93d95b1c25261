package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueScan flips sent invoices past their due date to overdue.
	TaskInvoiceOverdueScan = "billing:invoice_overdue_scan"
	// TaskQuoteExpiryScan flips sent quotes past their valid-until date to expired.
	TaskQuoteExpiryScan = "billing:quote_expiry_scan"
)

// ScanPayload carries the reference time for a scan; zero means "now".
type ScanPayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewInvoiceOverdueScanTask constructs an Asynq task.
func NewInvoiceOverdueScanTask(payload ScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueScan, data), nil
}

// NewQuoteExpiryScanTask constructs an Asynq task.
func NewQuoteExpiryScanTask(payload ScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpiryScan, data), nil
}

// OverdueScanner is the slice of the invoice service the worker needs.
type OverdueScanner interface {
	MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

// ExpiryScanner is the slice of the quote service the worker needs.
type ExpiryScanner interface {
	ExpireStale(ctx context.Context, asOf time.Time) ([]int64, error)
}

// InvoiceOverdueJob handles TaskInvoiceOverdueScan tasks.
type InvoiceOverdueJob struct {
	scanner OverdueScanner
	logger  *slog.Logger
}

func NewInvoiceOverdueJob(scanner OverdueScanner, logger *slog.Logger) *InvoiceOverdueJob {
	return &InvoiceOverdueJob{scanner: scanner, logger: logger}
}

func (j *InvoiceOverdueJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	flipped, err := j.scanner.MarkOverdue(ctx, payload.AsOf)
	if err != nil {
		return err
	}
	j.logger.Info("invoice overdue scan", slog.Int("flipped", len(flipped)))
	return nil
}

// QuoteExpiryJob handles TaskQuoteExpiryScan tasks.
type QuoteExpiryJob struct {
	scanner ExpiryScanner
	logger  *slog.Logger
}

func NewQuoteExpiryJob(scanner ExpiryScanner, logger *slog.Logger) *QuoteExpiryJob {
	return &QuoteExpiryJob{scanner: scanner, logger: logger}
}

func (j *QuoteExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	expired, err := j.scanner.ExpireStale(ctx, payload.AsOf)
	if err != nil {
		return err
	}
	j.logger.Info("quote expiry scan", slog.Int("expired", len(expired)))
	return nil
}
