package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlas-bms/atlas/internal/billing/pricing"
	"github.com/atlas-bms/atlas/internal/billing/quotes"
	"github.com/atlas-bms/atlas/internal/billing/stats"
)

var (
	ErrInvalidTransition     = errors.New("invoices: invalid status transition")
	ErrNotEditable           = errors.New("invoices: only DRAFT invoices can be edited")
	ErrQuoteNotApproved      = errors.New("invoices: quote must be APPROVED to convert")
	ErrQuoteAlreadyConverted = errors.New("invoices: quote already converted")
)

// paymentTermDays is the net-30 policy applied to converted and cloned invoices.
const paymentTermDays = 30

// QuoteSource is the slice of the quotes store the converter needs.
type QuoteSource interface {
	Get(ctx context.Context, id int64) (*quotes.Quote, error)
}

type Service struct {
	repo   Repository
	quotes QuoteSource
	stats  *stats.Cache
	now    func() time.Time
}

func NewService(repo Repository, quoteSource QuoteSource, statsCache *stats.Cache) *Service {
	return &Service{repo: repo, quotes: quoteSource, stats: statsCache, now: time.Now}
}

func (s *Service) Create(ctx context.Context, req CreateInvoiceRequest, createdBy string) (*Invoice, error) {
	number, err := s.repo.GenerateNumber(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	totals := pricing.Calculate(lineInputs(req.Lines), req.LaborHours, req.HourlyRate, req.VATRate)

	inv := Invoice{
		Number:       number,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		IssueDate:    req.IssueDate,
		DueDate:      req.DueDate,
		LaborHours:   req.LaborHours,
		HourlyRate:   req.HourlyRate,
		Subtotal:     totals.Subtotal,
		VATRate:      req.VATRate,
		VATAmount:    totals.VATAmount,
		Total:        totals.Total,
		Status:       InvoiceStatusDraft,
		Notes:        req.Notes,
		CreatedBy:    createdBy,
	}

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, inv)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		invoiceID = id

		for i, lineReq := range req.Lines {
			line := buildLine(invoiceID, lineReq, i)
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert invoice line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpStats(ctx)
	return s.repo.Get(ctx, invoiceID)
}

// CreateFromQuote converts an APPROVED quote into a DRAFT invoice. Line items
// are copied into fresh rows and totals are carried over verbatim; the invoice
// insert and the quote back-reference commit in one transaction.
func (s *Service) CreateFromQuote(ctx context.Context, quoteID int64, createdBy string) (*Invoice, error) {
	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if q.Status != quotes.QuoteStatusApproved {
		return nil, fmt.Errorf("%w: quote %s is %s", ErrQuoteNotApproved, q.Number, q.Status)
	}
	if q.InvoiceID != nil {
		return nil, fmt.Errorf("%w: quote %s -> invoice %d", ErrQuoteAlreadyConverted, q.Number, *q.InvoiceID)
	}

	number, err := s.repo.GenerateNumber(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	issued := s.now()
	inv := Invoice{
		Number:       number,
		CustomerID:   q.CustomerID,
		CustomerName: q.CustomerName,
		IssueDate:    issued,
		DueDate:      issued.AddDate(0, 0, paymentTermDays),
		LaborHours:   q.LaborHours,
		HourlyRate:   q.HourlyRate,
		Subtotal:     q.Subtotal,
		VATRate:      q.VATRate,
		VATAmount:    q.VATAmount,
		Total:        q.Total,
		Status:       InvoiceStatusDraft,
		Notes:        q.Notes,
		QuoteID:      &q.ID,
		CreatedBy:    createdBy,
	}

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, inv)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		invoiceID = id

		for _, ql := range q.Lines {
			line := InvoiceLine{
				InvoiceID:       invoiceID,
				Description:     ql.Description,
				Quantity:        ql.Quantity,
				UnitPrice:       ql.UnitPrice,
				LineTotal:       ql.LineTotal,
				InventoryItemID: ql.InventoryItemID,
				LineOrder:       ql.LineOrder,
			}
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("copy quote line: %w", err)
			}
		}

		return repo.LinkQuote(ctx, q.ID, invoiceID)
	})
	if err != nil {
		return nil, err
	}

	s.bumpStats(ctx)
	return s.repo.Get(ctx, invoiceID)
}

// Clone duplicates an invoice as a fresh DRAFT: new number, issue date now,
// due date net-30 from now, payment timestamp cleared.
func (s *Service) Clone(ctx context.Context, id int64, createdBy string) (*Invoice, error) {
	src, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	number, err := s.repo.GenerateNumber(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}

	issued := s.now()
	clone := *src
	clone.ID = 0
	clone.Number = number
	clone.IssueDate = issued
	clone.DueDate = issued.AddDate(0, 0, paymentTermDays)
	clone.PaidAt = nil
	clone.Status = InvoiceStatusDraft
	clone.QuoteID = nil
	clone.CreatedBy = createdBy

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		cloneID, err := repo.Create(ctx, clone)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		invoiceID = cloneID

		for _, l := range src.Lines {
			line := l
			line.ID = 0
			line.InvoiceID = invoiceID
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("copy invoice line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpStats(ctx)
	return s.repo.Get(ctx, invoiceID)
}

// Update edits a DRAFT invoice, recomputing totals from the effective inputs.
func (s *Service) Update(ctx context.Context, id int64, req UpdateInvoiceRequest) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if existing.Status != InvoiceStatusDraft {
		return nil, ErrNotEditable
	}

	laborHours := existing.LaborHours
	if req.LaborHours != nil {
		laborHours = *req.LaborHours
	}
	hourlyRate := existing.HourlyRate
	if req.HourlyRate != nil {
		hourlyRate = *req.HourlyRate
	}
	vatRate := existing.VATRate
	if req.VATRate != nil {
		vatRate = *req.VATRate
	}

	var inputs []pricing.LineInput
	var linesToInsert []InvoiceLine
	if req.Lines != nil {
		inputs = lineInputs(*req.Lines)
		for i, lineReq := range *req.Lines {
			linesToInsert = append(linesToInsert, buildLine(id, lineReq, i))
		}
	} else {
		for _, line := range existing.Lines {
			inputs = append(inputs, pricing.LineInput{Quantity: line.Quantity, UnitPrice: line.UnitPrice})
		}
	}
	totals := pricing.Calculate(inputs, laborHours, hourlyRate, vatRate)

	updates := map[string]interface{}{
		"labor_hours": laborHours,
		"hourly_rate": hourlyRate,
		"subtotal":    totals.Subtotal,
		"vat_rate":    vatRate,
		"vat_amount":  totals.VATAmount,
		"total":       totals.Total,
	}
	if req.CustomerID != nil {
		updates["customer_id"] = *req.CustomerID
	}
	if req.CustomerName != nil {
		updates["customer_name"] = *req.CustomerName
	}
	if req.IssueDate != nil {
		updates["issue_date"] = *req.IssueDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, id, updates); err != nil {
			return err
		}
		if req.Lines != nil {
			if err := repo.DeleteLines(ctx, id); err != nil {
				return err
			}
			for _, line := range linesToInsert {
				if _, err := repo.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	s.bumpStats(ctx)
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteLines(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.bumpStats(ctx)
	return nil
}

func (s *Service) Send(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusSent)
}

// MarkPaid stamps the payment time; it is the only transition with a side
// effect on the record beyond the status itself.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusPaid)
}

// RevertToSent undoes a payment recorded in error and clears paid_at.
func (s *Service) RevertToSent(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusSent)
}

func (s *Service) Cancel(ctx context.Context, id int64) (*Invoice, error) {
	return s.transition(ctx, id, InvoiceStatusCancelled)
}

func (s *Service) transition(ctx context.Context, id int64, target InvoiceStatus) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if !existing.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, target)
	}

	var paidAt *time.Time
	if target == InvoiceStatusPaid {
		now := s.now()
		paidAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, target, paidAt); err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	s.bumpStats(ctx)
	return s.repo.Get(ctx, id)
}

// MarkOverdue flips SENT invoices whose due date has passed to OVERDUE and
// returns the affected ids. Pull-based: the worker runs it nightly and the
// handler exposes it for on-demand runs.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}

	var flipped []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		due, err := repo.ListSentDueBefore(ctx, asOf)
		if err != nil {
			return err
		}
		for _, inv := range due {
			if err := repo.UpdateStatus(ctx, inv.ID, InvoiceStatusOverdue, nil); err != nil {
				return err
			}
			flipped = append(flipped, inv.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	if len(flipped) > 0 {
		s.bumpStats(ctx)
	}
	return flipped, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Stats(ctx context.Context) (InvoiceStats, error) {
	var out InvoiceStats
	err := s.stats.Fetch(ctx, "invoices", &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Stats(ctx)
	})
	return out, err
}

func (s *Service) bumpStats(ctx context.Context) {
	_ = s.stats.Bump(ctx, "invoices")
}

func lineInputs(lines []CreateLineRequest) []pricing.LineInput {
	inputs := make([]pricing.LineInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, pricing.LineInput{Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return inputs
}

func buildLine(invoiceID int64, req CreateLineRequest, index int) InvoiceLine {
	line := InvoiceLine{
		InvoiceID:       invoiceID,
		Description:     req.Description,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		LineTotal:       pricing.LineTotal(req.Quantity, req.UnitPrice),
		InventoryItemID: req.InventoryItemID,
		LineOrder:       req.LineOrder,
	}
	if line.LineOrder == 0 {
		line.LineOrder = index + 1
	}
	return line
}
