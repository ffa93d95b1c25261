package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atlas-bms/atlas/internal/billing/pricing"
	"github.com/atlas-bms/atlas/internal/billing/stats"
)

var (
	ErrInvalidTransition = errors.New("quotes: invalid status transition")
	ErrNotEditable       = errors.New("quotes: only DRAFT quotes can be edited")
)

type Service struct {
	repo  Repository
	stats *stats.Cache
}

func NewService(repo Repository, statsCache *stats.Cache) *Service {
	return &Service{repo: repo, stats: statsCache}
}

func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, createdBy string) (*Quote, error) {
	number, err := s.repo.GenerateNumber(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	totals := pricing.Calculate(lineInputs(req.Lines), req.LaborHours, req.HourlyRate, req.VATRate)

	quote := Quote{
		Number:       number,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		LaborHours:   req.LaborHours,
		HourlyRate:   req.HourlyRate,
		Subtotal:     totals.Subtotal,
		VATRate:      req.VATRate,
		VATAmount:    totals.VATAmount,
		Total:        totals.Total,
		Status:       QuoteStatusDraft,
		ValidUntil:   req.ValidUntil,
		Notes:        req.Notes,
		CreatedBy:    createdBy,
	}

	var quoteID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, quote)
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		quoteID = id

		for i, lineReq := range req.Lines {
			line := buildLine(quoteID, lineReq, i)
			if _, err := repo.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert quote line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bumpStats(ctx)
	return s.repo.Get(ctx, quoteID)
}

// Update edits a DRAFT quote. Totals are always recomputed from the effective
// lines, labor and VAT rate so stored amounts never drift from their inputs.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuoteRequest) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if existing.Status != QuoteStatusDraft {
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
	var linesToInsert []QuoteLine
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
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
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
		return nil, fmt.Errorf("update quote: %w", err)
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

func (s *Service) Send(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, QuoteStatusSent)
}

func (s *Service) Approve(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, QuoteStatusApproved)
}

func (s *Service) Reject(ctx context.Context, id int64) (*Quote, error) {
	return s.transition(ctx, id, QuoteStatusRejected)
}

func (s *Service) transition(ctx context.Context, id int64, target QuoteStatus) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if !existing.Status.CanTransition(target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, target)
	}
	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, fmt.Errorf("update quote status: %w", err)
	}
	s.bumpStats(ctx)
	return s.repo.Get(ctx, id)
}

// ExpireStale flips SENT quotes whose valid_until has passed to EXPIRED and
// returns the affected ids. The scan is pull-based; the worker runs it on a
// schedule and the handler exposes it for on-demand runs.
func (s *Service) ExpireStale(ctx context.Context, asOf time.Time) ([]int64, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}

	var expired []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		stale, err := repo.ListSentExpiring(ctx, asOf)
		if err != nil {
			return err
		}
		for _, q := range stale {
			if err := repo.UpdateStatus(ctx, q.ID, QuoteStatusExpired); err != nil {
				return err
			}
			expired = append(expired, q.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("expire quotes: %w", err)
	}
	if len(expired) > 0 {
		s.bumpStats(ctx)
	}
	return expired, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Quote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Stats(ctx context.Context) (QuoteStats, error) {
	var out QuoteStats
	err := s.stats.Fetch(ctx, "quotes", &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Stats(ctx)
	})
	return out, err
}

func (s *Service) bumpStats(ctx context.Context) {
	_ = s.stats.Bump(ctx, "quotes")
}

func lineInputs(lines []CreateLineRequest) []pricing.LineInput {
	inputs := make([]pricing.LineInput, 0, len(lines))
	for _, l := range lines {
		inputs = append(inputs, pricing.LineInput{Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return inputs
}

func buildLine(quoteID int64, req CreateLineRequest, index int) QuoteLine {
	line := QuoteLine{
		QuoteID:         quoteID,
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
