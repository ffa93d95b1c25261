package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-bms/atlas/internal/billing/stats"
)

var ErrInvalidType = errors.New("ledger: invalid entry type")

type Service struct {
	repo  Repository
	stats *stats.Cache
	now   func() time.Time
}

func NewService(repo Repository, statsCache *stats.Cache) *Service {
	return &Service{repo: repo, stats: statsCache, now: time.Now}
}

// Record appends a ledger entry. Entry ids are UUIDs so rapid successive
// writes can never collide.
func (s *Service) Record(ctx context.Context, req CreateEntryRequest) (*Entry, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, req.Type)
	}

	entry := Entry{
		ID:          uuid.NewString(),
		Date:        req.Date,
		Description: req.Description,
		Category:    req.Category,
		Type:        req.Type,
		Amount:      req.Amount,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("record ledger entry: %w", err)
	}
	_ = s.stats.Bump(ctx, "ledger")
	return s.repo.Get(ctx, entry.ID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.stats.Bump(ctx, "ledger")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var out Summary
	err := s.stats.Fetch(ctx, "ledger", &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Summary(ctx)
	})
	return out, err
}
