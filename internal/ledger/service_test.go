package ledger

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	entries map[string]*Entry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string]*Entry)}
}

func (f *fakeRepo) Create(ctx context.Context, e Entry) error {
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	f.entries[e.ID] = &e
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*Entry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeRepo) List(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error) {
	var out []Entry
	for _, e := range f.entries {
		if req.Type != nil && e.Type != *req.Type {
			continue
		}
		if req.Category != "" && e.Category != req.Category {
			continue
		}
		if req.Search != "" && !strings.Contains(e.Description, req.Search) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, len(out), nil
}

func (f *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return ErrNotFound
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeRepo) Summary(ctx context.Context) (Summary, error) {
	var sum Summary
	for _, e := range f.entries {
		sum.Count++
		switch e.Type {
		case EntryTypeIncome:
			sum.Income += e.Amount
		case EntryTypeExpense:
			sum.Expense += e.Amount
		}
	}
	sum.Net = sum.Income - sum.Expense
	return sum, nil
}

func entryReq(t EntryType, amount float64) CreateEntryRequest {
	return CreateEntryRequest{
		Date:        time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "Van lease",
		Category:    "transport",
		Type:        t,
		Amount:      amount,
	}
}

func TestRecordAssignsUUID(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	first, err := svc.Record(context.Background(), entryReq(EntryTypeExpense, 450))
	require.NoError(t, err)
	second, err := svc.Record(context.Background(), entryReq(EntryTypeExpense, 450))
	require.NoError(t, err)

	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestRecordRejectsUnknownType(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.Record(context.Background(), entryReq("TRANSFER", 10))
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestSummaryMath(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.Record(context.Background(), entryReq(EntryTypeIncome, 1200))
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), entryReq(EntryTypeIncome, 300))
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), entryReq(EntryTypeExpense, 450))
	require.NoError(t, err)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1500.0, sum.Income, 1e-9)
	require.InDelta(t, 450.0, sum.Expense, 1e-9)
	require.InDelta(t, 1050.0, sum.Net, 1e-9)
	require.EqualValues(t, 3, sum.Count)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	err := svc.Delete(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListFiltersByType(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)

	_, err := svc.Record(context.Background(), entryReq(EntryTypeIncome, 1200))
	require.NoError(t, err)
	_, err = svc.Record(context.Background(), entryReq(EntryTypeExpense, 450))
	require.NoError(t, err)

	income := EntryTypeIncome
	entries, total, err := svc.List(context.Background(), ListEntriesRequest{Type: &income, Limit: 50})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, entries, 1)
	require.Equal(t, EntryTypeIncome, entries[0].Type)
}
