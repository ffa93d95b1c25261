package quotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	quotes     map[int64]*Quote
	lines      map[int64][]QuoteLine
	nextID     int64
	nextLineID int64
	seq        map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		quotes: make(map[int64]*Quote),
		lines:  make(map[int64][]QuoteLine),
		seq:    make(map[string]int64),
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (*Quote, error) {
	q, ok := f.quotes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *q
	copied.Lines = append([]QuoteLine(nil), f.lines[id]...)
	return &copied, nil
}

func (f *fakeRepo) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	var out []Quote
	for _, q := range f.quotes {
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		if req.Search != "" && !strings.Contains(q.CustomerName, req.Search) &&
			!strings.Contains(q.Number, req.Search) {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeRepo) ListSentExpiring(ctx context.Context, asOf time.Time) ([]Quote, error) {
	var out []Quote
	for _, q := range f.quotes {
		if q.Status == QuoteStatusSent && q.ValidUntil != nil && q.ValidUntil.Before(asOf) {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) Create(ctx context.Context, q Quote) (int64, error) {
	f.nextID++
	q.ID = f.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	f.quotes[q.ID] = &q
	return q.ID, nil
}

func (f *fakeRepo) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	f.nextLineID++
	line.ID = f.nextLineID
	f.lines[line.QuoteID] = append(f.lines[line.QuoteID], line)
	return line.ID, nil
}

func (f *fakeRepo) DeleteLines(ctx context.Context, quoteID int64) error {
	delete(f.lines, quoteID)
	return nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	q, ok := f.quotes[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["customer_name"]; ok {
		q.CustomerName = v.(string)
	}
	if v, ok := updates["labor_hours"]; ok {
		q.LaborHours = v.(float64)
	}
	if v, ok := updates["hourly_rate"]; ok {
		q.HourlyRate = v.(float64)
	}
	if v, ok := updates["subtotal"]; ok {
		q.Subtotal = v.(float64)
	}
	if v, ok := updates["vat_rate"]; ok {
		q.VATRate = v.(float64)
	}
	if v, ok := updates["vat_amount"]; ok {
		q.VATAmount = v.(float64)
	}
	if v, ok := updates["total"]; ok {
		q.Total = v.(float64)
	}
	if v, ok := updates["valid_until"]; ok {
		t := v.(time.Time)
		q.ValidUntil = &t
	}
	if v, ok := updates["notes"]; ok {
		s := v.(string)
		q.Notes = &s
	}
	return nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	q, ok := f.quotes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.quotes[id]; !ok {
		return ErrNotFound
	}
	delete(f.quotes, id)
	return nil
}

func (f *fakeRepo) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	year := date.Format("2006")
	f.seq[year]++
	return fmt.Sprintf("Q-%s-%03d", year, f.seq[year]), nil
}

func (f *fakeRepo) Stats(ctx context.Context) (QuoteStats, error) {
	stats := QuoteStats{ByStatus: make(map[QuoteStatus]StatusBucket)}
	for _, q := range f.quotes {
		bucket := stats.ByStatus[q.Status]
		bucket.Count++
		bucket.Total += q.Total
		stats.ByStatus[q.Status] = bucket
		stats.Count++
		stats.TotalValue += q.Total
	}
	return stats, nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, nil)
}

func createReq() CreateQuoteRequest {
	return CreateQuoteRequest{
		CustomerID:   7,
		CustomerName: "Jansen Bouw",
		LaborHours:   3,
		HourlyRate:   75,
		VATRate:      21,
		Lines: []CreateLineRequest{
			{Description: "Sanding disc", Quantity: 2, UnitPrice: 50},
		},
	}
}

func TestCreateComputesTotalsAndNumber(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	q, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)

	year := time.Now().Format("2006")
	require.Equal(t, fmt.Sprintf("Q-%s-001", year), q.Number)
	require.Equal(t, QuoteStatusDraft, q.Status)
	require.InDelta(t, 325.0, q.Subtotal, 1e-9)
	require.InDelta(t, 68.25, q.VATAmount, 1e-9)
	require.InDelta(t, 393.25, q.Total, 1e-9)
	require.Len(t, q.Lines, 1)
	require.InDelta(t, 100.0, q.Lines[0].LineTotal, 1e-9)
	require.Equal(t, 1, q.Lines[0].LineOrder)
}

func TestCreateNumbersAreSequential(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)

	year := time.Now().Format("2006")
	require.Equal(t, fmt.Sprintf("Q-%s-001", year), first.Number)
	require.Equal(t, fmt.Sprintf("Q-%s-002", year), second.Number)
}

func TestUpdateRecomputesTotals(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	q, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)

	newLines := []CreateLineRequest{
		{Description: "Paint", Quantity: 4, UnitPrice: 25},
	}
	updated, err := svc.Update(context.Background(), q.ID, UpdateQuoteRequest{Lines: &newLines})
	require.NoError(t, err)

	// 4*25 items + 3*75 labor = 325, unchanged VAT rate
	require.InDelta(t, 325.0, updated.Subtotal, 1e-9)
	require.InDelta(t, 393.25, updated.Total, 1e-9)
	require.Len(t, updated.Lines, 1)
	require.Equal(t, "Paint", updated.Lines[0].Description)
}

func TestUpdateRejectsNonDraft(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	q, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), q.ID)
	require.NoError(t, err)

	name := "Other"
	_, err = svc.Update(context.Background(), q.ID, UpdateQuoteRequest{CustomerName: &name})
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestStatusWorkflow(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	q, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)

	// DRAFT cannot be approved directly.
	_, err = svc.Approve(context.Background(), q.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	sent, err := svc.Send(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusSent, sent.Status)

	approved, err := svc.Approve(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusApproved, approved.Status)

	// APPROVED is terminal.
	_, err = svc.Reject(context.Background(), q.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectFromSent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	q, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), q.ID)
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteStatusRejected, rejected.Status)
}

func TestExpireStaleFlipsOnlySentPastValidUntil(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	now := time.Now()
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 14)

	mk := func(validUntil *time.Time, send bool) int64 {
		req := createReq()
		req.ValidUntil = validUntil
		q, err := svc.Create(context.Background(), req, "tester")
		require.NoError(t, err)
		if send {
			_, err = svc.Send(context.Background(), q.ID)
			require.NoError(t, err)
		}
		return q.ID
	}

	stale := mk(&past, true)
	fresh := mk(&future, true)
	draft := mk(&past, false)
	open := mk(nil, true)

	expired, err := svc.ExpireStale(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, []int64{stale}, expired)

	for id, want := range map[int64]QuoteStatus{
		stale: QuoteStatusExpired,
		fresh: QuoteStatusSent,
		draft: QuoteStatusDraft,
		open:  QuoteStatusSent,
	} {
		q, err := svc.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, want, q.Status, "quote %d", id)
	}
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	err := svc.Delete(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionMissingReturnsNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	_, err := svc.Send(context.Background(), 42)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestStatsGroupsByStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	q1, err := svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), createReq(), "tester")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), q1.ID)
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.Count)
	require.InDelta(t, 786.50, stats.TotalValue, 1e-9)
	require.EqualValues(t, 1, stats.ByStatus[QuoteStatusDraft].Count)
	require.EqualValues(t, 1, stats.ByStatus[QuoteStatusSent].Count)
}
