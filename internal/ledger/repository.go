package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the entry does not exist.
var ErrNotFound = errors.New("ledger: not found")

type Repository interface {
	Create(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) (Summary, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, e Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ledger_entries (id, entry_date, description, category, entry_type, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		e.ID, e.Date, e.Description, e.Category, e.Type, e.Amount)
	return err
}

func (r *repository) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, `
		SELECT id, entry_date, description, category, entry_type, amount, created_at, updated_at
		FROM ledger_entries WHERE id = $1`, id,
	).Scan(&e.ID, &e.Date, &e.Description, &e.Category, &e.Type, &e.Amount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) List(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1

	if req.Type != nil {
		where += fmt.Sprintf(" AND entry_type = $%d", argPos)
		args = append(args, *req.Type)
		argPos++
	}
	if req.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", argPos)
		args = append(args, req.Category)
		argPos++
	}
	if req.Search != "" {
		where += fmt.Sprintf(" AND description ILIKE $%d", argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, entry_date, description, category, entry_type, amount, created_at, updated_at
		FROM ledger_entries %s ORDER BY entry_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Date, &e.Description, &e.Category, &e.Type, &e.Amount,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Summary(ctx context.Context) (Summary, error) {
	rows, err := r.pool.Query(ctx, `SELECT entry_type, COUNT(*), COALESCE(SUM(amount), 0) FROM ledger_entries GROUP BY entry_type`)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var t EntryType
		var count int64
		var amount float64
		if err := rows.Scan(&t, &count, &amount); err != nil {
			return Summary{}, err
		}
		sum.Count += count
		switch t {
		case EntryTypeIncome:
			sum.Income += amount
		case EntryTypeExpense:
			sum.Expense += amount
		}
	}
	sum.Net = sum.Income - sum.Expense
	return sum, rows.Err()
}
