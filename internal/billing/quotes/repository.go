package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-bms/atlas/internal/platform/db"
)

// ErrNotFound indicates the quote does not exist.
var ErrNotFound = errors.New("quotes: not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error)
	ListSentExpiring(ctx context.Context, asOf time.Time) ([]Quote, error)
	Create(ctx context.Context, q Quote) (int64, error)
	InsertLine(ctx context.Context, line QuoteLine) (int64, error)
	DeleteLines(ctx context.Context, quoteID int64) error
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error
	Delete(ctx context.Context, id int64) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
	Stats(ctx context.Context) (QuoteStats, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, number, customer_id, customer_name, labor_hours, hourly_rate,
	subtotal, vat_rate, vat_amount, total, status, valid_until, notes,
	work_order_id, invoice_id, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Quote, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM quotes WHERE id = $1`, quoteColumns), id)
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	lines, err := r.listLines(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *repository) List(ctx context.Context, req ListQuotesRequest) ([]Quote, int, error) {
	where := "WHERE TRUE"
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *req.Status)
		argPos++
	}
	if req.Search != "" {
		where += fmt.Sprintf(" AND (number ILIKE $%d OR customer_name ILIKE $%d)", argPos, argPos)
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM quotes %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

// ListSentExpiring returns SENT quotes whose valid_until has passed.
func (r *repository) ListSentExpiring(ctx context.Context, asOf time.Time) ([]Quote, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM quotes WHERE status = $1 AND valid_until IS NOT NULL AND valid_until < $2 ORDER BY id`,
		quoteColumns), QuoteStatusSent, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotes (number, customer_id, customer_name, labor_hours, hourly_rate,
			subtotal, vat_rate, vat_amount, total, status, valid_until, notes, created_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id`,
		q.Number, q.CustomerID, q.CustomerName, q.LaborHours, q.HourlyRate,
		q.Subtotal, q.VATRate, q.VATAmount, q.Total, q.Status,
		nullDate(q.ValidUntil), nullText(q.Notes), q.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertLine(ctx context.Context, line QuoteLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quote_lines (quote_id, description, quantity, unit_price, line_total,
			inventory_item_id, line_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		line.QuoteID, line.Description, line.Quantity, line.UnitPrice, line.LineTotal,
		nullInt(line.InventoryItemID), line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, quoteID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_lines WHERE quote_id = $1`, quoteID)
	return err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE quotes SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{
		"customer_id", "customer_name", "labor_hours", "hourly_rate",
		"subtotal", "vat_rate", "vat_amount", "total", "valid_until", "notes",
		"work_order_id",
	} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status QuoteStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GenerateNumber allocates the next Q-<YEAR>-<NNN> number from an atomic
// per-year sequence row.
func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	var seq int64
	year := date.Format("2006")
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`, "QUOTE", year).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Q-%s-%03d", year, seq), nil
}

func (r *repository) Stats(ctx context.Context) (QuoteStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM quotes GROUP BY status`)
	if err != nil {
		return QuoteStats{}, err
	}
	defer rows.Close()

	stats := QuoteStats{ByStatus: make(map[QuoteStatus]StatusBucket)}
	for rows.Next() {
		var status QuoteStatus
		var bucket StatusBucket
		if err := rows.Scan(&status, &bucket.Count, &bucket.Total); err != nil {
			return QuoteStats{}, err
		}
		stats.ByStatus[status] = bucket
		stats.Count += bucket.Count
		stats.TotalValue += bucket.Total
	}
	return stats, rows.Err()
}

func (r *repository) listLines(ctx context.Context, quoteID int64) ([]QuoteLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, quote_id, description, quantity, unit_price, line_total, inventory_item_id, line_order
		FROM quote_lines WHERE quote_id = $1 ORDER BY line_order, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []QuoteLine
	for rows.Next() {
		var line QuoteLine
		var invItem pgtype.Int8
		if err := rows.Scan(&line.ID, &line.QuoteID, &line.Description, &line.Quantity,
			&line.UnitPrice, &line.LineTotal, &invItem, &line.LineOrder); err != nil {
			return nil, err
		}
		if invItem.Valid {
			v := invItem.Int64
			line.InventoryItemID = &v
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var validUntil pgtype.Date
	var notes pgtype.Text
	var workOrderID, invoiceID pgtype.Int8

	err := row.Scan(&q.ID, &q.Number, &q.CustomerID, &q.CustomerName, &q.LaborHours,
		&q.HourlyRate, &q.Subtotal, &q.VATRate, &q.VATAmount, &q.Total, &q.Status,
		&validUntil, &notes, &workOrderID, &invoiceID, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if validUntil.Valid {
		v := validUntil.Time
		q.ValidUntil = &v
	}
	if notes.Valid {
		v := notes.String
		q.Notes = &v
	}
	if workOrderID.Valid {
		v := workOrderID.Int64
		q.WorkOrderID = &v
	}
	if invoiceID.Valid {
		v := invoiceID.Int64
		q.InvoiceID = &v
	}
	return &q, nil
}

func nullDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func nullText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func nullInt(i *int64) pgtype.Int8 {
	if i == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *i, Valid: true}
}
