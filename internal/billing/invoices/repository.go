package invoices

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

// ErrNotFound indicates the invoice does not exist.
var ErrNotFound = errors.New("invoices: not found")

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	ListSentDueBefore(ctx context.Context, asOf time.Time) ([]Invoice, error)
	Create(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	DeleteLines(ctx context.Context, invoiceID int64) error
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidAt *time.Time) error
	Delete(ctx context.Context, id int64) error
	// LinkQuote records the invoice back-reference on the source quote. It
	// writes the quotes table so the bidirectional link can be committed in
	// the same transaction as the invoice insert.
	LinkQuote(ctx context.Context, quoteID, invoiceID int64) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
	Stats(ctx context.Context) (InvoiceStats, error)
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

const invoiceColumns = `id, number, customer_id, customer_name, issue_date, due_date, paid_at,
	labor_hours, hourly_rate, subtotal, vat_rate, vat_amount, total, status, notes,
	quote_id, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns), id)
	inv, err := scanInvoice(row)
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
	inv.Lines = lines
	return inv, nil
}

func (r *repository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
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
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

// ListSentDueBefore returns SENT invoices whose due date has passed.
func (r *repository) ListSentDueBefore(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM invoices WHERE status = $1 AND due_date < $2 ORDER BY id`,
		invoiceColumns), InvoiceStatusSent, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoices (number, customer_id, customer_name, issue_date, due_date, paid_at,
			labor_hours, hourly_rate, subtotal, vat_rate, vat_amount, total, status, notes,
			quote_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		RETURNING id`,
		inv.Number, inv.CustomerID, inv.CustomerName, inv.IssueDate, inv.DueDate,
		nullTime(inv.PaidAt), inv.LaborHours, inv.HourlyRate, inv.Subtotal, inv.VATRate,
		inv.VATAmount, inv.Total, inv.Status, nullText(inv.Notes), nullInt(inv.QuoteID),
		inv.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, line_total,
			inventory_item_id, line_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		line.InvoiceID, line.Description, line.Quantity, line.UnitPrice, line.LineTotal,
		nullInt(line.InventoryItemID), line.LineOrder,
	).Scan(&id)
	return id, err
}

func (r *repository) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	query := "UPDATE invoices SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, col := range []string{
		"customer_id", "customer_name", "issue_date", "due_date",
		"labor_hours", "hourly_rate", "subtotal", "vat_rate", "vat_amount", "total",
		"notes",
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

func (r *repository) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus, paidAt *time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $1, paid_at = $2, updated_at = NOW() WHERE id = $3`,
		status, nullTime(paidAt), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// The IS NULL guard makes the first converter win: a concurrent convert that
// passed the service pre-check updates zero rows here and fails its
// transaction instead of silently stealing the back-reference.
func (r *repository) LinkQuote(ctx context.Context, quoteID, invoiceID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET invoice_id = $1, updated_at = NOW() WHERE id = $2 AND invoice_id IS NULL`,
		invoiceID, quoteID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoices: link quote %d: %w", quoteID, ErrQuoteAlreadyConverted)
	}
	return nil
}

// GenerateNumber allocates the next <YEAR>-<NNN> number from an atomic
// per-year sequence row. Invoices and quotes draw from separate sequences.
func (r *repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	var seq int64
	year := date.Format("2006")
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, period, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`, "INVOICE", year).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", year, seq), nil
}

func (r *repository) Stats(ctx context.Context) (InvoiceStats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM invoices GROUP BY status`)
	if err != nil {
		return InvoiceStats{}, err
	}
	defer rows.Close()

	stats := InvoiceStats{ByStatus: make(map[InvoiceStatus]StatusBucket)}
	for rows.Next() {
		var status InvoiceStatus
		var bucket StatusBucket
		if err := rows.Scan(&status, &bucket.Count, &bucket.Total); err != nil {
			return InvoiceStats{}, err
		}
		stats.ByStatus[status] = bucket
		stats.Count += bucket.Count
		stats.TotalValue += bucket.Total
		if status == InvoiceStatusSent || status == InvoiceStatusOverdue {
			stats.Outstanding += bucket.Total
		}
	}
	return stats, rows.Err()
}

func (r *repository) listLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, line_total, inventory_item_id, line_order
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_order, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		var invItem pgtype.Int8
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.Description, &line.Quantity,
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

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var paidAt pgtype.Timestamptz
	var notes pgtype.Text
	var quoteID pgtype.Int8

	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName,
		&inv.IssueDate, &inv.DueDate, &paidAt, &inv.LaborHours, &inv.HourlyRate,
		&inv.Subtotal, &inv.VATRate, &inv.VATAmount, &inv.Total, &inv.Status,
		&notes, &quoteID, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if paidAt.Valid {
		v := paidAt.Time
		inv.PaidAt = &v
	}
	if notes.Valid {
		v := notes.String
		inv.Notes = &v
	}
	if quoteID.Valid {
		v := quoteID.Int64
		inv.QuoteID = &v
	}
	return &inv, nil
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
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
