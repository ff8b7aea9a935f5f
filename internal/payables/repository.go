package payables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/ledger"
	"github.com/gasline-erp/gasline-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for payables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Ledger returns a ledger
// writer bound to the same transaction so the payable insert and its entry
// commit together.
type TxRepository interface {
	InsertPayable(ctx context.Context, payable SupplierPayable) (int64, error)
	GetPayableForUpdate(ctx context.Context, id int64) (SupplierPayable, error)
	UpdatePayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status PayableStatus) error
	Ledger() ledger.TxRepository
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (tx *txRepo) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(tx.tx)
}

func (tx *txRepo) InsertPayable(ctx context.Context, payable SupplierPayable) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx,
		`INSERT INTO supplier_payables
		   (source_type, source_id, supplier_id, gross_amount, deductions_total, net_amount, paid_amount, status, ledger_entry_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		payable.SourceType, payable.SourceID, payable.SupplierID,
		payable.GrossAmount, payable.DeductionsTotal, payable.NetAmount, payable.PaidAmount,
		payable.Status, payable.LedgerEntryID, payable.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

const payableColumns = `id, source_type, source_id, supplier_id, gross_amount, deductions_total, net_amount, paid_amount, status, ledger_entry_id, created_by, created_at, updated_at`

func scanPayable(row pgx.Row) (SupplierPayable, error) {
	var p SupplierPayable
	err := row.Scan(&p.ID, &p.SourceType, &p.SourceID, &p.SupplierID,
		&p.GrossAmount, &p.DeductionsTotal, &p.NetAmount, &p.PaidAmount,
		&p.Status, &p.LedgerEntryID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierPayable{}, ErrNotFound
		}
		return SupplierPayable{}, err
	}
	return p, nil
}

func (tx *txRepo) GetPayableForUpdate(ctx context.Context, id int64) (SupplierPayable, error) {
	row := tx.tx.QueryRow(ctx,
		`SELECT `+payableColumns+` FROM supplier_payables WHERE id = $1 FOR UPDATE`, id)
	return scanPayable(row)
}

func (tx *txRepo) UpdatePayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status PayableStatus) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE supplier_payables SET paid_amount = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		paidAmount, status, id)
	return err
}

// GetBySource returns the payable for a settlement source.
func (r *Repository) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (SupplierPayable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+payableColumns+` FROM supplier_payables WHERE source_type = $1 AND source_id = $2`,
		sourceType, sourceID)
	return scanPayable(row)
}

// GetPayable returns a payable by id.
func (r *Repository) GetPayable(ctx context.Context, id int64) (SupplierPayable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+payableColumns+` FROM supplier_payables WHERE id = $1`, id)
	return scanPayable(row)
}

// ListOpenBalances returns every payable with an unpaid balance, for aging.
func (r *Repository) ListOpenBalances(ctx context.Context) ([]SupplierPayable, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+payableColumns+` FROM supplier_payables WHERE status <> $1 ORDER BY created_at`,
		StatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payables []SupplierPayable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, p)
	}
	return payables, rows.Err()
}

// ListOutstanding returns payables that are not fully paid, oldest first.
func (r *Repository) ListOutstanding(ctx context.Context, limit int) ([]SupplierPayable, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+payableColumns+` FROM supplier_payables WHERE status <> $1 ORDER BY created_at LIMIT $2`,
		StatusPaid, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payables []SupplierPayable
	for rows.Next() {
		p, err := scanPayable(rows)
		if err != nil {
			return nil, err
		}
		payables = append(payables, p)
	}
	return payables, rows.Err()
}
