package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gasline-erp/gasline-erp/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by Reconcile.
type TxRepository interface {
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	GetBalanceForUpdate(ctx context.Context, locationID, variantID int64) (LocationBalance, error)
	UpsertBalance(ctx context.Context, balance LocationBalance) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction with inventory write operations
// so other modules can reconcile stock inside their own unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (tx *txRepository) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx,
		`INSERT INTO inventory_movements (source_type, source_id, location_id, variant_id, qty_in, qty_out, note)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		movement.SourceType, movement.SourceID, movement.LocationID, movement.VariantID,
		movement.QtyIn, movement.QtyOut, movement.Note,
	).Scan(&id)
	return id, err
}

func (tx *txRepository) GetBalanceForUpdate(ctx context.Context, locationID, variantID int64) (LocationBalance, error) {
	var balance LocationBalance
	err := tx.tx.QueryRow(ctx,
		`SELECT location_id, variant_id, on_hand, updated_at
		 FROM location_balances
		 WHERE location_id = $1 AND variant_id = $2
		 FOR UPDATE`,
		locationID, variantID,
	).Scan(&balance.LocationID, &balance.VariantID, &balance.OnHand, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocationBalance{}, ErrBalanceNotFound
		}
		return LocationBalance{}, err
	}
	return balance, nil
}

func (tx *txRepository) UpsertBalance(ctx context.Context, balance LocationBalance) error {
	_, err := tx.tx.Exec(ctx,
		`INSERT INTO location_balances (location_id, variant_id, on_hand, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (location_id, variant_id)
		 DO UPDATE SET on_hand = EXCLUDED.on_hand, updated_at = NOW()`,
		balance.LocationID, balance.VariantID, balance.OnHand,
	)
	return err
}

// GetOnHand returns the current balance for a location and variant. Missing
// rows read as zero on hand.
func (r *Repository) GetOnHand(ctx context.Context, locationID, variantID int64) (LocationBalance, error) {
	var balance LocationBalance
	err := r.pool.QueryRow(ctx,
		`SELECT location_id, variant_id, on_hand, updated_at
		 FROM location_balances
		 WHERE location_id = $1 AND variant_id = $2`,
		locationID, variantID,
	).Scan(&balance.LocationID, &balance.VariantID, &balance.OnHand, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocationBalance{LocationID: locationID, VariantID: variantID}, nil
		}
		return LocationBalance{}, err
	}
	return balance, nil
}

// ListMovements returns movements matching the filter, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, source_type, source_id, location_id, variant_id, qty_in, qty_out, note, created_at
	          FROM inventory_movements WHERE 1=1`
	args := []any{}
	argNum := 1
	if filter.LocationID > 0 {
		query += ` AND location_id = $` + itoa(argNum)
		args = append(args, filter.LocationID)
		argNum++
	}
	if filter.VariantID > 0 {
		query += ` AND variant_id = $` + itoa(argNum)
		args = append(args, filter.VariantID)
		argNum++
	}
	if filter.SourceType != "" {
		query += ` AND source_type = $` + itoa(argNum)
		args = append(args, filter.SourceType)
		argNum++
	}
	query += ` ORDER BY id DESC LIMIT $` + itoa(argNum)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.SourceType, &m.SourceID, &m.LocationID, &m.VariantID, &m.QtyIn, &m.QtyOut, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// itoa converts int to string for dynamic query building.
func itoa(i int) string {
	return fmt.Sprintf("%d", i)
}
