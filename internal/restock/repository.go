package restock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/inventory"
	"github.com/gasline-erp/gasline-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for restock requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Inventory returns a stock
// writer bound to the same transaction so movements commit with the delivery
// event that caused them.
type TxRepository interface {
	InsertRequest(ctx context.Context, req RestockRequest) (int64, error)
	InsertItem(ctx context.Context, item RequestItem) (int64, error)
	GetRequestForUpdate(ctx context.Context, id int64) (RestockRequest, []RequestItem, error)
	SetStatus(ctx context.Context, id int64, status Status, at time.Time) error
	SetApproval(ctx context.Context, id int64, approvedBy int64, at time.Time) error
	ApproveItem(ctx context.Context, itemID int64, approvedQty int64, lineTotal decimal.Decimal) error
	UpdateItemReceipt(ctx context.Context, itemID int64, receivedQty, damagedQty int64, unitCost, lineTotal decimal.Decimal) error
	SetTotals(ctx context.Context, id int64, subtotal, total decimal.Decimal) error
	Inventory() inventory.TxRepository
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

const requestColumns = `id, number, status, location_id, supplier_id, requested_by, approved_by,
	submitted_at, approved_at, supplier_contacted_at, receiving_started_at, received_at, cancelled_at,
	subtotal, total_cost, notes, created_at, updated_at`

func scanRequest(row pgx.Row) (RestockRequest, error) {
	var req RestockRequest
	err := row.Scan(&req.ID, &req.Number, &req.Status, &req.LocationID, &req.SupplierID,
		&req.RequestedBy, &req.ApprovedBy,
		&req.SubmittedAt, &req.ApprovedAt, &req.SupplierContactedAt,
		&req.ReceivingStartedAt, &req.ReceivedAt, &req.CancelledAt,
		&req.Subtotal, &req.TotalCost, &req.Notes, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RestockRequest{}, ErrNotFound
		}
		return RestockRequest{}, err
	}
	return req, nil
}

const itemQuery = `SELECT i.id, i.request_id, i.variant_id, COALESCE(v.name, '') AS product_name,
	i.current_qty, i.reorder_level, i.requested_qty, i.approved_qty, i.received_qty, i.damaged_qty,
	i.unit_cost, i.line_total
	FROM restock_request_items i
	LEFT JOIN product_variants v ON v.id = i.variant_id
	WHERE i.request_id = $1
	ORDER BY i.id`

func scanItems(rows pgx.Rows) ([]RequestItem, error) {
	defer rows.Close()
	var items []RequestItem
	for rows.Next() {
		var item RequestItem
		if err := rows.Scan(&item.ID, &item.RequestID, &item.VariantID, &item.ProductName,
			&item.CurrentQty, &item.ReorderLevel, &item.RequestedQty, &item.ApprovedQty,
			&item.ReceivedQty, &item.DamagedQty, &item.UnitCost, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetRequest returns the request header and its items.
func (r *Repository) GetRequest(ctx context.Context, id int64) (RestockRequest, []RequestItem, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM restock_requests WHERE id = $1`, id))
	if err != nil {
		return RestockRequest{}, nil, err
	}
	rows, err := r.pool.Query(ctx, itemQuery, id)
	if err != nil {
		return RestockRequest{}, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return RestockRequest{}, nil, err
	}
	return req, items, nil
}

// ListFullyReceived returns requests that finished receiving before the
// cutoff. The settlement repair job re-runs settlement for them; settlement
// is idempotent so requests that already have a payable are a no-op.
func (r *Repository) ListFullyReceived(ctx context.Context, before time.Time, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM restock_requests
		 WHERE status = $1 AND received_at < $2
		 ORDER BY received_at
		 LIMIT $3`,
		StatusFullyReceived, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (tx *txRepo) Inventory() inventory.TxRepository {
	return inventory.NewTxRepository(tx.tx)
}

func (tx *txRepo) InsertRequest(ctx context.Context, req RestockRequest) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx,
		`INSERT INTO restock_requests (number, status, location_id, supplier_id, requested_by, subtotal, total_cost, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		req.Number, req.Status, req.LocationID, req.SupplierID, req.RequestedBy,
		req.Subtotal, req.TotalCost, req.Notes,
	).Scan(&id)
	return id, err
}

func (tx *txRepo) InsertItem(ctx context.Context, item RequestItem) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx,
		`INSERT INTO restock_request_items
		   (request_id, variant_id, current_qty, reorder_level, requested_qty, received_qty, damaged_qty, unit_cost, line_total)
		 VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)
		 RETURNING id`,
		item.RequestID, item.VariantID, item.CurrentQty, item.ReorderLevel,
		item.RequestedQty, item.UnitCost, item.LineTotal,
	).Scan(&id)
	return id, err
}

func (tx *txRepo) GetRequestForUpdate(ctx context.Context, id int64) (RestockRequest, []RequestItem, error) {
	req, err := scanRequest(tx.tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM restock_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return RestockRequest{}, nil, err
	}
	rows, err := tx.tx.Query(ctx, itemQuery, id)
	if err != nil {
		return RestockRequest{}, nil, err
	}
	items, err := scanItems(rows)
	if err != nil {
		return RestockRequest{}, nil, err
	}
	return req, items, nil
}

// SetStatus persists the new status and stamps the timestamp belonging to
// that stage.
func (tx *txRepo) SetStatus(ctx context.Context, id int64, status Status, at time.Time) error {
	var query string
	switch status {
	case StatusSubmitted:
		query = `UPDATE restock_requests SET status = $1, submitted_at = $2, updated_at = NOW() WHERE id = $3`
	case StatusApprovedPendingSupplier:
		query = `UPDATE restock_requests SET status = $1, approved_at = $2, updated_at = NOW() WHERE id = $3`
	case StatusSupplierContacted:
		query = `UPDATE restock_requests SET status = $1, supplier_contacted_at = $2, updated_at = NOW() WHERE id = $3`
	case StatusPartiallyReceived:
		query = `UPDATE restock_requests SET status = $1, receiving_started_at = COALESCE(receiving_started_at, $2), updated_at = NOW() WHERE id = $3`
	case StatusFullyReceived:
		query = `UPDATE restock_requests SET status = $1, receiving_started_at = COALESCE(receiving_started_at, $2), received_at = $2, updated_at = NOW() WHERE id = $3`
	case StatusCancelled:
		query = `UPDATE restock_requests SET status = $1, cancelled_at = $2, updated_at = NOW() WHERE id = $3`
	default:
		_, err := tx.tx.Exec(ctx,
			`UPDATE restock_requests SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
		return err
	}
	_, err := tx.tx.Exec(ctx, query, status, at, id)
	return err
}

func (tx *txRepo) SetApproval(ctx context.Context, id int64, approvedBy int64, at time.Time) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE restock_requests SET approved_by = $1, approved_at = $2, updated_at = NOW() WHERE id = $3`,
		approvedBy, at, id)
	return err
}

func (tx *txRepo) ApproveItem(ctx context.Context, itemID int64, approvedQty int64, lineTotal decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE restock_request_items SET approved_qty = $1, line_total = $2 WHERE id = $3`,
		approvedQty, lineTotal, itemID)
	return err
}

func (tx *txRepo) UpdateItemReceipt(ctx context.Context, itemID int64, receivedQty, damagedQty int64, unitCost, lineTotal decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE restock_request_items SET received_qty = $1, damaged_qty = $2, unit_cost = $3, line_total = $4 WHERE id = $5`,
		receivedQty, damagedQty, unitCost, lineTotal, itemID)
	return err
}

func (tx *txRepo) SetTotals(ctx context.Context, id int64, subtotal, total decimal.Decimal) error {
	_, err := tx.tx.Exec(ctx,
		`UPDATE restock_requests SET subtotal = $1, total_cost = $2, updated_at = NOW() WHERE id = $3`,
		subtotal, total, id)
	return err
}
