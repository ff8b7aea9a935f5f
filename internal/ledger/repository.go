package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for ledger entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional ledger writes. Other modules obtain one
// for their own transaction via NewTxRepository so a posting commits or rolls
// back together with the caller's writes.
type TxRepository interface {
	InsertEntry(ctx context.Context, in PostingInput) (int64, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
}

type txRepo struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction with ledger write operations.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{tx: tx}
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (tx *txRepo) InsertEntry(ctx context.Context, in PostingInput) (int64, error) {
	var id int64
	err := tx.tx.QueryRow(ctx,
		`INSERT INTO ledger_entries (entry_date, source_type, source_id, memo, created_by)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		in.Date, in.SourceType, in.SourceID, in.Memo, in.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrSourceConflict
		}
		return 0, err
	}
	return id, nil
}

func (tx *txRepo) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := tx.tx.Exec(ctx,
			`INSERT INTO ledger_lines (entry_id, account_id, debit, credit)
			 VALUES ($1, $2, $3, $4)`,
			entryID, line.AccountID, line.Debit, line.Credit,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetBySource returns the entry tagged with (sourceType, sourceID) and its lines.
func (r *Repository) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (Entry, error) {
	var entry Entry
	err := r.pool.QueryRow(ctx,
		`SELECT id, entry_date, source_type, source_id, memo, created_by, created_at
		 FROM ledger_entries
		 WHERE source_type = $1 AND source_id = $2`,
		sourceType, sourceID,
	).Scan(&entry.ID, &entry.EntryDate, &entry.SourceType, &entry.SourceID, &entry.Memo, &entry.CreatedBy, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	lines, err := r.getLines(ctx, entry.ID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// GetEntry returns an entry by primary key with its lines.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	var entry Entry
	err := r.pool.QueryRow(ctx,
		`SELECT id, entry_date, source_type, source_id, memo, created_by, created_at
		 FROM ledger_entries
		 WHERE id = $1`,
		id,
	).Scan(&entry.ID, &entry.EntryDate, &entry.SourceType, &entry.SourceID, &entry.Memo, &entry.CreatedBy, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	lines, err := r.getLines(ctx, entry.ID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *Repository) getLines(ctx context.Context, entryID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, entry_id, account_id, debit, credit, created_at
		 FROM ledger_lines
		 WHERE entry_id = $1
		 ORDER BY id`,
		entryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// IntegrityIssue reports an entry whose lines do not balance.
type IntegrityIssue struct {
	EntryID    int64
	SourceType string
	Debit      decimal.Decimal
	Credit     decimal.Decimal
	EntryDate  time.Time
}

// ListUnbalanced returns entries where debit and credit totals diverge. A
// non-empty result means data corruption; the integrity job reports it.
func (r *Repository) ListUnbalanced(ctx context.Context) ([]IntegrityIssue, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.source_type, e.entry_date,
		        COALESCE(SUM(l.debit), 0) AS debit,
		        COALESCE(SUM(l.credit), 0) AS credit
		 FROM ledger_entries e
		 LEFT JOIN ledger_lines l ON l.entry_id = e.id
		 GROUP BY e.id, e.source_type, e.entry_date
		 HAVING COALESCE(SUM(l.debit), 0) <> COALESCE(SUM(l.credit), 0)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []IntegrityIssue
	for rows.Next() {
		var issue IntegrityIssue
		if err := rows.Scan(&issue.EntryID, &issue.SourceType, &issue.EntryDate, &issue.Debit, &issue.Credit); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}
