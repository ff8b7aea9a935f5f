package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is a balanced double-entry posting tagged with the settlement source
// that produced it.
type Entry struct {
	ID         int64
	EntryDate  time.Time
	SourceType string
	SourceID   uuid.UUID
	Memo       string
	CreatedBy  int64
	CreatedAt  time.Time
	Lines      []Line
}

// Line carries the debit or credit amount for one chart-of-accounts account.
// By convention exactly one side is non-zero per line.
type Line struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	CreatedAt time.Time
}

// Balanced reports whether debits equal credits across the entry's lines.
func (e Entry) Balanced() bool {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit.Equal(credit)
}

var (
	// ErrImbalance occurs when debits and credits do not sum equal. It
	// indicates a bug in the caller's line construction, never user input,
	// and nothing is written when it is returned.
	ErrImbalance = errors.New("ledger: entry debits and credits are not equal")
	// ErrTooFewLines occurs when an entry has fewer than two lines.
	ErrTooFewLines = errors.New("ledger: entry requires at least two lines")
	// ErrNotFound indicates the entry does not exist.
	ErrNotFound = errors.New("ledger: entry not found")
	// ErrSourceConflict indicates an entry already exists for the source.
	ErrSourceConflict = errors.New("ledger: source already posted")
)
