package payables

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayableStatus enumerates payment progress on a payable.
type PayableStatus string

const (
	StatusUnpaid        PayableStatus = "unpaid"
	StatusPartiallyPaid PayableStatus = "partially_paid"
	StatusPaid          PayableStatus = "paid"
)

// SupplierPayable is the financial obligation created by settling one source.
// At most one row exists per (SourceType, SourceID); the storage layer
// enforces that uniqueness.
type SupplierPayable struct {
	ID              int64
	SourceType      string
	SourceID        uuid.UUID
	SupplierID      int64
	GrossAmount     decimal.Decimal
	DeductionsTotal decimal.Decimal
	NetAmount       decimal.Decimal
	PaidAmount      decimal.Decimal
	Status          PayableStatus
	LedgerEntryID   int64
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AgingBucket summarises open balances by age since creation.
type AgingBucket struct {
	Current   decimal.Decimal
	Bucket30  decimal.Decimal
	Bucket60  decimal.Decimal
	Bucket90  decimal.Decimal
	Bucket120 decimal.Decimal
}

// Total sums all buckets.
func (b AgingBucket) Total() decimal.Decimal {
	return b.Current.Add(b.Bucket30).Add(b.Bucket60).Add(b.Bucket90).Add(b.Bucket120)
}

var (
	// ErrNotFound indicates the payable does not exist.
	ErrNotFound = errors.New("payables: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("payables: invalid input")
	// ErrDuplicate is the internal signal for a unique-constraint breach on
	// (source_type, source_id). EnsurePayable converts it into the same
	// outcome as finding an existing record; callers never see it.
	ErrDuplicate = errors.New("payables: payable already exists for source")
)
