package restock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the restock request lifecycle.
type Status string

const (
	StatusDraft                   Status = "draft"
	StatusSubmitted               Status = "submitted"
	StatusApprovedPendingSupplier Status = "approved_pending_supplier"
	StatusSupplierContacted       Status = "supplier_contacted_waiting_delivery"
	StatusPartiallyReceived       Status = "partially_received"
	StatusFullyReceived           Status = "fully_received"
	StatusCancelled               Status = "cancelled"
)

// RestockRequest is the header of one supplier restock. Totals are always
// recomputed from the items, never written directly.
type RestockRequest struct {
	ID                  int64
	Number              string
	Status              Status
	LocationID          int64
	SupplierID          int64
	RequestedBy         int64
	ApprovedBy          *int64
	SubmittedAt         *time.Time
	ApprovedAt          *time.Time
	SupplierContactedAt *time.Time
	ReceivingStartedAt  *time.Time
	ReceivedAt          *time.Time
	CancelledAt         *time.Time
	Subtotal            decimal.Decimal
	TotalCost           decimal.Decimal
	Notes               string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RequestItem is one catalog variant on a request. ReceivedQty and DamagedQty
// accumulate across delivery events; ReceivedQty never exceeds ApprovedQty.
type RequestItem struct {
	ID           int64
	RequestID    int64
	VariantID    int64
	ProductName  string
	CurrentQty   int64
	ReorderLevel int64
	RequestedQty int64
	ApprovedQty  *int64
	ReceivedQty  int64
	DamagedQty   int64
	UnitCost     decimal.Decimal
	LineTotal    decimal.Decimal
}

// EffectiveQty is the quantity the line totals are priced against: approved
// when set, requested before approval.
func (i RequestItem) EffectiveQty() int64 {
	if i.ApprovedQty != nil {
		return *i.ApprovedQty
	}
	return i.RequestedQty
}

// SourceType tags for payables, ledger entries and inventory movements.
const (
	SourceTypeRequest  = "restock_request"
	SourceTypeDelivery = "restock_delivery"
)

var (
	// ErrInvalidTransition occurs when an operation is attempted against a
	// request whose status does not permit it. It is returned before any
	// mutation.
	ErrInvalidTransition = errors.New("restock: invalid status transition")
	// ErrOverReceipt occurs when a delivery increment would push a line's
	// cumulative received quantity past its approved quantity. The whole
	// delivery is rejected and nothing changes.
	ErrOverReceipt = errors.New("restock: received quantity would exceed approved quantity")
	// ErrNotFound indicates the request does not exist.
	ErrNotFound = errors.New("restock: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("restock: invalid input")
)
