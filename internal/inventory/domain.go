package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Movement is an append-only stock movement at a location. Corrections are
// recorded as new offsetting movements, never as updates to existing rows.
type Movement struct {
	ID         int64
	SourceType string
	SourceID   uuid.UUID
	LocationID int64
	VariantID  int64
	QtyIn      int64
	QtyOut     int64
	Note       string
	CreatedAt  time.Time
}

// LocationBalance is the running on-hand quantity per location and variant,
// maintained in the same transaction as each movement insert.
type LocationBalance struct {
	LocationID int64
	VariantID  int64
	OnHand     int64
	UpdatedAt  time.Time
}

// ReconcileInput describes one quantity change to record. A positive Qty
// receives stock, a negative Qty adjusts it out.
type ReconcileInput struct {
	SourceType string
	SourceID   uuid.UUID
	LocationID int64
	VariantID  int64
	Qty        int64
	Note       string
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	LocationID int64
	VariantID  int64
	SourceType string
	Limit      int
}

var (
	// ErrInvalidQuantity indicates a zero quantity change.
	ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")
	// ErrInvalidLocation indicates missing location or variant.
	ErrInvalidLocation = errors.New("inventory: location and variant required")
	// ErrMissingSource indicates the movement has no source reference.
	ErrMissingSource = errors.New("inventory: source reference required")
	// ErrNegativeStock occurs when a change would drive on-hand below zero.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrBalanceNotFound indicates a missing balance row.
	ErrBalanceNotFound = errors.New("inventory: balance not found")
)
