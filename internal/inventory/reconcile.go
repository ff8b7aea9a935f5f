package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Reconcile records one movement and updates the running balance through the
// caller's transaction. The restock receiving path calls this per line so
// that movements commit or roll back with the rest of the delivery event.
func Reconcile(ctx context.Context, tx TxRepository, input ReconcileInput) (Movement, error) {
	if input.LocationID == 0 || input.VariantID == 0 {
		return Movement{}, ErrInvalidLocation
	}
	if input.Qty == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if input.SourceType == "" || input.SourceID == uuid.Nil {
		return Movement{}, ErrMissingSource
	}

	balance, err := tx.GetBalanceForUpdate(ctx, input.LocationID, input.VariantID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Movement{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = LocationBalance{LocationID: input.LocationID, VariantID: input.VariantID}
	}

	newOnHand := balance.OnHand + input.Qty
	if newOnHand < 0 {
		return Movement{}, ErrNegativeStock
	}

	movement := Movement{
		SourceType: input.SourceType,
		SourceID:   input.SourceID,
		LocationID: input.LocationID,
		VariantID:  input.VariantID,
		Note:       input.Note,
	}
	if input.Qty > 0 {
		movement.QtyIn = input.Qty
	} else {
		movement.QtyOut = -input.Qty
	}

	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id

	balance.OnHand = newOnHand
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return Movement{}, err
	}
	return movement, nil
}
