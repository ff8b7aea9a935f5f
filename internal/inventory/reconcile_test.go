package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	balances  map[string]LocationBalance
	movements []Movement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[string]LocationBalance)}
}

func key(locationID, variantID int64) string {
	return fmt.Sprintf("%d:%d", locationID, variantID)
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOnHand(ctx context.Context, locationID, variantID int64) (LocationBalance, error) {
	if bal, ok := r.balances[key(locationID, variantID)]; ok {
		return bal, nil
	}
	return LocationBalance{LocationID: locationID, VariantID: variantID}, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	out := make([]Movement, len(r.movements))
	copy(out, r.movements)
	return out, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement.ID, nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, locationID, variantID int64) (LocationBalance, error) {
	if bal, ok := tx.repo.balances[key(locationID, variantID)]; ok {
		return bal, nil
	}
	return LocationBalance{}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance LocationBalance) error {
	tx.repo.balances[key(balance.LocationID, balance.VariantID)] = balance
	return nil
}

func receiveInput(qty int64) ReconcileInput {
	return ReconcileInput{
		SourceType: "restock_delivery",
		SourceID:   uuid.New(),
		LocationID: 1,
		VariantID:  11,
		Qty:        qty,
	}
}

func TestReconcileInitialisesBalance(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	var movement Movement
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = Reconcile(ctx, tx, receiveInput(8))
		return err
	})
	require.NoError(t, err)
	require.Equal(t, int64(8), movement.QtyIn)
	require.Zero(t, movement.QtyOut)
	require.Equal(t, int64(8), repo.balances[key(1, 11)].OnHand)
}

func TestReconcileAccumulates(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	for _, qty := range []int64{5, 3, -2} {
		err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := Reconcile(ctx, tx, receiveInput(qty))
			return err
		})
		require.NoError(t, err)
	}
	require.Equal(t, int64(6), repo.balances[key(1, 11)].OnHand)
	require.Len(t, repo.movements, 3)
	require.Equal(t, int64(2), repo.movements[2].QtyOut)
}

func TestReconcileRejectsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := Reconcile(ctx, tx, receiveInput(-1))
		return err
	})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Empty(t, repo.movements)
}

func TestReconcileValidation(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	cases := []struct {
		name  string
		input ReconcileInput
		want  error
	}{
		{"zero qty", ReconcileInput{SourceType: "x", SourceID: uuid.New(), LocationID: 1, VariantID: 1}, ErrInvalidQuantity},
		{"no location", ReconcileInput{SourceType: "x", SourceID: uuid.New(), VariantID: 1, Qty: 1}, ErrInvalidLocation},
		{"no source", ReconcileInput{LocationID: 1, VariantID: 1, Qty: 1}, ErrMissingSource},
	}
	for _, tc := range cases {
		err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := Reconcile(ctx, tx, tc.input)
			return err
		})
		require.ErrorIs(t, err, tc.want, tc.name)
	}
}

func TestPostAdjustmentDeterministicSource(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	first, err := svc.PostAdjustment(ctx, AdjustmentInput{LocationID: 1, VariantID: 11, Qty: 5, Reference: "COUNT-1", ActorID: 3})
	require.NoError(t, err)

	second, err := svc.PostAdjustment(ctx, AdjustmentInput{LocationID: 1, VariantID: 11, Qty: -1, Reference: "COUNT-2", ActorID: 3})
	require.NoError(t, err)

	require.NotEqual(t, first.SourceID, second.SourceID)
	require.Equal(t, int64(4), repo.balances[key(1, 11)].OnHand)

	// The same reference derives the same source id.
	again, err := svc.PostAdjustment(ctx, AdjustmentInput{LocationID: 1, VariantID: 11, Qty: 2, Reference: "COUNT-1", ActorID: 3})
	require.NoError(t, err)
	require.Equal(t, first.SourceID, again.SourceID)
}
