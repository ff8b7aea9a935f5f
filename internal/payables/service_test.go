package payables

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gasline-erp/gasline-erp/internal/ledger"
)

type memoryRepo struct {
	payables map[int64]SupplierPayable
	bySource map[string]int64
	entries  []ledger.PostingInput
	lines    map[int64][]ledger.LineInput
	nextID   int64

	// forceDuplicate makes the next insert fail the way a unique
	// violation on (source_type, source_id) does, simulating a race
	// where another caller won the insert.
	forceDuplicate bool
	raceWinner     *SupplierPayable
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		payables: make(map[int64]SupplierPayable),
		bySource: make(map[string]int64),
		lines:    make(map[int64][]ledger.LineInput),
	}
}

func sourceKey(sourceType string, sourceID uuid.UUID) string {
	return sourceType + ":" + sourceID.String()
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (SupplierPayable, error) {
	if id, ok := r.bySource[sourceKey(sourceType, sourceID)]; ok {
		return r.payables[id], nil
	}
	return SupplierPayable{}, ErrNotFound
}

func (r *memoryRepo) GetPayable(ctx context.Context, id int64) (SupplierPayable, error) {
	if p, ok := r.payables[id]; ok {
		return p, nil
	}
	return SupplierPayable{}, ErrNotFound
}

func (r *memoryRepo) ListOutstanding(ctx context.Context, limit int) ([]SupplierPayable, error) {
	var out []SupplierPayable
	for _, p := range r.payables {
		if p.Status != StatusPaid {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListOpenBalances(ctx context.Context) ([]SupplierPayable, error) {
	return r.ListOutstanding(ctx, 0)
}

func (tx *memoryTx) InsertPayable(ctx context.Context, payable SupplierPayable) (int64, error) {
	if tx.repo.forceDuplicate {
		tx.repo.forceDuplicate = false
		if tx.repo.raceWinner != nil {
			winner := *tx.repo.raceWinner
			tx.repo.nextID++
			winner.ID = tx.repo.nextID
			tx.repo.payables[winner.ID] = winner
			tx.repo.bySource[sourceKey(winner.SourceType, winner.SourceID)] = winner.ID
		}
		return 0, ErrDuplicate
	}
	key := sourceKey(payable.SourceType, payable.SourceID)
	if _, exists := tx.repo.bySource[key]; exists {
		return 0, ErrDuplicate
	}
	tx.repo.nextID++
	payable.ID = tx.repo.nextID
	payable.CreatedAt = time.Now()
	tx.repo.payables[payable.ID] = payable
	tx.repo.bySource[key] = payable.ID
	return payable.ID, nil
}

func (tx *memoryTx) GetPayableForUpdate(ctx context.Context, id int64) (SupplierPayable, error) {
	return tx.repo.GetPayable(ctx, id)
}

func (tx *memoryTx) UpdatePayment(ctx context.Context, id int64, paidAmount decimal.Decimal, status PayableStatus) error {
	p := tx.repo.payables[id]
	p.PaidAmount = paidAmount
	p.Status = status
	tx.repo.payables[id] = p
	return nil
}

func (tx *memoryTx) Ledger() ledger.TxRepository {
	return &memoryLedgerTx{repo: tx.repo}
}

type memoryLedgerTx struct {
	repo *memoryRepo
}

func (tx *memoryLedgerTx) InsertEntry(ctx context.Context, in ledger.PostingInput) (int64, error) {
	tx.repo.entries = append(tx.repo.entries, in)
	return int64(len(tx.repo.entries)), nil
}

func (tx *memoryLedgerTx) InsertLines(ctx context.Context, entryID int64, lines []ledger.LineInput) error {
	tx.repo.lines[entryID] = lines
	return nil
}

func testAccounts() Accounts {
	return Accounts{Inventory: 1400, Payable: 2100, Deductions: 2150}
}

func testInput(sourceID uuid.UUID) EnsurePayableInput {
	return EnsurePayableInput{
		SourceType: "restock_request",
		SourceID:   sourceID,
		SupplierID: 7,
		Requester:  4,
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Memo:       "Settlement for RST-20260301-ABCD1234",
		Lines: []CostLine{
			{VariantID: 11, ReceivedQty: 10, UnitCost: decimal.NewFromInt(20)},
		},
	}
}

func TestEnsurePayableCreates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	ctx := context.Background()

	payable, outcome, err := svc.EnsurePayable(ctx, testInput(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	require.True(t, payable.GrossAmount.Equal(decimal.NewFromInt(200)))
	require.True(t, payable.NetAmount.Equal(decimal.NewFromInt(200)))
	require.Equal(t, StatusUnpaid, payable.Status)
	require.NotZero(t, payable.LedgerEntryID)
}

func TestEnsurePayablePostsBalancedEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	ctx := context.Background()

	input := testInput(uuid.New())
	input.Deductions = []Deduction{{Reason: "damage", Amount: decimal.NewFromInt(40)}}

	_, _, err := svc.EnsurePayable(ctx, input)
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	lines := repo.lines[1]
	require.Len(t, lines, 3)

	debit := decimal.Zero
	credit := decimal.Zero
	byAccount := make(map[int64]ledger.LineInput)
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
		byAccount[line.AccountID] = line
	}
	require.True(t, debit.Equal(credit), "entry must balance: %s vs %s", debit, credit)
	require.True(t, byAccount[1400].Debit.Equal(decimal.NewFromInt(200)))
	require.True(t, byAccount[2100].Credit.Equal(decimal.NewFromInt(160)))
	require.True(t, byAccount[2150].Credit.Equal(decimal.NewFromInt(40)))
}

func TestEnsurePayableIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	ctx := context.Background()

	input := testInput(uuid.New())
	first, outcome, err := svc.EnsurePayable(ctx, input)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)

	second, outcome, err := svc.EnsurePayable(ctx, input)
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyExists, outcome)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.payables, 1)
	require.Len(t, repo.entries, 1)
}

func TestEnsurePayableLosesRaceGracefully(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	ctx := context.Background()

	input := testInput(uuid.New())

	// The existence check passes, then the insert hits the unique
	// constraint because a concurrent caller created the payable first.
	winner := SupplierPayable{
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		SupplierID:  input.SupplierID,
		GrossAmount: decimal.NewFromInt(200),
		NetAmount:   decimal.NewFromInt(200),
		Status:      StatusUnpaid,
	}
	repo.forceDuplicate = true
	repo.raceWinner = &winner

	payable, outcome, err := svc.EnsurePayable(ctx, input)
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyExists, outcome)
	require.True(t, payable.NetAmount.Equal(decimal.NewFromInt(200)))
	require.Len(t, repo.payables, 1)
}

func TestEnsurePayableValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	ctx := context.Background()

	_, _, err := svc.EnsurePayable(ctx, EnsurePayableInput{})
	require.ErrorIs(t, err, ErrValidation)

	input := testInput(uuid.New())
	input.Deductions = []Deduction{{Reason: "too big", Amount: decimal.NewFromInt(500)}}
	_, _, err = svc.EnsurePayable(ctx, input)
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.payables)
	require.Empty(t, repo.entries)
}

func TestRegisterPayment(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	ctx := context.Background()

	payable, _, err := svc.EnsurePayable(ctx, testInput(uuid.New()))
	require.NoError(t, err)

	partial, err := svc.RegisterPayment(ctx, PaymentInput{PayableID: payable.ID, Amount: decimal.NewFromInt(50), ActorID: 4})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, partial.Status)
	require.True(t, partial.PaidAmount.Equal(decimal.NewFromInt(50)))

	full, err := svc.RegisterPayment(ctx, PaymentInput{PayableID: payable.ID, Amount: decimal.NewFromInt(150), ActorID: 4})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, full.Status)

	_, err = svc.RegisterPayment(ctx, PaymentInput{PayableID: payable.ID, Amount: decimal.NewFromInt(1), ActorID: 4})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.RegisterPayment(ctx, PaymentInput{PayableID: payable.ID, Amount: decimal.Zero, ActorID: 4})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCalculateAging(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, testAccounts(), nil)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	add := func(ageDays int, net, paid int64) {
		repo.nextID++
		id := repo.nextID
		repo.payables[id] = SupplierPayable{
			ID:         id,
			NetAmount:  decimal.NewFromInt(net),
			PaidAmount: decimal.NewFromInt(paid),
			Status:     StatusUnpaid,
			CreatedAt:  now.AddDate(0, 0, -ageDays),
		}
	}
	add(0, 100, 0)
	add(15, 200, 50)
	add(45, 300, 0)
	add(75, 400, 0)
	add(200, 500, 0)
	add(10, 600, 600) // settled in full, must not count

	bucket, err := svc.CalculateAging(context.Background(), now)
	require.NoError(t, err)
	require.True(t, bucket.Current.Equal(decimal.NewFromInt(100)))
	require.True(t, bucket.Bucket30.Equal(decimal.NewFromInt(150)))
	require.True(t, bucket.Bucket60.Equal(decimal.NewFromInt(300)))
	require.True(t, bucket.Bucket90.Equal(decimal.NewFromInt(400)))
	require.True(t, bucket.Bucket120.Equal(decimal.NewFromInt(500)))
	require.True(t, bucket.Total().Equal(decimal.NewFromInt(1450)))
}
