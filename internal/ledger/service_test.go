package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	entries  map[int64]Entry
	bySource map[string]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]Entry), bySource: make(map[string]int64)}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (Entry, error) {
	if id, ok := r.bySource[sourceType+":"+sourceID.String()]; ok {
		return r.entries[id], nil
	}
	return Entry{}, ErrNotFound
}

func (r *memoryRepo) GetEntry(ctx context.Context, id int64) (Entry, error) {
	if entry, ok := r.entries[id]; ok {
		return entry, nil
	}
	return Entry{}, ErrNotFound
}

func (tx *memoryTx) InsertEntry(ctx context.Context, in PostingInput) (int64, error) {
	key := in.SourceType + ":" + in.SourceID.String()
	if _, exists := tx.repo.bySource[key]; exists {
		return 0, ErrSourceConflict
	}
	tx.repo.nextID++
	tx.repo.entries[tx.repo.nextID] = Entry{
		ID:         tx.repo.nextID,
		EntryDate:  in.Date,
		SourceType: in.SourceType,
		SourceID:   in.SourceID,
		Memo:       in.Memo,
		CreatedBy:  in.CreatedBy,
	}
	tx.repo.bySource[key] = tx.repo.nextID
	return tx.repo.nextID, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	entry := tx.repo.entries[entryID]
	for _, line := range lines {
		entry.Lines = append(entry.Lines, Line{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	tx.repo.entries[entryID] = entry
	return nil
}

func balancedPosting(sourceID uuid.UUID) PostingInput {
	return PostingInput{
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		SourceType: "restock_request",
		SourceID:   sourceID,
		Memo:       "Settlement for RST-20260301-ABCD1234",
		CreatedBy:  4,
		Lines: []LineInput{
			{AccountID: 1400, Debit: decimal.NewFromInt(200)},
			{AccountID: 2100, Credit: decimal.NewFromInt(200)},
		},
	}
}

func TestPostEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	entry, err := svc.PostEntry(ctx, balancedPosting(uuid.New()))
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Len(t, entry.Lines, 2)
	require.True(t, entry.Balanced())
}

func TestPostEntryRejectsImbalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	input := balancedPosting(uuid.New())
	input.Lines[1].Credit = decimal.NewFromInt(199)

	_, err := svc.PostEntry(ctx, input)
	require.ErrorIs(t, err, ErrImbalance)
	require.Empty(t, repo.entries)
}

func TestPostEntryRejectsTooFewLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	input := balancedPosting(uuid.New())
	input.Lines = input.Lines[:1]

	_, err := svc.PostEntry(ctx, input)
	require.ErrorIs(t, err, ErrTooFewLines)
	require.Empty(t, repo.entries)
}

func TestPostEntryRejectsDuplicateSource(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	sourceID := uuid.New()
	_, err := svc.PostEntry(ctx, balancedPosting(sourceID))
	require.NoError(t, err)

	_, err = svc.PostEntry(ctx, balancedPosting(sourceID))
	require.ErrorIs(t, err, ErrSourceConflict)
	require.Len(t, repo.entries, 1)
}

func TestGetBySource(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	sourceID := uuid.New()
	posted, err := svc.PostEntry(ctx, balancedPosting(sourceID))
	require.NoError(t, err)

	found, err := svc.GetBySource(ctx, "restock_request", sourceID)
	require.NoError(t, err)
	require.Equal(t, posted.ID, found.ID)

	_, err = svc.GetBySource(ctx, "restock_request", uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
