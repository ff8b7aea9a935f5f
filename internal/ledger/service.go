package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gasline-erp/gasline-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (Entry, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts and reads ledger entries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostEntry validates and persists one balanced entry with its lines in a
// single transaction. Nothing is written when validation fails.
func (s *Service) PostEntry(ctx context.Context, input PostingInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}
	var entryID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, id, input.Lines); err != nil {
			return err
		}
		entryID = id
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, input, entry)
	return entry, nil
}

// GetBySource returns the entry for a settlement source.
func (s *Service) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (Entry, error) {
	return s.repo.GetBySource(ctx, sourceType, sourceID)
}

// GetEntry returns an entry by id.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, input PostingInput, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  input.CreatedBy,
		Action:   "ledger.post",
		Entity:   "ledger_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"source_type": input.SourceType,
			"source_id":   input.SourceID.String(),
		},
		At: s.now(),
	})
}
