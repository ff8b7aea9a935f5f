package payables

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/ledger"
	"github.com/gasline-erp/gasline-erp/internal/shared"
)

// Accounts holds the chart-of-accounts mapping for settlement postings. The
// mapping is business policy, so it arrives as configuration.
type Accounts struct {
	Inventory  int64
	Payable    int64
	Deductions int64
}

// Outcome tags whether EnsurePayable created the payable or found an
// existing one. Both are success.
type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (SupplierPayable, error)
	GetPayable(ctx context.Context, id int64) (SupplierPayable, error)
	ListOutstanding(ctx context.Context, limit int) ([]SupplierPayable, error)
	ListOpenBalances(ctx context.Context) ([]SupplierPayable, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service creates payables exactly once per settlement source.
type Service struct {
	repo     RepositoryPort
	accounts Accounts
	audit    AuditPort
	now      func() time.Time
}

// NewService constructs the payable service.
func NewService(repo RepositoryPort, accounts Accounts, audit AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// EnsurePayableInput carries the settlement source and its priced lines.
type EnsurePayableInput struct {
	SourceType string
	SourceID   uuid.UUID
	SupplierID int64
	Requester  int64
	Date       time.Time
	Memo       string
	Lines      []CostLine
	Deductions []Deduction
}

// EnsurePayable creates the payable and its balanced ledger entry for a
// settlement source, or returns the existing payable unchanged. The insert
// relies on the storage uniqueness constraint on (source_type, source_id) as
// the race-closing guard: when two callers pass the existence check
// concurrently, one insert succeeds and the other's unique violation is
// converted into the same already-exists outcome. Neither caller sees an
// error and at most one payable and one entry ever exist per source.
func (s *Service) EnsurePayable(ctx context.Context, input EnsurePayableInput) (SupplierPayable, Outcome, error) {
	if input.SourceType == "" || input.SourceID == uuid.Nil {
		return SupplierPayable{}, "", fmt.Errorf("%w: source reference required", ErrValidation)
	}
	if input.SupplierID == 0 {
		return SupplierPayable{}, "", fmt.Errorf("%w: supplier required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return SupplierPayable{}, "", fmt.Errorf("%w: at least one line required", ErrValidation)
	}

	existing, err := s.repo.GetBySource(ctx, input.SourceType, input.SourceID)
	if err == nil {
		return existing, OutcomeAlreadyExists, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return SupplierPayable{}, "", err
	}

	alloc := Allocate(input.Lines, input.Deductions)
	if alloc.NetAmount.IsNegative() {
		return SupplierPayable{}, "", fmt.Errorf("%w: deductions exceed gross amount", ErrValidation)
	}

	posting := s.buildPosting(input, alloc)
	if err := posting.Validate(); err != nil {
		return SupplierPayable{}, "", err
	}

	var payableID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entryID, err := tx.Ledger().InsertEntry(ctx, posting)
		if err != nil {
			return err
		}
		if err := tx.Ledger().InsertLines(ctx, entryID, posting.Lines); err != nil {
			return err
		}
		id, err := tx.InsertPayable(ctx, SupplierPayable{
			SourceType:      input.SourceType,
			SourceID:        input.SourceID,
			SupplierID:      input.SupplierID,
			GrossAmount:     alloc.GrossAmount,
			DeductionsTotal: alloc.DeductionsTotal,
			NetAmount:       alloc.NetAmount,
			PaidAmount:      decimal.Zero,
			Status:          StatusUnpaid,
			LedgerEntryID:   entryID,
			CreatedBy:       input.Requester,
		})
		if err != nil {
			return err
		}
		payableID = id
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ledger.ErrSourceConflict) {
			payable, lookupErr := s.repo.GetBySource(ctx, input.SourceType, input.SourceID)
			if lookupErr != nil {
				return SupplierPayable{}, "", lookupErr
			}
			return payable, OutcomeAlreadyExists, nil
		}
		return SupplierPayable{}, "", err
	}

	payable, err := s.repo.GetPayable(ctx, payableID)
	if err != nil {
		return SupplierPayable{}, "", err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.Requester,
			Action:   "payables.create",
			Entity:   "supplier_payable",
			EntityID: fmt.Sprintf("%d", payable.ID),
			Meta: map[string]any{
				"source_type": input.SourceType,
				"source_id":   input.SourceID.String(),
				"net_amount":  alloc.NetAmount.String(),
			},
			At: s.now(),
		})
	}
	return payable, OutcomeCreated, nil
}

// buildPosting debits inventory for the gross cost and credits accounts
// payable for the net obligation. Deductions credit the contra account so
// the entry stays balanced.
func (s *Service) buildPosting(input EnsurePayableInput, alloc Allocation) ledger.PostingInput {
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	lines := []ledger.LineInput{
		{AccountID: s.accounts.Inventory, Debit: alloc.GrossAmount},
		{AccountID: s.accounts.Payable, Credit: alloc.NetAmount},
	}
	if alloc.DeductionsTotal.IsPositive() {
		lines = append(lines, ledger.LineInput{AccountID: s.accounts.Deductions, Credit: alloc.DeductionsTotal})
	}
	return ledger.PostingInput{
		Date:       date,
		SourceType: input.SourceType,
		SourceID:   input.SourceID,
		Memo:       input.Memo,
		CreatedBy:  input.Requester,
		Lines:      lines,
	}
}

// PaymentInput records money paid against a payable.
type PaymentInput struct {
	PayableID int64
	Amount    decimal.Decimal
	ActorID   int64
}

// RegisterPayment applies a payment and rolls the payable status forward.
func (s *Service) RegisterPayment(ctx context.Context, input PaymentInput) (SupplierPayable, error) {
	if !input.Amount.IsPositive() {
		return SupplierPayable{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}
	var updated SupplierPayable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payable, err := tx.GetPayableForUpdate(ctx, input.PayableID)
		if err != nil {
			return err
		}
		newPaid := payable.PaidAmount.Add(input.Amount)
		if newPaid.GreaterThan(payable.NetAmount) {
			return fmt.Errorf("%w: payment exceeds outstanding balance", ErrValidation)
		}
		status := StatusPartiallyPaid
		if newPaid.Equal(payable.NetAmount) {
			status = StatusPaid
		}
		if err := tx.UpdatePayment(ctx, payable.ID, newPaid, status); err != nil {
			return err
		}
		payable.PaidAmount = newPaid
		payable.Status = status
		updated = payable
		return nil
	})
	if err != nil {
		return SupplierPayable{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "payables.payment",
			Entity:   "supplier_payable",
			EntityID: fmt.Sprintf("%d", updated.ID),
			Meta:     map[string]any{"amount": input.Amount.String()},
			At:       s.now(),
		})
	}
	return updated, nil
}

// GetPayable returns a payable by id.
func (s *Service) GetPayable(ctx context.Context, id int64) (SupplierPayable, error) {
	return s.repo.GetPayable(ctx, id)
}

// GetBySource returns the payable for a settlement source.
func (s *Service) GetBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (SupplierPayable, error) {
	return s.repo.GetBySource(ctx, sourceType, sourceID)
}

// ListOutstanding returns payables that still carry a balance.
func (s *Service) ListOutstanding(ctx context.Context, limit int) ([]SupplierPayable, error) {
	return s.repo.ListOutstanding(ctx, limit)
}

// CalculateAging buckets open balances by days outstanding since creation.
func (s *Service) CalculateAging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	open, err := s.repo.ListOpenBalances(ctx)
	if err != nil {
		return AgingBucket{}, err
	}

	bucket := AgingBucket{
		Current:   decimal.Zero,
		Bucket30:  decimal.Zero,
		Bucket60:  decimal.Zero,
		Bucket90:  decimal.Zero,
		Bucket120: decimal.Zero,
	}
	for _, p := range open {
		balance := p.NetAmount.Sub(p.PaidAmount)
		if !balance.IsPositive() {
			continue
		}
		days := int(asOf.Sub(p.CreatedAt).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(balance)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(balance)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(balance)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(balance)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(balance)
		}
	}
	return bucket, nil
}
