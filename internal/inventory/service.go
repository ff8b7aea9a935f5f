package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gasline-erp/gasline-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOnHand(ctx context.Context, locationID, variantID int64) (LocationBalance, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone inventory operations. Receiving reconciles
// through the restock transaction instead; this service covers manual
// adjustments and read queries.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AdjustmentInput describes a manual stock correction.
type AdjustmentInput struct {
	LocationID int64
	VariantID  int64
	Qty        int64
	Note       string
	Reference  string
	ActorID    int64
}

// PostAdjustment records an offsetting movement for a manual correction. The
// reference keys the movement's source id so repeated submissions are
// distinguishable.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	reference := input.Reference
	if reference == "" {
		reference = fmt.Sprintf("ADJ-%d", time.Now().UnixNano())
	}
	sourceID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("inventory_adjustment:%d:%d:%s", input.LocationID, input.VariantID, reference)))

	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := Reconcile(ctx, tx, ReconcileInput{
			SourceType: "inventory_adjustment",
			SourceID:   sourceID,
			LocationID: input.LocationID,
			VariantID:  input.VariantID,
			Qty:        input.Qty,
			Note:       input.Note,
		})
		if err != nil {
			return err
		}
		movement = created
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "inventory.adjust",
			Entity:   "inventory_movement",
			EntityID: fmt.Sprintf("%d", movement.ID),
			Meta: map[string]any{
				"location_id": input.LocationID,
				"variant_id":  input.VariantID,
				"qty":         input.Qty,
			},
		})
	}
	return movement, nil
}

// OnHand returns the current balance for a location and variant.
func (s *Service) OnHand(ctx context.Context, locationID, variantID int64) (LocationBalance, error) {
	if locationID == 0 || variantID == 0 {
		return LocationBalance{}, ErrInvalidLocation
	}
	return s.repo.GetOnHand(ctx, locationID, variantID)
}

// Movements lists movements matching the filter.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}
