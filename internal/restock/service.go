package restock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/inventory"
	"github.com/gasline-erp/gasline-erp/internal/payables"
	"github.com/gasline-erp/gasline-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (RestockRequest, []RequestItem, error)
	ListFullyReceived(ctx context.Context, before time.Time, limit int) ([]int64, error)
}

// PayablesPort is the settlement entry point into the payables service.
type PayablesPort interface {
	EnsurePayable(ctx context.Context, input payables.EnsurePayableInput) (payables.SupplierPayable, payables.Outcome, error)
}

// IdempotencyPort deduplicates delivery events by receipt reference.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SummaryCachePort caches request summaries. Implementations absorb cache
// errors; a miss and a failure look the same to the service.
type SummaryCachePort interface {
	Fetch(ctx context.Context, id int64) (RequestSummary, bool)
	Store(ctx context.Context, id int64, summary RequestSummary)
	Invalidate(ctx context.Context, id int64)
}

// Service drives the restock lifecycle, the receiving engine and settlement.
type Service struct {
	repo        RepositoryPort
	payables    PayablesPort
	idempotency IdempotencyPort
	audit       AuditPort
	cache       SummaryCachePort
	taxRate     decimal.Decimal
	now         func() time.Time
}

// NewService constructs the restock service. cache may be nil.
func NewService(repo RepositoryPort, pay PayablesPort, idem IdempotencyPort, audit AuditPort, cache SummaryCachePort, taxRate decimal.Decimal) *Service {
	return &Service{
		repo:        repo,
		payables:    pay,
		idempotency: idem,
		audit:       audit,
		cache:       cache,
		taxRate:     taxRate,
		now:         time.Now,
	}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateItemInput is one requested line.
type CreateItemInput struct {
	VariantID    int64
	CurrentQty   int64
	ReorderLevel int64
	RequestedQty int64
	UnitCost     decimal.Decimal
}

// CreateInput opens a draft request.
type CreateInput struct {
	LocationID  int64
	SupplierID  int64
	RequestedBy int64
	Notes       string
	Items       []CreateItemInput
}

// Create opens a draft restock request with its requested lines. Line totals
// are priced against the requested quantity until approval overrides it.
func (s *Service) Create(ctx context.Context, input CreateInput) (RestockRequest, []RequestItem, error) {
	if input.LocationID == 0 || input.SupplierID == 0 {
		return RestockRequest{}, nil, fmt.Errorf("%w: location and supplier required", ErrValidation)
	}
	if len(input.Items) == 0 {
		return RestockRequest{}, nil, fmt.Errorf("%w: at least one item required", ErrValidation)
	}
	for _, item := range input.Items {
		if item.VariantID == 0 {
			return RestockRequest{}, nil, fmt.Errorf("%w: variant required", ErrValidation)
		}
		if item.RequestedQty <= 0 {
			return RestockRequest{}, nil, fmt.Errorf("%w: requested quantity must be positive", ErrValidation)
		}
		if item.UnitCost.IsNegative() {
			return RestockRequest{}, nil, fmt.Errorf("%w: unit cost must not be negative", ErrValidation)
		}
	}

	now := s.now()
	subtotal := decimal.Zero
	lines := make([]RequestItem, 0, len(input.Items))
	for _, item := range input.Items {
		total := item.UnitCost.Mul(decimal.NewFromInt(item.RequestedQty)).Round(2)
		subtotal = subtotal.Add(total)
		lines = append(lines, RequestItem{
			VariantID:    item.VariantID,
			CurrentQty:   item.CurrentQty,
			ReorderLevel: item.ReorderLevel,
			RequestedQty: item.RequestedQty,
			UnitCost:     item.UnitCost,
			LineTotal:    total,
		})
	}

	req := RestockRequest{
		Number:      s.generateNumber(now),
		Status:      StatusDraft,
		LocationID:  input.LocationID,
		SupplierID:  input.SupplierID,
		RequestedBy: input.RequestedBy,
		Subtotal:    subtotal,
		TotalCost:   s.withTax(subtotal),
		Notes:       input.Notes,
	}

	var requestID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertRequest(ctx, req)
		if err != nil {
			return err
		}
		requestID = id
		for i := range lines {
			lines[i].RequestID = id
			itemID, err := tx.InsertItem(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = itemID
		}
		return nil
	})
	if err != nil {
		return RestockRequest{}, nil, err
	}

	s.recordAudit(ctx, input.RequestedBy, "restock.create", requestID, map[string]any{
		"number": req.Number,
		"items":  len(lines),
	})
	created, items, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return RestockRequest{}, nil, err
	}
	return created, items, nil
}

// Submit moves a draft into review.
func (s *Service) Submit(ctx context.Context, requestID, actorID int64) (RestockRequest, error) {
	req, err := s.transition(ctx, requestID, StatusSubmitted, nil)
	if err != nil {
		return RestockRequest{}, err
	}
	s.recordAudit(ctx, actorID, "restock.submit", requestID, nil)
	return req, nil
}

// ApproveItemInput overrides the quantity for one line. Lines without an
// override are approved at their requested quantity.
type ApproveItemInput struct {
	ItemID      int64
	ApprovedQty int64
}

// ApproveInput approves a submitted request.
type ApproveInput struct {
	RequestID  int64
	ApprovedBy int64
	Items      []ApproveItemInput
}

// Approve fixes the approved quantity on every line and reprices the request
// against it. Received quantities are checked against these numbers for the
// rest of the lifecycle.
func (s *Service) Approve(ctx context.Context, input ApproveInput) (RestockRequest, error) {
	overrides := make(map[int64]int64, len(input.Items))
	for _, item := range input.Items {
		if item.ApprovedQty < 0 {
			return RestockRequest{}, fmt.Errorf("%w: approved quantity must not be negative", ErrValidation)
		}
		overrides[item.ItemID] = item.ApprovedQty
	}

	req, err := s.transition(ctx, input.RequestID, StatusApprovedPendingSupplier, func(ctx context.Context, tx TxRepository, req RestockRequest, items []RequestItem) error {
		subtotal := decimal.Zero
		for _, item := range items {
			qty, ok := overrides[item.ID]
			if !ok {
				qty = item.RequestedQty
			}
			total := item.UnitCost.Mul(decimal.NewFromInt(qty)).Round(2)
			subtotal = subtotal.Add(total)
			if err := tx.ApproveItem(ctx, item.ID, qty, total); err != nil {
				return err
			}
		}
		if err := tx.SetApproval(ctx, req.ID, input.ApprovedBy, s.now()); err != nil {
			return err
		}
		return tx.SetTotals(ctx, req.ID, subtotal, s.withTax(subtotal))
	})
	if err != nil {
		return RestockRequest{}, err
	}
	s.recordAudit(ctx, input.ApprovedBy, "restock.approve", input.RequestID, nil)
	return req, nil
}

// ContactSupplier records that the order went out to the supplier.
func (s *Service) ContactSupplier(ctx context.Context, requestID, actorID int64) (RestockRequest, error) {
	req, err := s.transition(ctx, requestID, StatusSupplierContacted, nil)
	if err != nil {
		return RestockRequest{}, err
	}
	s.recordAudit(ctx, actorID, "restock.contact_supplier", requestID, nil)
	return req, nil
}

// Cancel abandons a request that has not started receiving.
func (s *Service) Cancel(ctx context.Context, requestID, actorID int64) (RestockRequest, error) {
	req, err := s.transition(ctx, requestID, StatusCancelled, nil)
	if err != nil {
		return RestockRequest{}, err
	}
	s.recordAudit(ctx, actorID, "restock.cancel", requestID, nil)
	return req, nil
}

// DeliveryLine is one line of a delivery event. Quantities are increments
// over what previous events recorded. UnitCost replaces the estimated cost
// when the supplier invoice differs.
type DeliveryLine struct {
	ItemID      int64
	ReceivedQty int64
	DamagedQty  int64
	UnitCost    *decimal.Decimal
}

// DeliveryInput is one delivery event against a request. ReceiptRef is the
// supplier's document reference and deduplicates retries of the same event.
type DeliveryInput struct {
	RequestID  int64
	ReceiptRef string
	ReceivedBy int64
	Lines      []DeliveryLine
}

// RecordDelivery applies one delivery event. Every line is validated against
// its approved quantity before any write happens, so an over-receipt on any
// line rejects the whole event and leaves quantities, stock and status
// untouched. Accepted units, received minus damaged, move into stock in the
// same transaction. A repeated ReceiptRef for the same request is rejected.
func (s *Service) RecordDelivery(ctx context.Context, input DeliveryInput) (RestockRequest, []RequestItem, error) {
	if input.ReceiptRef == "" {
		return RestockRequest{}, nil, fmt.Errorf("%w: receipt reference required", ErrValidation)
	}
	if len(input.Lines) == 0 {
		return RestockRequest{}, nil, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	for _, line := range input.Lines {
		if line.ReceivedQty < 0 || line.DamagedQty < 0 {
			return RestockRequest{}, nil, fmt.Errorf("%w: quantities must not be negative", ErrValidation)
		}
		if line.ReceivedQty == 0 && line.DamagedQty == 0 {
			return RestockRequest{}, nil, fmt.Errorf("%w: empty delivery line", ErrValidation)
		}
		if line.DamagedQty > line.ReceivedQty {
			return RestockRequest{}, nil, fmt.Errorf("%w: damaged quantity exceeds received", ErrValidation)
		}
		if line.UnitCost != nil && line.UnitCost.IsNegative() {
			return RestockRequest{}, nil, fmt.Errorf("%w: unit cost must not be negative", ErrValidation)
		}
	}

	idemKey := fmt.Sprintf("delivery:%d:%s", input.RequestID, input.ReceiptRef)
	if err := s.idempotency.CheckAndInsert(ctx, idemKey, "restock"); err != nil {
		return RestockRequest{}, nil, err
	}

	eventID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d:%s", SourceTypeDelivery, input.RequestID, input.ReceiptRef)))
	now := s.now()

	var updated RestockRequest
	var updatedItems []RequestItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, items, err := tx.GetRequestForUpdate(ctx, input.RequestID)
		if err != nil {
			return err
		}
		if !canReceive(req.Status) {
			return fmt.Errorf("%w: cannot receive in status %s", ErrInvalidTransition, req.Status)
		}

		byID := make(map[int64]*RequestItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}

		// Validate every line before touching anything.
		for _, line := range input.Lines {
			item, ok := byID[line.ItemID]
			if !ok {
				return fmt.Errorf("%w: item %d not on request", ErrValidation, line.ItemID)
			}
			if item.ApprovedQty == nil {
				return fmt.Errorf("%w: item %d has no approved quantity", ErrValidation, line.ItemID)
			}
			if item.ReceivedQty+line.ReceivedQty > *item.ApprovedQty {
				return fmt.Errorf("%w: item %d would reach %d of %d approved",
					ErrOverReceipt, line.ItemID, item.ReceivedQty+line.ReceivedQty, *item.ApprovedQty)
			}
		}

		stock := tx.Inventory()
		for _, line := range input.Lines {
			item := byID[line.ItemID]
			item.ReceivedQty += line.ReceivedQty
			item.DamagedQty += line.DamagedQty
			if line.UnitCost != nil {
				item.UnitCost = *line.UnitCost
			}
			item.LineTotal = item.UnitCost.Mul(decimal.NewFromInt(item.ReceivedQty)).Round(2)
			if err := tx.UpdateItemReceipt(ctx, item.ID, item.ReceivedQty, item.DamagedQty, item.UnitCost, item.LineTotal); err != nil {
				return err
			}
			accepted := line.ReceivedQty - line.DamagedQty
			if accepted > 0 {
				if _, err := inventory.Reconcile(ctx, stock, inventory.ReconcileInput{
					SourceType: SourceTypeDelivery,
					SourceID:   eventID,
					LocationID: req.LocationID,
					VariantID:  item.VariantID,
					Qty:        accepted,
					Note:       fmt.Sprintf("delivery %s for %s", input.ReceiptRef, req.Number),
				}); err != nil {
					return err
				}
			}
		}

		subtotal := decimal.Zero
		for _, item := range items {
			subtotal = subtotal.Add(item.LineTotal)
		}
		if err := tx.SetTotals(ctx, req.ID, subtotal, s.withTax(subtotal)); err != nil {
			return err
		}

		target := receivingTarget(items)
		if target != req.Status {
			if !CanTransition(req.Status, target) {
				return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, req.Status, target)
			}
			if err := tx.SetStatus(ctx, req.ID, target, now); err != nil {
				return err
			}
		}

		updated, updatedItems, err = tx.GetRequestForUpdate(ctx, req.ID)
		return err
	})
	if err != nil {
		// Release the receipt reference so the caller can retry after
		// fixing the event. A concurrent duplicate was already rejected
		// by CheckAndInsert above.
		_ = s.idempotency.Delete(ctx, idemKey)
		return RestockRequest{}, nil, err
	}

	s.invalidate(ctx, input.RequestID)
	s.recordAudit(ctx, input.ReceivedBy, "restock.delivery", input.RequestID, map[string]any{
		"receipt_ref": input.ReceiptRef,
		"lines":       len(input.Lines),
	})
	return updated, updatedItems, nil
}

// SettleInput triggers settlement of a fully received request. Extra
// deductions, beyond the automatic damaged-goods one, come from the caller.
type SettleInput struct {
	RequestID  int64
	ActorID    int64
	Deductions []payables.Deduction
}

// Settle creates the supplier payable and its ledger entry for a fully
// received request. Settling the same request again returns the existing
// payable without touching anything; the payable service owns that
// guarantee. Gross value covers every received unit and damaged units come
// back out as a deduction, so the net amount pays for accepted stock only.
func (s *Service) Settle(ctx context.Context, input SettleInput) (payables.SupplierPayable, payables.Outcome, error) {
	req, items, err := s.repo.GetRequest(ctx, input.RequestID)
	if err != nil {
		return payables.SupplierPayable{}, "", err
	}
	if req.Status != StatusFullyReceived {
		return payables.SupplierPayable{}, "", fmt.Errorf("%w: settlement requires fully received, got %s", ErrInvalidTransition, req.Status)
	}

	lines := make([]payables.CostLine, 0, len(items))
	deductions := append([]payables.Deduction(nil), input.Deductions...)
	for _, item := range items {
		if item.ReceivedQty == 0 {
			continue
		}
		lines = append(lines, payables.CostLine{
			VariantID:   item.VariantID,
			ReceivedQty: item.ReceivedQty,
			UnitCost:    item.UnitCost,
		})
		if item.DamagedQty > 0 {
			deductions = append(deductions, payables.Deduction{
				Reason: fmt.Sprintf("damaged goods, variant %d", item.VariantID),
				Amount: item.UnitCost.Mul(decimal.NewFromInt(item.DamagedQty)).Round(2),
			})
		}
	}

	date := s.now()
	if req.ReceivedAt != nil {
		date = *req.ReceivedAt
	}

	payable, outcome, err := s.payables.EnsurePayable(ctx, payables.EnsurePayableInput{
		SourceType: SourceTypeRequest,
		SourceID:   RequestSourceID(req.ID),
		SupplierID: req.SupplierID,
		Requester:  input.ActorID,
		Date:       date,
		Memo:       fmt.Sprintf("Settlement for %s", req.Number),
		Lines:      lines,
		Deductions: deductions,
	})
	if err != nil {
		return payables.SupplierPayable{}, "", err
	}
	if outcome == payables.OutcomeCreated {
		s.recordAudit(ctx, input.ActorID, "restock.settle", req.ID, map[string]any{
			"payable_id": payable.ID,
			"net_amount": payable.NetAmount.String(),
		})
	}
	return payable, outcome, nil
}

// RequestSourceID derives the settlement source identity of a request. The
// same request always settles under the same identity.
func RequestSourceID(requestID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", SourceTypeRequest, requestID)))
}

// Get returns the request header and its items.
func (s *Service) Get(ctx context.Context, requestID int64) (RestockRequest, []RequestItem, error) {
	return s.repo.GetRequest(ctx, requestID)
}

// SummaryLine is the per-item receiving state.
type SummaryLine struct {
	VariantID   int64           `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Requested   int64           `json:"requested"`
	Approved    int64           `json:"approved"`
	Received    int64           `json:"received"`
	Damaged     int64           `json:"damaged"`
	Remaining   int64           `json:"remaining"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// RequestSummary is the receiving progress of one request.
type RequestSummary struct {
	RequestID    int64           `json:"request_id"`
	Number       string          `json:"number"`
	Status       Status          `json:"status"`
	ExpectedQty  int64           `json:"expected_qty"`
	ReceivedQty  int64           `json:"received_qty"`
	DamagedQty   int64           `json:"damaged_qty"`
	ReceivedCost decimal.Decimal `json:"received_cost"`
	Items        []SummaryLine   `json:"items"`
}

// Summary reports receiving progress. Summaries are cached briefly; every
// mutation of the request invalidates the cached copy.
func (s *Service) Summary(ctx context.Context, requestID int64) (RequestSummary, error) {
	if s.cache != nil {
		if summary, ok := s.cache.Fetch(ctx, requestID); ok {
			return summary, nil
		}
	}

	req, items, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return RequestSummary{}, err
	}

	summary := RequestSummary{
		RequestID:    req.ID,
		Number:       req.Number,
		Status:       req.Status,
		ReceivedCost: decimal.Zero,
		Items:        make([]SummaryLine, 0, len(items)),
	}
	for _, item := range items {
		expected := item.EffectiveQty()
		remaining := expected - item.ReceivedQty
		if remaining < 0 {
			remaining = 0
		}
		summary.ExpectedQty += expected
		summary.ReceivedQty += item.ReceivedQty
		summary.DamagedQty += item.DamagedQty
		summary.ReceivedCost = summary.ReceivedCost.Add(item.UnitCost.Mul(decimal.NewFromInt(item.ReceivedQty)).Round(2))
		summary.Items = append(summary.Items, SummaryLine{
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Requested:   item.RequestedQty,
			Approved:    expected,
			Received:    item.ReceivedQty,
			Damaged:     item.DamagedQty,
			Remaining:   remaining,
			UnitCost:    item.UnitCost,
		})
	}

	if s.cache != nil {
		s.cache.Store(ctx, requestID, summary)
	}
	return summary, nil
}

// SettleOverdue re-runs settlement for requests that finished receiving
// before the cutoff. Used by the repair job; settled requests are no-ops.
func (s *Service) SettleOverdue(ctx context.Context, before time.Time, limit int) (int, error) {
	ids, err := s.repo.ListFullyReceived(ctx, before, limit)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, id := range ids {
		_, outcome, err := s.Settle(ctx, SettleInput{RequestID: id})
		if err != nil {
			return created, fmt.Errorf("settle request %d: %w", id, err)
		}
		if outcome == payables.OutcomeCreated {
			created++
		}
	}
	return created, nil
}

// transition loads the request under lock, checks the lifecycle graph, runs
// the optional extra step and persists the new status.
func (s *Service) transition(ctx context.Context, requestID int64, to Status, step func(context.Context, TxRepository, RestockRequest, []RequestItem) error) (RestockRequest, error) {
	var updated RestockRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, items, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if !CanTransition(req.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, req.Status, to)
		}
		if step != nil {
			if err := step(ctx, tx, req, items); err != nil {
				return err
			}
		}
		if err := tx.SetStatus(ctx, requestID, to, s.now()); err != nil {
			return err
		}
		updated, _, err = tx.GetRequestForUpdate(ctx, requestID)
		return err
	})
	if err != nil {
		return RestockRequest{}, err
	}
	s.invalidate(ctx, requestID)
	return updated, nil
}

func (s *Service) withTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Add(subtotal.Mul(s.taxRate).Round(2))
}

func (s *Service) generateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RST-%s-%s", now.Format("20060102"), suffix)
}

func (s *Service) invalidate(ctx context.Context, requestID int64) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, requestID)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, requestID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "restock_request",
		EntityID: fmt.Sprintf("%d", requestID),
		Meta:     meta,
		At:       s.now(),
	})
}
