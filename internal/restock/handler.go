package restock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/payables"
	"github.com/gasline-erp/gasline-erp/internal/platform/httpx"
	"github.com/gasline-erp/gasline-erp/internal/shared"
)

// Handler exposes restock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers restock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Get("/{id}/summary", h.summary)
	r.Post("/{id}/submit", h.submit)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/contact-supplier", h.contactSupplier)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/deliveries", h.recordDelivery)
	r.Post("/{id}/settle", h.settle)
}

type createItemRequest struct {
	VariantID    int64           `json:"variant_id" validate:"required"`
	CurrentQty   int64           `json:"current_qty" validate:"gte=0"`
	ReorderLevel int64           `json:"reorder_level" validate:"gte=0"`
	RequestedQty int64           `json:"requested_qty" validate:"required,gt=0"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

type createRequest struct {
	LocationID  int64               `json:"location_id" validate:"required"`
	SupplierID  int64               `json:"supplier_id" validate:"required"`
	RequestedBy int64               `json:"requested_by" validate:"required"`
	Notes       string              `json:"notes"`
	Items       []createItemRequest `json:"items" validate:"required,min=1,dive"`
}

type itemResponse struct {
	ID           int64           `json:"id"`
	VariantID    int64           `json:"variant_id"`
	ProductName  string          `json:"product_name,omitempty"`
	CurrentQty   int64           `json:"current_qty"`
	ReorderLevel int64           `json:"reorder_level"`
	RequestedQty int64           `json:"requested_qty"`
	ApprovedQty  *int64          `json:"approved_qty,omitempty"`
	ReceivedQty  int64           `json:"received_qty"`
	DamagedQty   int64           `json:"damaged_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type requestResponse struct {
	ID                  int64           `json:"id"`
	Number              string          `json:"number"`
	Status              Status          `json:"status"`
	LocationID          int64           `json:"location_id"`
	SupplierID          int64           `json:"supplier_id"`
	RequestedBy         int64           `json:"requested_by"`
	ApprovedBy          *int64          `json:"approved_by,omitempty"`
	SubmittedAt         *time.Time      `json:"submitted_at,omitempty"`
	ApprovedAt          *time.Time      `json:"approved_at,omitempty"`
	SupplierContactedAt *time.Time      `json:"supplier_contacted_at,omitempty"`
	ReceivingStartedAt  *time.Time      `json:"receiving_started_at,omitempty"`
	ReceivedAt          *time.Time      `json:"received_at,omitempty"`
	CancelledAt         *time.Time      `json:"cancelled_at,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	Notes               string          `json:"notes,omitempty"`
	Items               []itemResponse  `json:"items,omitempty"`
}

func toResponse(req RestockRequest, items []RequestItem) requestResponse {
	resp := requestResponse{
		ID:                  req.ID,
		Number:              req.Number,
		Status:              req.Status,
		LocationID:          req.LocationID,
		SupplierID:          req.SupplierID,
		RequestedBy:         req.RequestedBy,
		ApprovedBy:          req.ApprovedBy,
		SubmittedAt:         req.SubmittedAt,
		ApprovedAt:          req.ApprovedAt,
		SupplierContactedAt: req.SupplierContactedAt,
		ReceivingStartedAt:  req.ReceivingStartedAt,
		ReceivedAt:          req.ReceivedAt,
		CancelledAt:         req.CancelledAt,
		Subtotal:            req.Subtotal,
		TotalCost:           req.TotalCost,
		Notes:               req.Notes,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse{
			ID:           item.ID,
			VariantID:    item.VariantID,
			ProductName:  item.ProductName,
			CurrentQty:   item.CurrentQty,
			ReorderLevel: item.ReorderLevel,
			RequestedQty: item.RequestedQty,
			ApprovedQty:  item.ApprovedQty,
			ReceivedQty:  item.ReceivedQty,
			DamagedQty:   item.DamagedQty,
			UnitCost:     item.UnitCost,
			LineTotal:    item.LineTotal,
		})
	}
	return resp
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := CreateInput{
		LocationID:  body.LocationID,
		SupplierID:  body.SupplierID,
		RequestedBy: body.RequestedBy,
		Notes:       body.Notes,
	}
	for _, item := range body.Items {
		input.Items = append(input.Items, CreateItemInput{
			VariantID:    item.VariantID,
			CurrentQty:   item.CurrentQty,
			ReorderLevel: item.ReorderLevel,
			RequestedQty: item.RequestedQty,
			UnitCost:     item.UnitCost,
		})
	}

	req, items, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(req, items))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, items, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(req, items))
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type actorRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Submit)
}

func (h *Handler) contactSupplier(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.ContactSupplier)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.statusChange(w, r, h.service.Cancel)
}

func (h *Handler) statusChange(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, requestID, actorID int64) (RestockRequest, error)) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body actorRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	req, err := op(r.Context(), id, body.ActorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(req, nil))
}

type approveItemRequest struct {
	ItemID      int64 `json:"item_id" validate:"required"`
	ApprovedQty int64 `json:"approved_qty" validate:"gte=0"`
}

type approveRequest struct {
	ApprovedBy int64                `json:"approved_by" validate:"required"`
	Items      []approveItemRequest `json:"items" validate:"dive"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body approveRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ApproveInput{RequestID: id, ApprovedBy: body.ApprovedBy}
	for _, item := range body.Items {
		input.Items = append(input.Items, ApproveItemInput{ItemID: item.ItemID, ApprovedQty: item.ApprovedQty})
	}
	req, err := h.service.Approve(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(req, nil))
}

type deliveryLineRequest struct {
	ItemID      int64            `json:"item_id" validate:"required"`
	ReceivedQty int64            `json:"received_qty" validate:"gte=0"`
	DamagedQty  int64            `json:"damaged_qty" validate:"gte=0"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
}

type deliveryRequest struct {
	ReceiptRef string                `json:"receipt_ref" validate:"required"`
	ReceivedBy int64                 `json:"received_by" validate:"required"`
	Lines      []deliveryLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) recordDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body deliveryRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := DeliveryInput{RequestID: id, ReceiptRef: body.ReceiptRef, ReceivedBy: body.ReceivedBy}
	for _, line := range body.Lines {
		input.Lines = append(input.Lines, DeliveryLine{
			ItemID:      line.ItemID,
			ReceivedQty: line.ReceivedQty,
			DamagedQty:  line.DamagedQty,
			UnitCost:    line.UnitCost,
		})
	}
	req, items, err := h.service.RecordDelivery(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(req, items))
}

type deductionRequest struct {
	Reason string          `json:"reason" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type settleRequest struct {
	ActorID    int64              `json:"actor_id" validate:"required"`
	Deductions []deductionRequest `json:"deductions" validate:"dive"`
}

type settleResponse struct {
	Outcome string                   `json:"outcome"`
	Payable payables.PayableResponse `json:"payable"`
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var body settleRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := SettleInput{RequestID: id, ActorID: body.ActorID}
	for _, d := range body.Deductions {
		input.Deductions = append(input.Deductions, payables.Deduction{Reason: d.Reason, Amount: d.Amount})
	}
	payable, outcome, err := h.service.Settle(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if outcome == payables.OutcomeAlreadyExists {
		status = http.StatusOK
	}
	httpx.JSON(w, status, settleResponse{Outcome: string(outcome), Payable: payables.NewPayableResponse(payable)})
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "request id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, payables.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrOverReceipt):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Over Receipt", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, payables.ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("restock request failed", "path", r.URL.Path, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
