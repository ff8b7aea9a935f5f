package payables

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/platform/httpx"
)

// Handler exposes payable endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOutstanding)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.get)
	r.Post("/{id}/payments", h.registerPayment)
	r.Get("/by-source/{sourceType}/{sourceID}", h.getBySource)
}

// PayableResponse is the wire shape of a payable.
type PayableResponse struct {
	ID              int64           `json:"id"`
	SourceType      string          `json:"source_type"`
	SourceID        uuid.UUID       `json:"source_id"`
	SupplierID      int64           `json:"supplier_id"`
	GrossAmount     decimal.Decimal `json:"gross_amount"`
	DeductionsTotal decimal.Decimal `json:"deductions_total"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Status          PayableStatus   `json:"status"`
	LedgerEntryID   int64           `json:"ledger_entry_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewPayableResponse maps a payable onto its wire shape.
func NewPayableResponse(p SupplierPayable) PayableResponse {
	return PayableResponse{
		ID:              p.ID,
		SourceType:      p.SourceType,
		SourceID:        p.SourceID,
		SupplierID:      p.SupplierID,
		GrossAmount:     p.GrossAmount,
		DeductionsTotal: p.DeductionsTotal,
		NetAmount:       p.NetAmount,
		PaidAmount:      p.PaidAmount,
		Status:          p.Status,
		LedgerEntryID:   p.LedgerEntryID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func (h *Handler) listOutstanding(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	items, err := h.service.ListOutstanding(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]PayableResponse, 0, len(items))
	for _, p := range items {
		resp = append(resp, NewPayableResponse(p))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type agingResponse struct {
	Current decimal.Decimal `json:"current"`
	Days30  decimal.Decimal `json:"days_30"`
	Days60  decimal.Decimal `json:"days_60"`
	Days90  decimal.Decimal `json:"days_90"`
	Days120 decimal.Decimal `json:"days_120_plus"`
	Total   decimal.Decimal `json:"total"`
	AsOf    time.Time       `json:"as_of"`
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	bucket, err := h.service.CalculateAging(r.Context(), asOf)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, agingResponse{
		Current: bucket.Current,
		Days30:  bucket.Bucket30,
		Days60:  bucket.Bucket60,
		Days90:  bucket.Bucket90,
		Days120: bucket.Bucket120,
		Total:   bucket.Total(),
		AsOf:    asOf,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "payable id must be a positive integer")
		return
	}
	payable, err := h.service.GetPayable(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPayableResponse(payable))
}

func (h *Handler) getBySource(w http.ResponseWriter, r *http.Request) {
	sourceType := chi.URLParam(r, "sourceType")
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Source", "source id must be a UUID")
		return
	}
	payable, err := h.service.GetBySource(r.Context(), sourceType, sourceID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPayableResponse(payable))
}

type paymentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	ActorID int64           `json:"actor_id" validate:"required"`
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "payable id must be a positive integer")
		return
	}
	var body paymentRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	payable, err := h.service.RegisterPayment(r.Context(), PaymentInput{
		PayableID: id,
		Amount:    body.Amount,
		ActorID:   body.ActorID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPayableResponse(payable))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("payables request failed", "path", r.URL.Path, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
