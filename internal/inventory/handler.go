package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gasline-erp/gasline-erp/internal/platform/httpx"
)

// Handler exposes stock endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/on-hand", h.onHand)
	r.Get("/movements", h.movements)
	r.Post("/adjustments", h.postAdjustment)
}

type balanceResponse struct {
	LocationID int64     `json:"location_id"`
	VariantID  int64     `json:"variant_id"`
	OnHand     int64     `json:"on_hand"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (h *Handler) onHand(w http.ResponseWriter, r *http.Request) {
	locationID, err1 := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	variantID, err2 := strconv.ParseInt(r.URL.Query().Get("variant_id"), 10, 64)
	if err1 != nil || err2 != nil || locationID <= 0 || variantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "location_id and variant_id are required")
		return
	}
	balance, err := h.service.OnHand(r.Context(), locationID, variantID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{
		LocationID: balance.LocationID,
		VariantID:  balance.VariantID,
		OnHand:     balance.OnHand,
		UpdatedAt:  balance.UpdatedAt,
	})
}

type movementResponse struct {
	ID         int64     `json:"id"`
	SourceType string    `json:"source_type"`
	SourceID   uuid.UUID `json:"source_id"`
	LocationID int64     `json:"location_id"`
	VariantID  int64     `json:"variant_id"`
	QtyIn      int64     `json:"qty_in"`
	QtyOut     int64     `json:"qty_out"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{SourceType: q.Get("source_type")}
	if raw := q.Get("location_id"); raw != "" {
		filter.LocationID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := q.Get("variant_id"); raw != "" {
		filter.VariantID, _ = strconv.ParseInt(raw, 10, 64)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		resp = append(resp, movementResponse{
			ID:         m.ID,
			SourceType: m.SourceType,
			SourceID:   m.SourceID,
			LocationID: m.LocationID,
			VariantID:  m.VariantID,
			QtyIn:      m.QtyIn,
			QtyOut:     m.QtyOut,
			Note:       m.Note,
			CreatedAt:  m.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type adjustmentRequest struct {
	LocationID int64  `json:"location_id" validate:"required"`
	VariantID  int64  `json:"variant_id" validate:"required"`
	Qty        int64  `json:"qty" validate:"required"`
	Note       string `json:"note"`
	Reference  string `json:"reference"`
	ActorID    int64  `json:"actor_id" validate:"required"`
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	var body adjustmentRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		LocationID: body.LocationID,
		VariantID:  body.VariantID,
		Qty:        body.Qty,
		Note:       body.Note,
		Reference:  body.Reference,
		ActorID:    body.ActorID,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movementResponse{
		ID:         movement.ID,
		SourceType: movement.SourceType,
		SourceID:   movement.SourceID,
		LocationID: movement.LocationID,
		VariantID:  movement.VariantID,
		QtyIn:      movement.QtyIn,
		QtyOut:     movement.QtyOut,
		Note:       movement.Note,
		CreatedAt:  movement.CreatedAt,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Negative Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidLocation), errors.Is(err, ErrMissingSource):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrBalanceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("inventory request failed", "path", r.URL.Path, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
