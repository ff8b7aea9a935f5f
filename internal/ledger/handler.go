package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/platform/httpx"
)

// Handler exposes read access to posted entries. Entries are only created
// through settlement, never directly over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Get("/by-source/{sourceType}/{sourceID}", h.getBySource)
}

type lineResponse struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

type entryResponse struct {
	ID         int64          `json:"id"`
	EntryDate  time.Time      `json:"entry_date"`
	SourceType string         `json:"source_type"`
	SourceID   uuid.UUID      `json:"source_id"`
	Memo       string         `json:"memo,omitempty"`
	Lines      []lineResponse `json:"lines"`
}

func toEntryResponse(entry Entry) entryResponse {
	resp := entryResponse{
		ID:         entry.ID,
		EntryDate:  entry.EntryDate,
		SourceType: entry.SourceType,
		SourceID:   entry.SourceID,
		Memo:       entry.Memo,
		Lines:      make([]lineResponse, 0, len(entry.Lines)),
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	return resp
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "entry id must be a positive integer")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) getBySource(w http.ResponseWriter, r *http.Request) {
	sourceType := chi.URLParam(r, "sourceType")
	sourceID, err := uuid.Parse(chi.URLParam(r, "sourceID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Source", "source id must be a UUID")
		return
	}
	entry, err := h.service.GetBySource(r.Context(), sourceType, sourceID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error("ledger request failed", "path", r.URL.Path, "error", err)
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
