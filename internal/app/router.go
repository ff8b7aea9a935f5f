package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gasline-erp/gasline-erp/internal/inventory"
	"github.com/gasline-erp/gasline-erp/internal/ledger"
	"github.com/gasline-erp/gasline-erp/internal/payables"
	"github.com/gasline-erp/gasline-erp/internal/restock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	RestockHandler   *restock.Handler
	PayablesHandler  *payables.Handler
	LedgerHandler    *ledger.Handler
	InventoryHandler *inventory.Handler
}

// NewRouter constructs the chi.Router with Gasline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/restock-requests", params.RestockHandler.MountRoutes)
		r.Route("/payables", params.PayablesHandler.MountRoutes)
		r.Route("/ledger-entries", params.LedgerHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	})

	return r
}
