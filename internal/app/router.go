package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/fiscal"
	"github.com/solvent-hq/solvent/internal/journal"
	"github.com/solvent-hq/solvent/internal/ledger"
	"github.com/solvent-hq/solvent/internal/observability"
	"github.com/solvent-hq/solvent/internal/tenant"
	"github.com/solvent-hq/solvent/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AccountsHandler *accounts.Handler
	JournalHandler  *journal.Handler
	LedgerHandler   *ledger.Handler
	FiscalHandler   *fiscal.Handler
	JobsHandler     *jobs.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with kernel defaults. Health and
// metrics endpoints stay outside the tenant boundary; everything else
// requires a resolved tenant identity.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Group(func(r chi.Router) {
		r.Use(tenant.Middleware)
		if params.AccountsHandler != nil {
			r.Route("/accounts", params.AccountsHandler.MountRoutes)
		}
		if params.JournalHandler != nil {
			r.Route("/journals", params.JournalHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.FiscalHandler != nil {
			r.Route("/fiscal", params.FiscalHandler.MountRoutes)
		}
	})

	return r
}
