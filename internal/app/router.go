package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
	"github.com/meridian-ops/meridian-ops/internal/masterdata"
	"github.com/meridian-ops/meridian-ops/internal/observability"
	"github.com/meridian-ops/meridian-ops/internal/procurement"
	"github.com/meridian-ops/meridian-ops/internal/production"
	"github.com/meridian-ops/meridian-ops/jobs"
)

// RouterConfig aggregates everything the HTTP surface needs.
type RouterConfig struct {
	Logger      *slog.Logger
	Config      *Config
	Pool        *pgxpool.Pool
	Metrics     *observability.Metrics
	Inventory   *inventory.Handler
	MasterData  *masterdata.Handler
	Procurement *procurement.Handler
	Production  *production.Handler
	Jobs        *jobs.Handler
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: cfg.Logger, Config: cfg.Config, Metrics: cfg.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Pool != nil {
			if err := cfg.Pool.Ping(req.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Inventory != nil {
			r.Route("/inventory", cfg.Inventory.Routes)
		}
		if cfg.MasterData != nil {
			r.Route("/masterdata", cfg.MasterData.Routes)
		}
		if cfg.Procurement != nil {
			r.Route("/procurement", cfg.Procurement.Routes)
		}
		if cfg.Production != nil {
			r.Route("/production", cfg.Production.Routes)
		}
		if cfg.Jobs != nil {
			r.Route("/jobs", func(r chi.Router) {
				cfg.Jobs.MountRoutes(r)
			})
		}
	})

	return r
}
