package rest

import (
	"log/slog"
	"net/http"

	"github.com/heartmarshall/gazetteer-backend/internal/config"
	"github.com/heartmarshall/gazetteer-backend/internal/transport/middleware"
)

// Handlers groups every HTTP handler mounted by NewRouter.
type Handlers struct {
	Health *HealthHandler
	Ledger *LedgerHandler
	Places *PlacesHandler
	Admin  *AdminHandler
}

// RouterConfig carries the transport settings the router needs.
type RouterConfig struct {
	Server config.ServerConfig
	CORS   config.CORSConfig
}

// NewRouter mounts all routes. limiter may be nil, which disables write rate
// limiting.
func NewRouter(logger *slog.Logger, h Handlers, cfg RouterConfig, limiter *middleware.RateLimiter) http.Handler {
	var writeLimit middleware.Middleware
	if limiter != nil {
		writeLimit = limiter.Limit(cfg.Server.WriteRateLimit)
	}
	admin := middleware.RequireAdminToken(cfg.Server.AdminToken)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", h.Health.Live)
	mux.HandleFunc("GET /ready", h.Health.Ready)
	mux.HandleFunc("GET /health", h.Health.Health)

	mux.Handle("POST /changesets", middleware.Wrap(h.Ledger.SubmitChangeset, writeLimit))
	mux.Handle("POST /decisions", middleware.Wrap(h.Ledger.RecordDecision, writeLimit))
	mux.HandleFunc("GET /changesets/{id}/decision", h.Ledger.EffectiveDecision)
	mux.HandleFunc("GET /pending", h.Ledger.Pending)

	mux.HandleFunc("GET /places", h.Places.List)
	mux.HandleFunc("GET /places/search", h.Places.Search)
	mux.HandleFunc("GET /places/{id}", h.Places.Get)
	mux.HandleFunc("GET /places/{id}/history", h.Ledger.History)
	mux.HandleFunc("POST /resolve", h.Places.Resolve)

	mux.Handle("POST /admin/recompute", middleware.Wrap(h.Admin.Recompute, admin))
	mux.Handle("POST /admin/rebuild", middleware.Wrap(h.Admin.Rebuild, admin))
	mux.Handle("GET /admin/queue", middleware.Wrap(h.Admin.QueueStats, admin))

	return middleware.Chain(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.CORS(cfg.CORS),
		middleware.Actor(),
	)(mux)
}
