package httptransport

import (
	"expvar"
	"net/http"
	"sort"
	"strings"

	"guild-economy/internal/catalog"
	"guild-economy/internal/config"
	"guild-economy/internal/settlement"
	"guild-economy/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st store.Store, cat *catalog.Catalog, o *settlement.Orchestrator, cfg config.ServerConfig) *chi.Mux {
	settleHandlers := NewSettleHandlers(o)
	publicHandlers := NewPublicHandlers(st, cat)
	adminHandlers := NewAdminHandlers(st, o, cat)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(ServiceAuthMiddleware(cfg.APIKey))
			r.Get("/instruments", publicHandlers.Instruments())
			r.Route("/realms/{realm}", func(r chi.Router) {
				r.Post("/settle", settleHandlers.Settle())
				r.Post("/stage", settleHandlers.Begin())
				r.Post("/stage/resolve", settleHandlers.Resolve())
				r.Post("/stage/cancel", settleHandlers.Cancel())
				r.Get("/accounts/{account}/balance", publicHandlers.Balance())
				r.Get("/accounts/{account}/ledger", publicHandlers.AccountLedger())
				r.Get("/rank", publicHandlers.Rank())
				r.Get("/config", publicHandlers.GuildConfig())
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Use(AdminAuditMiddleware(4096))
			r.Route("/realms/{realm}", func(r chi.Router) {
				r.Post("/adjust", adminHandlers.Adjust())
				r.Post("/cooldowns/reset", adminHandlers.ResetCooldown())
				r.Get("/config", adminHandlers.GetConfig())
				r.Put("/config", adminHandlers.PutConfig())
				r.Get("/ledger", adminHandlers.Ledger())
				r.Get("/audit", adminHandlers.Audit())
			})
			r.Post("/catalog/reload", adminHandlers.ReloadCatalog())
			r.Post("/locks/sweep", adminHandlers.Sweep())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	})
	return r
}

// LogRoutes logs the registered method/pattern pairs at startup, sorted by
// pattern, and returns how many there are.
func LogRoutes(r chi.Routes) int {
	var routes []string
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, route+" "+method)
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return 0
	}
	sort.Strings(routes)
	for _, rt := range routes {
		pattern, method, _ := strings.Cut(rt, " ")
		log.Debug().Str("method", method).Str("pattern", pattern).Msg("route")
	}
	log.Info().Int("routes", len(routes)).Msg("router ready")
	return len(routes)
}
