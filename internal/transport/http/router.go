package httptransport

import (
	"expvar"
	"net/http"

	"pawshop-economy/internal/config"
	"pawshop-economy/internal/economy"
	"pawshop-economy/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(svc *economy.Service, st *store.Store, cfg config.ServerConfig) *chi.Mux {
	h := NewEconomyHandlers(svc, st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", h.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(AccountAuthMiddleware())
			r.Post("/login", h.Login())
			r.Get("/account", h.Account())
			r.Post("/recruit", h.Recruit())
			r.Post("/wheel/spin", h.SpinWheel())
			r.Get("/units", h.ListUnits())
			r.Post("/units/{unit_id}/assign", h.AssignUnit())
			r.Post("/units/{unit_id}/unassign", h.UnassignUnit())
			r.Post("/sessions", h.StartSession())
			r.Get("/sessions/{session_id}", h.GetSession())
			r.Post("/sessions/{session_id}/choice", h.ResolveChoice())
			r.Post("/sessions/{session_id}/complete", h.CompleteSession())
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Get("/ledger", h.Ledger())
			r.Post("/accounts/{account_id}/deactivate", h.DeactivateAccount())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	})
	return r
}
