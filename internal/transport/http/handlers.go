package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/auth"
	"github.com/fedutinova/minedash/internal/config"
	"github.com/fedutinova/minedash/internal/database"
	"github.com/fedutinova/minedash/internal/dataset"
	"github.com/fedutinova/minedash/internal/memq"
	"github.com/fedutinova/minedash/internal/redis"
	"github.com/fedutinova/minedash/internal/storage"
)

// Handlers serves the dashboard. DB, Redis and Storage are optional and nil
// when not configured.
type Handlers struct {
	Gate      *access.Gate
	Directory *auth.Directory
	Revoker   auth.Revoker
	Store     *dataset.Store
	Insights  *dataset.Insights
	Q         memq.JobQueue
	Storage   storage.Storage
	DB        *database.DB
	Redis     *redis.Service
	Config    config.Config
}

func (h *Handlers) Routers(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Group(func(r chi.Router) {
		r.Use(auth.SessionMiddleware(h.Config.SessionSecret, h.Config.SessionIssuer, h.Revoker))

		r.Get("/", h.index)
		r.Get("/login", h.loginPage)
		r.With(h.loginLimiter()).Post("/login", h.login)
		r.Get("/logout", h.logout)

		r.With(auth.RequireSession).Get("/dashboard", h.dashboard)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCapability(h.Gate, access.Database))
			r.Get("/minerals", h.minerals)
			r.Post("/minerals", h.addMineralInsight)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCapability(h.Gate, access.Profiles))
			r.Get("/countries", h.countries)
			r.Post("/countries", h.addCountryInsight)
		})

		r.With(auth.RequireCapability(h.Gate, access.Charts)).Get("/charts", h.charts)
		r.With(auth.RequireCapability(h.Gate, access.Production)).Get("/production", h.production)
		r.With(auth.RequireCapability(h.Gate, access.Map)).Get("/map", h.siteMap)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCapability(h.Gate, access.Export))
			r.Get("/exports/{report}.csv", h.export)
			r.Get("/exports/jobs/{id}", h.getJob)
			if h.Storage != nil {
				r.Get("/archive/*", h.serveArchive)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCapability(h.Gate, access.All))
			r.Get("/admin", h.adminPage)
			r.Post("/admin", h.admin)
		})
	})
}

// loginLimiter throttles login attempts per client IP. A non-positive
// LOGIN_RATE_LIMIT disables it.
func (h *Handlers) loginLimiter() func(http.Handler) http.Handler {
	if h.Config.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(h.Config.LoginRateLimit, h.Config.LoginRateWindow)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

// session is only called behind RequireSession or RequireCapability.
func session(r *http.Request) *auth.Session {
	s, _ := auth.FromContext(r.Context())
	return s
}
