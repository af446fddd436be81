package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"parcel-tracking/internal/handlers"
)

// Handlers groups the HTTP handlers served by the router. Admin may be nil.
type Handlers struct {
	Records  *handlers.RecordHandler
	Carriers *handlers.CarrierHandler
	Health   *handlers.HealthHandler
	Admin    *handlers.AdminHandler
}

// RouterConfig controls route registration
type RouterConfig struct {
	// AdminAPIKey guards carrier changes and the admin routes. When empty
	// those routes are not registered.
	AdminAPIKey string
	Logger      *slog.Logger
}

// NewRouter builds the chi router for the tracking API
func NewRouter(h Handlers, config RouterConfig) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware,
		ContentTypeMiddleware,
		SecurityMiddleware,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health.HealthCheck)

		r.Get("/records", h.Records.GetRecords)
		r.Get("/records/{tracking_number}", h.Records.GetRecord)
		r.Post("/refresh", h.Records.Refresh)

		r.Get("/carriers", h.Carriers.GetCarriers)

		if config.AdminAPIKey == "" {
			logger.Info("Admin API key not set, admin routes disabled")
			return
		}

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(config.AdminAPIKey, logger))

			r.Post("/carriers", h.Carriers.CreateCarrier)
			r.Delete("/carriers/{key}", h.Carriers.DeleteCarrier)

			if h.Admin == nil {
				return
			}
			r.Get("/admin/poller/status", h.Admin.GetPollerStatus)
			r.Post("/admin/poller/pause", h.Admin.PausePoller)
			r.Post("/admin/poller/resume", h.Admin.ResumePoller)
			r.Get("/admin/cache/stats", h.Admin.GetCacheStats)
		})
	})

	return r
}
