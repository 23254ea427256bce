package server

import (
	"net/http"
	"time"

	"floorpulse-backend/internal/config"
	"floorpulse-backend/internal/domain"
	"floorpulse-backend/internal/handler"
	"floorpulse-backend/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
)

// NewRouter wires HTTP routes and middleware. scanLog may be nil when the
// audit database is not configured.
func NewRouter(cfg config.Config,
	logger *slog.Logger,
	auth service.AuthService,
	health handler.HealthHandler,
	docs handler.DocsHandler,
	authInfo handler.AuthHandler,
	scans handler.ScanHandler,
	attendance handler.AttendanceHandler,
	dashboard handler.DashboardHandler,
	stock handler.StockHandler,
	stockAdmin handler.StockAdminHandler,
	production handler.ProductionHandler,
	badges handler.BadgeHandler,
	events handler.EventsHandler,
	scanLog *handler.ScanLogHandler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByIP(600, 1*time.Minute))

	health.RegisterRoutes(r)
	docs.RegisterRoutes(r)
	r.Method("GET", "/metrics", promhttp.Handler())
	// long-lived stream, kept out of the request timeout
	events.RegisterRoutes(r)

	r.Group(func(tr chi.Router) {
		tr.Use(middleware.Timeout(60 * time.Second))

		tr.Group(func(sr chi.Router) {
			sr.Use(httprate.LimitByIP(cfg.ScanRateLimit, 1*time.Minute))
			scans.RegisterRoutes(sr)
		})
		attendance.RegisterRoutes(tr)
		dashboard.RegisterRoutes(tr)
		stock.RegisterRoutes(tr)
		production.RegisterRoutes(tr)
		badges.RegisterRoutes(tr)

		// manager-level (manager/admin)
		tr.Group(func(mr chi.Router) {
			if cfg.JWTSecret != "" {
				mr.Use(AuthMiddleware(auth))
				mr.Use(RequireRole(domain.RoleAdmin, domain.RoleManager))
			} else {
				logger.Warn("JWT_SECRET not set, manager routes are unauthenticated")
			}
			authInfo.RegisterProtectedRoutes(mr)
			stockAdmin.RegisterRoutes(mr)
			production.RegisterProtectedRoutes(mr)
			if scanLog != nil {
				scanLog.RegisterRoutes(mr)
			}
		})
	})

	return r
}
