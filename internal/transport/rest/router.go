package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/notification"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/obs"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/order"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/provision"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/realtime"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/session"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport/middleware"
	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/transport/swagger"
	"github.com/go-chi/chi"
)

// Handlers bundles every mounted handler set.
type Handlers struct {
	Session      *session.Handler
	Manager      *session.Manager
	Notification *notification.Handler
	Order        *order.Handler
	Provision    *provision.Handler
	AdminKey     string
}

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, feed *realtime.Feed, h Handlers, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, feed)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(obs.Instrument)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())
	// Prometheus scrape endpoint
	router.Handle("/metrics", obs.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Auth routes
		if h.Session != nil {
			r.Route("/auth", func(sr chi.Router) {
				sr.Post("/login", h.Session.Login)
				sr.Post("/refresh", h.Session.RefreshToken)
				sr.Post("/logout", h.Session.Logout)
			})

			// The session endpoints resolve their own token: /me must answer
			// with loading state even while verification is in flight.
			r.Get("/me", h.Session.Me)
			r.Post("/me/refresh-profile", h.Session.RefreshProfile)
			r.Patch("/me/password", h.Session.ChangePassword)
		}

		// Protected routes that require a resolved session
		if h.Manager != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(middleware.Authenticate(h.Manager, logger))

				if h.Notification != nil {
					pr.Route("/notifications", func(nr chi.Router) {
						nr.Get("/", h.Notification.List)
						nr.Get("/unread-count", h.Notification.UnreadCount)
						nr.Get("/stream", h.Notification.Stream)
						nr.Post("/refresh", h.Notification.Refresh)
						nr.Post("/read-all", h.Notification.MarkAllRead)
						nr.Post("/{id}/read", h.Notification.MarkRead)
					})
				}

				if h.Order != nil {
					pr.Group(func(or chi.Router) {
						or.Use(middleware.RequireRoute("/orders", logger))
						or.Route("/orders", func(er chi.Router) {
							er.Post("/", h.Order.Create)
							er.Get("/", h.Order.List)
							er.Get("/my", h.Order.ListMine)
							er.Get("/{id}", h.Order.Get)
							er.Patch("/{id}/status", h.Order.UpdateStatus)
						})
					})
				}
			})
		}

		// Provisioning surface: service key, no session
		if h.Provision != nil {
			r.Group(func(ar chi.Router) {
				ar.Use(middleware.RequireServiceKey(h.AdminKey, logger))
				ar.Route("/sys-admin", func(sr chi.Router) {
					sr.Post("/users", h.Provision.CreateUser)
					sr.Patch("/users/{id}/status", h.Provision.SetUserStatus)
					sr.Post("/companies", h.Provision.CreateCompany)
					sr.Patch("/companies/{id}/status", h.Provision.SetCompanyStatus)
					sr.Post("/mail", h.Provision.SendEmail)
				})
			})
		}
	})
}
