package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-office-trash/internal/config"
	"go-office-trash/internal/handler"
	"go-office-trash/internal/metrics"
	"go-office-trash/internal/middleware"
	"go-office-trash/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Entity *handler.EntityHandler
	Trash  *handler.TrashHandler
	Jobs   *handler.JobsHandler
	Audit  *handler.AuditHandler
	System *handler.SystemHandler
	// Events serves the websocket event stream.
	Events http.HandlerFunc
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.RateLimits{
		General: cfg.RateLimitRPM,
		Auth:    cfg.AuthRateLimitRPM,
		Bulk:    cfg.BulkRateLimitRPM,
	})

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if m != nil {
		r.Use(middleware.Metrics(m))
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.System.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// The websocket route stays outside the request timeout; http.TimeoutHandler
	// cannot hijack connections.
	if h.Events != nil {
		r.With(authMiddleware.RequireAuth).Get("/ws", h.Events)
	}

	adminOnly := authMiddleware.RequireRoles(model.RoleAdmin)
	staff := authMiddleware.RequireRoles(model.RoleAdmin, model.RoleManager)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Group(func(private chi.Router) {
			private.Use(authMiddleware.RequireAuth)

			private.Route("/users", func(users chi.Router) {
				users.Use(adminOnly)
				users.Get("/", h.User.List)
				users.Post("/", h.User.Create)
				users.Get("/{id}", h.User.Get)
			})

			private.Route("/entities/{type}", func(entities chi.Router) {
				entities.Get("/", h.Entity.List)
				entities.Post("/", h.Entity.Create)
				entities.Get("/{id}", h.Entity.Get)
				entities.Put("/{id}", h.Entity.Update)
				entities.Delete("/{id}", h.Entity.Delete)
			})

			private.Route("/trash", func(trash chi.Router) {
				trash.Get("/", h.Trash.List)
				trash.Get("/stats", h.Trash.Stats)
				trash.With(staff).Get("/export", h.Trash.Export)
				trash.Post("/bulk/restore", h.Trash.BulkRestore)
				trash.With(staff).Post("/bulk/delete", h.Trash.BulkDelete)
				trash.With(adminOnly).Post("/expire", h.Trash.Expire)
				trash.Post("/jobs", h.Jobs.Create)
				trash.Get("/jobs/{job_id}", h.Jobs.Get)
				trash.Get("/{id}", h.Trash.Get)
				trash.Get("/{id}/related", h.Trash.Related)
				trash.Post("/{id}/restore", h.Trash.Restore)
				trash.With(staff).Delete("/{id}", h.Trash.Delete)
			})

			private.With(adminOnly).Get("/settings/trash", h.System.Settings)
			private.With(adminOnly).Get("/audit", h.Audit.List)
		})
	})

	return r
}
