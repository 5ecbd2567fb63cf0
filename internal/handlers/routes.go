package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}

	r.Get("/healthz", h.handleHealth)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	// Public API
	r.Get("/api/tasks", h.handleListTasks)
	r.Get("/api/patterns", h.handleListPatterns)
	r.Get("/api/leaderboard", h.handleLeaderboard)

	// WebSocket (token in query string); no timeout on a long-lived connection
	r.With(h.Auth.RequireUser).Get("/ws", h.handleWebSocket)

	// Player API (bearer token)
	r.Group(func(r chi.Router) {
		r.Use(h.Auth.RequireUser)
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/api/tasks/{taskID}/submit", h.handleSubmitTask)
		r.Get("/api/me", h.handleMe)
		r.Get("/api/me/tasks", h.handleMyTasks)
		r.Get("/api/me/badges", h.handleMyBadges)
		r.Get("/api/users/{userID}/badges", h.handleUserBadges)

		// Review API; the services check the caller's role
		r.Route("/api/review", func(r chi.Router) {
			r.Get("/pending", h.handleListPending)
			r.Post("/approve", h.handleApprove)
			r.Post("/reject", h.handleReject)
			r.Get("/submissions/{id}/photo", h.handleSubmissionPhoto)
			r.Post("/tasks", h.handleCreateTask)
			r.Get("/tasks/{taskID}/qr", h.handleTaskQR)
			r.Post("/force-award", h.handleForceAward)
			r.Post("/reset-monthly", h.handleResetMonthly)
		})
	})

	return r
}
