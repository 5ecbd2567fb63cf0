package handlers

import (
	"context"
	"net/http"

	"github.com/abrezinsky/ecobingo/internal/auth"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/metrics"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/services"
	"github.com/abrezinsky/ecobingo/internal/websocket"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Submissions  services.SubmissionServicer
	Achievements services.AchievementServicer
	Leaderboard  services.LeaderboardServicer
	Tasks        services.TaskServicer
	Auth         *auth.Auth
	Hub          *websocket.Hub
	Metrics      *metrics.Metrics
	Log          logger.Logger
	Ping         func(ctx context.Context) error
}

// New creates a new Handlers instance with all dependencies
func New(
	submissions services.SubmissionServicer,
	achievements services.AchievementServicer,
	leaderboard services.LeaderboardServicer,
	tasks services.TaskServicer,
	playerAuth *auth.Auth,
	hub *websocket.Hub,
	m *metrics.Metrics,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Submissions:  submissions,
		Achievements: achievements,
		Leaderboard:  leaderboard,
		Tasks:        tasks,
		Auth:         playerAuth,
		Hub:          hub,
		Metrics:      m,
		Log:          log,
	}
}

// currentUser returns the authenticated caller. Routes behind RequireUser
// always have one.
func currentUser(r *http.Request) (*models.User, error) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleHealth reports whether the database answers
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	respondOK(w, HealthResponse{Status: "ok"})
}

// handleWebSocket upgrades an authenticated caller
func (h *Handlers) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.Hub.ServeUser(w, r, user.ID)
}
