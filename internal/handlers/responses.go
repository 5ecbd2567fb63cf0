package handlers

import (
	"fmt"

	"github.com/abrezinsky/ecobingo/internal/models"
)

// MeResponse describes the caller
type MeResponse struct {
	User  models.User             `json:"user"`
	Tasks []models.UserTaskStatus `json:"tasks"`
}

// PendingResponse is a review queue entry with a link to its photo
type PendingResponse struct {
	models.PendingSubmission
	PhotoURL string `json:"photo_url,omitempty"`
}

func newPendingResponse(p models.PendingSubmission) PendingResponse {
	resp := PendingResponse{PendingSubmission: p}
	if p.HasPhoto {
		resp.PhotoURL = fmt.Sprintf("/api/review/submissions/%d/photo", p.ID)
	}
	return resp
}

// BadgesResponse lists a user's badges
type BadgesResponse struct {
	UserID int64          `json:"user_id"`
	Badges []models.Badge `json:"badges"`
}

// PatternsResponse lists every pattern definition
type PatternsResponse struct {
	Patterns []models.Pattern `json:"patterns"`
}
