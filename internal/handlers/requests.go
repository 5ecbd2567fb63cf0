package handlers

import "github.com/abrezinsky/ecobingo/internal/models"

// ReviewRequest identifies a submission to approve or reject
type ReviewRequest struct {
	UserID int64  `json:"user_id"`
	TaskID int64  `json:"task_id"`
	Reason string `json:"reason,omitempty"`
}

func (r ReviewRequest) validate() error {
	if r.UserID <= 0 || r.TaskID <= 0 {
		return BadRequest("user_id and task_id are required")
	}
	return nil
}

// ForceAwardRequest grants a pattern to a user
type ForceAwardRequest struct {
	UserID  int64              `json:"user_id"`
	Pattern models.PatternCode `json:"pattern"`
}
