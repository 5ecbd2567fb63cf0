package handlers

import (
	"net/http"
	"time"

	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/services"
)

// handleListPending returns the review queue
func (h *Handlers) handleListPending(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	pending, err := h.Submissions.ListPending(r.Context(), reviewer.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := make([]PendingResponse, 0, len(pending))
	for _, p := range pending {
		resp = append(resp, newPendingResponse(p))
	}
	respondOK(w, resp)
}

// handleApprove approves a pending submission
func (h *Handlers) handleApprove(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Submissions.Approve(r.Context(), reviewer.ID, req.UserID, req.TaskID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleReject rejects a submission so it can be redone
func (h *Handlers) handleReject(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Submissions.Reject(r.Context(), reviewer.ID, req.UserID, req.TaskID, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleSubmissionPhoto streams a submission's photo
func (h *Handlers) handleSubmissionPhoto(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	id, err := parseIDParam(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	photo, err := h.Submissions.GetPhoto(r.Context(), reviewer.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	respondBytes(w, photo.ContentType, photo.Data)
}

// handleCreateTask adds a task to the catalog
func (h *Handlers) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req services.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	task, err := h.Tasks.CreateTask(r.Context(), reviewer.ID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, task)
}

// handleTaskQR renders a task's QR code as PNG
func (h *Handlers) handleTaskQR(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	taskID, err := parseIDParam(r, "taskID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	png, err := h.Tasks.QRCode(r.Context(), reviewer.ID, taskID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondBytes(w, "image/png", png)
}

// handleForceAward grants a pattern regardless of the board
func (h *Handlers) handleForceAward(w http.ResponseWriter, r *http.Request) {
	reviewer, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req ForceAwardRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.UserID <= 0 || req.Pattern == "" {
		h.respondError(w, r, BadRequest("user_id and pattern are required"))
		return
	}

	result, err := h.Achievements.ForceAward(r.Context(), reviewer.ID, req.UserID, req.Pattern)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}

// handleResetMonthly zeroes monthly points. Admins only; always forced.
func (h *Handlers) handleResetMonthly(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if user.Role != models.RoleAdmin {
		h.respondError(w, r, services.ErrPermissionDenied)
		return
	}

	result, err := h.Leaderboard.ResetMonthly(r.Context(), time.Now(), true)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, result)
}
