package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/abrezinsky/ecobingo/internal/patterns"
	"github.com/abrezinsky/ecobingo/internal/services"
)

// maxUploadBody leaves room for multipart framing around a maximum-size photo
const maxUploadBody = services.MaxPhotoBytes + 1<<20

// handleListTasks returns the task catalog
func (h *Handlers) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListTasks(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, tasks)
}

// handleListPatterns returns the bingo pattern definitions
func (h *Handlers) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	respondOK(w, PatternsResponse{Patterns: patterns.Definitions()})
}

// readPhoto extracts the optional "photo" part of a multipart submission.
// Requests that are not multipart carry no photo. The part's declared
// Content-Type is passed through as is; a part without one is rejected by
// the submission service.
func readPhoto(w http.ResponseWriter, r *http.Request) (*services.Photo, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			return nil, services.ErrFileTooLarge
		}
		return nil, BadRequest("Invalid multipart body")
	}

	file, header, err := r.FormFile("photo")
	if stderrors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, BadRequest("Invalid photo upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, BadRequest("Could not read photo upload")
	}

	return &services.Photo{Data: data, ContentType: header.Header.Get("Content-Type"), Filename: header.Filename}, nil
}

// handleSubmitTask records the caller's attempt at a task
func (h *Handlers) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	taskID, err := parseIDParam(r, "taskID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	photo, err := readPhoto(w, r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Submissions.Submit(r.Context(), services.SubmitRequest{
		UserID: user.ID,
		TaskID: taskID,
		Photo:  photo,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondCreated(w, result)
}

// handleMe describes the caller and their task progress
func (h *Handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	tasks, err := h.Submissions.ListUserTasks(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, MeResponse{User: *user, Tasks: tasks})
}

// handleMyTasks lists the catalog with the caller's submission states
func (h *Handlers) handleMyTasks(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	tasks, err := h.Submissions.ListUserTasks(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, tasks)
}

// handleMyBadges evaluates and lists the caller's badges
func (h *Handlers) handleMyBadges(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondBadges(w, r, user.ID)
}

// handleUserBadges evaluates and lists another user's badges
func (h *Handlers) handleUserBadges(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondBadges(w, r, userID)
}

func (h *Handlers) respondBadges(w http.ResponseWriter, r *http.Request, userID int64) {
	badges, err := h.Achievements.GetUserBadges(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, BadgesResponse{UserID: userID, Badges: badges})
}

// handleLeaderboard returns lifetime and monthly standings
func (h *Handlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top := 0
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, r, BadRequest("Invalid top parameter"))
			return
		}
		top = n
	}

	lb, err := h.Leaderboard.GetLeaderboard(r.Context(), top)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondOK(w, lb)
}
