package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of user roles
type Role int

const (
	RolePlayer Role = iota
	RoleReviewer
	RoleAdmin
)

// ParseRole maps a role name to a Role. Unknown names are an error.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "player":
		return RolePlayer, nil
	case "reviewer":
		return RoleReviewer, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleReviewer:
		return "reviewer"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// CanReview reports whether the role may approve or reject submissions
func (r Role) CanReview() bool {
	switch r {
	case RoleReviewer, RoleAdmin:
		return true
	case RolePlayer:
		return false
	default:
		return false
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is an authenticated participant
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Task is a sustainability action in the catalog
type Task struct {
	ID             int64    `json:"id"`
	Description    string   `json:"description"`
	Points         int      `json:"points"`
	RequiresUpload bool     `json:"requires_upload"`
	RequiresScan   bool     `json:"requires_scan"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// HasLocation reports whether the task is tied to a map location
func (t Task) HasLocation() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// SubmissionStatus is the review state of a submission
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

// Submission is a user's attempt at a task. One per (user, task).
type Submission struct {
	ID               int64            `json:"id"`
	UserID           int64            `json:"user_id"`
	TaskID           int64            `json:"task_id"`
	Status           SubmissionStatus `json:"status"`
	Completed        bool             `json:"completed"`
	PhotoKey         string           `json:"-"`
	PhotoContentType string           `json:"-"`
	RejectionReason  string           `json:"rejection_reason,omitempty"`
	BonusPoints      int              `json:"bonus_points"`
	SubmittedAt      time.Time        `json:"submitted_at"`
	ReviewedAt       *time.Time       `json:"reviewed_at,omitempty"`
}

// HasPhoto reports whether a photo was stored with the submission
func (s Submission) HasPhoto() bool {
	return s.PhotoKey != ""
}

// PendingSubmission is a review queue row
type PendingSubmission struct {
	Submission
	Username        string `json:"username"`
	TaskDescription string `json:"task_description"`
	TaskPoints      int    `json:"task_points"`
	HasPhoto        bool   `json:"has_photo"`
}

// UserTaskStatus is a task as seen by one user
type UserTaskStatus struct {
	Task
	Status          SubmissionStatus `json:"status,omitempty"`
	Completed       bool             `json:"completed"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
}

// PatternCode identifies a bingo pattern
type PatternCode string

const (
	PatternO     PatternCode = "O"
	PatternX     PatternCode = "X"
	PatternH     PatternCode = "H"
	PatternV     PatternCode = "V"
	PatternHoriz PatternCode = "HORIZ"
	PatternVert  PatternCode = "VERT"
)

// Pattern is a bingo pattern definition
type Pattern struct {
	Code        PatternCode `json:"code"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	BonusPoints int         `json:"bonus_points"`
}

// Badge is a pattern a user has earned
type Badge struct {
	UserID      int64       `json:"user_id"`
	PatternCode PatternCode `json:"pattern"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	BonusPoints int         `json:"bonus_points"`
	AwardedAt   time.Time   `json:"awarded_at"`
}

// LeaderboardEntry holds a user's point totals
type LeaderboardEntry struct {
	UserID        int64  `json:"user_id"`
	Username      string `json:"username"`
	Points        int    `json:"points"`
	MonthlyPoints int    `json:"monthly_points"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
