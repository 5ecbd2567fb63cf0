package services

import (
	"context"
	"time"

	"github.com/abrezinsky/ecobingo/internal/fraud"
	"github.com/abrezinsky/ecobingo/internal/models"
)

// SubmissionServicer defines the interface for the submit/review workflow
type SubmissionServicer interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	Approve(ctx context.Context, reviewerID, userID, taskID int64) (*ReviewResult, error)
	Reject(ctx context.Context, reviewerID, userID, taskID int64, reason string) (*ReviewResult, error)
	ListPending(ctx context.Context, reviewerID int64) ([]models.PendingSubmission, error)
	ListUserTasks(ctx context.Context, userID int64) ([]models.UserTaskStatus, error)
	GetPhoto(ctx context.Context, reviewerID, submissionID int64) (*PhotoData, error)
}

// AchievementServicer defines the interface for badge awarding
type AchievementServicer interface {
	CheckAndAward(ctx context.Context, userID int64) (*AwardResult, error)
	GetUserBadges(ctx context.Context, userID int64) ([]models.Badge, error)
	ForceAward(ctx context.Context, reviewerID, userID int64, code models.PatternCode) (*ForceAwardResult, error)
}

// LeaderboardServicer defines the interface for point standings
type LeaderboardServicer interface {
	GetLeaderboard(ctx context.Context, top int) (*Leaderboard, error)
	ResetMonthly(ctx context.Context, now time.Time, force bool) (*ResetResult, error)
}

// TaskServicer defines the interface for the task catalog
type TaskServicer interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, reviewerID int64, req CreateTaskRequest) (*models.Task, error)
	SeedCatalog(ctx context.Context) (int, error)
	SeedUsers(ctx context.Context) ([]models.User, error)
	QRCode(ctx context.Context, reviewerID, taskID int64) ([]byte, error)
	TaskURL(task models.Task) string
}

// FraudChecker is the duplicate-photo detector used on submit and approval
type FraudChecker interface {
	IsFraudulent(ctx context.Context, photo []byte, scopeUserID int64) (fraud.Verdict, error)
	SaveSignature(ctx context.Context, submissionID int64, photo []byte) error
}

// Awarder runs after every approval
type Awarder interface {
	CheckAndAward(ctx context.Context, userID int64) (*AwardResult, error)
}

// Ensure concrete types implement interfaces
var (
	_ SubmissionServicer  = (*SubmissionService)(nil)
	_ AchievementServicer = (*AchievementService)(nil)
	_ LeaderboardServicer = (*LeaderboardService)(nil)
	_ TaskServicer        = (*TaskService)(nil)
	_ Awarder             = (*AchievementService)(nil)
	_ FraudChecker        = (*fraud.Detector)(nil)
)
