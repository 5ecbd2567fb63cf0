package repository

import (
	"context"

	"github.com/abrezinsky/ecobingo/internal/models"
)

// UserRepository defines user data operations
type UserRepository interface {
	EnsureUser(ctx context.Context, username string, role models.Role) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// TaskRepository defines task catalog operations
type TaskRepository interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	CreateTask(ctx context.Context, task models.Task) (int64, error)
	SeedTasks(ctx context.Context, tasks []models.Task) (int, error)
}

// SubmissionRepository defines submission data operations
type SubmissionRepository interface {
	GetSubmission(ctx context.Context, userID, taskID int64) (*models.Submission, error)
	GetSubmissionByID(ctx context.Context, id int64) (*models.Submission, error)
	SavePendingSubmission(ctx context.Context, sub NewSubmission) (int64, error)
	SaveApprovedSubmission(ctx context.Context, sub NewSubmission, points int) (int64, error)
	ApproveSubmission(ctx context.Context, userID, taskID int64, points int) (*models.Submission, error)
	RejectSubmission(ctx context.Context, userID, taskID int64, reason string) error
	ListPendingSubmissions(ctx context.Context) ([]models.PendingSubmission, error)
	ListRecentPhotoSubmissions(ctx context.Context, userID int64, limit int) ([]models.Submission, error)
	ListCompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error)
	ListUserTaskStatuses(ctx context.Context, userID int64) ([]models.UserTaskStatus, error)
}

// AchievementRepository defines badge and pattern operations
type AchievementRepository interface {
	ListBadges(ctx context.Context, userID int64) ([]models.Badge, error)
	GrantBadge(ctx context.Context, userID int64, pattern models.Pattern) (bool, error)
	AddCompletionBonus(ctx context.Context, userID int64, bonus int) error
}

// LeaderboardRepository defines point ledger operations
type LeaderboardRepository interface {
	GetLeaderboardEntry(ctx context.Context, userID int64) (*models.LeaderboardEntry, error)
	TopLifetime(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	TopMonthly(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	ResetMonthlyPoints(ctx context.Context) (int64, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	UserRepository
	TaskRepository
	SubmissionRepository
	AchievementRepository
	LeaderboardRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
