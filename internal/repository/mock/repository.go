package mock

import (
	"context"

	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.GrantBadgeError = errors.New("database error")
//	svc := services.NewAchievementService(log, mockRepo, nil)
//	_, err := svc.CheckAndAward(ctx, userID)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Task Errors =====
	ListTasksError error
	GetTaskError   error

	// ===== Submission Errors =====
	GetSubmissionError              error
	SavePendingSubmissionError      error
	SaveApprovedSubmissionError     error
	ApproveSubmissionError          error
	RejectSubmissionError           error
	ListRecentPhotoSubmissionsError error
	ListCompletedTaskIDsError       error

	// ===== Achievement Errors =====
	ListBadgesError         error
	GrantBadgeError         error
	AddCompletionBonusError error

	// ===== Leaderboard Errors =====
	TopLifetimeError        error
	ResetMonthlyPointsError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Task Methods =====

func (m *Repository) ListTasks(ctx context.Context) ([]models.Task, error) {
	if m.ListTasksError != nil {
		return nil, m.ListTasksError
	}
	return m.FullRepository.ListTasks(ctx)
}

func (m *Repository) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	if m.GetTaskError != nil {
		return nil, m.GetTaskError
	}
	return m.FullRepository.GetTask(ctx, id)
}

// ===== Submission Methods =====

func (m *Repository) GetSubmission(ctx context.Context, userID, taskID int64) (*models.Submission, error) {
	if m.GetSubmissionError != nil {
		return nil, m.GetSubmissionError
	}
	return m.FullRepository.GetSubmission(ctx, userID, taskID)
}

func (m *Repository) SavePendingSubmission(ctx context.Context, sub repository.NewSubmission) (int64, error) {
	if m.SavePendingSubmissionError != nil {
		return 0, m.SavePendingSubmissionError
	}
	return m.FullRepository.SavePendingSubmission(ctx, sub)
}

func (m *Repository) SaveApprovedSubmission(ctx context.Context, sub repository.NewSubmission, points int) (int64, error) {
	if m.SaveApprovedSubmissionError != nil {
		return 0, m.SaveApprovedSubmissionError
	}
	return m.FullRepository.SaveApprovedSubmission(ctx, sub, points)
}

func (m *Repository) ApproveSubmission(ctx context.Context, userID, taskID int64, points int) (*models.Submission, error) {
	if m.ApproveSubmissionError != nil {
		return nil, m.ApproveSubmissionError
	}
	return m.FullRepository.ApproveSubmission(ctx, userID, taskID, points)
}

func (m *Repository) RejectSubmission(ctx context.Context, userID, taskID int64, reason string) error {
	if m.RejectSubmissionError != nil {
		return m.RejectSubmissionError
	}
	return m.FullRepository.RejectSubmission(ctx, userID, taskID, reason)
}

func (m *Repository) ListRecentPhotoSubmissions(ctx context.Context, userID int64, limit int) ([]models.Submission, error) {
	if m.ListRecentPhotoSubmissionsError != nil {
		return nil, m.ListRecentPhotoSubmissionsError
	}
	return m.FullRepository.ListRecentPhotoSubmissions(ctx, userID, limit)
}

func (m *Repository) ListCompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.ListCompletedTaskIDsError != nil {
		return nil, m.ListCompletedTaskIDsError
	}
	return m.FullRepository.ListCompletedTaskIDs(ctx, userID)
}

// ===== Achievement Methods =====

func (m *Repository) ListBadges(ctx context.Context, userID int64) ([]models.Badge, error) {
	if m.ListBadgesError != nil {
		return nil, m.ListBadgesError
	}
	return m.FullRepository.ListBadges(ctx, userID)
}

func (m *Repository) GrantBadge(ctx context.Context, userID int64, pattern models.Pattern) (bool, error) {
	if m.GrantBadgeError != nil {
		return false, m.GrantBadgeError
	}
	return m.FullRepository.GrantBadge(ctx, userID, pattern)
}

func (m *Repository) AddCompletionBonus(ctx context.Context, userID int64, bonus int) error {
	if m.AddCompletionBonusError != nil {
		return m.AddCompletionBonusError
	}
	return m.FullRepository.AddCompletionBonus(ctx, userID, bonus)
}

// ===== Leaderboard Methods =====

func (m *Repository) TopLifetime(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if m.TopLifetimeError != nil {
		return nil, m.TopLifetimeError
	}
	return m.FullRepository.TopLifetime(ctx, limit)
}

func (m *Repository) ResetMonthlyPoints(ctx context.Context) (int64, error) {
	if m.ResetMonthlyPointsError != nil {
		return 0, m.ResetMonthlyPointsError
	}
	return m.FullRepository.ResetMonthlyPoints(ctx)
}
