package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/abrezinsky/ecobingo/internal/errors"
	"github.com/abrezinsky/ecobingo/internal/events"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/metrics"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/photostore"
	"github.com/abrezinsky/ecobingo/internal/repository"
)

// MaxPhotoBytes is the largest accepted photo
const MaxPhotoBytes = 10 * 1024 * 1024

// SubmissionServiceRepository defines the repository methods needed by SubmissionService
type SubmissionServiceRepository interface {
	repository.UserRepository
	repository.TaskRepository
	repository.SubmissionRepository
}

// SubmissionService runs the submit and review workflow
type SubmissionService struct {
	log        logger.Logger
	repo       SubmissionServiceRepository
	photos     photostore.Store
	detector   FraudChecker
	awarder    Awarder
	publisher  events.Publisher
	metrics    *metrics.Metrics
	userScoped bool
}

// NewSubmissionService creates a new SubmissionService. With userScoped set,
// photos are only compared against the submitter's own earlier photos.
func NewSubmissionService(log logger.Logger, repo SubmissionServiceRepository, photos photostore.Store, detector FraudChecker, awarder Awarder, userScoped bool) *SubmissionService {
	return &SubmissionService{
		log:        log,
		repo:       repo,
		photos:     photos,
		detector:   detector,
		awarder:    awarder,
		publisher:  events.Nop{},
		userScoped: userScoped,
	}
}

// SetPublisher sets where review notifications go
func (s *SubmissionService) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

// SetMetrics attaches a metrics sink
func (s *SubmissionService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Photo is an uploaded image as received
type Photo struct {
	Data        []byte
	ContentType string
	Filename    string
}

// SubmitRequest is a player's claim to have done a task
type SubmitRequest struct {
	UserID int64
	TaskID int64
	Photo  *Photo
}

// SubmitResult is the outcome of an accepted submission
type SubmitResult struct {
	Status       models.SubmissionStatus `json:"status"`
	Message      string                  `json:"message"`
	SubmissionID int64                   `json:"submission_id"`
	Points       int                     `json:"points,omitempty"`
	Similarity   float64                 `json:"similarity,omitempty"`
	NewBadges    []models.PatternCode    `json:"new_badges,omitempty"`
}

// ReviewResult is the outcome of an approval or rejection
type ReviewResult struct {
	Message   string               `json:"message"`
	Points    int                  `json:"points,omitempty"`
	NewBadges []models.PatternCode `json:"new_badges,omitempty"`
}

// PhotoData holds a stored photo for streaming
type PhotoData struct {
	Data        []byte
	ContentType string
}

func (s *SubmissionService) getUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *SubmissionService) getTask(ctx context.Context, id int64) (*models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

// requireReviewer loads the reviewer and checks the role
func (s *SubmissionService) requireReviewer(ctx context.Context, reviewerID int64) (*models.User, error) {
	return requireReviewer(ctx, s.repo, reviewerID)
}

type userGetter interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

func requireReviewer(ctx context.Context, users userGetter, reviewerID int64) (*models.User, error) {
	u, err := users.GetUser(ctx, reviewerID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrPermissionDenied
	}
	if err != nil {
		return nil, err
	}
	if !u.Role.CanReview() {
		return nil, ErrPermissionDenied
	}
	return u, nil
}

// Submit records a task attempt. Scan tasks are approved on the spot; the
// rest wait for a reviewer.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	res, err := s.submit(ctx, req)
	if err != nil {
		s.metrics.Submission(outcome(err))
		return nil, err
	}
	s.metrics.Submission(string(res.Status))
	return res, nil
}

func (s *SubmissionService) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if _, err := s.getUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	task, err := s.getTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSubmission(ctx, req.UserID, req.TaskID)
	switch {
	case err == nil && existing.Status == models.StatusApproved:
		return nil, ErrAlreadyCompleted
	case err == nil && existing.Status == models.StatusPending:
		return nil, ErrAlreadyPending
	case err != nil && !stderrors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	photo := req.Photo
	if photo != nil && len(photo.Data) == 0 {
		photo = nil
	}
	if task.RequiresUpload && photo == nil {
		return nil, ErrMissingUpload
	}

	var similarity float64
	newSub := repository.NewSubmission{UserID: req.UserID, TaskID: req.TaskID}
	if photo != nil {
		if len(photo.Data) > MaxPhotoBytes {
			return nil, ErrFileTooLarge
		}
		if !strings.HasPrefix(photo.ContentType, "image/") {
			return nil, ErrUnsupportedFileType
		}

		similarity, err = s.checkFraud(ctx, req.UserID, photo.Data)
		if err != nil {
			return nil, err
		}

		key, err := s.photos.Save(ctx, photo.Data, photo.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store photo: %w", err)
		}
		newSub.PhotoKey = key
		newSub.PhotoContentType = photo.ContentType
	}

	if task.RequiresScan {
		id, err := s.repo.SaveApprovedSubmission(ctx, newSub, task.Points)
		if err != nil {
			return nil, duplicateOr(err)
		}
		s.log.Info("Scan task completed", "user_id", req.UserID, "task_id", task.ID, "points", task.Points)
		s.metrics.PointsAwarded("task", task.Points)

		res := &SubmitResult{
			Status:       models.StatusApproved,
			Message:      "Task completed successfully",
			SubmissionID: id,
			Points:       task.Points,
			Similarity:   similarity,
		}
		res.NewBadges = s.afterApproval(ctx, req.UserID, id, photo)
		return res, nil
	}

	id, err := s.repo.SavePendingSubmission(ctx, newSub)
	if err != nil {
		return nil, duplicateOr(err)
	}
	s.log.Info("Task submitted for review", "user_id", req.UserID, "task_id", task.ID, "photo", newSub.PhotoKey != "")

	return &SubmitResult{
		Status:       models.StatusPending,
		Message:      "Task submitted successfully and awaiting GameKeeper approval!",
		SubmissionID: id,
		Similarity:   similarity,
	}, nil
}

// checkFraud returns a *FraudError for a flagged photo. A detector failure
// lets the photo through.
func (s *SubmissionService) checkFraud(ctx context.Context, userID int64, data []byte) (float64, error) {
	if s.detector == nil {
		return 0, nil
	}
	scope := int64(0)
	if s.userScoped {
		scope = userID
	}
	v, err := s.detector.IsFraudulent(ctx, data, scope)
	if err != nil {
		s.log.Warn("Duplicate photo check failed, accepting photo", "user_id", userID, "error", err)
		return 0, nil
	}
	if !v.IsFraud {
		return v.Similarity, nil
	}

	fe := &FraudError{Similarity: v.Similarity, MatchedTaskID: v.MatchedTaskID}
	if t, err := s.repo.GetTask(ctx, v.MatchedTaskID); err == nil {
		fe.MatchedTask = t.Description
	}
	s.log.Warn("Duplicate photo rejected", "user_id", userID, "similarity", v.Similarity, "matched_submission", v.MatchedSubmissionID)
	return v.Similarity, fe
}

// duplicateOr maps a lost upsert race to ErrDuplicateSubmission
func duplicateOr(err error) error {
	if stderrors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicateSubmission
	}
	return err
}

// Approve marks a pending submission completed and credits its points
func (s *SubmissionService) Approve(ctx context.Context, reviewerID, userID, taskID int64) (*ReviewResult, error) {
	if _, err := s.requireReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.ApproveSubmission(ctx, userID, taskID, task.Points)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, ErrSubmissionNotFound
	case stderrors.Is(err, repository.ErrAlreadyCompleted):
		return nil, ErrAlreadyApproved
	case err != nil:
		return nil, err
	}

	s.log.Info("Submission approved", "reviewer_id", reviewerID, "user_id", userID, "task_id", taskID, "points", task.Points)
	s.metrics.Review("approved")
	s.metrics.PointsAwarded("task", task.Points)

	var photo *Photo
	if sub.HasPhoto() {
		data, err := s.photos.Load(ctx, sub.PhotoKey)
		if err != nil {
			s.log.Warn("Could not load approved photo", "submission_id", sub.ID, "error", err)
		} else {
			photo = &Photo{Data: data, ContentType: sub.PhotoContentType}
		}
	}

	res := &ReviewResult{
		Message: fmt.Sprintf("Task approved for %s. %d points rewarded.", user.Username, task.Points),
		Points:  task.Points,
	}
	res.NewBadges = s.afterApproval(ctx, userID, sub.ID, photo)

	s.publish(ctx, events.Event{
		Type:   events.SubmissionReviewed,
		UserID: userID,
		Payload: map[string]interface{}{
			"task_id": taskID,
			"status":  models.StatusApproved,
			"points":  task.Points,
		},
	})
	return res, nil
}

// afterApproval caches the photo signature and runs the awarder exactly
// once. Failures are logged; the approval stands.
func (s *SubmissionService) afterApproval(ctx context.Context, userID, submissionID int64, photo *Photo) []models.PatternCode {
	if photo != nil && s.detector != nil {
		if err := s.detector.SaveSignature(ctx, submissionID, photo.Data); err != nil {
			s.log.Warn("Could not save photo signature", "submission_id", submissionID, "error", err)
		}
	}

	s.publish(ctx, events.Event{Type: events.LeaderboardUpdated})

	if s.awarder == nil {
		return nil
	}
	res, err := s.awarder.CheckAndAward(ctx, userID)
	if err != nil {
		s.log.Error("Awarding after approval failed", "user_id", userID, "error", err)
	}
	if res == nil {
		return nil
	}
	return res.Awarded
}

// Reject marks a pending or rejected submission rejected
func (s *SubmissionService) Reject(ctx context.Context, reviewerID, userID, taskID int64, reason string) (*ReviewResult, error) {
	if _, err := s.requireReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getTask(ctx, taskID); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	err = s.repo.RejectSubmission(ctx, userID, taskID, reason)
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, ErrSubmissionNotFound
	case stderrors.Is(err, repository.ErrAlreadyCompleted):
		return nil, ErrAlreadyApproved
	case err != nil:
		return nil, err
	}

	s.log.Info("Submission rejected", "reviewer_id", reviewerID, "user_id", userID, "task_id", taskID)
	s.metrics.Review("rejected")

	s.publish(ctx, events.Event{
		Type:   events.SubmissionReviewed,
		UserID: userID,
		Payload: map[string]interface{}{
			"task_id": taskID,
			"status":  models.StatusRejected,
			"reason":  reason,
		},
	})
	return &ReviewResult{Message: fmt.Sprintf("Task rejected for %s.", user.Username)}, nil
}

// ListPending returns the review queue
func (s *SubmissionService) ListPending(ctx context.Context, reviewerID int64) ([]models.PendingSubmission, error) {
	if _, err := s.requireReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}
	pending, err := s.repo.ListPendingSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []models.PendingSubmission{}
	}
	return pending, nil
}

// ListUserTasks returns the catalog annotated with the user's progress
func (s *SubmissionService) ListUserTasks(ctx context.Context, userID int64) ([]models.UserTaskStatus, error) {
	statuses, err := s.repo.ListUserTaskStatuses(ctx, userID)
	if err != nil {
		return nil, err
	}
	if statuses == nil {
		statuses = []models.UserTaskStatus{}
	}
	return statuses, nil
}

// GetPhoto returns a submission's stored photo to a reviewer
func (s *SubmissionService) GetPhoto(ctx context.Context, reviewerID, submissionID int64) (*PhotoData, error) {
	if _, err := s.requireReviewer(ctx, reviewerID); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !sub.HasPhoto() {
		return nil, ErrPhotoNotFound
	}

	data, err := s.photos.Load(ctx, sub.PhotoKey)
	if stderrors.Is(err, photostore.ErrNotFound) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, err
	}
	ct := sub.PhotoContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &PhotoData{Data: data, ContentType: ct}, nil
}

func (s *SubmissionService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("Event not delivered", "type", evt.Type, "error", err)
	}
}

// outcome labels a failed submission for metrics
func outcome(err error) string {
	if stderrors.Is(err, ErrFraudSuspected) {
		return errors.CodeFraudSuspected
	}
	var appErr *errors.Error
	if stderrors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return "error"
}
