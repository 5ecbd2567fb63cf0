package services

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/ecobingo/internal/errors"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/repository"
)

//go:embed catalog/tasks.json
var catalogJSON []byte

// DefaultUsers are created by SeedUsers
var DefaultUsers = []struct {
	Username string
	Role     models.Role
}{
	{"gamekeeper", models.RoleReviewer},
	{"developer", models.RoleAdmin},
	{"player1", models.RolePlayer},
	{"player2", models.RolePlayer},
}

// TaskServiceRepository defines the repository methods needed by TaskService
type TaskServiceRepository interface {
	repository.UserRepository
	repository.TaskRepository
}

// TaskService manages the task catalog
type TaskService struct {
	log     logger.Logger
	repo    TaskServiceRepository
	baseURL string
}

// NewTaskService creates a new TaskService. baseURL prefixes scan links for
// tasks without a location.
func NewTaskService(log logger.Logger, repo TaskServiceRepository, baseURL string) *TaskService {
	return &TaskService{
		log:     log,
		repo:    repo,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// CreateTaskRequest is a new catalog entry
type CreateTaskRequest struct {
	Description    string   `json:"description"`
	Points         int      `json:"points"`
	RequiresUpload bool     `json:"requires_upload"`
	RequiresScan   bool     `json:"requires_scan"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

func (r CreateTaskRequest) validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return errors.InvalidInput("description is required")
	}
	if r.Points <= 0 {
		return errors.InvalidInput("points must be positive")
	}
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return errors.InvalidInput("latitude and longitude must be given together")
	}
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return errors.InvalidInputf("latitude %v out of range", *r.Latitude)
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return errors.InvalidInputf("longitude %v out of range", *r.Longitude)
	}
	return nil
}

// ListTasks returns the catalog in ID order
func (s *TaskService) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, nil
}

// CreateTask adds a task. Reviewers only.
func (s *TaskService) CreateTask(ctx context.Context, reviewerID int64, req CreateTaskRequest) (*models.Task, error) {
	if _, err := requireReviewer(ctx, s.repo, reviewerID); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	task := models.Task{
		Description:    strings.TrimSpace(req.Description),
		Points:         req.Points,
		RequiresUpload: req.RequiresUpload,
		RequiresScan:   req.RequiresScan,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
	}
	id, err := s.repo.CreateTask(ctx, task)
	if err != nil {
		return nil, err
	}
	task.ID = id
	s.log.Info("Task created", "reviewer_id", reviewerID, "task_id", id, "points", task.Points)
	return &task, nil
}

// Catalog returns the built-in task list
func Catalog() ([]models.Task, error) {
	var tasks []models.Task
	if err := json.Unmarshal(catalogJSON, &tasks); err != nil {
		return nil, fmt.Errorf("parse task catalog: %w", err)
	}
	return tasks, nil
}

// SeedCatalog loads the built-in catalog into an empty task table. Returns
// the number of tasks inserted.
func (s *TaskService) SeedCatalog(ctx context.Context) (int, error) {
	tasks, err := Catalog()
	if err != nil {
		return 0, err
	}
	n, err := s.repo.SeedTasks(ctx, tasks)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("Seeded task catalog", "tasks", n)
	}
	return n, nil
}

// SeedUsers creates the DefaultUsers, resetting their roles
func (s *TaskService) SeedUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0, len(DefaultUsers))
	for _, du := range DefaultUsers {
		u, err := s.repo.EnsureUser(ctx, du.Username, du.Role)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", du.Username, err)
		}
		users = append(users, *u)
	}
	s.log.Info("Seeded users", "count", len(users))
	return users, nil
}

// TaskURL is what a task's QR code points at: a Google Maps link when the
// task has a location, otherwise the task's page.
func (s *TaskService) TaskURL(task models.Task) string {
	if task.HasLocation() {
		return fmt.Sprintf("https://www.google.com/maps?q=%s,%s",
			strconv.FormatFloat(*task.Latitude, 'f', -1, 64),
			strconv.FormatFloat(*task.Longitude, 'f', -1, 64))
	}
	return fmt.Sprintf("%s/tasks/%d", s.baseURL, task.ID)
}

// QRCode renders a PNG QR code for the task. Reviewers only.
func (s *TaskService) QRCode(ctx context.Context, reviewerID, taskID int64) ([]byte, error) {
	if _, err := requireReviewer(ctx, s.repo, reviewerID); err != nil {
		return nil, err
	}
	task, err := s.repo.GetTask(ctx, taskID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(s.TaskURL(*task), qrcode.Medium, 256)
}
