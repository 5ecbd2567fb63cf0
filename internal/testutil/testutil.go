package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// CreateUser creates a user with the given role
func CreateUser(t *testing.T, repo repository.UserRepository, username string, role models.Role) *models.User {
	t.Helper()

	u, err := repo.EnsureUser(context.Background(), username, role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

// CreateTasks creates n tasks worth points each and returns them in ID
// order. Tasks need neither a photo nor a scan.
func CreateTasks(t *testing.T, repo repository.TaskRepository, n, points int) []models.Task {
	t.Helper()

	tasks := make([]models.Task, 0, n)
	for i := 0; i < n; i++ {
		task := models.Task{Description: fmt.Sprintf("Task %d", i+1), Points: points}
		id, err := repo.CreateTask(context.Background(), task)
		if err != nil {
			t.Fatalf("failed to create task: %v", err)
		}
		task.ID = id
		tasks = append(tasks, task)
	}
	return tasks
}

// CreateTask creates a single task
func CreateTask(t *testing.T, repo repository.TaskRepository, task models.Task) models.Task {
	t.Helper()

	id, err := repo.CreateTask(context.Background(), task)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	task.ID = id
	return task
}
