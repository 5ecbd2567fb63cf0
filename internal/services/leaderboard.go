package services

import (
	"context"
	"time"

	"github.com/abrezinsky/ecobingo/internal/events"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/repository"
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// LeaderboardService reads and resets point standings
type LeaderboardService struct {
	log       logger.Logger
	repo      repository.LeaderboardRepository
	publisher events.Publisher
}

// NewLeaderboardService creates a new LeaderboardService
func NewLeaderboardService(log logger.Logger, repo repository.LeaderboardRepository, publisher events.Publisher) *LeaderboardService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &LeaderboardService{log: log, repo: repo, publisher: publisher}
}

// Leaderboard holds both rankings
type Leaderboard struct {
	Lifetime []models.LeaderboardEntry `json:"lifetime_leaderboard"`
	Monthly  []models.LeaderboardEntry `json:"monthly_leaderboard"`
}

// ResetResult reports what a monthly reset did
type ResetResult struct {
	Reset bool  `json:"reset"`
	Rows  int64 `json:"rows"`
}

// GetLeaderboard returns the top entries of each ranking. top <= 0 means
// DefaultLeaderboardSize.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, top int) (*Leaderboard, error) {
	if top <= 0 {
		top = DefaultLeaderboardSize
	}
	if top > MaxLeaderboardSize {
		top = MaxLeaderboardSize
	}

	lifetime, err := s.repo.TopLifetime(ctx, top)
	if err != nil {
		return nil, err
	}
	monthly, err := s.repo.TopMonthly(ctx, top)
	if err != nil {
		return nil, err
	}
	if lifetime == nil {
		lifetime = []models.LeaderboardEntry{}
	}
	if monthly == nil {
		monthly = []models.LeaderboardEntry{}
	}
	return &Leaderboard{Lifetime: lifetime, Monthly: monthly}, nil
}

// ResetMonthly zeroes monthly totals. It only acts on the first day of the
// month unless force is set.
func (s *LeaderboardService) ResetMonthly(ctx context.Context, now time.Time, force bool) (*ResetResult, error) {
	if !force && now.Day() != 1 {
		s.log.Debug("Monthly reset skipped", "day", now.Day())
		return &ResetResult{}, nil
	}

	n, err := s.repo.ResetMonthlyPoints(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("Monthly points reset", "rows", n, "forced", force)

	if err := s.publisher.Publish(ctx, events.Event{Type: events.LeaderboardUpdated}); err != nil {
		s.log.Warn("Event not delivered", "type", events.LeaderboardUpdated, "error", err)
	}
	return &ResetResult{Reset: true, Rows: n}, nil
}
