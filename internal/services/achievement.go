package services

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/abrezinsky/ecobingo/internal/events"
	"github.com/abrezinsky/ecobingo/internal/logger"
	"github.com/abrezinsky/ecobingo/internal/metrics"
	"github.com/abrezinsky/ecobingo/internal/models"
	"github.com/abrezinsky/ecobingo/internal/patterns"
	"github.com/abrezinsky/ecobingo/internal/repository"
)

// CompletionBonus is credited once per evaluation that grants at least one
// new badge
const CompletionBonus = 5

// AchievementServiceRepository defines the repository methods needed by AchievementService
type AchievementServiceRepository interface {
	repository.UserRepository
	repository.TaskRepository
	repository.AchievementRepository
	ListCompletedTaskIDs(ctx context.Context, userID int64) ([]int64, error)
}

// AchievementService detects bingo patterns and awards badges
type AchievementService struct {
	log       logger.Logger
	repo      AchievementServiceRepository
	publisher events.Publisher
	metrics   *metrics.Metrics

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewAchievementService creates a new AchievementService
func NewAchievementService(log logger.Logger, repo AchievementServiceRepository, publisher events.Publisher) *AchievementService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AchievementService{
		log:       log,
		repo:      repo,
		publisher: publisher,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// SetMetrics attaches a metrics sink
func (s *AchievementService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// AwardResult describes one evaluation of a user's board
type AwardResult struct {
	Detected []models.PatternCode `json:"detected"`
	Awarded  []models.PatternCode `json:"awarded"`
	AnyNew   bool                 `json:"any_new"`
}

// ForceAwardResult is the outcome of a manual grant
type ForceAwardResult struct {
	Granted bool           `json:"granted"`
	Pattern models.Pattern `json:"pattern"`
}

// userLock serializes evaluations for one user
func (s *AchievementService) userLock(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// CheckAndAward builds the user's board, grants every detected pattern they
// do not hold yet and credits CompletionBonus if anything was granted.
func (s *AchievementService) CheckAndAward(ctx context.Context, userID int64) (*AwardResult, error) {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	catalog, err := s.repo.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.ListCompletedTaskIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		completed[id] = true
	}

	res := &AwardResult{
		Detected: patterns.Detect(patterns.BuildGrid(completed, catalog)),
		Awarded:  []models.PatternCode{},
	}
	if res.Detected == nil {
		res.Detected = []models.PatternCode{}
	}

	for _, code := range res.Detected {
		def, _ := patterns.Definition(code)
		granted, err := s.repo.GrantBadge(ctx, userID, def)
		if err != nil {
			return res, err
		}
		if !granted {
			continue
		}
		res.Awarded = append(res.Awarded, code)
		s.metrics.BadgeAwarded(string(code), def.BonusPoints)
		s.metrics.PointsAwarded("pattern", def.BonusPoints)
		s.log.Info("Badge awarded", "user_id", userID, "pattern", code, "bonus", def.BonusPoints)
	}

	if len(res.Awarded) == 0 {
		return res, nil
	}
	res.AnyNew = true

	if err := s.repo.AddCompletionBonus(ctx, userID, CompletionBonus); err != nil {
		return res, err
	}
	s.metrics.PointsAwarded("completion", CompletionBonus)

	s.publish(ctx, events.Event{
		Type:   events.AchievementUnlocked,
		UserID: userID,
		Payload: map[string]interface{}{
			"patterns":         res.Awarded,
			"completion_bonus": CompletionBonus,
		},
	})
	s.publish(ctx, events.Event{Type: events.LeaderboardUpdated})
	return res, nil
}

// GetUserBadges re-evaluates the user's board, then lists their badges.
// Evaluation failures are logged and the stored badges returned anyway.
func (s *AchievementService) GetUserBadges(ctx context.Context, userID int64) ([]models.Badge, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.CheckAndAward(ctx, userID); err != nil {
		s.log.Error("Badge evaluation failed", "user_id", userID, "error", err)
	}

	badges, err := s.repo.ListBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []models.Badge{}
	}
	return badges, nil
}

// ForceAward grants a pattern without checking the board. Only the pattern
// bonus is credited.
func (s *AchievementService) ForceAward(ctx context.Context, reviewerID, userID int64, code models.PatternCode) (*ForceAwardResult, error) {
	if _, err := requireReviewer(ctx, s.repo, reviewerID); err != nil {
		return nil, err
	}
	def, ok := patterns.Definition(code)
	if !ok {
		return nil, ErrUnknownPattern
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	l := s.userLock(userID)
	l.Lock()
	granted, err := s.repo.GrantBadge(ctx, userID, def)
	l.Unlock()
	if err != nil {
		return nil, err
	}

	if granted {
		s.log.Info("Badge force-awarded", "reviewer_id", reviewerID, "user_id", userID, "pattern", code)
		s.metrics.BadgeAwarded(string(code), def.BonusPoints)
		s.metrics.PointsAwarded("pattern", def.BonusPoints)
		s.publish(ctx, events.Event{
			Type:    events.AchievementUnlocked,
			UserID:  userID,
			Payload: map[string]interface{}{"patterns": []models.PatternCode{code}},
		})
	}
	return &ForceAwardResult{Granted: granted, Pattern: def}, nil
}

func (s *AchievementService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("Event not delivered", "type", evt.Type, "error", err)
	}
}
