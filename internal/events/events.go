// Package events carries game notifications to connected browsers and to
// downstream consumers.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/abrezinsky/ecobingo/internal/logger"
)

const (
	SubmissionReviewed  = "submission_reviewed"
	AchievementUnlocked = "achievement_unlocked"
	LeaderboardUpdated  = "leaderboard_updated"
)

// Event is one notification. UserID is the player it concerns; zero means
// it concerns everyone.
type Event struct {
	Type       string      `json:"type"`
	UserID     int64       `json:"user_id,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout publishes to several publishers. A failing publisher does not stop
// the others; the errors are joined.
type Fanout struct {
	log     logger.Logger
	targets []Publisher
}

func NewFanout(log logger.Logger, targets ...Publisher) *Fanout {
	return &Fanout{log: log, targets: targets}
}

func (f *Fanout) Publish(ctx context.Context, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	var errs []error
	for _, t := range f.targets {
		if err := t.Publish(ctx, evt); err != nil {
			f.log.Warn("Failed to publish event", "type", evt.Type, "user_id", evt.UserID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sender is the subset of the websocket hub used for delivery
type Sender interface {
	SendToUser(userID int64, msgType string, payload interface{})
}

// HubPublisher forwards events to websocket clients. Events with a user go
// to that user's clients only.
type HubPublisher struct {
	hub Sender
}

func NewHubPublisher(hub Sender) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, evt Event) error {
	p.hub.SendToUser(evt.UserID, evt.Type, evt.Payload)
	return nil
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Fanout)(nil)
	_ Publisher = (*HubPublisher)(nil)
	_ Publisher = (*KafkaPublisher)(nil)
)
