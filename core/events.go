package core

import (
	"context"
	"time"
)

// Activity event types
const (
	EventParticipantJoined = "activity.participant_joined"
	EventSessionStarted    = "activity.session_started"
	EventAnswerRecorded    = "activity.answer_recorded"
)

type Event struct {
	Type       string                 `json:"type"`
	ActivityID string                 `json:"activityId"`
	UserID     string                 `json:"userId"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

// EventPublisher ships domain events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
