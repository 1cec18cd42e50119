package eventsvc

import (
	"context"

	"github.com/atomcode/atomq/core"
)

// LogPublisher writes events to the logger; used when no broker is configured.
type LogPublisher struct {
	logger core.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger core.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...core.Event) error {
	for _, e := range events {
		p.logger.Debug("activity event: "+e.Type, map[string]interface{}{
			"activityId": e.ActivityID,
			"userId":     e.UserID,
			"data":       e.Data,
		})
	}
	return nil
}
