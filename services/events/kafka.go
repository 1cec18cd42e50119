package eventsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/atomcode/atomq/core"
)

// MessageWriter is the subset of *kafka.Writer used to publish.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const batchTimeout = 10 * time.Millisecond

// KafkaPublisher publishes activity events to a single topic, keyed by activity ID
// so that the events of one activity stay ordered within a partition.
// The writer must be safe for concurrent use, as *kafka.Writer is.
type KafkaPublisher struct {
	writer MessageWriter
}

var _ core.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher returns a publisher whose writes do not block the caller:
// batches are flushed in the background and delivery failures are reported to logger.
func NewKafkaPublisher(brokers []string, topic string, logger core.Logger) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: true,
		BatchTimeout:           batchTimeout,
		Async:                  true,
		Completion:             completionLogger(logger),
	})
}

func completionLogger(logger core.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err != nil {
			logger.Error(fmt.Sprintf("delivering %d activity events: %v", len(msgs), err), err)
		}
	}
}

func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...core.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "encoding event")
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.ActivityID),
			Value: value,
			Time:  e.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(e.Type)},
			},
		})
	}
	return errors.Wrap(p.writer.WriteMessages(ctx, msgs...), "writing events")
}

// Close flushes pending events.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
