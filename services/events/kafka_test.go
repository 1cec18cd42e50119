package eventsvc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomcode/atomq/core"
)

type writerMock struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	delay  time.Duration
	closed bool
}

func (w *writerMock) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	time.Sleep(w.delay)
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *writerMock) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	w := &writerMock{}
	p := NewKafkaPublisherWithWriter(w)

	require.NoError(t, p.Publish(ctx))
	assert.Empty(t, w.msgs, "nothing to publish")

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := p.Publish(ctx,
		core.Event{Type: core.EventParticipantJoined, ActivityID: "a1", UserID: "u1", OccurredAt: at},
		core.Event{Type: core.EventAnswerRecorded, ActivityID: "a1", UserID: "u1", Data: map[string]interface{}{"points": 850}, OccurredAt: at},
	)
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)

	msg := w.msgs[1]
	assert.Equal(t, []byte("a1"), msg.Key)
	assert.Equal(t, at, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: "event-type", Value: []byte(core.EventAnswerRecorded)}}, msg.Headers)

	var got core.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "u1", got.UserID)
	assert.EqualValues(t, 850, got.Data["points"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriter(&writerMock{err: boom})
	err := p.Publish(context.Background(), core.Event{Type: core.EventSessionStarted, ActivityID: "a1"})
	assert.Equal(t, boom, errors.Cause(err))
}

func TestKafkaPublisher_ConcurrentPublish(t *testing.T) {
	const publishers = 5
	w := &writerMock{delay: 200 * time.Millisecond}
	p := NewKafkaPublisherWithWriter(w)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(context.Background(), core.Event{Type: core.EventAnswerRecorded, ActivityID: "a1"}))
		}()
	}
	wg.Wait()

	// serialized writes would take publishers*delay
	assert.Less(t, time.Since(start), 600*time.Millisecond)
	assert.Len(t, w.msgs, publishers)
}

func Test_completionLogger(t *testing.T) {
	var logger logRecorder
	done := completionLogger(&logger)

	done([]kafka.Message{{}}, nil)
	assert.Empty(t, logger.errors)

	done([]kafka.Message{{}, {}}, errors.New("broker down"))
	require.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], "delivering 2 activity events")
}

type logRecorder struct {
	core.Logger
	errors []string
}

func (l *logRecorder) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
