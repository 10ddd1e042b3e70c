package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_PublishRunEvent(t *testing.T) {
	w := &recordingWriter{}
	p := &kafkaPublisher{writer: w}

	event := RunEvent{
		Type:       RunExecuted,
		RunID:      "run-1",
		Period:     "2024-03-01",
		Entity:     "Engineering",
		Status:     "LOCKED",
		ActorID:    "finance-1",
		TotalNet:   "5100.50",
		OccurredAt: time.Date(2024, 3, 28, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishRunEvent(context.Background(), event))
	require.NoError(t, p.Close())

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, []byte("run-1"), msg.Key)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(RunExecuted), msg.Headers[0].Value)

	var decoded RunEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
	assert.True(t, w.closed)
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher()
	assert.NoError(t, p.PublishRunEvent(context.Background(), RunEvent{Type: RunCalculated}))
	assert.NoError(t, p.Close())
}

type failingPublisher struct {
	err    error
	closed bool
}

func (p *failingPublisher) PublishRunEvent(context.Context, RunEvent) error { return p.err }
func (p *failingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestMultiPublisher_TriesEveryPublisher(t *testing.T) {
	w := &recordingWriter{}
	kafkaPub := &kafkaPublisher{writer: w}
	broken := &failingPublisher{err: errors.New("broker down")}

	p := NewMultiPublisher(broken, kafkaPub)
	err := p.PublishRunEvent(context.Background(), RunEvent{Type: RunSubmitted, RunID: "run-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	require.Len(t, w.messages, 1)

	require.NoError(t, p.Close())
	assert.True(t, broken.closed)
	assert.True(t, w.closed)
}
