package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	RunCalculated     = "payroll.run.calculated"
	RunSubmitted      = "payroll.run.submitted"
	RunManagerApprove = "payroll.run.manager_approved"
	RunFinanceApprove = "payroll.run.finance_approved"
	RunRejected       = "payroll.run.rejected"
	RunExecuted       = "payroll.run.executed"
	RunUnfrozen       = "payroll.run.unfrozen"
)

// RunEvent is published after a run lifecycle change has committed.
type RunEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Period     string    `json:"period"`
	Entity     string    `json:"entity"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actor_id"`
	TotalNet   string    `json:"total_net_pay"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishRunEvent(ctx context.Context, event RunEvent) error
	Close() error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishRunEvent(context.Context, RunEvent) error { return nil }
func (noopPublisher) Close() error                                   { return nil }

type multiPublisher []Publisher

// NewMultiPublisher delivers every event to each publisher in order. All of
// them are tried; the errors are joined.
func NewMultiPublisher(publishers ...Publisher) Publisher {
	return multiPublisher(publishers)
}

func (m multiPublisher) PublishRunEvent(ctx context.Context, event RunEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishRunEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) Publisher {
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           5 * time.Second,
		},
	}
}

func (p *kafkaPublisher) PublishRunEvent(ctx context.Context, event RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode run event: %w", err)
	}

	// Keyed by run so every event of one run lands on the same partition in order.
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
