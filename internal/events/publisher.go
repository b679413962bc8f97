package events

import (
	"context"

	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/pkg/logger"
)

// Writer sends one keyed message to a topic. Implemented by kafka.Producer.
type Writer interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Compile-time check
var _ fund.EventPublisher = (*Publisher)(nil)

// Publisher publishes fund events to Kafka, keyed by fund id so one fund's
// events stay ordered within a partition.
type Publisher struct {
	writer Writer
	log    *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(writer Writer, log *logger.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		log:    log.With("component", "event_publisher"),
	}
}

// Publish encodes e and writes it to its topic.
func (p *Publisher) Publish(ctx context.Context, e fund.Event) error {
	id := uuid.New()
	data, err := Encode(id, e)
	if err != nil {
		return err
	}

	topic := TopicFor(e.Type())
	if err := p.writer.Publish(ctx, topic, e.FundID().String(), data); err != nil {
		return err
	}

	p.log.Debugw("Published event", "type", e.Type(), "fund_id", e.FundID(), "event_id", id, "topic", topic)
	return nil
}

// NoopPublisher logs events instead of sending them. Used when Kafka is disabled.
type NoopPublisher struct {
	log *logger.Logger
}

// NewNoopPublisher creates a publisher that drops events
func NewNoopPublisher(log *logger.Logger) *NoopPublisher {
	return &NoopPublisher{log: log.With("component", "event_publisher")}
}

// Publish logs e at debug level.
func (p *NoopPublisher) Publish(_ context.Context, e fund.Event) error {
	p.log.Debugw("Dropped event", "type", e.Type(), "fund_id", e.FundID())
	return nil
}
