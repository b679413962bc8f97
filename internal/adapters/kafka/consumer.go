package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"navfund/internal/metrics"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
	"navfund/pkg/reconnect"
)

// Consumer handles Kafka message consumption
type Consumer struct {
	reader  *kafka.Reader
	topic   string
	backoff *reconnect.Manager
	log     *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.FirstOffset, // Start from beginning if no offset committed
	})

	log = log.With("component", "kafka_consumer", "topic", cfg.Topic)
	log.Infow("Kafka consumer created", "brokers", cfg.Brokers, "group_id", cfg.GroupID)

	return &Consumer{
		reader:  reader,
		topic:   cfg.Topic,
		backoff: reconnect.NewManager(reconnect.Config{}, log),
		log:     log,
	}
}

// MessageHandler is a function that processes a message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume reads messages until ctx is done. The offset is committed after the
// handler returns, also when it fails, so one bad message never blocks the partition.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consumer")

	for {
		if ctx.Err() != nil {
			c.log.Info("Consumer stopped")
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return nil
			}
			c.log.Errorw("Failed to fetch message", "error", err)
			c.backoff.RecordFailure()
			if c.backoff.Wait(ctx) != nil {
				c.log.Info("Consumer stopped")
				return nil
			}
			continue
		}
		c.backoff.RecordSuccess()

		herr := handler(ctx, msg)
		metrics.RecordKafkaMessage(c.topic, "in", herr)
		if herr != nil {
			c.log.Errorw("Failed to handle message",
				"error", herr,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorw("Failed to commit offset", "error", err, "offset", msg.Offset)
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return errors.Wrap(c.reader.Close(), "close kafka reader")
}
