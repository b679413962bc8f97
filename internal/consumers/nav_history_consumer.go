package consumers

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"navfund/internal/adapters/kafka"
	"navfund/internal/domain/fund"
	"navfund/internal/domain/navhistory"
	"navfund/internal/events"
	"navfund/pkg/clickhouse"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

// NavHistoryConsumer archives accepted NAV updates from the fund.nav topic into ClickHouse.
type NavHistoryConsumer struct {
	consumer *kafka.Consumer
	writer   *clickhouse.BatchWriter[navhistory.Point]
	log      *logger.Logger
}

// NavHistoryConfig tunes batching of archive inserts.
type NavHistoryConfig struct {
	MaxBatchSize int
	MaxAge       time.Duration
}

// NewNavHistoryConsumer creates a new NAV history consumer
func NewNavHistoryConsumer(
	consumer *kafka.Consumer,
	repo navhistory.Repository,
	cfg NavHistoryConfig,
	log *logger.Logger,
) *NavHistoryConsumer {
	log = log.With("component", "nav_history_consumer")
	return &NavHistoryConsumer{
		consumer: consumer,
		writer: clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[navhistory.Point]{
			Flush:        repo.Insert,
			TableName:    "nav_history",
			MaxBatchSize: cfg.MaxBatchSize,
			MaxAge:       cfg.MaxAge,
			Logger:       log,
		}),
		log: log,
	}
}

// Start consumes until ctx is done, then flushes what is buffered.
func (c *NavHistoryConsumer) Start(ctx context.Context) error {
	c.log.Info("Starting NAV history consumer")
	c.writer.Start(ctx)

	err := c.consumer.Consume(ctx, c.HandleMessage)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := c.writer.Stop(stopCtx); stopErr != nil {
		c.log.Errorw("Failed to stop batch writer", "error", stopErr)
	}
	return err
}

// HandleMessage buffers the NAV point carried by msg. Envelopes of other types are ignored.
func (c *NavHistoryConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	env, err := events.Decode(msg.Value)
	if err != nil {
		return errors.Wrapf(err, "offset %d", msg.Offset)
	}
	if env.Type != fund.EventNavUpdated {
		return nil
	}

	ev, err := env.NavUpdated()
	if err != nil {
		return err
	}

	return c.writer.Add(ctx, PointFromEvent(env.ID, ev))
}

// Flush writes buffered points immediately.
func (c *NavHistoryConsumer) Flush(ctx context.Context) error {
	return c.writer.Flush(ctx)
}

// PointFromEvent converts a NavUpdated event into an archive row.
func PointFromEvent(eventID uuid.UUID, ev fund.NavUpdated) navhistory.Point {
	recorded := ev.UpdatedAt
	if recorded.IsZero() {
		recorded = ev.OccurredAt()
	}
	return navhistory.Point{
		EventID:     eventID,
		FundID:      ev.FundID(),
		Nav:         ev.LatestNav,
		PreviousNav: ev.PreviousNav,
		Oracle:      ev.Oracle.String(),
		RecordedAt:  recorded.UTC(),
	}
}
