package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"navfund/internal/domain/navhistory"
	"navfund/internal/metrics"
	"navfund/pkg/errors"
)

// Compile-time check
var _ navhistory.Repository = (*NavHistoryRepository)(nil)

// navHistorySchema dedupes redelivered events on event_id.
const navHistorySchema = `
	CREATE TABLE IF NOT EXISTS nav_history (
		event_id           UUID,
		fund_id            UUID,
		nav_cents          UInt64,
		previous_nav_cents UInt64,
		oracle             String,
		recorded_at        DateTime64(3, 'UTC')
	) ENGINE = ReplacingMergeTree
	ORDER BY (fund_id, recorded_at, event_id)`

// NavHistoryRepository implements navhistory.Repository using ClickHouse
type NavHistoryRepository struct {
	conn driver.Conn
}

// NewNavHistoryRepository creates a new NAV history repository
func NewNavHistoryRepository(conn driver.Conn) *NavHistoryRepository {
	return &NavHistoryRepository{conn: conn}
}

// EnsureSchema creates the nav_history table when missing.
func (r *NavHistoryRepository) EnsureSchema(ctx context.Context) error {
	return errors.Wrap(r.conn.Exec(ctx, navHistorySchema), "create nav_history")
}

// Insert writes points in one batch
func (r *NavHistoryRepository) Insert(ctx context.Context, points []navhistory.Point) (err error) {
	if len(points) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("clickhouse", "insert_nav_history", time.Since(start), err)
	}()

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO nav_history (
			event_id, fund_id, nav_cents, previous_nav_cents, oracle, recorded_at
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	for _, p := range points {
		if err := batch.Append(p.EventID, p.FundID, p.Nav, p.PreviousNav, p.Oracle, p.RecordedAt); err != nil {
			return errors.Wrap(err, "failed to append nav point")
		}
	}

	return errors.Wrap(batch.Send(), "failed to send nav batch")
}

// GetHistory returns a fund's points, newest first
func (r *NavHistoryRepository) GetHistory(ctx context.Context, q navhistory.Query) ([]navhistory.Point, error) {
	var points []navhistory.Point

	sql := `
		SELECT event_id, fund_id, nav_cents, previous_nav_cents, oracle, recorded_at
		FROM nav_history FINAL
		WHERE fund_id = $1`

	args := []interface{}{q.FundID}

	if !q.From.IsZero() {
		sql += fmt.Sprintf(` AND recorded_at >= $%d`, len(args)+1)
		args = append(args, q.From)
	}

	if !q.To.IsZero() {
		sql += fmt.Sprintf(` AND recorded_at <= $%d`, len(args)+1)
		args = append(args, q.To)
	}

	sql += ` ORDER BY recorded_at DESC`

	if q.Limit > 0 {
		sql += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, q.Limit)
	}

	if err := r.conn.Select(ctx, &points, sql, args...); err != nil {
		return nil, errors.Wrap(err, "select nav history")
	}
	return points, nil
}
