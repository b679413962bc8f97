// Package navhistory models the archive of accepted NAV submissions.
package navhistory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Point is one accepted NAV update.
type Point struct {
	EventID     uuid.UUID `ch:"event_id"`
	FundID      uuid.UUID `ch:"fund_id"`
	Nav         uint64    `ch:"nav_cents"`
	PreviousNav uint64    `ch:"previous_nav_cents"`
	Oracle      string    `ch:"oracle"`
	RecordedAt  time.Time `ch:"recorded_at"`
}

// ChangeBps is the move from PreviousNav to Nav in basis points, 0 when there is no previous value.
func (p Point) ChangeBps() int64 {
	if p.PreviousNav == 0 {
		return 0
	}
	return (int64(p.Nav) - int64(p.PreviousNav)) * 10_000 / int64(p.PreviousNav)
}

// Query selects a fund's points in [From, To]. Zero bounds are open.
type Query struct {
	FundID uuid.UUID
	From   time.Time
	To     time.Time
	Limit  int
}

// Repository archives NAV points.
type Repository interface {
	Insert(ctx context.Context, points []Point) error
	GetHistory(ctx context.Context, q Query) ([]Point, error)
}
