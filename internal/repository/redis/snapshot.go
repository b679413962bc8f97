package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	adapter "navfund/internal/adapters/redis"
	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

// SnapshotCache stores fund read models in Redis with a TTL.
type SnapshotCache struct {
	client *adapter.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(client *adapter.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Save caches the snapshot under its fund id.
func (c *SnapshotCache) Save(ctx context.Context, s fund.Snapshot) error {
	if err := c.client.Set(ctx, snapshotKey(s.FundID), s, c.ttl); err != nil {
		return errors.Wrapf(err, "failed to cache snapshot: fund_id=%s", s.FundID)
	}
	return nil
}

// Get returns the cached snapshot, errors.ErrNotFound on a miss.
func (c *SnapshotCache) Get(ctx context.Context, fundID uuid.UUID) (*fund.Snapshot, error) {
	var s fund.Snapshot
	if err := c.client.Get(ctx, snapshotKey(fundID), &s); err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot: fund_id=%s", fundID)
	}
	return &s, nil
}

// Invalidate drops the cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context, fundID uuid.UUID) error {
	return c.client.Delete(ctx, snapshotKey(fundID))
}

func snapshotKey(fundID uuid.UUID) string {
	return "fund:snapshot:" + fundID.String()
}
