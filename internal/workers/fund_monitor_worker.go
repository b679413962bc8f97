package workers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/internal/metrics"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

// FundReader lists and loads funds.
type FundReader interface {
	ListFundIDs(ctx context.Context) ([]uuid.UUID, error)
	Fund(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error)
}

// SnapshotSaver stores the read model of a fund.
type SnapshotSaver interface {
	Save(ctx context.Context, snapshot fund.Snapshot) error
}

// FundMonitorWorker refreshes fund gauges and the snapshot cache.
type FundMonitorWorker struct {
	*BaseWorker
	funds FundReader
	cache SnapshotSaver // nil when redis is disabled
	now   func() time.Time
}

// NewFundMonitorWorker creates the worker. cache may be nil.
func NewFundMonitorWorker(funds FundReader, cache SnapshotSaver, interval time.Duration, enabled bool, log *logger.Logger) *FundMonitorWorker {
	return &FundMonitorWorker{
		BaseWorker: NewBaseWorker("fund_monitor", interval, enabled, log),
		funds:      funds,
		cache:      cache,
		now:        time.Now,
	}
}

// Run refreshes every fund. A failing fund does not stop the others.
func (w *FundMonitorWorker) Run(ctx context.Context) error {
	ids, err := w.funds.ListFundIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "list funds")
	}

	var errs errors.MultiError
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.refresh(ctx, id); err != nil {
			w.Log().Warnw("Fund refresh failed", "fund_id", id, "error", err)
			errs.Add(errors.Wrapf(err, "fund %s", id))
		}
	}

	w.Log().Debugw("Funds refreshed", "funds", len(ids), "failed", len(errs.Errors))
	return errs.ToError()
}

func (w *FundMonitorWorker) refresh(ctx context.Context, id uuid.UUID) error {
	f, err := w.funds.Fund(ctx, id)
	if err != nil {
		return err
	}

	snapshot := fund.NewSnapshot(f, w.now())
	label := id.String()

	metrics.NavCents.WithLabelValues(label).Set(float64(snapshot.LatestNav))
	metrics.TotalDeposits.WithLabelValues(label).Set(float64(snapshot.TotalDeposits))
	metrics.TotalRedemptionPayouts.WithLabelValues(label).Set(float64(snapshot.TotalRedemptionPayouts))
	for status, depth := range snapshot.QueueDepth {
		metrics.RedemptionQueueDepth.WithLabelValues(label, status).Set(float64(depth))
	}

	if w.cache == nil {
		return nil
	}
	if err := w.cache.Save(ctx, snapshot); err != nil {
		return errors.Wrap(err, "cache snapshot")
	}
	return nil
}
