package workers

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"navfund/internal/domain/fund"
	"navfund/internal/metrics"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

func TestFundMonitorWorker_RefreshesGaugesAndCache(t *testing.T) {
	engine := new(MockEngine)
	cache := new(MockSnapshotSaver)
	w := NewFundMonitorWorker(engine, cache, time.Minute, true, logger.NewNop())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	id := uuid.New()
	f := testFund(t, id, solana.NewWallet().PublicKey(), 1012)
	f.Totals.TotalDeposits = 5_000_000
	_, err := f.Queue.Enqueue(solana.NewWallet().PublicKey(), 1_000_000, now)
	require.NoError(t, err)

	engine.On("ListFundIDs", mock.Anything).Return([]uuid.UUID{id}, nil)
	engine.On("Fund", mock.Anything, id).Return(f, nil)
	cache.On("Save", mock.Anything, mock.MatchedBy(func(s fund.Snapshot) bool {
		return s.FundID == id && s.LatestNav == 1012 && s.TakenAt.Equal(now) && len(s.Requests) == 1
	})).Return(nil)

	require.NoError(t, w.Run(context.Background()))

	label := id.String()
	assert.Equal(t, float64(1012), testutil.ToFloat64(metrics.NavCents.WithLabelValues(label)))
	assert.Equal(t, float64(5_000_000), testutil.ToFloat64(metrics.TotalDeposits.WithLabelValues(label)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RedemptionQueueDepth.WithLabelValues(label, fund.RedemptionPending.String())))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.RedemptionQueueDepth.WithLabelValues(label, fund.RedemptionSettled.String())))

	cache.AssertExpectations(t)
}

func TestFundMonitorWorker_WithoutCache(t *testing.T) {
	engine := new(MockEngine)
	w := NewFundMonitorWorker(engine, nil, time.Minute, true, logger.NewNop())

	id := uuid.New()
	engine.On("ListFundIDs", mock.Anything).Return([]uuid.UUID{id}, nil)
	engine.On("Fund", mock.Anything, id).Return(testFund(t, id, solana.NewWallet().PublicKey(), 1000), nil)

	require.NoError(t, w.Run(context.Background()))
	engine.AssertExpectations(t)
}

func TestFundMonitorWorker_ContinuesPastFailingFund(t *testing.T) {
	engine := new(MockEngine)
	cache := new(MockSnapshotSaver)
	w := NewFundMonitorWorker(engine, cache, time.Minute, true, logger.NewNop())

	broken, healthy := uuid.New(), uuid.New()
	engine.On("ListFundIDs", mock.Anything).Return([]uuid.UUID{broken, healthy}, nil)
	engine.On("Fund", mock.Anything, broken).Return(nil, errors.ErrFundNotFound)
	engine.On("Fund", mock.Anything, healthy).Return(testFund(t, healthy, solana.NewWallet().PublicKey(), 1000), nil)
	cache.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrFundNotFound)
	cache.AssertExpectations(t)
}

func TestFundMonitorWorker_ListFails(t *testing.T) {
	engine := new(MockEngine)
	w := NewFundMonitorWorker(engine, nil, time.Minute, true, logger.NewNop())
	engine.On("ListFundIDs", mock.Anything).Return(nil, errors.ErrUnavailable)

	assert.ErrorIs(t, w.Run(context.Background()), errors.ErrUnavailable)
}
