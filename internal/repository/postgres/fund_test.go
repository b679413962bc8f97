package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navfund/internal/domain/fund"
	"navfund/internal/testsupport"
	"navfund/pkg/errors"
)

func TestFundRepository_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewFundRepository(testDB.Tx())
	ctx := context.Background()

	f := newTestFund(t)
	require.NoError(t, repo.Create(ctx, f))

	got, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Governance, got.Governance)
	assert.Equal(t, f.Accounts, got.Accounts)
	assert.Equal(t, uint64(1000), got.Oracle.LatestNav)
	assert.True(t, f.Oracle.LastUpdate.Equal(got.Oracle.LastUpdate))
	assert.Equal(t, 0, got.Queue.Len())

	err = repo.Create(ctx, f)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestFundRepository_GetMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	_, err := NewFundRepository(testDB.Tx()).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, errors.ErrFundNotFound)
}

func TestFundRepository_UpdatePersistsState(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewFundRepository(testDB.Tx())
	ctx := context.Background()

	f := newTestFund(t)
	require.NoError(t, repo.Create(ctx, f))

	at := f.CreatedAt.Add(time.Minute)
	require.NoError(t, f.Oracle.Submit(1050, at))
	require.NoError(t, f.Totals.AddDeposit(18_446_744_073_709_551_000))
	f.Governance.Paused = true
	f.Governance.Fees.RedemptionFeeBps = 75
	f.UpdatedAt = at
	require.NoError(t, repo.Update(ctx, f))

	got, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1050), got.Oracle.LatestNav)
	assert.Equal(t, uint64(1000), got.Oracle.PreviousNav)
	assert.Equal(t, uint64(18_446_744_073_709_551_000), got.Totals.TotalDeposits, "full uint64 range survives NUMERIC")
	assert.True(t, got.Governance.Paused)
	assert.Equal(t, uint16(75), got.Governance.Fees.RedemptionFeeBps)

	missing := newTestFund(t)
	assert.ErrorIs(t, repo.Update(ctx, missing), errors.ErrFundNotFound)
}

func TestFundRepository_RedemptionQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewFundRepository(testDB.Tx())
	ctx := context.Background()

	f := newTestFund(t)
	require.NoError(t, repo.Create(ctx, f))

	requester := solana.NewWallet().PublicKey()
	at := f.CreatedAt
	for i := 0; i < 3; i++ {
		req, err := f.Queue.Enqueue(requester, uint64(10*(i+1)), at)
		require.NoError(t, err)
		require.NoError(t, repo.AppendRedemption(ctx, f.ID, &req))
	}

	stale := fund.RedemptionRequest{ID: 2, Requester: requester, TokenAmount: 1, Status: fund.RedemptionPending, RequestedAt: at, UpdatedAt: at}
	assert.ErrorIs(t, repo.AppendRedemption(ctx, f.ID, &stale), errors.ErrInvalidInput)

	req, err := f.Queue.Get(2)
	require.NoError(t, err)
	require.NoError(t, req.Advance(fund.RedemptionApproved, at.Add(time.Second)))
	require.NoError(t, repo.UpdateRedemption(ctx, f.ID, req))

	got, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.Queue.Len())
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{got.Queue.Requests[0].ID, got.Queue.Requests[1].ID, got.Queue.Requests[2].ID})
	assert.Equal(t, fund.RedemptionApproved, got.Queue.Requests[1].Status)
	assert.Equal(t, requester, got.Queue.Requests[1].Requester)
	assert.Equal(t, uint64(20), got.Queue.Requests[1].TokenAmount)

	unknown := fund.RedemptionRequest{ID: 42, Status: fund.RedemptionApproved}
	assert.ErrorIs(t, repo.UpdateRedemption(ctx, f.ID, &unknown), errors.ErrRedemptionNotFound)
}
