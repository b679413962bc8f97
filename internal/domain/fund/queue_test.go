package fund_test

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

func TestRedemptionQueue_AssignsSequentialIDs(t *testing.T) {
	q := fund.NewRedemptionQueue()
	now := time.Now()

	for i := 1; i <= 5; i++ {
		req, err := q.Enqueue(solana.NewWallet().PublicKey(), uint64(i*7), now)
		require.NoError(t, err)
		assert.Equal(t, uint64(i), req.ID)
		assert.Equal(t, fund.RedemptionPending, req.Status)
	}
	assert.Equal(t, 5, q.Len())
}

func TestRedemptionQueue_Capacity(t *testing.T) {
	q := fund.NewRedemptionQueue()
	requester := solana.NewWallet().PublicKey()

	for i := 0; i < fund.MaxRedemptionRequests; i++ {
		_, err := q.Enqueue(requester, 1, time.Now())
		require.NoError(t, err)
	}
	assert.True(t, q.IsFull())

	_, err := q.Enqueue(requester, 1, time.Now())
	assert.ErrorIs(t, err, errors.ErrRedemptionQueueFull)
	assert.Equal(t, fund.MaxRedemptionRequests, q.Len())
}

func TestRedemptionQueue_RejectsZeroAmount(t *testing.T) {
	q := fund.NewRedemptionQueue()
	_, err := q.Enqueue(solana.NewWallet().PublicKey(), 0, time.Now())
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	assert.Equal(t, 0, q.Len())
}

func TestRedemptionQueue_Get(t *testing.T) {
	q := fund.NewRedemptionQueue()
	_, err := q.Enqueue(solana.NewWallet().PublicKey(), 10, time.Now())
	require.NoError(t, err)

	req, err := q.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), req.TokenAmount)

	for _, id := range []uint64{0, 2} {
		_, err = q.Get(id)
		assert.ErrorIs(t, err, errors.ErrRedemptionNotFound)
		assert.ErrorIs(t, err, errors.ErrNotFound)
	}
}

func TestRedemptionStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to fund.RedemptionStatus
		allowed  bool
	}{
		{fund.RedemptionPending, fund.RedemptionApproved, true},
		{fund.RedemptionApproved, fund.RedemptionSettled, true},
		{fund.RedemptionPending, fund.RedemptionSettled, false},
		{fund.RedemptionApproved, fund.RedemptionPending, false},
		{fund.RedemptionSettled, fund.RedemptionApproved, false},
		{fund.RedemptionSettled, fund.RedemptionSettled, false},
		{fund.RedemptionPending, fund.RedemptionPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			req := fund.RedemptionRequest{ID: 1, Status: tt.from}
			err := req.Advance(tt.to, time.Now())
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, req.Status)
				return
			}
			assert.ErrorIs(t, err, errors.ErrInvalidStatusTransition)
			assert.Equal(t, tt.from, req.Status)
		})
	}
}

func TestRedemptionStatus_Valid(t *testing.T) {
	assert.True(t, fund.RedemptionPending.Valid())
	assert.True(t, fund.RedemptionSettled.Valid())
	assert.False(t, fund.RedemptionStatus("paid").Valid())

	_, ok := fund.RedemptionSettled.Next()
	assert.False(t, ok)
}

func TestRedemptionQueue_AdvanceInPlaceAndDepth(t *testing.T) {
	q := fund.NewRedemptionQueue()
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(solana.NewWallet().PublicKey(), 1, time.Now())
		require.NoError(t, err)
	}

	req, err := q.Get(2)
	require.NoError(t, err)
	require.NoError(t, req.Advance(fund.RedemptionApproved, time.Now()))

	depth := q.Depth()
	assert.Equal(t, 2, depth[fund.RedemptionPending])
	assert.Equal(t, 1, depth[fund.RedemptionApproved])
	assert.Equal(t, 0, depth[fund.RedemptionSettled])

	pending := q.InStatus(fund.RedemptionPending)
	require.Len(t, pending, 2)
	assert.Equal(t, uint64(1), pending[0].ID)
	assert.Equal(t, uint64(3), pending[1].ID)
}

func TestRedemptionQueue_CloneIsIndependent(t *testing.T) {
	q := fund.NewRedemptionQueue()
	_, err := q.Enqueue(solana.NewWallet().PublicKey(), 1, time.Now())
	require.NoError(t, err)

	c := q.Clone()
	req, err := c.Get(1)
	require.NoError(t, err)
	require.NoError(t, req.Advance(fund.RedemptionApproved, time.Now()))
	_, err = c.Enqueue(solana.NewWallet().PublicKey(), 2, time.Now())
	require.NoError(t, err)

	orig, err := q.Get(1)
	require.NoError(t, err)
	assert.Equal(t, fund.RedemptionPending, orig.Status)
	assert.Equal(t, 1, q.Len())
}

func TestRedemptionEvents_Type(t *testing.T) {
	tests := []struct {
		event  fund.Event
		want   fund.EventType
		status fund.RedemptionStatus
	}{
		{fund.RedemptionApprovedEvent{RequestID: 1}, fund.EventRedemptionApproved, fund.RedemptionApproved},
		{fund.RedemptionSettledEvent{RequestID: 1}, fund.EventRedemptionSettled, fund.RedemptionSettled},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Type())
			assert.True(t, tt.status.Valid())
		})
	}
}
