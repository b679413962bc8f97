package workers

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"navfund/internal/adapters/oracle"
	"navfund/internal/domain/fund"
	"navfund/internal/services/accounting"
	"navfund/pkg/auth"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

func testFund(t *testing.T, id uuid.UUID, oracleKey solana.PublicKey, nav uint64) *fund.Fund {
	t.Helper()
	return fund.New(id, solana.NewWallet().PublicKey(), fund.GenesisParams{
		FundID:       id,
		OracleSigner: oracleKey,
		Fees:         fund.FeeSchedule{ManagementFeeBps: 100, MintFeeBps: 25, RedemptionFeeBps: 50},
		InitialNav:   nav,
		PaymentMint:  solana.NewWallet().PublicKey(),
		ShareMint:    solana.NewWallet().PublicKey(),
	}, fund.Accounts{}, time.Now())
}

func newNavSyncFixture(t *testing.T) (*NavSyncWorker, *MockNavSource, *MockEngine, solana.PrivateKey, uuid.UUID) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	source := new(MockNavSource)
	engine := new(MockEngine)
	fundID := uuid.New()
	w := NewNavSyncWorker(source, engine, fundID, key, time.Minute, true, logger.NewNop())
	return w, source, engine, key, fundID
}

func TestNavSyncWorker_SubmitsChangedNav(t *testing.T) {
	w, source, engine, key, fundID := newNavSyncFixture(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	source.On("FetchNav", mock.Anything).Return(&oracle.NavReport{NavCents: 1012, Timestamp: now.Unix()}, nil)
	engine.On("Fund", mock.Anything, fundID).Return(testFund(t, fundID, key.PublicKey(), 1000), nil)

	var submitted auth.Envelope
	engine.On("SubmitNav", mock.Anything, fundID, mock.AnythingOfType("auth.Envelope"), uint64(1012)).
		Run(func(args mock.Arguments) { submitted = args.Get(2).(auth.Envelope) }).
		Return(nil)

	require.NoError(t, w.Run(context.Background()))

	signer, err := auth.NewVerifier(0).IdentityOf(context.Background(), accounting.SubmitNavAction(fundID, 1012), submitted)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), signer)
	assert.Equal(t, now, submitted.IssuedAt)

	source.AssertExpectations(t)
	engine.AssertExpectations(t)
}

func TestNavSyncWorker_SkipsUnchangedNav(t *testing.T) {
	w, source, engine, key, fundID := newNavSyncFixture(t)

	source.On("FetchNav", mock.Anything).Return(&oracle.NavReport{NavCents: 1000}, nil)
	engine.On("Fund", mock.Anything, fundID).Return(testFund(t, fundID, key.PublicKey(), 1000), nil)

	require.NoError(t, w.Run(context.Background()))
	engine.AssertNotCalled(t, "SubmitNav", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNavSyncWorker_Errors(t *testing.T) {
	t.Run("oracle unavailable", func(t *testing.T) {
		w, source, engine, _, _ := newNavSyncFixture(t)
		source.On("FetchNav", mock.Anything).Return(nil, errors.ErrUnavailable)

		err := w.Run(context.Background())
		assert.ErrorIs(t, err, errors.ErrUnavailable)
		engine.AssertNotCalled(t, "Fund", mock.Anything, mock.Anything)
	})

	t.Run("fund missing", func(t *testing.T) {
		w, source, engine, _, fundID := newNavSyncFixture(t)
		source.On("FetchNav", mock.Anything).Return(&oracle.NavReport{NavCents: 1000}, nil)
		engine.On("Fund", mock.Anything, fundID).Return(nil, errors.ErrFundNotFound)

		assert.ErrorIs(t, w.Run(context.Background()), errors.ErrFundNotFound)
	})

	t.Run("submit rejected", func(t *testing.T) {
		w, source, engine, key, fundID := newNavSyncFixture(t)
		source.On("FetchNav", mock.Anything).Return(&oracle.NavReport{NavCents: 990}, nil)
		engine.On("Fund", mock.Anything, fundID).Return(testFund(t, fundID, key.PublicKey(), 1000), nil)
		engine.On("SubmitNav", mock.Anything, fundID, mock.Anything, uint64(990)).Return(errors.ErrUnauthorized)

		assert.ErrorIs(t, w.Run(context.Background()), errors.ErrUnauthorized)
	})
}
