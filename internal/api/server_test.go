package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"navfund/internal/api/health"
	"navfund/internal/domain/fund"
	"navfund/internal/domain/navhistory"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

type MockFundSource struct {
	mock.Mock
}

func (m *MockFundSource) ListFundIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockFundSource) Fund(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fund.Fund), args.Error(1)
}

type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) Get(ctx context.Context, fundID uuid.UUID) (*fund.Snapshot, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fund.Snapshot), args.Error(1)
}

type MockNavHistorySource struct {
	mock.Mock
}

func (m *MockNavHistorySource) GetHistory(ctx context.Context, q navhistory.Query) ([]navhistory.Point, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]navhistory.Point), args.Error(1)
}

type fixture struct {
	funds   *MockFundSource
	cache   *MockSnapshotSource
	history *MockNavHistorySource
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		funds:   new(MockFundSource),
		cache:   new(MockSnapshotSource),
		history: new(MockNavHistorySource),
	}
	log := logger.NewNop()
	srv := NewServer(
		ServerConfig{ServiceName: "navfund", Version: "test"},
		health.New(log, "navfund", "test"),
		NewFundsHandler(f.funds, f.cache, f.history, log),
		log,
	)
	f.handler = srv.Handler()
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func sampleFund(id uuid.UUID) *fund.Fund {
	return fund.New(id, solana.NewWallet().PublicKey(), fund.GenesisParams{
		FundID:       id,
		OracleSigner: solana.NewWallet().PublicKey(),
		Fees:         fund.FeeSchedule{ManagementFeeBps: 100, MintFeeBps: 25, RedemptionFeeBps: 50},
		InitialNav:   1000,
		PaymentMint:  solana.NewWallet().PublicKey(),
		ShareMint:    solana.NewWallet().PublicKey(),
	}, fund.Accounts{}, time.Now())
}

func TestServer_Root(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"navfund","version":"test","status":"running"}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.get(t, "/nope").Code)
}

func TestServer_Probes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.get(t, "/live").Code)
	assert.Equal(t, http.StatusOK, f.get(t, "/ready").Code)
	assert.Equal(t, http.StatusOK, f.get(t, "/metrics").Code)
}

func TestFunds_List(t *testing.T) {
	f := newFixture(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	f.funds.On("ListFundIDs", mock.Anything).Return(ids, nil)

	rec := f.get(t, "/funds")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Funds []uuid.UUID `json:"funds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ids, body.Funds)
}

func TestFunds_GetFromCache(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.cache.On("Get", mock.Anything, id).Return(&fund.Snapshot{FundID: id, LatestNav: 1012}, nil)

	rec := f.get(t, "/funds/"+id.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))

	var snapshot fund.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, uint64(1012), snapshot.LatestNav)
	f.funds.AssertNotCalled(t, "Fund", mock.Anything, mock.Anything)
}

func TestFunds_GetFallsBackToStore(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	f.cache.On("Get", mock.Anything, id).Return(nil, errors.ErrNotFound)
	f.funds.On("Fund", mock.Anything, id).Return(sampleFund(id), nil)

	rec := f.get(t, "/funds/"+id.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))

	var snapshot fund.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, id, snapshot.FundID)
	assert.Equal(t, uint64(1000), snapshot.LatestNav)
	assert.Equal(t, fund.MaxRedemptionRequests, snapshot.QueueCapacity)
}

func TestFunds_GetErrors(t *testing.T) {
	t.Run("unknown fund", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.cache.On("Get", mock.Anything, id).Return(nil, errors.ErrNotFound)
		f.funds.On("Fund", mock.Anything, id).Return(nil, errors.Wrap(errors.ErrFundNotFound, "get fund"))

		rec := f.get(t, "/funds/"+id.String())
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "fund_not_found", body.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t)

		rec := f.get(t, "/funds/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		id := uuid.New()
		f.cache.On("Get", mock.Anything, id).Return(nil, errors.ErrUnavailable)
		f.funds.On("Fund", mock.Anything, id).Return(nil, errors.ErrInternal)

		assert.Equal(t, http.StatusInternalServerError, f.get(t, "/funds/"+id.String()).Code)
	})
}

func TestFunds_NavHistory(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	f.history.On("GetHistory", mock.Anything, navhistory.Query{FundID: id, From: from, To: to, Limit: 2}).
		Return([]navhistory.Point{
			{FundID: id, Nav: 1010, PreviousNav: 1000, Oracle: "oracle", RecordedAt: to},
			{FundID: id, Nav: 1000, PreviousNav: 1000, Oracle: "oracle", RecordedAt: from},
		}, nil)

	rec := f.get(t, "/funds/"+id.String()+"/nav-history?from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Points []navPointResponse `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Points, 2)
	assert.Equal(t, int64(100), body.Points[0].ChangeBps)
	assert.Equal(t, int64(0), body.Points[1].ChangeBps)
}

func TestHistoryQuery(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		query   string
		limit   int
		wantErr bool
	}{
		{name: "defaults", query: "", limit: defaultHistoryLimit},
		{name: "clamped limit", query: "limit=5000", limit: maxHistoryLimit},
		{name: "bad limit", query: "limit=-1", wantErr: true},
		{name: "bad time", query: "from=yesterday", wantErr: true},
		{name: "inverted range", query: "from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/funds/x/nav-history?"+tt.query, nil)
			q, err := historyQuery(id, r)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, q.Limit)
			assert.Equal(t, id, q.FundID)
		})
	}
}
