package workers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"navfund/internal/adapters/oracle"
	"navfund/internal/domain/fund"
	"navfund/pkg/auth"
)

type MockNavSource struct {
	mock.Mock
}

func (m *MockNavSource) FetchNav(ctx context.Context) (*oracle.NavReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.NavReport), args.Error(1)
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Fund(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error) {
	args := m.Called(ctx, fundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fund.Fund), args.Error(1)
}

func (m *MockEngine) SubmitNav(ctx context.Context, fundID uuid.UUID, env auth.Envelope, newNav uint64) error {
	args := m.Called(ctx, fundID, env, newNav)
	return args.Error(0)
}

func (m *MockEngine) ListFundIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockSnapshotSaver struct {
	mock.Mock
}

func (m *MockSnapshotSaver) Save(ctx context.Context, snapshot fund.Snapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}
