package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"navfund/internal/adapters/kafka"
	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
	"navfund/pkg/logger"
)

// MockWriter is a mock implementation of Writer
type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func TestPublisher_NavUpdatedRoundTrip(t *testing.T) {
	fundID := uuid.New()
	oracle := solana.NewWallet().PublicKey()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := fund.NavUpdated{
		Meta:        fund.Meta{Fund: fundID, At: at},
		PreviousNav: 1000,
		LatestNav:   1012,
		UpdatedAt:   at,
		Oracle:      oracle,
	}

	var sent []byte
	w := &MockWriter{}
	w.On("Publish", mock.Anything, kafka.TopicNav, fundID.String(), mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(3).([]byte) }).
		Return(nil)

	p := NewPublisher(w, logger.NewNop())
	require.NoError(t, p.Publish(context.Background(), ev))
	w.AssertExpectations(t)

	env, err := Decode(sent)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, env.ID)
	assert.Equal(t, fund.EventNavUpdated, env.Type)
	assert.Equal(t, fundID, env.FundID)
	assert.True(t, at.Equal(env.OccurredAt))

	got, err := env.NavUpdated()
	require.NoError(t, err)
	assert.Equal(t, uint64(1012), got.LatestNav)
	assert.Equal(t, uint64(1000), got.PreviousNav)
	assert.Equal(t, oracle, got.Oracle)
	assert.Equal(t, fundID, got.FundID())
}

func TestPublisher_PropagatesWriterError(t *testing.T) {
	boom := errors.New("broker down")
	w := &MockWriter{}
	w.On("Publish", mock.Anything, kafka.TopicGovernance, mock.Anything, mock.Anything).Return(boom)

	p := NewPublisher(w, logger.NewNop())
	err := p.Publish(context.Background(), fund.PauseChanged{Meta: fund.Meta{Fund: uuid.New()}, Paused: true})
	assert.ErrorIs(t, err, boom)
}

func TestEnvelope_PayloadOmitsMeta(t *testing.T) {
	ev := fund.YieldDistributed{
		Meta:             fund.Meta{Fund: uuid.New(), At: time.Now()},
		YieldAmount:      1_000_000,
		TotalShareSupply: 500_000,
		PerShareYield:    fixedpoint.From64(2_000_000),
	}
	data, err := Encode(uuid.New(), ev)
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.NotContains(t, payload, "Fund")
	assert.Equal(t, "2000000", payload["per_share_yield"])

	_, err = env.NavUpdated()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Decode([]byte(`{"type":"fund.nav_updated"}`))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		eventType fund.EventType
		topic     string
	}{
		{fund.EventNavUpdated, kafka.TopicNav},
		{fund.EventSubscribed, kafka.TopicSubscriptions},
		{fund.EventRedemptionRequested, kafka.TopicRedemptions},
		{fund.EventRedemptionApproved, kafka.TopicRedemptions},
		{fund.EventRedemptionSettled, kafka.TopicRedemptions},
		{fund.EventYieldDistributed, kafka.TopicYield},
		{fund.EventFundInitialized, kafka.TopicGovernance},
		{fund.EventPauseChanged, kafka.TopicGovernance},
		{fund.EventGovernanceUpdated, kafka.TopicGovernance},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.topic, TopicFor(tt.eventType), tt.eventType)
	}
}
