// Package events carries fund domain events over Kafka as JSON envelopes.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"navfund/internal/adapters/kafka"
	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

// Envelope is the wire form of a fund event.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       fund.EventType  `json:"type"`
	FundID     uuid.UUID       `json:"fund_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps e in an envelope with the given id.
func Encode(id uuid.UUID, e fund.Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", e.Type())
	}
	data, err := json.Marshal(Envelope{
		ID:         id,
		Type:       e.Type(),
		FundID:     e.FundID(),
		OccurredAt: e.OccurredAt().UTC(),
		Payload:    payload,
	})
	return data, errors.Wrap(err, "marshal envelope")
}

// Decode parses an envelope without interpreting its payload.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.Wrapf(errors.ErrInvalidInput, "decode envelope: %v", err)
	}
	if env.Type == "" || env.FundID == uuid.Nil {
		return Envelope{}, errors.Wrap(errors.ErrInvalidInput, "envelope without type or fund id")
	}
	return env, nil
}

// NavUpdated decodes the payload of a fund.nav_updated envelope.
func (e Envelope) NavUpdated() (fund.NavUpdated, error) {
	var ev fund.NavUpdated
	if e.Type != fund.EventNavUpdated {
		return ev, errors.Wrapf(errors.ErrInvalidInput, "envelope type %s is not %s", e.Type, fund.EventNavUpdated)
	}
	if err := json.Unmarshal(e.Payload, &ev); err != nil {
		return ev, errors.Wrapf(errors.ErrInvalidInput, "decode nav payload: %v", err)
	}
	ev.Meta = fund.Meta{Fund: e.FundID, At: e.OccurredAt}
	return ev, nil
}

// TopicFor routes an event type to its topic.
func TopicFor(t fund.EventType) string {
	switch t {
	case fund.EventNavUpdated:
		return kafka.TopicNav
	case fund.EventSubscribed:
		return kafka.TopicSubscriptions
	case fund.EventRedemptionRequested, fund.EventRedemptionApproved, fund.EventRedemptionSettled:
		return kafka.TopicRedemptions
	case fund.EventYieldDistributed:
		return kafka.TopicYield
	default:
		return kafka.TopicGovernance
	}
}
