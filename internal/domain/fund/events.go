package fund

import (
	"context"
	"time"

	"github.com/google/uuid"

	"navfund/pkg/fixedpoint"
)

// EventType names a domain event
type EventType string

const (
	EventFundInitialized     EventType = "fund.initialized"
	EventNavUpdated          EventType = "fund.nav_updated"
	EventSubscribed          EventType = "fund.subscribed"
	EventRedemptionRequested EventType = "fund.redemption_requested"
	EventRedemptionApproved  EventType = "fund.redemption_approved"
	EventRedemptionSettled   EventType = "fund.redemption_settled"
	EventYieldDistributed    EventType = "fund.yield_distributed"
	EventPauseChanged        EventType = "fund.pause_changed"
	EventGovernanceUpdated   EventType = "fund.governance_updated"
)

// String returns string representation
func (t EventType) String() string {
	return string(t)
}

// Event is emitted once per successful operation, after commit.
type Event interface {
	Type() EventType
	FundID() uuid.UUID
	OccurredAt() time.Time
}

// EventPublisher delivers events to indexers. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Meta carries the fields every event shares. They travel in the envelope, not the payload.
type Meta struct {
	Fund uuid.UUID `json:"-"`
	At   time.Time `json:"-"`
}

// FundID returns the fund the event belongs to.
func (m Meta) FundID() uuid.UUID { return m.Fund }

// OccurredAt returns when the event happened.
func (m Meta) OccurredAt() time.Time { return m.At }

// FundInitialized is emitted at genesis.
type FundInitialized struct {
	Meta
	Admin      Identity    `json:"admin"`
	Oracle     Identity    `json:"oracle"`
	Fees       FeeSchedule `json:"fees"`
	InitialNav uint64      `json:"initial_nav"`
	Treasury   Identity    `json:"treasury"`
	ShareMint  Identity    `json:"share_mint"`
}

func (FundInitialized) Type() EventType { return EventFundInitialized }

// NavUpdated is emitted on every accepted NAV submission.
type NavUpdated struct {
	Meta
	PreviousNav uint64    `json:"previous_nav"`
	LatestNav   uint64    `json:"latest_nav"`
	UpdatedAt   time.Time `json:"updated_at"`
	Oracle      Identity  `json:"oracle"`
}

func (NavUpdated) Type() EventType { return EventNavUpdated }

// Subscribed is emitted when shares are minted against a deposit.
type Subscribed struct {
	Meta
	Subscriber    Identity `json:"subscriber"`
	DepositAmount uint64   `json:"deposit_amount"`
	FeeAmount     uint64   `json:"fee_amount"`
	SharesMinted  uint64   `json:"shares_minted"`
	Nav           uint64   `json:"nav"`
}

func (Subscribed) Type() EventType { return EventSubscribed }

// RedemptionRequested is emitted when a request joins the queue.
type RedemptionRequested struct {
	Meta
	RequestID    uint64   `json:"request_id"`
	Requester    Identity `json:"requester"`
	TokenAmount  uint64   `json:"token_amount"`
	NavAtRequest uint64   `json:"nav_at_request"`
}

func (RedemptionRequested) Type() EventType { return EventRedemptionRequested }

// RedemptionApprovedEvent is emitted when a pending request is approved for settlement.
type RedemptionApprovedEvent struct {
	Meta
	RequestID uint64   `json:"request_id"`
	Requester Identity `json:"requester"`
}

func (RedemptionApprovedEvent) Type() EventType { return EventRedemptionApproved }

// RedemptionSettledEvent is emitted when shares are burned and the payout sent.
type RedemptionSettledEvent struct {
	Meta
	RequestID   uint64   `json:"request_id"`
	Requester   Identity `json:"requester"`
	TokenAmount uint64   `json:"token_amount"`
	GrossAmount uint64   `json:"gross_amount"`
	FeeAmount   uint64   `json:"fee_amount"`
	NetAmount   uint64   `json:"net_amount"`
	Nav         uint64   `json:"nav"`
}

func (RedemptionSettledEvent) Type() EventType { return EventRedemptionSettled }

// YieldDistributed announces a per-share yield. No funds move.
type YieldDistributed struct {
	Meta
	YieldAmount      uint64             `json:"yield_amount"`
	TotalShareSupply uint64             `json:"total_share_supply"`
	PerShareYield    fixedpoint.Uint128 `json:"per_share_yield"`
}

func (YieldDistributed) Type() EventType { return EventYieldDistributed }

// PauseChanged is emitted when the pause flag flips.
type PauseChanged struct {
	Meta
	Paused bool     `json:"paused"`
	Admin  Identity `json:"admin"`
}

func (PauseChanged) Type() EventType { return EventPauseChanged }

// GovernanceUpdated is emitted on fee or oracle key changes.
type GovernanceUpdated struct {
	Meta
	Oracle Identity    `json:"oracle"`
	Fees   FeeSchedule `json:"fees"`
}

func (GovernanceUpdated) Type() EventType { return EventGovernanceUpdated }
