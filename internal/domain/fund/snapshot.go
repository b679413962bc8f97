package fund

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the read model of a fund served over HTTP and cached.
type Snapshot struct {
	FundID                 uuid.UUID         `json:"fund_id"`
	Admin                  Identity          `json:"admin"`
	Oracle                 Identity          `json:"oracle"`
	Fees                   FeeSchedule       `json:"fees"`
	Paused                 bool              `json:"paused"`
	LatestNav              uint64            `json:"latest_nav"`
	PreviousNav            uint64            `json:"previous_nav"`
	NavUpdatedAt           time.Time         `json:"nav_updated_at"`
	TotalDeposits          uint64            `json:"total_deposits"`
	TotalRedemptionPayouts uint64            `json:"total_redemption_payouts"`
	PaymentMint            Identity          `json:"payment_mint"`
	ShareMint              Identity          `json:"share_mint"`
	Treasury               Identity          `json:"treasury"`
	MintAuthority          Identity          `json:"mint_authority"`
	QueueCapacity          int               `json:"queue_capacity"`
	QueueDepth             map[string]int    `json:"queue_depth"`
	Requests               []RequestSnapshot `json:"requests"`
	TakenAt                time.Time         `json:"taken_at"`
}

// RequestSnapshot is one redemption request in a Snapshot.
type RequestSnapshot struct {
	ID           uint64    `json:"id"`
	Requester    Identity  `json:"requester"`
	TokenAmount  uint64    `json:"token_amount"`
	Status       string    `json:"status"`
	PayoutAmount uint64    `json:"payout_amount,omitempty"`
	FeeAmount    uint64    `json:"fee_amount,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSnapshot captures f at the given time.
func NewSnapshot(f *Fund, at time.Time) Snapshot {
	depth := make(map[string]int, 3)
	for status, n := range f.Queue.Depth() {
		depth[status.String()] = n
	}

	requests := make([]RequestSnapshot, 0, f.Queue.Len())
	for _, r := range f.Queue.Requests {
		requests = append(requests, RequestSnapshot{
			ID:           r.ID,
			Requester:    r.Requester,
			TokenAmount:  r.TokenAmount,
			Status:       r.Status.String(),
			PayoutAmount: r.PayoutAmount,
			FeeAmount:    r.FeeAmount,
			RequestedAt:  r.RequestedAt,
			UpdatedAt:    r.UpdatedAt,
		})
	}

	return Snapshot{
		FundID:                 f.ID,
		Admin:                  f.Governance.Admin,
		Oracle:                 f.Governance.Oracle,
		Fees:                   f.Governance.Fees,
		Paused:                 f.Governance.Paused,
		LatestNav:              f.Oracle.LatestNav,
		PreviousNav:            f.Oracle.PreviousNav,
		NavUpdatedAt:           f.Oracle.LastUpdate,
		TotalDeposits:          f.Totals.TotalDeposits,
		TotalRedemptionPayouts: f.Totals.TotalRedemptionPayouts,
		PaymentMint:            f.Accounts.PaymentMint,
		ShareMint:              f.Accounts.ShareMint,
		Treasury:               f.Accounts.Treasury,
		MintAuthority:          f.Accounts.MintAuthority.Address,
		QueueCapacity:          MaxRedemptionRequests,
		QueueDepth:             depth,
		Requests:               requests,
		TakenAt:                at,
	}
}
