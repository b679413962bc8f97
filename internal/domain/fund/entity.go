package fund

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"navfund/pkg/errors"
)

// Identity is an ed25519 public key naming an account holder, role key or asset mint.
type Identity = solana.PublicKey

// Fund is the aggregate owning one fund's governance, NAV oracle and redemption queue.
type Fund struct {
	ID         uuid.UUID
	Governance Governance
	Oracle     NavOracle
	Queue      RedemptionQueue
	Totals     Totals
	Accounts   Accounts
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy, so callers can mutate it without touching the original.
func (f *Fund) Clone() *Fund {
	if f == nil {
		return nil
	}
	c := *f
	c.Queue = f.Queue.Clone()
	return &c
}

// Governance holds role keys, fee rates and the pause flag.
type Governance struct {
	Admin  Identity
	Oracle Identity
	Fees   FeeSchedule
	Paused bool
}

// FeeSchedule holds fee rates in basis points.
type FeeSchedule struct {
	ManagementFeeBps uint16 `json:"management_fee_bps"`
	MintFeeBps       uint16 `json:"mint_fee_bps"`
	RedemptionFeeBps uint16 `json:"redemption_fee_bps"`
}

// Validate checks that no rate exceeds 100%.
func (s FeeSchedule) Validate() error {
	rates := []struct {
		name string
		bps  uint16
	}{
		{"management", s.ManagementFeeBps},
		{"mint", s.MintFeeBps},
		{"redemption", s.RedemptionFeeBps},
	}
	for _, r := range rates {
		if r.bps > BpsDenominator {
			return errors.Wrapf(errors.ErrInvalidAmount, "%s fee %d bps exceeds %d", r.name, r.bps, BpsDenominator)
		}
	}
	return nil
}

// NavOracle holds the latest and previous NAV per share in integer cents.
type NavOracle struct {
	LatestNav   uint64
	PreviousNav uint64
	LastUpdate  time.Time
}

// Price returns the latest NAV, failing when it was never initialized.
func (o NavOracle) Price() (uint64, error) {
	if o.LatestNav == 0 {
		return 0, errors.ErrInvalidNavPrice
	}
	return o.LatestNav, nil
}

// Submit rolls latest into previous and records newNav.
func (o *NavOracle) Submit(newNav uint64, at time.Time) error {
	if newNav == 0 {
		return errors.ErrInvalidNavPrice
	}
	o.PreviousNav = o.LatestNav
	o.LatestNav = newNav
	o.LastUpdate = at
	return nil
}

// Totals are denormalized running sums, rebuildable from the event stream.
type Totals struct {
	TotalDeposits          uint64
	TotalRedemptionPayouts uint64
}

// AddDeposit adds a subscribe deposit.
func (t *Totals) AddDeposit(amount uint64) error {
	sum, err := checkedAdd(t.TotalDeposits, amount)
	if err != nil {
		return errors.Wrap(err, "total deposits")
	}
	t.TotalDeposits = sum
	return nil
}

// AddPayout adds a settled redemption payout.
func (t *Totals) AddPayout(amount uint64) error {
	sum, err := checkedAdd(t.TotalRedemptionPayouts, amount)
	if err != nil {
		return errors.Wrap(err, "total redemption payouts")
	}
	t.TotalRedemptionPayouts = sum
	return nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a+b < a {
		return 0, errors.ErrArithmeticOverflow
	}
	return a + b, nil
}

// MintAuthority is the program-derived address allowed to mint and burn shares.
type MintAuthority struct {
	Address Identity
	Bump    uint8
}

// Accounts are the on-ledger addresses a fund operates on.
type Accounts struct {
	PaymentMint   Identity
	ShareMint     Identity
	Treasury      Identity
	MintAuthority MintAuthority
}

// GenesisParams is the parameter bundle a fund is created from.
type GenesisParams struct {
	FundID       uuid.UUID
	OracleSigner Identity
	Fees         FeeSchedule
	InitialNav   uint64
	PaymentMint  Identity
	ShareMint    Identity
}

// Validate checks genesis parameters.
func (p GenesisParams) Validate() error {
	if err := p.Fees.Validate(); err != nil {
		return err
	}
	if p.InitialNav == 0 {
		return errors.ErrInvalidNavPrice
	}
	if p.OracleSigner.IsZero() {
		return errors.Wrap(errors.ErrInvalidInput, "oracle signer is required")
	}
	if p.PaymentMint.IsZero() || p.ShareMint.IsZero() {
		return errors.Wrap(errors.ErrInvalidInput, "payment and share mints are required")
	}
	return nil
}

// New builds a fund from genesis parameters. Accounts must be derived by the caller.
func New(id uuid.UUID, admin Identity, p GenesisParams, accounts Accounts, now time.Time) *Fund {
	return &Fund{
		ID: id,
		Governance: Governance{
			Admin:  admin,
			Oracle: p.OracleSigner,
			Fees:   p.Fees,
		},
		Oracle: NavOracle{
			LatestNav:   p.InitialNav,
			PreviousNav: p.InitialNav,
			LastUpdate:  now,
		},
		Queue:     NewRedemptionQueue(),
		Accounts:  accounts,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
