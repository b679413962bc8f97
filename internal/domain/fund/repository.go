package fund

import (
	"context"

	"github.com/google/uuid"
)

// Ledger moves the payment asset and mints/burns shares.
// Asset is the mint address of the token being moved.
type Ledger interface {
	Transfer(ctx context.Context, asset, from, to Identity, amount uint64) error
	Mint(ctx context.Context, asset, to Identity, amount uint64, proof MintAuthority) error
	Burn(ctx context.Context, asset, from Identity, amount uint64, proof MintAuthority) error
	BalanceOf(ctx context.Context, asset, owner Identity) (uint64, error)
}

// Repository defines the interface for fund data access within a transaction
type Repository interface {
	Create(ctx context.Context, f *Fund) error
	GetByID(ctx context.Context, id uuid.UUID) (*Fund, error)
	// Update persists governance, oracle and totals.
	Update(ctx context.Context, f *Fund) error
	AppendRedemption(ctx context.Context, fundID uuid.UUID, req *RedemptionRequest) error
	UpdateRedemption(ctx context.Context, fundID uuid.UUID, req *RedemptionRequest) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Funds() Repository
	Ledger() Ledger
}

// Store runs all-or-nothing units of work. If fn returns an error every
// change made through the Tx, including ledger movements, is discarded.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetFund(ctx context.Context, id uuid.UUID) (*Fund, error)
	ListFundIDs(ctx context.Context) ([]uuid.UUID, error)
}
