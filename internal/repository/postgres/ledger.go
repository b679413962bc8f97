package postgres

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
)

// Compile-time check
var _ fund.Ledger = (*LedgerRepository)(nil)

// LedgerRepository keeps token balances and share supply in postgres.
// Balances never go negative: debits are conditional updates.
type LedgerRepository struct {
	db DBTX
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Transfer moves amount of asset between owners.
func (r *LedgerRepository) Transfer(ctx context.Context, asset, from, to fund.Identity, amount uint64) error {
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	if err := r.debit(ctx, asset, from, amount); err != nil {
		return err
	}
	return r.credit(ctx, asset, to, amount)
}

// Mint creates amount of asset for to when proof is the asset's mint authority.
func (r *LedgerRepository) Mint(ctx context.Context, asset, to fund.Identity, amount uint64, proof fund.MintAuthority) error {
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	if err := r.checkAuthority(ctx, asset, proof); err != nil {
		return err
	}
	if err := r.credit(ctx, asset, to, amount); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_supply SET supply = supply + $2 WHERE asset = $1`,
		asset.String(), fixedpoint.DecimalFromUint64(amount),
	)
	return mapError(err, "increase supply")
}

// Burn destroys amount of asset held by from when proof is the asset's mint authority.
func (r *LedgerRepository) Burn(ctx context.Context, asset, from fund.Identity, amount uint64, proof fund.MintAuthority) error {
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	if err := r.checkAuthority(ctx, asset, proof); err != nil {
		return err
	}
	if err := r.debit(ctx, asset, from, amount); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE ledger_supply SET supply = supply - $2 WHERE asset = $1`,
		asset.String(), fixedpoint.DecimalFromUint64(amount),
	)
	return mapError(err, "decrease supply")
}

// BalanceOf returns owner's balance, zero when the account was never touched.
func (r *LedgerRepository) BalanceOf(ctx context.Context, asset, owner fund.Identity) (uint64, error) {
	var amount decimal.Decimal
	err := r.db.GetContext(ctx, &amount,
		`SELECT amount FROM ledger_balances WHERE asset = $1 AND owner = $2`,
		asset.String(), owner.String(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "select balance")
	}
	return fixedpoint.Uint64FromDecimal(amount)
}

// Supply returns the outstanding amount of a mintable asset.
func (r *LedgerRepository) Supply(ctx context.Context, asset fund.Identity) (uint64, error) {
	var supply decimal.Decimal
	err := r.db.GetContext(ctx, &supply, `SELECT supply FROM ledger_supply WHERE asset = $1`, asset.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "select supply")
	}
	return fixedpoint.Uint64FromDecimal(supply)
}

func (r *LedgerRepository) checkAuthority(ctx context.Context, asset fund.Identity, proof fund.MintAuthority) error {
	var authority string
	err := r.db.GetContext(ctx, &authority,
		`SELECT mint_authority FROM ledger_supply WHERE asset = $1 FOR UPDATE`,
		asset.String(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(errors.ErrUnauthorized, "asset %s has no mint authority", asset)
		}
		return errors.Wrap(err, "select mint authority")
	}
	if authority != proof.Address.String() {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not the mint authority of %s", proof.Address, asset)
	}
	return nil
}

func (r *LedgerRepository) debit(ctx context.Context, asset, owner fund.Identity, amount uint64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE ledger_balances SET amount = amount - $3
		WHERE asset = $1 AND owner = $2 AND amount >= $3`,
		asset.String(), owner.String(), fixedpoint.DecimalFromUint64(amount),
	)
	if err != nil {
		return mapError(err, "debit")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrInsufficientTokens, "%s holds less than %d", owner, amount)
	}
	return nil
}

func (r *LedgerRepository) credit(ctx context.Context, asset, owner fund.Identity, amount uint64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_balances (asset, owner, amount) VALUES ($1, $2, $3)
		ON CONFLICT (asset, owner) DO UPDATE SET amount = ledger_balances.amount + EXCLUDED.amount`,
		asset.String(), owner.String(), fixedpoint.DecimalFromUint64(amount),
	)
	return mapError(err, "credit")
}
