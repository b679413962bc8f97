package memory

import (
	"context"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

// ledger implements fund.Ledger over a transaction's balance overlay
type ledger tx

var _ fund.Ledger = (*ledger)(nil)

func (t *tx) balance(k balanceKey) uint64 {
	if v, ok := t.balances[k]; ok {
		return v
	}
	return t.s.balances[k]
}

func (t *tx) supplyOf(asset fund.Identity) uint64 {
	if v, ok := t.supply[asset]; ok {
		return v
	}
	return t.s.supply[asset]
}

func (t *tx) authorityOf(asset fund.Identity) (fund.Identity, bool) {
	if v, ok := t.authorities[asset]; ok {
		return v, true
	}
	v, ok := t.s.authorities[asset]
	return v, ok
}

func (t *tx) checkAuthority(asset fund.Identity, proof fund.MintAuthority) error {
	authority, ok := t.authorityOf(asset)
	if !ok {
		return errors.Wrapf(errors.ErrUnauthorized, "asset %s has no mint authority", asset)
	}
	if !authority.Equals(proof.Address) {
		return errors.Wrapf(errors.ErrUnauthorized, "%s is not the mint authority of %s", proof.Address, asset)
	}
	return nil
}

// Transfer moves amount of asset between owners.
func (l *ledger) Transfer(_ context.Context, asset, from, to fund.Identity, amount uint64) error {
	t := (*tx)(l)
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	src := balanceKey{asset: asset, owner: from}
	dst := balanceKey{asset: asset, owner: to}

	fromBal := t.balance(src)
	if fromBal < amount {
		return errors.Wrapf(errors.ErrInsufficientTokens, "%s holds %d < %d", from, fromBal, amount)
	}
	if src == dst {
		return nil
	}
	toBal := t.balance(dst)
	if toBal+amount < toBal {
		return errors.ErrArithmeticOverflow
	}

	t.balances[src] = fromBal - amount
	t.balances[dst] = toBal + amount
	return nil
}

// Mint creates amount of asset for to when proof is the asset's mint authority.
func (l *ledger) Mint(_ context.Context, asset, to fund.Identity, amount uint64, proof fund.MintAuthority) error {
	t := (*tx)(l)
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	if err := t.checkAuthority(asset, proof); err != nil {
		return err
	}

	dst := balanceKey{asset: asset, owner: to}
	bal := t.balance(dst)
	supply := t.supplyOf(asset)
	if bal+amount < bal || supply+amount < supply {
		return errors.ErrArithmeticOverflow
	}

	t.balances[dst] = bal + amount
	t.supply[asset] = supply + amount
	return nil
}

// Burn destroys amount of asset held by from when proof is the asset's mint authority.
func (l *ledger) Burn(_ context.Context, asset, from fund.Identity, amount uint64, proof fund.MintAuthority) error {
	t := (*tx)(l)
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	if err := t.checkAuthority(asset, proof); err != nil {
		return err
	}

	src := balanceKey{asset: asset, owner: from}
	bal := t.balance(src)
	if bal < amount {
		return errors.Wrapf(errors.ErrInsufficientTokens, "%s holds %d < %d", from, bal, amount)
	}

	t.balances[src] = bal - amount
	t.supply[asset] = t.supplyOf(asset) - amount
	return nil
}

// BalanceOf returns owner's balance as seen by this transaction.
func (l *ledger) BalanceOf(_ context.Context, asset, owner fund.Identity) (uint64, error) {
	return (*tx)(l).balance(balanceKey{asset: asset, owner: owner}), nil
}
