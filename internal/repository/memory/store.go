// Package memory is an in-process fund.Store. Each transaction works on copies
// of the funds and a balance overlay; nothing reaches the shared maps unless
// the transaction function returns nil.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

type balanceKey struct {
	asset fund.Identity
	owner fund.Identity
}

// Store implements fund.Store in memory. Transactions are serialized.
type Store struct {
	mu          sync.Mutex
	funds       map[uuid.UUID]*fund.Fund
	ids         []uuid.UUID
	balances    map[balanceKey]uint64
	supply      map[fund.Identity]uint64
	authorities map[fund.Identity]fund.Identity // share mint -> mint authority
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		funds:       make(map[uuid.UUID]*fund.Fund),
		balances:    make(map[balanceKey]uint64),
		supply:      make(map[fund.Identity]uint64),
		authorities: make(map[fund.Identity]fund.Identity),
	}
}

// WithinTx runs fn against a private copy of state and commits only on success.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx fund.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := newTx(s)
	if err := fn(ctx, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// GetFund returns a copy of the committed fund.
func (s *Store) GetFund(_ context.Context, id uuid.UUID) (*fund.Fund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.funds[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrFundNotFound, "id %s", id)
	}
	return f.Clone(), nil
}

// ListFundIDs returns fund ids in creation order.
func (s *Store) ListFundIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]uuid.UUID, len(s.ids))
	copy(out, s.ids)
	return out, nil
}

// Credit adds amount of asset to owner outside any fund operation. Used to
// fund wallets in development and tests.
func (s *Store) Credit(asset, owner fund.Identity, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{asset: asset, owner: owner}
	sum := s.balances[key] + amount
	if sum < amount {
		return errors.ErrArithmeticOverflow
	}
	s.balances[key] = sum
	return nil
}

// Debit removes amount of asset from owner outside any fund operation.
func (s *Store) Debit(asset, owner fund.Identity, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{asset: asset, owner: owner}
	if s.balances[key] < amount {
		return errors.ErrInsufficientTokens
	}
	s.balances[key] -= amount
	return nil
}

// BalanceOf returns the committed balance.
func (s *Store) BalanceOf(_ context.Context, asset, owner fund.Identity) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey{asset: asset, owner: owner}], nil
}

// Supply returns the committed total minted minus burned for asset.
func (s *Store) Supply(asset fund.Identity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supply[asset]
}

// tx is the working set of one transaction.
type tx struct {
	s           *Store
	funds       map[uuid.UUID]*fund.Fund
	created     []uuid.UUID
	balances    map[balanceKey]uint64
	supply      map[fund.Identity]uint64
	authorities map[fund.Identity]fund.Identity
}

func newTx(s *Store) *tx {
	return &tx{
		s:           s,
		funds:       make(map[uuid.UUID]*fund.Fund),
		balances:    make(map[balanceKey]uint64),
		supply:      make(map[fund.Identity]uint64),
		authorities: make(map[fund.Identity]fund.Identity),
	}
}

func (t *tx) Funds() fund.Repository { return (*fundRepository)(t) }
func (t *tx) Ledger() fund.Ledger    { return (*ledger)(t) }

func (t *tx) commit() {
	for id, f := range t.funds {
		t.s.funds[id] = f
	}
	t.s.ids = append(t.s.ids, t.created...)
	for k, v := range t.balances {
		t.s.balances[k] = v
	}
	for k, v := range t.supply {
		t.s.supply[k] = v
	}
	for k, v := range t.authorities {
		t.s.authorities[k] = v
	}
}

// working returns the transaction's copy of a fund, copying it in on first use.
func (t *tx) working(id uuid.UUID) (*fund.Fund, error) {
	if f, ok := t.funds[id]; ok {
		return f, nil
	}
	f, ok := t.s.funds[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrFundNotFound, "id %s", id)
	}
	c := f.Clone()
	t.funds[id] = c
	return c, nil
}
