package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"navfund/internal/domain/fund"
	"navfund/internal/metrics"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

// Compile-time check
var _ fund.Store = (*Store)(nil)

// Store implements fund.Store on a postgres transaction per unit of work.
// Fund rows are locked with SELECT ... FOR UPDATE, so concurrent
// operations on one fund serialize inside the database too.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewStore creates a new postgres-backed store
func NewStore(db *sqlx.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With("component", "postgres_store")}
}

type pgTx struct {
	funds  *FundRepository
	ledger *LedgerRepository
}

func (t *pgTx) Funds() fund.Repository { return t.funds }
func (t *pgTx) Ledger() fund.Ledger    { return t.ledger }

// WithinTx runs fn in a database transaction, committing only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx fund.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("postgres", "within_tx", time.Since(start), err)
	}()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	if err := fn(ctx, &pgTx{funds: NewFundRepository(tx), ledger: NewLedgerRepository(tx)}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Errorw("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// GetFund reads the committed fund without locking it.
func (s *Store) GetFund(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	return newFundReader(s.db).GetByID(ctx, id)
}

// ListFundIDs returns fund ids in creation order.
func (s *Store) ListFundIDs(ctx context.Context) ([]uuid.UUID, error) {
	return newFundReader(s.db).ListIDs(ctx)
}

// BalanceOf returns the committed balance.
func (s *Store) BalanceOf(ctx context.Context, asset, owner fund.Identity) (uint64, error) {
	return NewLedgerRepository(s.db).BalanceOf(ctx, asset, owner)
}

// Supply returns the committed supply of a mintable asset.
func (s *Store) Supply(ctx context.Context, asset fund.Identity) (uint64, error) {
	return NewLedgerRepository(s.db).Supply(ctx, asset)
}

// Credit adds amount of asset to owner outside any fund operation. Used to
// fund wallets in development and tests.
func (s *Store) Credit(ctx context.Context, asset, owner fund.Identity, amount uint64) error {
	if amount == 0 {
		return errors.ErrInvalidAmount
	}
	return NewLedgerRepository(s.db).credit(ctx, asset, owner, amount)
}
