package accounting

import (
	"context"
	"math/big"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/internal/metrics"
	"navfund/pkg/auth"
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
	"navfund/pkg/logger"
)

// Authorizer resolves the identity that signed an action.
type Authorizer interface {
	IdentityOf(ctx context.Context, action auth.Action, env auth.Envelope) (fund.Identity, error)
}

// Engine is the fund accounting engine. Every operation runs under the fund's
// lock inside one store transaction; its event is published after commit.
type Engine struct {
	store     fund.Store
	authz     Authorizer
	locker    Locker
	publisher fund.EventPublisher
	programID fund.Identity
	now       func() time.Time
	log       *logger.Logger
}

// NewEngine creates a new accounting engine
func NewEngine(
	store fund.Store,
	authz Authorizer,
	locker Locker,
	publisher fund.EventPublisher,
	programID fund.Identity,
	log *logger.Logger,
) *Engine {
	return &Engine{
		store:     store,
		authz:     authz,
		locker:    locker,
		publisher: publisher,
		programID: programID,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log.With("component", "accounting_engine"),
	}
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type txFunc func(ctx context.Context, tx fund.Tx, caller fund.Identity) (fund.Event, error)

type fundFunc func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error)

// run authorizes the envelope, takes the fund lock and executes fn in a transaction.
func (e *Engine) run(ctx context.Context, op string, action auth.Action, env auth.Envelope, fn txFunc) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordFundOperation(op, time.Since(start), err)
		if err != nil {
			e.log.Debugw("Fund operation rejected",
				"operation", op,
				"fund_id", action.FundID,
				"code", errors.Code(err),
				"error", err,
			)
		}
	}()

	caller, err := e.authz.IdentityOf(ctx, action, env)
	if err != nil {
		return errors.Wrap(err, op)
	}

	unlock, err := e.locker.Lock(ctx, LockKey(action.FundID))
	if err != nil {
		return errors.Wrap(err, "acquire fund lock")
	}
	defer unlock()

	var event fund.Event
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx fund.Tx) error {
		var err error
		event, err = fn(ctx, tx, caller)
		return err
	})
	if err != nil {
		return errors.Wrap(err, op)
	}

	e.publish(ctx, event)
	return nil
}

// mutate is run for operations on an existing fund.
func (e *Engine) mutate(ctx context.Context, op string, action auth.Action, env auth.Envelope, fn fundFunc) error {
	return e.run(ctx, op, action, env, func(ctx context.Context, tx fund.Tx, caller fund.Identity) (fund.Event, error) {
		f, err := tx.Funds().GetByID(ctx, action.FundID)
		if err != nil {
			return nil, err
		}
		return fn(ctx, tx, f, caller)
	})
}

func (e *Engine) publish(ctx context.Context, event fund.Event) {
	if event == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warnw("Failed to publish fund event",
			"event", event.Type(),
			"fund_id", event.FundID(),
			"error", err,
		)
	}
}

// InitializeFund creates a fund whose admin is the envelope signer.
func (e *Engine) InitializeFund(ctx context.Context, env auth.Envelope, params fund.GenesisParams) (*fund.Fund, error) {
	if params.FundID == uuid.Nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "fund id is required")
	}

	var created *fund.Fund
	err := e.run(ctx, OpInitializeFund, InitializeFundAction(params), env, func(ctx context.Context, tx fund.Tx, admin fund.Identity) (fund.Event, error) {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		accounts, err := fund.DeriveAccounts(e.programID, params.FundID, params.PaymentMint, params.ShareMint)
		if err != nil {
			return nil, err
		}

		now := e.now()
		f := fund.New(params.FundID, admin, params, accounts, now)
		if err := tx.Funds().Create(ctx, f); err != nil {
			return nil, errors.Wrap(err, "create fund")
		}
		created = f.Clone()

		e.log.Infow("Fund initialized",
			"fund_id", f.ID,
			"admin", admin,
			"oracle", params.OracleSigner,
			"initial_nav", params.InitialNav,
			"treasury", accounts.Treasury,
		)

		return fund.FundInitialized{
			Meta:       fund.Meta{Fund: f.ID, At: now},
			Admin:      admin,
			Oracle:     params.OracleSigner,
			Fees:       params.Fees,
			InitialNav: params.InitialNav,
			Treasury:   accounts.Treasury,
			ShareMint:  accounts.ShareMint,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SubmitNav records a new NAV. Only the oracle may call it; pause does not apply.
func (e *Engine) SubmitNav(ctx context.Context, fundID uuid.UUID, env auth.Envelope, newNav uint64) error {
	return e.mutate(ctx, OpSubmitNav, SubmitNavAction(fundID, newNav), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleOracle, caller); err != nil {
			return nil, err
		}

		now := e.now()
		if err := f.Oracle.Submit(newNav, now); err != nil {
			return nil, err
		}
		f.UpdatedAt = now
		if err := tx.Funds().Update(ctx, f); err != nil {
			return nil, errors.Wrap(err, "update fund")
		}

		e.log.Infow("NAV updated",
			"fund_id", f.ID,
			"previous_nav", f.Oracle.PreviousNav,
			"latest_nav", f.Oracle.LatestNav,
		)

		return fund.NavUpdated{
			Meta:        fund.Meta{Fund: f.ID, At: now},
			PreviousNav: f.Oracle.PreviousNav,
			LatestNav:   f.Oracle.LatestNav,
			UpdatedAt:   now,
			Oracle:      caller,
		}, nil
	})
}

// Subscribe takes deposit from the caller into the treasury and mints shares at the latest NAV.
func (e *Engine) Subscribe(ctx context.Context, fundID uuid.UUID, env auth.Envelope, deposit uint64) (uint64, error) {
	var minted uint64
	err := e.mutate(ctx, OpSubscribe, SubscribeAction(fundID, deposit), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if f.Governance.Paused {
			return nil, errors.ErrFundPaused
		}
		if deposit == 0 {
			return nil, errors.ErrInvalidAmount
		}
		nav, err := f.Oracle.Price()
		if err != nil {
			return nil, err
		}
		quote, err := fund.SharesForDeposit(deposit, f.Governance.Fees.MintFeeBps, nav)
		if err != nil {
			return nil, err
		}
		if err := f.Totals.AddDeposit(deposit); err != nil {
			return nil, err
		}

		ledger := tx.Ledger()
		if err := ledger.Transfer(ctx, f.Accounts.PaymentMint, caller, f.Accounts.Treasury, deposit); err != nil {
			return nil, errors.Wrap(err, "transfer deposit to treasury")
		}
		if err := ledger.Mint(ctx, f.Accounts.ShareMint, caller, quote.Shares, f.Accounts.MintAuthority); err != nil {
			return nil, errors.Wrap(err, "mint shares")
		}

		now := e.now()
		f.UpdatedAt = now
		if err := tx.Funds().Update(ctx, f); err != nil {
			return nil, errors.Wrap(err, "update fund")
		}
		minted = quote.Shares

		e.log.Infow("Subscription processed",
			"fund_id", f.ID,
			"subscriber", caller,
			"deposit", formatAmount(deposit),
			"fee", formatAmount(quote.Fee),
			"shares", formatAmount(quote.Shares),
			"nav", nav,
		)

		return fund.Subscribed{
			Meta:          fund.Meta{Fund: f.ID, At: now},
			Subscriber:    caller,
			DepositAmount: deposit,
			FeeAmount:     quote.Fee,
			SharesMinted:  quote.Shares,
			Nav:           nav,
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return minted, nil
}

// RequestRedeem queues a redemption of tokenAmount shares and returns its request id.
// Shares are not escrowed; settlement checks the balance again.
func (e *Engine) RequestRedeem(ctx context.Context, fundID uuid.UUID, env auth.Envelope, tokenAmount uint64) (uint64, error) {
	var requestID uint64
	err := e.mutate(ctx, OpRequestRedeem, RequestRedeemAction(fundID, tokenAmount), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if f.Governance.Paused {
			return nil, errors.ErrFundPaused
		}
		if tokenAmount == 0 {
			return nil, errors.ErrInvalidAmount
		}
		balance, err := tx.Ledger().BalanceOf(ctx, f.Accounts.ShareMint, caller)
		if err != nil {
			return nil, errors.Wrap(err, "read share balance")
		}
		if balance < tokenAmount {
			return nil, errors.Wrapf(errors.ErrInsufficientTokens, "balance %d < %d", balance, tokenAmount)
		}

		now := e.now()
		req, err := f.Queue.Enqueue(caller, tokenAmount, now)
		if err != nil {
			return nil, err
		}
		if err := tx.Funds().AppendRedemption(ctx, f.ID, &req); err != nil {
			return nil, errors.Wrap(err, "append redemption")
		}
		f.UpdatedAt = now
		if err := tx.Funds().Update(ctx, f); err != nil {
			return nil, errors.Wrap(err, "update fund")
		}
		requestID = req.ID

		e.log.Infow("Redemption requested",
			"fund_id", f.ID,
			"request_id", req.ID,
			"requester", caller,
			"shares", formatAmount(tokenAmount),
			"queue_len", f.Queue.Len(),
		)

		return fund.RedemptionRequested{
			Meta:         fund.Meta{Fund: f.ID, At: now},
			RequestID:    req.ID,
			Requester:    caller,
			TokenAmount:  tokenAmount,
			NavAtRequest: f.Oracle.LatestNav,
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return requestID, nil
}

// DistributeYield computes and announces the per-share yield. It moves no funds
// and changes no state, so retries are safe.
func (e *Engine) DistributeYield(ctx context.Context, fundID uuid.UUID, env auth.Envelope, yieldAmount, totalShareSupply uint64) (fixedpoint.Uint128, error) {
	var perShare fixedpoint.Uint128
	err := e.mutate(ctx, OpDistributeYield, DistributeYieldAction(fundID, yieldAmount, totalShareSupply), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleAdmin, caller); err != nil {
			return nil, err
		}
		y, err := fund.PerShareYield(yieldAmount, totalShareSupply)
		if err != nil {
			return nil, err
		}
		held, err := tx.Ledger().BalanceOf(ctx, f.Accounts.PaymentMint, f.Accounts.Treasury)
		if err != nil {
			return nil, errors.Wrap(err, "read treasury balance")
		}
		if held < yieldAmount {
			return nil, errors.Wrapf(errors.ErrInsufficientTokens, "treasury holds %d < yield %d", held, yieldAmount)
		}
		perShare = y

		e.log.Infow("Yield distributed",
			"fund_id", f.ID,
			"yield", formatAmount(yieldAmount),
			"supply", formatAmount(totalShareSupply),
			"per_share", y.String(),
		)

		return fund.YieldDistributed{
			Meta:             fund.Meta{Fund: f.ID, At: e.now()},
			YieldAmount:      yieldAmount,
			TotalShareSupply: totalShareSupply,
			PerShareYield:    y,
		}, nil
	})
	if err != nil {
		return fixedpoint.Uint128{}, err
	}
	return perShare, nil
}

// ApproveRedemption moves a pending request to approved.
func (e *Engine) ApproveRedemption(ctx context.Context, fundID uuid.UUID, env auth.Envelope, requestID uint64) error {
	return e.mutate(ctx, OpApproveRedemption, ApproveRedemptionAction(fundID, requestID), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleAdmin, caller); err != nil {
			return nil, err
		}
		req, err := f.Queue.Get(requestID)
		if err != nil {
			return nil, err
		}

		now := e.now()
		if err := req.Advance(fund.RedemptionApproved, now); err != nil {
			return nil, err
		}
		if err := tx.Funds().UpdateRedemption(ctx, f.ID, req); err != nil {
			return nil, errors.Wrap(err, "update redemption")
		}
		f.UpdatedAt = now
		if err := tx.Funds().Update(ctx, f); err != nil {
			return nil, errors.Wrap(err, "update fund")
		}

		e.log.Infow("Redemption approved", "fund_id", f.ID, "request_id", req.ID)

		return fund.RedemptionApprovedEvent{
			Meta:      fund.Meta{Fund: f.ID, At: now},
			RequestID: req.ID,
			Requester: req.Requester,
		}, nil
	})
}

// SettleRedemption burns an approved request's shares and pays the requester
// from the treasury at the latest NAV, less the redemption fee.
func (e *Engine) SettleRedemption(ctx context.Context, fundID uuid.UUID, env auth.Envelope, requestID uint64) error {
	return e.mutate(ctx, OpSettleRedemption, SettleRedemptionAction(fundID, requestID), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleAdmin, caller); err != nil {
			return nil, err
		}
		req, err := f.Queue.Get(requestID)
		if err != nil {
			return nil, err
		}
		if !req.Status.CanTransitionTo(fund.RedemptionSettled) {
			return nil, errors.Wrapf(errors.ErrInvalidStatusTransition, "request %d is %s", req.ID, req.Status)
		}

		ledger := tx.Ledger()
		shares, err := ledger.BalanceOf(ctx, f.Accounts.ShareMint, req.Requester)
		if err != nil {
			return nil, errors.Wrap(err, "read requester share balance")
		}
		if shares < req.TokenAmount {
			return nil, errors.Wrapf(errors.ErrInsufficientTokens, "requester holds %d < %d", shares, req.TokenAmount)
		}

		nav, err := f.Oracle.Price()
		if err != nil {
			return nil, err
		}
		payout, err := fund.RedemptionPayout(req.TokenAmount, f.Governance.Fees.RedemptionFeeBps, nav)
		if err != nil {
			return nil, err
		}
		held, err := ledger.BalanceOf(ctx, f.Accounts.PaymentMint, f.Accounts.Treasury)
		if err != nil {
			return nil, errors.Wrap(err, "read treasury balance")
		}
		if held < payout.Net {
			return nil, errors.Wrapf(errors.ErrInsufficientTokens, "treasury holds %d < payout %d", held, payout.Net)
		}
		if err := f.Totals.AddPayout(payout.Net); err != nil {
			return nil, err
		}

		if err := ledger.Burn(ctx, f.Accounts.ShareMint, req.Requester, req.TokenAmount, f.Accounts.MintAuthority); err != nil {
			return nil, errors.Wrap(err, "burn shares")
		}
		if err := ledger.Transfer(ctx, f.Accounts.PaymentMint, f.Accounts.Treasury, req.Requester, payout.Net); err != nil {
			return nil, errors.Wrap(err, "transfer payout")
		}

		now := e.now()
		if err := req.Advance(fund.RedemptionSettled, now); err != nil {
			return nil, err
		}
		req.PayoutAmount = payout.Net
		req.FeeAmount = payout.Fee
		if err := tx.Funds().UpdateRedemption(ctx, f.ID, req); err != nil {
			return nil, errors.Wrap(err, "update redemption")
		}
		f.UpdatedAt = now
		if err := tx.Funds().Update(ctx, f); err != nil {
			return nil, errors.Wrap(err, "update fund")
		}

		e.log.Infow("Redemption settled",
			"fund_id", f.ID,
			"request_id", req.ID,
			"requester", req.Requester,
			"shares", formatAmount(req.TokenAmount),
			"payout", formatAmount(payout.Net),
			"fee", formatAmount(payout.Fee),
			"nav", nav,
		)

		return fund.RedemptionSettledEvent{
			Meta:        fund.Meta{Fund: f.ID, At: now},
			RequestID:   req.ID,
			Requester:   req.Requester,
			TokenAmount: req.TokenAmount,
			GrossAmount: payout.Gross,
			FeeAmount:   payout.Fee,
			NetAmount:   payout.Net,
			Nav:         nav,
		}, nil
	})
}

// SetPaused flips the pause flag. Paused funds reject subscribe and redeem requests.
func (e *Engine) SetPaused(ctx context.Context, fundID uuid.UUID, env auth.Envelope, paused bool) error {
	return e.mutate(ctx, OpSetPaused, SetPausedAction(fundID, paused), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleAdmin, caller); err != nil {
			return nil, err
		}

		now := e.now()
		f.Governance.Paused = paused
		f.UpdatedAt = now
		if err := tx.Funds().Update(ctx, f); err != nil {
			return nil, errors.Wrap(err, "update fund")
		}

		e.log.Infow("Fund pause changed", "fund_id", f.ID, "paused", paused)

		return fund.PauseChanged{
			Meta:   fund.Meta{Fund: f.ID, At: now},
			Paused: paused,
			Admin:  caller,
		}, nil
	})
}

// UpdateFees replaces the fee schedule.
func (e *Engine) UpdateFees(ctx context.Context, fundID uuid.UUID, env auth.Envelope, fees fund.FeeSchedule) error {
	return e.mutate(ctx, OpUpdateFees, UpdateFeesAction(fundID, fees), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleAdmin, caller); err != nil {
			return nil, err
		}
		if err := fees.Validate(); err != nil {
			return nil, err
		}
		return e.saveGovernance(ctx, tx, f, func(g *fund.Governance) { g.Fees = fees })
	})
}

// SetOracle rotates the oracle key.
func (e *Engine) SetOracle(ctx context.Context, fundID uuid.UUID, env auth.Envelope, oracle fund.Identity) error {
	return e.mutate(ctx, OpSetOracle, SetOracleAction(fundID, oracle), env, func(ctx context.Context, tx fund.Tx, f *fund.Fund, caller fund.Identity) (fund.Event, error) {
		if err := f.Governance.Authorize(fund.RoleAdmin, caller); err != nil {
			return nil, err
		}
		if oracle.IsZero() {
			return nil, errors.Wrap(errors.ErrInvalidInput, "oracle key is required")
		}
		return e.saveGovernance(ctx, tx, f, func(g *fund.Governance) { g.Oracle = oracle })
	})
}

func (e *Engine) saveGovernance(ctx context.Context, tx fund.Tx, f *fund.Fund, apply func(g *fund.Governance)) (fund.Event, error) {
	now := e.now()
	apply(&f.Governance)
	f.UpdatedAt = now
	if err := tx.Funds().Update(ctx, f); err != nil {
		return nil, errors.Wrap(err, "update fund")
	}

	e.log.Infow("Governance updated",
		"fund_id", f.ID,
		"oracle", f.Governance.Oracle,
		"mint_fee_bps", f.Governance.Fees.MintFeeBps,
		"redemption_fee_bps", f.Governance.Fees.RedemptionFeeBps,
		"management_fee_bps", f.Governance.Fees.ManagementFeeBps,
	)

	return fund.GovernanceUpdated{
		Meta:   fund.Meta{Fund: f.ID, At: now},
		Oracle: f.Governance.Oracle,
		Fees:   f.Governance.Fees,
	}, nil
}

// Fund returns a read-only snapshot.
func (e *Engine) Fund(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error) {
	f, err := e.store.GetFund(ctx, fundID)
	if err != nil {
		return nil, errors.Wrap(err, "get fund")
	}
	return f, nil
}

// ListFundIDs returns every fund id in the store.
func (e *Engine) ListFundIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := e.store.ListFundIDs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list funds")
	}
	return ids, nil
}

func formatAmount(v uint64) string {
	return humanize.BigComma(new(big.Int).SetUint64(v))
}
