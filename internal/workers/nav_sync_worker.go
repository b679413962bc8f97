package workers

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"navfund/internal/adapters/oracle"
	"navfund/internal/domain/fund"
	"navfund/internal/services/accounting"
	"navfund/pkg/auth"
	"navfund/pkg/errors"
	"navfund/pkg/logger"
)

// NavSource yields the latest NAV computed off-chain.
type NavSource interface {
	FetchNav(ctx context.Context) (*oracle.NavReport, error)
}

// NavSubmitter is the part of the accounting engine the NAV sync worker drives.
type NavSubmitter interface {
	Fund(ctx context.Context, fundID uuid.UUID) (*fund.Fund, error)
	SubmitNav(ctx context.Context, fundID uuid.UUID, env auth.Envelope, newNav uint64) error
}

// NavSyncWorker pulls the oracle NAV and submits it when it moved.
type NavSyncWorker struct {
	*BaseWorker
	source NavSource
	engine NavSubmitter
	fundID uuid.UUID
	signer solana.PrivateKey
	now    func() time.Time
}

// NewNavSyncWorker creates the worker. signer must be the fund's oracle key.
func NewNavSyncWorker(
	source NavSource,
	engine NavSubmitter,
	fundID uuid.UUID,
	signer solana.PrivateKey,
	interval time.Duration,
	enabled bool,
	log *logger.Logger,
) *NavSyncWorker {
	return &NavSyncWorker{
		BaseWorker: NewBaseWorker("nav_sync", interval, enabled, log),
		source:     source,
		engine:     engine,
		fundID:     fundID,
		signer:     signer,
		now:        time.Now,
	}
}

// Run executes one sync.
func (w *NavSyncWorker) Run(ctx context.Context) error {
	report, err := w.source.FetchNav(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch nav")
	}

	f, err := w.engine.Fund(ctx, w.fundID)
	if err != nil {
		return errors.Wrap(err, "load fund")
	}

	if f.Oracle.LatestNav == report.NavCents {
		w.Log().Debugw("NAV unchanged, skipping submit",
			"fund_id", w.fundID,
			"nav_cents", report.NavCents,
		)
		return nil
	}

	env, err := auth.Sign(w.signer, accounting.SubmitNavAction(w.fundID, report.NavCents), w.now())
	if err != nil {
		return errors.Wrap(err, "sign submit_nav")
	}

	if err := w.engine.SubmitNav(ctx, w.fundID, env, report.NavCents); err != nil {
		return errors.Wrap(err, "submit nav")
	}

	w.Log().Infow("NAV synced from oracle",
		"fund_id", w.fundID,
		"previous_nav", f.Oracle.LatestNav,
		"latest_nav", report.NavCents,
		"computed_at", report.ComputedAt(),
	)
	return nil
}
