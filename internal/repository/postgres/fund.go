package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
)

// Compile-time check
var _ fund.Repository = (*FundRepository)(nil)

// FundRepository implements fund.Repository using sqlx
type FundRepository struct {
	db        DBTX
	forUpdate bool
}

// NewFundRepository creates a repository whose reads take row locks, for use inside a transaction.
func NewFundRepository(db DBTX) *FundRepository {
	return &FundRepository{db: db, forUpdate: true}
}

// newFundReader creates a repository for lock-free snapshot reads.
func newFundReader(db DBTX) *FundRepository {
	return &FundRepository{db: db}
}

type fundRow struct {
	ID                     uuid.UUID       `db:"id"`
	AdminKey               string          `db:"admin_key"`
	OracleKey              string          `db:"oracle_key"`
	ManagementFeeBps       int             `db:"management_fee_bps"`
	MintFeeBps             int             `db:"mint_fee_bps"`
	RedemptionFeeBps       int             `db:"redemption_fee_bps"`
	Paused                 bool            `db:"paused"`
	LatestNav              decimal.Decimal `db:"latest_nav"`
	PreviousNav            decimal.Decimal `db:"previous_nav"`
	NavUpdatedAt           time.Time       `db:"nav_updated_at"`
	TotalDeposits          decimal.Decimal `db:"total_deposits"`
	TotalRedemptionPayouts decimal.Decimal `db:"total_redemption_payouts"`
	PaymentMint            string          `db:"payment_mint"`
	ShareMint              string          `db:"share_mint"`
	Treasury               string          `db:"treasury"`
	MintAuthority          string          `db:"mint_authority"`
	MintAuthorityBump      int16           `db:"mint_authority_bump"`
	CreatedAt              time.Time       `db:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at"`
}

type redemptionRow struct {
	RequestID    int64           `db:"request_id"`
	Requester    string          `db:"requester"`
	TokenAmount  decimal.Decimal `db:"token_amount"`
	Status       string          `db:"status"`
	PayoutAmount decimal.Decimal `db:"payout_amount"`
	FeeAmount    decimal.Decimal `db:"fee_amount"`
	RequestedAt  time.Time       `db:"requested_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

const fundColumns = `
	id, admin_key, oracle_key,
	management_fee_bps, mint_fee_bps, redemption_fee_bps, paused,
	latest_nav, previous_nav, nav_updated_at,
	total_deposits, total_redemption_payouts,
	payment_mint, share_mint, treasury, mint_authority, mint_authority_bump,
	created_at, updated_at`

// Create inserts a new fund and registers its share mint with the fund's mint authority.
func (r *FundRepository) Create(ctx context.Context, f *fund.Fund) error {
	query := `
		INSERT INTO funds (` + fundColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)`

	g := f.Governance
	_, err := r.db.ExecContext(ctx, query,
		f.ID, g.Admin.String(), g.Oracle.String(),
		int(g.Fees.ManagementFeeBps), int(g.Fees.MintFeeBps), int(g.Fees.RedemptionFeeBps), g.Paused,
		fixedpoint.DecimalFromUint64(f.Oracle.LatestNav), fixedpoint.DecimalFromUint64(f.Oracle.PreviousNav), f.Oracle.LastUpdate,
		fixedpoint.DecimalFromUint64(f.Totals.TotalDeposits), fixedpoint.DecimalFromUint64(f.Totals.TotalRedemptionPayouts),
		f.Accounts.PaymentMint.String(), f.Accounts.ShareMint.String(), f.Accounts.Treasury.String(),
		f.Accounts.MintAuthority.Address.String(), int16(f.Accounts.MintAuthority.Bump),
		f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "insert fund")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ledger_supply (asset, supply, mint_authority)
		VALUES ($1, 0, $2)`,
		f.Accounts.ShareMint.String(), f.Accounts.MintAuthority.Address.String(),
	)
	return mapError(err, "register share mint")
}

// GetByID loads the fund and its redemption queue.
func (r *FundRepository) GetByID(ctx context.Context, id uuid.UUID) (*fund.Fund, error) {
	query := `SELECT ` + fundColumns + ` FROM funds WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	var row fundRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrFundNotFound, "id %s", id)
		}
		return nil, errors.Wrap(err, "select fund")
	}

	f, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	var requests []redemptionRow
	err = r.db.SelectContext(ctx, &requests, `
		SELECT request_id, requester, token_amount, status, payout_amount, fee_amount, requested_at, updated_at
		FROM redemption_requests
		WHERE fund_id = $1
		ORDER BY request_id`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select redemption requests")
	}

	for _, rr := range requests {
		req, err := rr.toDomain()
		if err != nil {
			return nil, err
		}
		f.Queue.Requests = append(f.Queue.Requests, req)
	}
	return f, nil
}

// Update persists governance, oracle and totals.
func (r *FundRepository) Update(ctx context.Context, f *fund.Fund) error {
	query := `
		UPDATE funds SET
			admin_key = $2,
			oracle_key = $3,
			management_fee_bps = $4,
			mint_fee_bps = $5,
			redemption_fee_bps = $6,
			paused = $7,
			latest_nav = $8,
			previous_nav = $9,
			nav_updated_at = $10,
			total_deposits = $11,
			total_redemption_payouts = $12,
			updated_at = $13
		WHERE id = $1`

	g := f.Governance
	res, err := r.db.ExecContext(ctx, query,
		f.ID, g.Admin.String(), g.Oracle.String(),
		int(g.Fees.ManagementFeeBps), int(g.Fees.MintFeeBps), int(g.Fees.RedemptionFeeBps), g.Paused,
		fixedpoint.DecimalFromUint64(f.Oracle.LatestNav), fixedpoint.DecimalFromUint64(f.Oracle.PreviousNav), f.Oracle.LastUpdate,
		fixedpoint.DecimalFromUint64(f.Totals.TotalDeposits), fixedpoint.DecimalFromUint64(f.Totals.TotalRedemptionPayouts),
		f.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update fund")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrFundNotFound, "id %s", f.ID)
	}
	return nil
}

// AppendRedemption adds req to the end of the fund's queue.
func (r *FundRepository) AppendRedemption(ctx context.Context, fundID uuid.UUID, req *fund.RedemptionRequest) error {
	var count uint64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM redemption_requests WHERE fund_id = $1`, fundID); err != nil {
		return errors.Wrap(err, "count redemption requests")
	}
	if count >= fund.MaxRedemptionRequests {
		return errors.ErrRedemptionQueueFull
	}
	if req.ID != count+1 {
		return errors.Wrapf(errors.ErrInvalidInput, "request id %d does not follow %d", req.ID, count)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO redemption_requests (
			fund_id, request_id, requester, token_amount, status,
			payout_amount, fee_amount, requested_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fundID, int64(req.ID), req.Requester.String(), fixedpoint.DecimalFromUint64(req.TokenAmount), req.Status.String(),
		fixedpoint.DecimalFromUint64(req.PayoutAmount), fixedpoint.DecimalFromUint64(req.FeeAmount),
		req.RequestedAt, req.UpdatedAt,
	)
	return mapError(err, "insert redemption request")
}

// UpdateRedemption overwrites a stored request's status and settlement amounts.
func (r *FundRepository) UpdateRedemption(ctx context.Context, fundID uuid.UUID, req *fund.RedemptionRequest) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE redemption_requests SET
			status = $3,
			payout_amount = $4,
			fee_amount = $5,
			updated_at = $6
		WHERE fund_id = $1 AND request_id = $2`,
		fundID, int64(req.ID), req.Status.String(),
		fixedpoint.DecimalFromUint64(req.PayoutAmount), fixedpoint.DecimalFromUint64(req.FeeAmount),
		req.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update redemption request")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrRedemptionNotFound, "fund %s request %d", fundID, req.ID)
	}
	return nil
}

// ListIDs returns fund ids in creation order.
func (r *FundRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM funds ORDER BY created_at, id`); err != nil {
		return nil, errors.Wrap(err, "list funds")
	}
	return ids, nil
}

func (row fundRow) toDomain() (*fund.Fund, error) {
	var (
		p   parser
		f   = &fund.Fund{ID: row.ID, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}
		bps = func(v int) uint16 {
			if v < 0 || v > fund.BpsDenominator {
				p.fail(errors.Wrapf(errors.ErrInvalidInput, "fee bps %d out of range", v))
				return 0
			}
			return uint16(v)
		}
	)

	f.Governance = fund.Governance{
		Admin:  p.key(row.AdminKey),
		Oracle: p.key(row.OracleKey),
		Fees: fund.FeeSchedule{
			ManagementFeeBps: bps(row.ManagementFeeBps),
			MintFeeBps:       bps(row.MintFeeBps),
			RedemptionFeeBps: bps(row.RedemptionFeeBps),
		},
		Paused: row.Paused,
	}
	f.Oracle = fund.NavOracle{
		LatestNav:   p.amount(row.LatestNav),
		PreviousNav: p.amount(row.PreviousNav),
		LastUpdate:  row.NavUpdatedAt,
	}
	f.Totals = fund.Totals{
		TotalDeposits:          p.amount(row.TotalDeposits),
		TotalRedemptionPayouts: p.amount(row.TotalRedemptionPayouts),
	}
	f.Accounts = fund.Accounts{
		PaymentMint: p.key(row.PaymentMint),
		ShareMint:   p.key(row.ShareMint),
		Treasury:    p.key(row.Treasury),
		MintAuthority: fund.MintAuthority{
			Address: p.key(row.MintAuthority),
			Bump:    uint8(row.MintAuthorityBump),
		},
	}
	f.Queue = fund.NewRedemptionQueue()

	if p.err != nil {
		return nil, errors.Wrapf(p.err, "decode fund %s", row.ID)
	}
	return f, nil
}

func (row redemptionRow) toDomain() (fund.RedemptionRequest, error) {
	var p parser
	req := fund.RedemptionRequest{
		ID:           uint64(row.RequestID),
		Requester:    p.key(row.Requester),
		TokenAmount:  p.amount(row.TokenAmount),
		RequestedAt:  row.RequestedAt,
		Status:       fund.RedemptionStatus(row.Status),
		UpdatedAt:    row.UpdatedAt,
		PayoutAmount: p.amount(row.PayoutAmount),
		FeeAmount:    p.amount(row.FeeAmount),
	}
	if !req.Status.Valid() {
		p.fail(errors.Wrapf(errors.ErrInvalidInput, "status %q", row.Status))
	}
	if p.err != nil {
		return fund.RedemptionRequest{}, errors.Wrapf(p.err, "decode redemption request %d", row.RequestID)
	}
	return req, nil
}

// parser keeps the first decode error so row conversion reads straight through.
type parser struct {
	err error
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) key(s string) fund.Identity {
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		p.fail(errors.Wrapf(errors.ErrInvalidInput, "key %q: %v", s, err))
	}
	return k
}

func (p *parser) amount(d decimal.Decimal) uint64 {
	v, err := fixedpoint.Uint64FromDecimal(d)
	if err != nil {
		p.fail(err)
	}
	return v
}
