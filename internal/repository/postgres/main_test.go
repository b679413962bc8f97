package postgres

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"navfund/internal/domain/fund"
)

// newTestFund builds a fund with freshly generated keys so tests never collide on unique mints.
func newTestFund(t *testing.T) *fund.Fund {
	t.Helper()

	id := uuid.New()
	accounts, err := fund.DeriveAccounts(solana.NewWallet().PublicKey(), id, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	params := fund.GenesisParams{
		FundID:       id,
		OracleSigner: solana.NewWallet().PublicKey(),
		Fees:         fund.FeeSchedule{ManagementFeeBps: 100, MintFeeBps: 25, RedemptionFeeBps: 50},
		InitialNav:   1000,
		PaymentMint:  accounts.PaymentMint,
		ShareMint:    accounts.ShareMint,
	}
	// postgres keeps microseconds
	now := time.Now().UTC().Truncate(time.Microsecond)
	return fund.New(id, solana.NewWallet().PublicKey(), params, accounts, now)
}
