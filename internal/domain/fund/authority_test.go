package fund_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

func TestGovernance_Authorize(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	oracle := solana.NewWallet().PublicKey()
	stranger := solana.NewWallet().PublicKey()
	g := fund.Governance{Admin: admin, Oracle: oracle}

	assert.NoError(t, g.Authorize(fund.RoleAdmin, admin))
	assert.NoError(t, g.Authorize(fund.RoleOracle, oracle))

	assert.ErrorIs(t, g.Authorize(fund.RoleAdmin, oracle), errors.ErrUnauthorized)
	assert.ErrorIs(t, g.Authorize(fund.RoleOracle, admin), errors.ErrUnauthorized)
	assert.ErrorIs(t, g.Authorize(fund.RoleOracle, stranger), errors.ErrUnauthorized)
	assert.ErrorIs(t, g.Authorize(fund.RoleRequester, admin), errors.ErrUnauthorized)
}

func TestRequire_ZeroKeyNeverMatches(t *testing.T) {
	err := fund.Require(fund.RoleOracle, solana.PublicKey{}, solana.PublicKey{})
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestDeriveAccounts(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	fundID := uuid.New()
	payment := solana.NewWallet().PublicKey()
	share := solana.NewWallet().PublicKey()

	a, err := fund.DeriveAccounts(programID, fundID, payment, share)
	require.NoError(t, err)

	again, err := fund.DeriveAccounts(programID, fundID, payment, share)
	require.NoError(t, err)
	assert.Equal(t, a, again, "derivation is deterministic")

	assert.False(t, a.MintAuthority.Address.IsZero())
	assert.False(t, a.Treasury.IsZero())
	assert.NotEqual(t, a.MintAuthority.Address, a.Treasury)
	assert.Equal(t, payment, a.PaymentMint)
	assert.Equal(t, share, a.ShareMint)

	other, err := fund.DeriveMintAuthority(programID, uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, a.MintAuthority.Address, other.Address, "funds get distinct authorities")
}
