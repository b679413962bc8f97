package fund

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"navfund/pkg/errors"
)

// Role names whose key an operation requires
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOracle    Role = "oracle"
	RoleRequester Role = "requester"
)

// String returns string representation
func (r Role) String() string {
	return string(r)
}

// Require fails with ErrUnauthorized unless caller is the key held for role.
func Require(role Role, expected, caller Identity) error {
	if expected.IsZero() || !expected.Equals(caller) {
		return errors.Wrapf(errors.ErrUnauthorized, "caller %s is not the %s", caller, role)
	}
	return nil
}

// Authorize checks caller against the governance key for role.
func (g Governance) Authorize(role Role, caller Identity) error {
	switch role {
	case RoleAdmin:
		return Require(role, g.Admin, caller)
	case RoleOracle:
		return Require(role, g.Oracle, caller)
	}
	return errors.Wrapf(errors.ErrUnauthorized, "role %s is not held by governance", role)
}

// Seeds for program-derived fund accounts
const (
	mintAuthoritySeed = "mint_authority"
	treasurySeed      = "treasury"
)

// DeriveMintAuthority returns the program-derived mint authority for a fund.
// Nobody holds its private key; the ledger accepts it as proof that the
// fund program itself authorized a mint or burn.
func DeriveMintAuthority(programID Identity, fundID uuid.UUID) (MintAuthority, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte(mintAuthoritySeed), fundID[:]}, programID)
	if err != nil {
		return MintAuthority{}, errors.Wrap(err, "derive mint authority")
	}
	return MintAuthority{Address: addr, Bump: bump}, nil
}

// DeriveTreasury returns the program-derived treasury account for a fund.
func DeriveTreasury(programID Identity, fundID uuid.UUID) (Identity, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(treasurySeed), fundID[:]}, programID)
	if err != nil {
		return Identity{}, errors.Wrap(err, "derive treasury")
	}
	return addr, nil
}

// DeriveAccounts builds the account set for a fund.
func DeriveAccounts(programID Identity, fundID uuid.UUID, paymentMint, shareMint Identity) (Accounts, error) {
	authority, err := DeriveMintAuthority(programID, fundID)
	if err != nil {
		return Accounts{}, err
	}
	treasury, err := DeriveTreasury(programID, fundID)
	if err != nil {
		return Accounts{}, err
	}
	return Accounts{
		PaymentMint:   paymentMint,
		ShareMint:     shareMint,
		Treasury:      treasury,
		MintAuthority: authority,
	}, nil
}
