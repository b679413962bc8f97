package fund

import (
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
)

// Quote is the breakdown of a deposit-to-share conversion.
type Quote struct {
	Deposit uint64
	Fee     uint64
	Net     uint64
	Shares  uint64
}

// SharesForDeposit converts a deposit in payment base units into share base units at navCents.
//
// The net deposit is scaled to cents precision and divided by NAV, then scaled to
// share units and back down: floor(floor(net*100/nav)*10^6/100). Every division
// floors, so fractional remainders stay with the treasury.
func SharesForDeposit(deposit uint64, feeBps uint16, navCents uint64) (Quote, error) {
	if deposit == 0 {
		return Quote{}, errors.ErrInvalidAmount
	}
	if navCents == 0 {
		return Quote{}, errors.ErrInvalidNavPrice
	}

	net, fee, err := ApplyFee(deposit, feeBps)
	if err != nil {
		return Quote{}, err
	}

	inCents, err := fixedpoint.MulDiv64(net, centsScale, navCents)
	if err != nil {
		return Quote{}, err
	}
	scaled, err := inCents.Mul64(ShareScale)
	if err != nil {
		return Quote{}, err
	}
	wide, err := scaled.Div64(centsScale)
	if err != nil {
		return Quote{}, err
	}
	shares, err := wide.Uint64()
	if err != nil {
		return Quote{}, errors.Wrap(err, "shares exceed 64 bits")
	}
	if shares == 0 {
		return Quote{}, errors.Wrap(errors.ErrInvalidAmount, "deposit rounds to zero shares")
	}

	return Quote{Deposit: deposit, Fee: fee, Net: net, Shares: shares}, nil
}

// Payout is the breakdown of a share-to-payment conversion at settlement.
type Payout struct {
	Shares uint64
	Gross  uint64
	Fee    uint64
	Net    uint64
}

// RedemptionPayout values shares at navCents, the inverse of the mint conversion
// (gross = floor(shares*nav/10^6)), then charges the redemption fee.
func RedemptionPayout(shares uint64, feeBps uint16, navCents uint64) (Payout, error) {
	if shares == 0 {
		return Payout{}, errors.ErrInvalidAmount
	}
	if navCents == 0 {
		return Payout{}, errors.ErrInvalidNavPrice
	}

	wide, err := fixedpoint.MulDiv64(shares, navCents, ShareScale)
	if err != nil {
		return Payout{}, err
	}
	gross, err := wide.Uint64()
	if err != nil {
		return Payout{}, errors.Wrap(err, "payout exceeds 64 bits")
	}

	net, fee, err := ApplyFee(gross, feeBps)
	if err != nil {
		return Payout{}, err
	}
	if net == 0 {
		return Payout{}, errors.Wrap(errors.ErrInvalidAmount, "redemption pays out nothing")
	}

	return Payout{Shares: shares, Gross: gross, Fee: fee, Net: net}, nil
}
