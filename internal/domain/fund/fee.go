package fund

import (
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10_000

	// ShareScale is 10^6, the base units per whole share.
	ShareScale = 1_000_000

	// centsScale converts between base units and NAV cents precision.
	centsScale = 100
)

// ApplyFee splits amount into (net, fee) with fee = floor(amount*feeBps/10000).
func ApplyFee(amount uint64, feeBps uint16) (net, fee uint64, err error) {
	if feeBps > BpsDenominator {
		return 0, 0, errors.Wrapf(errors.ErrArithmeticOverflow, "fee %d bps exceeds %d", feeBps, BpsDenominator)
	}
	wide, err := fixedpoint.MulDiv64(amount, uint64(feeBps), BpsDenominator)
	if err != nil {
		return 0, 0, err
	}
	fee, err = wide.Uint64()
	if err != nil {
		return 0, 0, err
	}
	return amount - fee, fee, nil
}
