package fund

import (
	"navfund/pkg/errors"
	"navfund/pkg/fixedpoint"
)

// PerShareYield returns floor(yieldAmount*10^6/totalShareSupply), the yield per
// whole share in payment micro-units. The result stays 128 bits wide.
func PerShareYield(yieldAmount, totalShareSupply uint64) (fixedpoint.Uint128, error) {
	if yieldAmount == 0 {
		return fixedpoint.Uint128{}, errors.Wrap(errors.ErrInvalidAmount, "yield amount is zero")
	}
	if totalShareSupply == 0 {
		return fixedpoint.Uint128{}, errors.Wrap(errors.ErrInvalidAmount, "share supply is zero")
	}
	return fixedpoint.MulDiv64(yieldAmount, ShareScale, totalShareSupply)
}
