package fund_test

import (
	"math"
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navfund/internal/domain/fund"
	"navfund/pkg/errors"
)

func TestApplyFee(t *testing.T) {
	tests := []struct {
		name    string
		amount  uint64
		bps     uint16
		wantNet uint64
		wantFee uint64
	}{
		{"25 bps on 100 USDC", 100_000_000, 25, 99_750_000, 250_000},
		{"zero fee", 100_000_000, 0, 100_000_000, 0},
		{"full fee", 100_000_000, 10_000, 0, 100_000_000},
		{"fee floors", 399, 25, 399, 0},
		{"max amount", math.MaxUint64, 10_000, 0, math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, fee, err := fund.ApplyFee(tt.amount, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNet, net)
			assert.Equal(t, tt.wantFee, fee)
		})
	}
}

func TestApplyFee_RejectsRateAboveDenominator(t *testing.T) {
	_, _, err := fund.ApplyFee(100, 10_001)
	assert.ErrorIs(t, err, errors.ErrArithmeticOverflow)
}

func TestApplyFee_SplitsExactly(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		amount := rng.Uint64()
		bps := uint16(rng.Intn(fund.BpsDenominator + 1))

		net, fee, err := fund.ApplyFee(amount, bps)
		require.NoError(t, err)

		want := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(int64(bps)))
		want.Quo(want, big.NewInt(fund.BpsDenominator))
		assert.Equal(t, want.Uint64(), fee)
		assert.Equal(t, amount, net+fee)
	}
}

func TestSharesForDeposit_ReferenceScenario(t *testing.T) {
	// $10.00 NAV, 25 bps mint fee, 100 USDC deposit
	q, err := fund.SharesForDeposit(100_000_000, 25, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(250_000), q.Fee)
	assert.Equal(t, uint64(99_750_000), q.Net)
	// floor(floor(99_750_000*100/1000)*10^6/100)
	assert.Equal(t, uint64(99_750_000_000), q.Shares)
}

func TestSharesForDeposit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		deposit uint64
		bps     uint16
		nav     uint64
		wantErr error
	}{
		{"zero deposit", 0, 25, 1000, errors.ErrInvalidAmount},
		{"zero nav", 100, 25, 0, errors.ErrInvalidNavPrice},
		{"dust rounds to zero", 1, 0, 1_000_000, errors.ErrInvalidAmount},
		{"full fee leaves nothing", 100_000_000, 10_000, 1000, errors.ErrInvalidAmount},
		{"shares overflow 64 bits", math.MaxUint64, 0, 1, errors.ErrArithmeticOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fund.SharesForDeposit(tt.deposit, tt.bps, tt.nav)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSharesForDeposit_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		deposit := rng.Uint64()%1_000_000_000_000 + 1_000_000
		nav := rng.Uint64()%100_000 + 1
		bps := uint16(rng.Intn(500))

		base, err := fund.SharesForDeposit(deposit, bps, nav)
		require.NoError(t, err)

		more, err := fund.SharesForDeposit(deposit+rng.Uint64()%1_000_000, bps, nav)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, more.Shares, base.Shares, "non-decreasing in deposit")

		pricier, err := fund.SharesForDeposit(deposit, bps, nav+rng.Uint64()%1000)
		require.NoError(t, err)
		assert.LessOrEqual(t, pricier.Shares, base.Shares, "non-increasing in nav")
	}
}

func TestRedemptionPayout(t *testing.T) {
	p, err := fund.RedemptionPayout(99_750_000_000, 50, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(99_750_000), p.Gross)
	assert.Equal(t, uint64(498_750), p.Fee)
	assert.Equal(t, uint64(99_251_250), p.Net)
	assert.Equal(t, p.Gross, p.Net+p.Fee)
}

func TestRedemptionPayout_Errors(t *testing.T) {
	_, err := fund.RedemptionPayout(0, 0, 1000)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	_, err = fund.RedemptionPayout(1, 0, 0)
	assert.ErrorIs(t, err, errors.ErrInvalidNavPrice)

	_, err = fund.RedemptionPayout(999, 0, 1000)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount, "gross rounds to zero")

	_, err = fund.RedemptionPayout(math.MaxUint64, 0, math.MaxUint64)
	assert.ErrorIs(t, err, errors.ErrArithmeticOverflow)
}

func TestPerShareYield(t *testing.T) {
	y, err := fund.PerShareYield(1_000_000, 500_000)
	require.NoError(t, err)
	assert.Equal(t, "2000000", y.String(), "floor(1_000_000 * 10^6 / 500_000)")

	y, err = fund.PerShareYield(math.MaxUint64, 1)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615000000", y.String(), "stays exact past 64 bits")

	_, err = fund.PerShareYield(0, 500_000)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	_, err = fund.PerShareYield(1_000_000, 0)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
}
