package accounting

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"navfund/internal/domain/fund"
	"navfund/pkg/auth"
)

// Operation names. They label metrics and are the Op field clients sign.
const (
	OpInitializeFund    = "initialize_fund"
	OpSubmitNav         = "submit_nav"
	OpSubscribe         = "subscribe"
	OpRequestRedeem     = "request_redeem"
	OpDistributeYield   = "distribute_yield"
	OpApproveRedemption = "approve_redemption"
	OpSettleRedemption  = "settle_redemption"
	OpSetPaused         = "set_paused"
	OpUpdateFees        = "update_fees"
	OpSetOracle         = "set_oracle"
)

// The constructors below define exactly what a caller signs for each operation.

func InitializeFundAction(p fund.GenesisParams) auth.Action {
	return auth.Action{
		Op:     OpInitializeFund,
		FundID: p.FundID,
		Amount: p.InitialNav,
		Ref:    fmt.Sprintf("%s:%s:%s:%s", p.OracleSigner, feesRef(p.Fees), p.PaymentMint, p.ShareMint),
	}
}

func SubmitNavAction(fundID uuid.UUID, nav uint64) auth.Action {
	return auth.Action{Op: OpSubmitNav, FundID: fundID, Amount: nav}
}

func SubscribeAction(fundID uuid.UUID, deposit uint64) auth.Action {
	return auth.Action{Op: OpSubscribe, FundID: fundID, Amount: deposit}
}

func RequestRedeemAction(fundID uuid.UUID, tokenAmount uint64) auth.Action {
	return auth.Action{Op: OpRequestRedeem, FundID: fundID, Amount: tokenAmount}
}

func DistributeYieldAction(fundID uuid.UUID, yieldAmount, totalShareSupply uint64) auth.Action {
	return auth.Action{
		Op:     OpDistributeYield,
		FundID: fundID,
		Amount: yieldAmount,
		Ref:    strconv.FormatUint(totalShareSupply, 10),
	}
}

func ApproveRedemptionAction(fundID uuid.UUID, requestID uint64) auth.Action {
	return auth.Action{Op: OpApproveRedemption, FundID: fundID, Amount: requestID}
}

func SettleRedemptionAction(fundID uuid.UUID, requestID uint64) auth.Action {
	return auth.Action{Op: OpSettleRedemption, FundID: fundID, Amount: requestID}
}

func SetPausedAction(fundID uuid.UUID, paused bool) auth.Action {
	return auth.Action{Op: OpSetPaused, FundID: fundID, Ref: strconv.FormatBool(paused)}
}

func UpdateFeesAction(fundID uuid.UUID, fees fund.FeeSchedule) auth.Action {
	return auth.Action{Op: OpUpdateFees, FundID: fundID, Ref: feesRef(fees)}
}

func SetOracleAction(fundID uuid.UUID, oracle fund.Identity) auth.Action {
	return auth.Action{Op: OpSetOracle, FundID: fundID, Ref: oracle.String()}
}

func feesRef(f fund.FeeSchedule) string {
	return fmt.Sprintf("%d:%d:%d", f.ManagementFeeBps, f.MintFeeBps, f.RedemptionFeeBps)
}
