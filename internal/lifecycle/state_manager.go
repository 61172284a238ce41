// Package lifecycle implements the Position State Manager, the Lifecycle
// Reconciler, and the Sync Validator: the pure state-transition rules and
// the two periodic loops that apply them against live chain state.
package lifecycle

import (
	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/shopspring/decimal"
)

// Decision is the Position State Manager's total, pure output.
type Decision struct {
	State          rewardengine.PositionState
	RewardEligible bool
}

// Decide classifies a position's state from a PositionStateContext. It is
// the single authority for the active/inactive and rewardEligible
// booleans — no other component computes them. Rules are evaluated top to
// bottom; first match wins. significanceThreshold comes from the current
// ProgramSettings, passed in rather than read from hidden state, so the
// function stays pure and total.
func Decide(ctx rewardengine.PositionStateContext, significanceThreshold decimal.Decimal) Decision {
	if ctx.HasBlockchainLiquidity || ctx.CurrentValueUSD.GreaterThanOrEqual(significanceThreshold) {
		return Decision{State: rewardengine.StateActive, RewardEligible: true}
	}
	if !ctx.HasBlockchainLiquidity && ctx.HasUnclaimedTokens {
		return Decision{State: rewardengine.StateNeedsCloseout, RewardEligible: true}
	}
	return Decision{State: rewardengine.StateInactive, RewardEligible: false}
}
