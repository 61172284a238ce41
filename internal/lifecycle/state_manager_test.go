package lifecycle

import (
	"math/big"
	"testing"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var threshold = decimal.NewFromInt(500)

func TestDecideActiveByLiquidity(t *testing.T) {
	ctx := rewardengine.PositionStateContext{
		HasBlockchainLiquidity: true,
		BlockchainLiquidity:    big.NewInt(1000),
		CurrentValueUSD:        decimal.NewFromInt(10),
	}
	d := Decide(ctx, threshold)
	assert.Equal(t, rewardengine.StateActive, d.State)
	assert.True(t, d.RewardEligible)
}

func TestDecideActiveBySignificantValue(t *testing.T) {
	ctx := rewardengine.PositionStateContext{
		HasBlockchainLiquidity: false,
		CurrentValueUSD:        decimal.NewFromInt(600),
	}
	d := Decide(ctx, threshold)
	assert.Equal(t, rewardengine.StateActive, d.State)
	assert.True(t, d.RewardEligible)
}

func TestDecideNeedsCloseout(t *testing.T) {
	// Concrete scenario 3 from the spec: liquidity withdrawn, fees owed, value below threshold.
	ctx := rewardengine.PositionStateContext{
		HasBlockchainLiquidity: false,
		CurrentValueUSD:        decimal.NewFromInt(450),
		HasUnclaimedTokens:     true,
	}
	d := Decide(ctx, threshold)
	assert.Equal(t, rewardengine.StateNeedsCloseout, d.State)
	assert.True(t, d.RewardEligible)
}

func TestDecideInactive(t *testing.T) {
	ctx := rewardengine.PositionStateContext{
		HasBlockchainLiquidity: false,
		CurrentValueUSD:        decimal.NewFromInt(0),
		HasUnclaimedTokens:     false,
	}
	d := Decide(ctx, threshold)
	assert.Equal(t, rewardengine.StateInactive, d.State)
	assert.False(t, d.RewardEligible)
}

func TestDecideRuleOrderLiquidityBeatsCloseout(t *testing.T) {
	ctx := rewardengine.PositionStateContext{
		HasBlockchainLiquidity: true,
		CurrentValueUSD:        decimal.NewFromInt(0),
		HasUnclaimedTokens:     true,
	}
	d := Decide(ctx, threshold)
	assert.Equal(t, rewardengine.StateActive, d.State)
}
