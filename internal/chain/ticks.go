package chain

import (
	"fmt"
	"math/big"
)

// MinTick and MaxTick bound the usable tick range for the pool, matching a
// concentrated-liquidity v3-style AMM's tick spacing limits.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// q96Ratios are the per-bit multiplicative factors used by the bit-decomposition
// square-root-price algorithm: ratio for bit i is sqrt(1.0001)^(-2^i) in Q128 fixed point.
var q96Ratios = []string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// TickToSqrtPriceX96 ports Uniswap v3's TickMath.getSqrtRatioAtTick: a
// bit-decomposition of 1.0001^(tick/2) computed entirely in integer
// arithmetic so every AMM reproduces the identical Q96 fixed-point price.
func TickToSqrtPriceX96(tick int32) *big.Int {
	absTick := int64(tick)
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&0x1 != 0 {
		ratio.SetString("fffcb933bd6fad37aa2d162d1a594001", 16)
	} else {
		ratio.Lsh(big.NewInt(1), 128)
	}

	for i := 1; i < len(q96Ratios); i++ {
		bit := int64(1) << uint(i)
		if absTick&bit == 0 {
			continue
		}
		factor := new(big.Int)
		factor.SetString(q96Ratios[i], 16)
		ratio.Mul(ratio, factor)
		ratio.Rsh(ratio, 128)
	}

	if tick > 0 {
		ratio = new(big.Int).Div(maxUint256, ratio)
	}

	shifted := new(big.Int).Rsh(ratio, 32)
	remainder := new(big.Int).Mod(ratio, new(big.Int).Lsh(big.NewInt(1), 32))
	if remainder.Sign() != 0 {
		shifted.Add(shifted, big.NewInt(1))
	}
	return shifted
}

// q96 is 2^96, the fixed-point denominator sqrtPriceX96 values are expressed in.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// CalculateTokenAmountsFromLiquidity ports Uniswap v3's
// LiquidityAmounts.getAmountsForLiquidity: given a position's liquidity and
// tick range and the pool's current sqrtPriceX96, it returns the token0/token1
// amounts that liquidity is currently worth, in native (undecimaled) chain units.
func CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int32) (amount0, amount1 *big.Int, err error) {
	if liquidity == nil || sqrtPriceX96 == nil {
		return nil, nil, fmt.Errorf("calculate token amounts: liquidity and sqrtPriceX96 are required")
	}
	if tickLower > tickUpper {
		return nil, nil, fmt.Errorf("calculate token amounts: tickLower %d exceeds tickUpper %d", tickLower, tickUpper)
	}

	sqrtRatioA := TickToSqrtPriceX96(tickLower)
	sqrtRatioB := TickToSqrtPriceX96(tickUpper)

	amount0 = big.NewInt(0)
	amount1 = big.NewInt(0)

	switch {
	case sqrtPriceX96.Cmp(sqrtRatioA) <= 0:
		amount0 = amount0ForLiquidity(liquidity, sqrtRatioA, sqrtRatioB)
	case sqrtPriceX96.Cmp(sqrtRatioB) < 0:
		amount0 = amount0ForLiquidity(liquidity, sqrtPriceX96, sqrtRatioB)
		amount1 = amount1ForLiquidity(liquidity, sqrtRatioA, sqrtPriceX96)
	default:
		amount1 = amount1ForLiquidity(liquidity, sqrtRatioA, sqrtRatioB)
	}
	return amount0, amount1, nil
}

// amount0ForLiquidity computes L*(sqrtB-sqrtA)*Q96/(sqrtB*sqrtA).
func amount0ForLiquidity(liquidity, sqrtA, sqrtB *big.Int) *big.Int {
	numerator := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	numerator.Mul(numerator, q96)
	denominator := new(big.Int).Mul(sqrtB, sqrtA)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return numerator.Div(numerator, denominator)
}

// amount1ForLiquidity computes L*(sqrtB-sqrtA)/Q96.
func amount1ForLiquidity(liquidity, sqrtA, sqrtB *big.Int) *big.Int {
	numerator := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA))
	return numerator.Div(numerator, q96)
}

// IsInRange reports whether currentTick lies within [tickLower, tickUpper),
// matching a concentrated-liquidity pool's convention that the upper bound is exclusive.
func IsInRange(currentTick, tickLower, tickUpper int32) bool {
	return currentTick >= tickLower && currentTick < tickUpper
}

// IsFullRange reports whether a position's tick range spans the entire usable window,
// which the §4.7 formula's full-range bonus applies to.
func IsFullRange(tickLower, tickUpper int32) bool {
	return tickLower <= MinTick && tickUpper >= MaxTick
}
