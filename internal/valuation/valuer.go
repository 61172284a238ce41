// Package valuation implements the Position Valuer: it turns a position's
// liquidity and tick range into token0/token1 amounts via the Uniswap v3
// LiquidityAmounts math in internal/chain, then prices those amounts in USD
// through the Price Oracle Client, producing the CurrentValueUSD figure
// §4.4's significance-threshold rule and the APR/Analytics Aggregator's
// totals both depend on.
package valuation

import (
	"context"
	"math/big"
	"sync"

	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/blackhole-labs/lp-reward-engine/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token0Asset and Token1Asset are the Oracle's asset identifiers for the
// pool's two underlying tokens, served the same {price, lastUpdated} shape
// as the reward-token and pool-volume/TVL assets in internal/rewards.
const (
	Token0Asset = "pool-token0-usd"
	Token1Asset = "pool-token1-usd"
)

// TokenDecimalsFetcher is the subset of *chain.Reader the Valuer needs.
type TokenDecimalsFetcher interface {
	FetchTokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// PriceQuoter is the subset of *oracle.Client the Valuer needs.
type PriceQuoter interface {
	QuoteUSD(ctx context.Context, asset string) (oracle.Quote, error)
}

// Valuer is the Position Valuer.
type Valuer struct {
	chain  TokenDecimalsFetcher
	oracle PriceQuoter

	decimalsMu sync.Mutex
	decimals   map[common.Address]uint8
}

// NewValuer wires the Valuer's chain and oracle dependencies.
func NewValuer(chainReader TokenDecimalsFetcher, priceOracle PriceQuoter) *Valuer {
	return &Valuer{
		chain:    chainReader,
		oracle:   priceOracle,
		decimals: make(map[common.Address]uint8),
	}
}

// ValueUSD prices a position at the pool's current sqrtPriceX96: it
// converts liquidity + tick range into token0/token1 amounts, scales each
// by its token's decimals, and prices the result against the Oracle. A
// liquidity of zero (a fully withdrawn position) prices at zero without
// touching the chain or the Oracle.
func (v *Valuer) ValueUSD(ctx context.Context, token0, token1 common.Address, liquidity *big.Int, tickLower, tickUpper int32, sqrtPriceX96 *big.Int) (decimal.Decimal, error) {
	if liquidity == nil || liquidity.Sign() == 0 {
		return decimal.Zero, nil
	}

	amount0, amount1, err := chain.CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96, tickLower, tickUpper)
	if err != nil {
		return decimal.Zero, err
	}

	value0, err := v.valueOf(ctx, token0, Token0Asset, amount0)
	if err != nil {
		return decimal.Zero, err
	}
	value1, err := v.valueOf(ctx, token1, Token1Asset, amount1)
	if err != nil {
		return decimal.Zero, err
	}
	return value0.Add(value1), nil
}

func (v *Valuer) valueOf(ctx context.Context, token common.Address, asset string, amount *big.Int) (decimal.Decimal, error) {
	if amount == nil || amount.Sign() == 0 {
		return decimal.Zero, nil
	}

	decimals, err := v.tokenDecimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	quote, err := v.oracle.QuoteUSD(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}

	scaled := decimal.NewFromBigInt(amount, 0).Div(decimal.New(1, int32(decimals)))
	return scaled.Mul(quote.Price), nil
}

// tokenDecimals caches a token's decimals() for the process lifetime: an
// ERC20's decimals never changes once deployed.
func (v *Valuer) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	v.decimalsMu.Lock()
	d, ok := v.decimals[token]
	v.decimalsMu.Unlock()
	if ok {
		return d, nil
	}

	d, err := v.chain.FetchTokenDecimals(ctx, token)
	if err != nil {
		return 0, err
	}

	v.decimalsMu.Lock()
	v.decimals[token] = d
	v.decimalsMu.Unlock()
	return d, nil
}
