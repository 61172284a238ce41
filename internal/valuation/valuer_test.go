package valuation

import (
	"context"
	"math/big"
	"testing"

	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/blackhole-labs/lp-reward-engine/internal/oracle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecimalsFetcher struct {
	decimals map[common.Address]uint8
	calls    int
	err      error
}

func (f *fakeDecimalsFetcher) FetchTokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.decimals[token], nil
}

type fakeQuoter struct {
	quotes map[string]oracle.Quote
	err    error
}

func (f *fakeQuoter) QuoteUSD(ctx context.Context, asset string) (oracle.Quote, error) {
	if f.err != nil {
		return oracle.Quote{}, f.err
	}
	return f.quotes[asset], nil
}

var (
	token0 = common.HexToAddress("0xa0")
	token1 = common.HexToAddress("0xa1")
)

func TestValueUSDZeroLiquidityNeverTouchesChainOrOracle(t *testing.T) {
	decimalsFetcher := &fakeDecimalsFetcher{}
	quoter := &fakeQuoter{}
	v := NewValuer(decimalsFetcher, quoter)

	value, err := v.ValueUSD(context.Background(), token0, token1, big.NewInt(0), -1000, 1000, chain.TickToSqrtPriceX96(0))
	require.NoError(t, err)
	assert.True(t, value.IsZero())
	assert.Equal(t, 0, decimalsFetcher.calls)
}

func TestValueUSDInRangeSumsBothTokens(t *testing.T) {
	decimalsFetcher := &fakeDecimalsFetcher{decimals: map[common.Address]uint8{token0: 18, token1: 6}}
	quoter := &fakeQuoter{quotes: map[string]oracle.Quote{
		Token0Asset: {Price: decimal.NewFromInt(2)},
		Token1Asset: {Price: decimal.NewFromInt(1)},
	}}
	v := NewValuer(decimalsFetcher, quoter)

	value, err := v.ValueUSD(context.Background(), token0, token1, big.NewInt(1_000_000_000_000), -1000, 1000, chain.TickToSqrtPriceX96(0))
	require.NoError(t, err)
	assert.True(t, value.Sign() > 0)
}

func TestValueUSDCachesTokenDecimalsAcrossCalls(t *testing.T) {
	decimalsFetcher := &fakeDecimalsFetcher{decimals: map[common.Address]uint8{token0: 18, token1: 18}}
	quoter := &fakeQuoter{quotes: map[string]oracle.Quote{
		Token0Asset: {Price: decimal.NewFromInt(1)},
		Token1Asset: {Price: decimal.NewFromInt(1)},
	}}
	v := NewValuer(decimalsFetcher, quoter)

	_, err := v.ValueUSD(context.Background(), token0, token1, big.NewInt(1_000_000), -1000, 1000, chain.TickToSqrtPriceX96(0))
	require.NoError(t, err)
	_, err = v.ValueUSD(context.Background(), token0, token1, big.NewInt(1_000_000), -1000, 1000, chain.TickToSqrtPriceX96(0))
	require.NoError(t, err)

	assert.Equal(t, 2, decimalsFetcher.calls, "one decimals() lookup per token, not per call")
}

func TestValueUSDPropagatesOracleError(t *testing.T) {
	decimalsFetcher := &fakeDecimalsFetcher{decimals: map[common.Address]uint8{token0: 18, token1: 18}}
	quoter := &fakeQuoter{err: apperr.NewUnavailable("oracle down", nil)}
	v := NewValuer(decimalsFetcher, quoter)

	_, err := v.ValueUSD(context.Background(), token0, token1, big.NewInt(1_000_000), -1000, 1000, chain.TickToSqrtPriceX96(0))
	require.Error(t, err)
}

func TestValueUSDBelowRangeOnlyPricesToken0(t *testing.T) {
	decimalsFetcher := &fakeDecimalsFetcher{decimals: map[common.Address]uint8{token0: 18, token1: 18}}
	quoter := &fakeQuoter{quotes: map[string]oracle.Quote{
		Token0Asset: {Price: decimal.NewFromInt(5)},
	}}
	v := NewValuer(decimalsFetcher, quoter)

	value, err := v.ValueUSD(context.Background(), token0, token1, big.NewInt(1_000_000), -1000, 1000, chain.TickToSqrtPriceX96(-2000))
	require.NoError(t, err)
	assert.True(t, value.Sign() > 0)
}
