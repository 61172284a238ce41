package rewards

import (
	"context"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

const (
	analyticsCacheTTL = 30 * time.Second

	programSnapshotKey = "program"
	poolSnapshotKey    = "pool"
)

// poolVolumeAsset and poolTVLAsset are the Oracle's asset identifiers for
// the pool-level figures the Trading APR formula needs; the external price
// source also serves these as quoteUSD-shaped {price, lastUpdated} values.
const (
	poolVolumeAsset = "pool-24h-volume-usd"
	poolTVLAsset    = "pool-tvl-usd"
)

// AnalyticsStore is the subset of *store.Store the Aggregator needs.
type AnalyticsStore interface {
	GetEligiblePositions(ctx context.Context) ([]rewardengine.EnrolledPosition, error)
	GetPositionsByOwner(ctx context.Context, userID uuid.UUID) ([]rewardengine.EnrolledPosition, error)
	GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error)
	GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error)
}

// ProgramAnalytics is the §4.8/§6 GET /rewards/program-analytics response.
type ProgramAnalytics struct {
	ProgramAPR               decimal.Decimal
	ActiveLiquidityProviders int
	TotalLiquidity           decimal.Decimal
	TreasuryTotal            decimal.Decimal
}

// PoolAnalytics is the §6 GET /trading-fees/pool-apr response.
type PoolAnalytics struct {
	TradingFeesAPR decimal.Decimal
}

// Analytics is the APR/Analytics Aggregator: derives program-wide and
// trading APR figures from the Accountant's state and the Oracle, cached
// for 30s behind a single-writer/multi-reader expirable LRU, per §9.
type Analytics struct {
	store        AnalyticsStore
	oracle       PriceQuoter
	pool         PoolStateFetcher
	cache        *lru.LRU[string, interface{}]
	rewardAsset  string
	feeTierUnits uint32
}

// NewAnalytics wires the Aggregator's dependencies. feeTierUnits is the
// program's configured pool fee tier in Uniswap's fee units (hundredths of a bip; e.g. 3000 = 0.3%),
// used by the trading-fees APR formula.
func NewAnalytics(st AnalyticsStore, priceOracle PriceQuoter, poolFetcher PoolStateFetcher, rewardAsset string, feeTierUnits uint32) *Analytics {
	return &Analytics{
		store:        st,
		oracle:       priceOracle,
		pool:         poolFetcher,
		cache:        lru.NewLRU[string, interface{}](8, nil, analyticsCacheTTL),
		rewardAsset:  rewardAsset,
		feeTierUnits: feeTierUnits,
	}
}

// ProgramAnalytics returns the program-wide APR snapshot, serving a cached
// value when fresh and computing + publishing a new one otherwise.
func (a *Analytics) ProgramAnalytics(ctx context.Context) (ProgramAnalytics, error) {
	if cached, ok := a.cache.Get(programSnapshotKey); ok {
		return cached.(ProgramAnalytics), nil
	}

	treasury, err := a.store.GetTreasuryConfig(ctx)
	if err != nil {
		return ProgramAnalytics{}, err
	}
	settings, err := a.store.GetProgramSettings(ctx)
	if err != nil {
		return ProgramAnalytics{}, err
	}
	eligible, err := a.store.GetEligiblePositions(ctx)
	if err != nil {
		return ProgramAnalytics{}, err
	}

	quote, err := a.oracle.QuoteUSD(ctx, a.rewardAsset)
	if err != nil {
		return ProgramAnalytics{}, apperr.NewUnavailable("reward token price unavailable for program analytics", err)
	}

	totalUSD := decimal.Zero
	participants := make(map[string]struct{})
	for _, p := range eligible {
		totalUSD = totalUSD.Add(p.CurrentValueUSD)
		participants[p.UserID.String()] = struct{}{}
	}

	denominator := decimal.Max(settings.SignificanceThresholdUSD, totalUSD)
	var programAPR decimal.Decimal
	if denominator.IsZero() {
		programAPR = decimal.Zero
	} else {
		dailyBudgetUSD := decimal.NewFromBigInt(treasury.DailyBudget, 0).Mul(quote.Price)
		programAPR = dailyBudgetUSD.Mul(decimal.NewFromInt(365)).Div(denominator)
	}

	snapshot := ProgramAnalytics{
		ProgramAPR:               programAPR,
		ActiveLiquidityProviders: len(participants),
		TotalLiquidity:           totalUSD,
		TreasuryTotal:            decimal.NewFromBigInt(treasury.TotalAllocation, 0),
	}
	a.cache.Add(programSnapshotKey, snapshot)
	return snapshot, nil
}

// PoolAPR returns the trading-fees APR figure.
func (a *Analytics) PoolAPR(ctx context.Context) (PoolAnalytics, error) {
	if cached, ok := a.cache.Get(poolSnapshotKey); ok {
		return cached.(PoolAnalytics), nil
	}

	volumeQuote, err := a.oracle.QuoteUSD(ctx, poolVolumeAsset)
	if err != nil {
		return PoolAnalytics{}, apperr.NewUnavailable("pool 24h volume unavailable for trading APR", err)
	}
	tvlQuote, err := a.oracle.QuoteUSD(ctx, poolTVLAsset)
	if err != nil {
		return PoolAnalytics{}, apperr.NewUnavailable("pool TVL unavailable for trading APR", err)
	}
	if tvlQuote.Price.IsZero() {
		return PoolAnalytics{}, apperr.NewUnavailable("pool TVL is zero", nil)
	}

	feeFraction := decimal.NewFromInt(int64(a.feeTierUnits)).Div(decimal.NewFromInt(1000000))
	dailyFees := volumeQuote.Price.Mul(feeFraction)
	apr := dailyFees.Div(tvlQuote.Price).Mul(decimal.NewFromInt(365)).Mul(decimal.NewFromInt(100))

	snapshot := PoolAnalytics{TradingFeesAPR: apr}
	a.cache.Add(poolSnapshotKey, snapshot)
	return snapshot, nil
}

// UserAPR returns the per-user APR: the program APR weighted by the sum of
// s_u · T_u · IRM_u · FRB_u over the user's eligible positions, per §4.8.
func (a *Analytics) UserAPR(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	program, err := a.ProgramAnalytics(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	pool, err := a.pool.FetchPoolState(ctx)
	if err != nil {
		return decimal.Zero, apperr.NewUnavailable("pool state unavailable for user APR", err)
	}

	positions, err := a.store.GetPositionsByOwner(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if len(positions) == 0 {
		return decimal.Zero, nil
	}

	settings, err := a.store.GetProgramSettings(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	treasury, err := a.store.GetTreasuryConfig(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	totalWeight := decimal.Zero
	for _, p := range positions {
		if !p.RewardEligible {
			continue
		}
		shareOfPool := decimal.Zero
		if program.TotalLiquidity.IsPositive() {
			shareOfPool = p.CurrentValueUSD.Div(program.TotalLiquidity)
		}

		daysSinceEnrollment := decimal.NewFromFloat(time.Since(p.CreatedAt).Hours() / 24)
		programDays := decimal.NewFromInt(int64(treasury.ProgramDurationDays))
		boostFraction := decimal.Min(decimal.NewFromInt(1), safeDiv(daysSinceEnrollment, programDays))
		timeBoost := decimal.NewFromInt(1).Add(boostFraction.Mul(settings.TimeBoostCoefficient))

		inRangeFraction := decimal.Zero
		if chain.IsInRange(pool.Tick, p.TickLower, p.TickUpper) {
			inRangeFraction = decimal.NewFromInt(1)
		}

		fullRangeBonus := decimal.NewFromInt(1)
		if chain.IsFullRange(p.TickLower, p.TickUpper) {
			fullRangeBonus = settings.FullRangeBonus
		}

		totalWeight = totalWeight.Add(shareOfPool.Mul(timeBoost).Mul(inRangeFraction).Mul(fullRangeBonus))
	}

	return program.ProgramAPR.Mul(totalWeight), nil
}
