// Package rewards implements the Reward Accountant (the per-epoch reward
// distribution loop) and the APR/Analytics Aggregator.
package rewards

import (
	"context"
	"math/big"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/blackhole-labs/lp-reward-engine/internal/oracle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const epochWakeupJitter = 60 * time.Second

// PoolStateFetcher is the subset of *chain.Reader the Accountant needs.
type PoolStateFetcher interface {
	FetchPoolState(ctx context.Context) (chain.PoolState, error)
}

// PriceQuoter is the subset of *oracle.Client the Accountant needs.
type PriceQuoter interface {
	QuoteUSD(ctx context.Context, asset string) (oracle.Quote, error)
}

// AccountantStore is the subset of *store.Store the Accountant needs.
type AccountantStore interface {
	GetEligiblePositions(ctx context.Context) ([]rewardengine.EnrolledPosition, error)
	AppendRewardAccrual(ctx context.Context, accrual rewardengine.RewardAccrual) error
	GetLatestAccrualForPosition(ctx context.Context, positionID uuid.UUID) (*rewardengine.RewardAccrual, error)
	GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error)
	GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error)
	GetEpochCursor(ctx context.Context) (time.Time, *big.Int, error)
	SetEpochCursor(ctx context.Context, lastClosedEpochEnd time.Time, rolloverBucket *big.Int) error
}

// Accountant is the Reward Accountant: a 24h-aligned loop (with a 60s
// wake-up jitter so restarts don't miss a boundary) that distributes the
// daily budget across eligible positions using the §4.7 formula.
type Accountant struct {
	chain       PoolStateFetcher
	oracle      PriceQuoter
	store       AccountantStore
	logger      *zap.Logger
	rewardAsset string
	epochLength time.Duration
	now         func() time.Time
}

// NewAccountant wires the Accountant's dependencies.
func NewAccountant(chainReader PoolStateFetcher, priceOracle PriceQuoter, st AccountantStore, logger *zap.Logger, epochLength time.Duration, rewardAsset string) *Accountant {
	return &Accountant{
		chain:       chainReader,
		oracle:      priceOracle,
		store:       st,
		logger:      logger,
		rewardAsset: rewardAsset,
		epochLength: epochLength,
		now:         time.Now,
	}
}

// Start runs the wake-up loop until ctx is cancelled: every jitter tick it
// checks whether the next aligned epoch boundary has passed and, if so,
// attempts to close it.
func (a *Accountant) Start(ctx context.Context) {
	a.logger.Info("reward accountant starting", zap.Duration("epochLength", a.epochLength))
	ticker := time.NewTicker(epochWakeupJitter)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("reward accountant stopped")
			return
		case <-ticker.C:
			a.maybeCloseEpoch(ctx)
		}
	}
}

func (a *Accountant) maybeCloseEpoch(ctx context.Context) {
	treasury, err := a.store.GetTreasuryConfig(ctx)
	if err != nil {
		a.logger.Error("accountant: failed to load treasury config", zap.Error(err))
		return
	}

	lastClosed, rollover, err := a.store.GetEpochCursor(ctx)
	if err != nil {
		a.logger.Error("accountant: failed to load epoch cursor", zap.Error(err))
		return
	}
	if lastClosed.IsZero() {
		lastClosed = treasury.ProgramStartTime
	}

	epochEnd := lastClosed.Add(a.epochLength)
	if a.now().Before(epochEnd) {
		return // next boundary hasn't arrived yet
	}

	if err := a.closeEpoch(ctx, lastClosed, epochEnd, treasury, rollover); err != nil {
		a.logger.Warn("stalled-epoch: epoch close deferred", zap.Time("epochEnd", epochEnd), zap.Error(err))
	}
}

// closeEpoch implements §4.7 steps 1-8. Partial closure is prohibited: any
// failure leaves the cursor untouched so the next wake-up retries the same boundary.
func (a *Accountant) closeEpoch(ctx context.Context, epochStart, epochEnd time.Time, treasury *rewardengine.TreasuryConfig, rolloverBucket *big.Int) error {
	quote, err := a.oracle.QuoteUSD(ctx, a.rewardAsset)
	if err != nil || quote.Stale {
		return apperr.NewUnavailable("reward token price stale or unavailable at epoch close", err)
	}

	pool, err := a.chain.FetchPoolState(ctx)
	if err != nil {
		return apperr.NewUnavailable("pool state unavailable at epoch close", err)
	}

	settings, err := a.store.GetProgramSettings(ctx)
	if err != nil {
		return err
	}

	eligible, err := a.store.GetEligiblePositions(ctx)
	if err != nil {
		return err
	}

	budget := new(big.Int).Add(treasury.DailyBudget, rolloverBucket)
	budgetDecimal := decimal.NewFromBigInt(budget, 0)

	type weighted struct {
		position rewardengine.EnrolledPosition
		shareOfPool,
		timeBoost,
		inRangeFraction,
		fullRangeBonus,
		weight decimal.Decimal
	}

	positionWeights := make([]weighted, 0, len(eligible))
	totalLiquidityTime := decimal.Zero
	liquidityTimes := make([]decimal.Decimal, len(eligible))

	for i, pos := range eligible {
		lt := liquidityTimeIntegral(pos, epochStart, epochEnd)
		liquidityTimes[i] = lt
		totalLiquidityTime = totalLiquidityTime.Add(lt)
	}

	for i, pos := range eligible {
		var shareOfPool decimal.Decimal
		if totalLiquidityTime.IsZero() {
			shareOfPool = decimal.Zero
		} else {
			shareOfPool = liquidityTimes[i].Div(totalLiquidityTime)
		}

		daysSinceEnrollment := decimal.NewFromFloat(epochEnd.Sub(pos.CreatedAt).Hours() / 24)
		programDays := decimal.NewFromInt(int64(treasury.ProgramDurationDays))
		boostFraction := decimal.Min(decimal.NewFromInt(1), safeDiv(daysSinceEnrollment, programDays))
		timeBoost := decimal.NewFromInt(1).Add(boostFraction.Mul(settings.TimeBoostCoefficient))

		inRangeFraction := decimal.Zero
		if chain.IsInRange(pool.Tick, pos.TickLower, pos.TickUpper) {
			inRangeFraction = decimal.NewFromInt(1)
		}

		fullRangeBonus := decimal.NewFromInt(1)
		if chain.IsFullRange(pos.TickLower, pos.TickUpper) {
			fullRangeBonus = settings.FullRangeBonus
		}

		weight := shareOfPool.Mul(timeBoost).Mul(inRangeFraction).Mul(fullRangeBonus)

		positionWeights = append(positionWeights, weighted{
			position:        pos,
			shareOfPool:     shareOfPool,
			timeBoost:       timeBoost,
			inRangeFraction: inRangeFraction,
			fullRangeBonus:  fullRangeBonus,
			weight:          weight,
		})
	}

	z := decimal.Zero
	for _, w := range positionWeights {
		z = z.Add(w.weight)
	}

	if z.IsZero() {
		newRollover := new(big.Int).Set(budget)
		a.logger.Info("epoch closed with no in-range eligible liquidity; budget rolled over",
			zap.Time("epochEnd", epochEnd), zap.String("rolloverBucket", newRollover.String()))
		return a.store.SetEpochCursor(ctx, epochEnd, newRollover)
	}

	for _, w := range positionWeights {
		normalizedWeight := w.weight.Div(z)
		rewardDecimal := budgetDecimal.Mul(normalizedWeight)
		rewardUnits := rewardDecimal.Truncate(0).BigInt()

		prior, err := a.store.GetLatestAccrualForPosition(ctx, w.position.ID)
		if err != nil {
			return err
		}
		accumulated := new(big.Int).Set(rewardUnits)
		if prior != nil {
			accumulated = new(big.Int).Add(prior.AccumulatedUnits, rewardUnits)
		}

		accrual := rewardengine.RewardAccrual{
			ID:               uuid.New(),
			UserID:           w.position.UserID,
			PositionID:       w.position.ID,
			EpochStart:       epochStart,
			EpochEnd:         epochEnd,
			RewardUnits:      rewardUnits,
			AccumulatedUnits: accumulated,
			FormulaInputs: rewardengine.FormulaInputs{
				ShareOfPool:      w.shareOfPool,
				TimeBoostFactor:  w.timeBoost,
				InRangeFraction:  w.inRangeFraction,
				FullRangeBonus:   w.fullRangeBonus,
				NormalizedWeight: normalizedWeight,
				EpochBudget:      budget,
				RolloverApplied:  rolloverBucket,
			},
		}
		if err := a.store.AppendRewardAccrual(ctx, accrual); err != nil {
			return err
		}
	}

	a.logger.Info("epoch closed", zap.Time("epochEnd", epochEnd), zap.Int("positions", len(positionWeights)), zap.String("budget", budget.String()))
	return a.store.SetEpochCursor(ctx, epochEnd, big.NewInt(0))
}

// liquidityTimeIntegral approximates L_u: liquidity held times the
// fraction of the epoch the position was eligible, prorating positions
// enrolled mid-epoch per §4.7's tie-break rule. Continuous liquidity
// history isn't tracked, so a position's liquidity is treated as constant
// across the portion of the epoch it was enrolled for.
func liquidityTimeIntegral(pos rewardengine.EnrolledPosition, epochStart, epochEnd time.Time) decimal.Decimal {
	if pos.LiquidityUnits == nil || pos.LiquidityUnits.Sign() == 0 {
		return decimal.Zero
	}

	eligibleFrom := epochStart
	if pos.CreatedAt.After(epochStart) {
		eligibleFrom = pos.CreatedAt
	}
	if eligibleFrom.After(epochEnd) {
		return decimal.Zero
	}

	epochSeconds := epochEnd.Sub(epochStart).Seconds()
	if epochSeconds <= 0 {
		return decimal.Zero
	}
	eligibleSeconds := epochEnd.Sub(eligibleFrom).Seconds()
	fraction := decimal.NewFromFloat(eligibleSeconds / epochSeconds)

	liquidity := decimal.NewFromBigInt(pos.LiquidityUnits, 0)
	return liquidity.Mul(fraction)
}

func safeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
