package rewards

import (
	"context"
	"math/big"
	"testing"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/blackhole-labs/lp-reward-engine/internal/oracle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePoolFetcher struct {
	pool chain.PoolState
	err  error
}

func (f *fakePoolFetcher) FetchPoolState(ctx context.Context) (chain.PoolState, error) {
	return f.pool, f.err
}

type fakeQuoter struct {
	quote oracle.Quote
	err   error
}

func (f *fakeQuoter) QuoteUSD(ctx context.Context, asset string) (oracle.Quote, error) {
	return f.quote, f.err
}

type fakeAccountantStore struct {
	eligible   []rewardengine.EnrolledPosition
	accruals   []rewardengine.RewardAccrual
	treasury   *rewardengine.TreasuryConfig
	settings   *rewardengine.ProgramSettings
	lastClosed time.Time
	rollover   *big.Int
}

func (f *fakeAccountantStore) GetEligiblePositions(ctx context.Context) ([]rewardengine.EnrolledPosition, error) {
	return f.eligible, nil
}

func (f *fakeAccountantStore) AppendRewardAccrual(ctx context.Context, accrual rewardengine.RewardAccrual) error {
	f.accruals = append(f.accruals, accrual)
	return nil
}

func (f *fakeAccountantStore) GetLatestAccrualForPosition(ctx context.Context, positionID uuid.UUID) (*rewardengine.RewardAccrual, error) {
	for i := len(f.accruals) - 1; i >= 0; i-- {
		if f.accruals[i].PositionID == positionID {
			return &f.accruals[i], nil
		}
	}
	return nil, nil
}

func (f *fakeAccountantStore) GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error) {
	return f.treasury, nil
}

func (f *fakeAccountantStore) GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error) {
	return f.settings, nil
}

func (f *fakeAccountantStore) GetEpochCursor(ctx context.Context) (time.Time, *big.Int, error) {
	return f.lastClosed, f.rollover, nil
}

func (f *fakeAccountantStore) SetEpochCursor(ctx context.Context, lastClosedEpochEnd time.Time, rolloverBucket *big.Int) error {
	f.lastClosed = lastClosedEpochEnd
	f.rollover = rolloverBucket
	return nil
}

func newTestAccountant(chainFetcher PoolStateFetcher, quoter PriceQuoter, st AccountantStore, now time.Time) *Accountant {
	a := NewAccountant(chainFetcher, quoter, st, zap.NewNop(), 24*time.Hour, "REWARD")
	a.now = func() time.Time { return now }
	return a
}

func TestAccountantDistributesBudgetAcrossEligiblePositions(t *testing.T) {
	epochStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	epochEnd := epochStart.Add(24 * time.Hour)

	posA := rewardengine.EnrolledPosition{
		ID: uuid.New(), UserID: uuid.New(), TokenID: big.NewInt(1),
		TickLower: -100, TickUpper: 100, LiquidityUnits: big.NewInt(1000),
		CreatedAt: epochStart.Add(-48 * time.Hour),
	}
	posB := rewardengine.EnrolledPosition{
		ID: uuid.New(), UserID: uuid.New(), TokenID: big.NewInt(2),
		TickLower: -100, TickUpper: 100, LiquidityUnits: big.NewInt(1000),
		CreatedAt: epochStart.Add(-48 * time.Hour),
	}

	st := &fakeAccountantStore{
		eligible:   []rewardengine.EnrolledPosition{posA, posB},
		lastClosed: epochStart,
		rollover:   big.NewInt(0),
		treasury: &rewardengine.TreasuryConfig{
			DailyBudget:         big.NewInt(1000),
			ProgramStartTime:    epochStart.Add(-72 * time.Hour),
			ProgramDurationDays: 90,
		},
		settings: &rewardengine.ProgramSettings{
			TimeBoostCoefficient: decimal.NewFromFloat(0.1),
			FullRangeBonus:       decimal.NewFromInt(1),
		},
	}

	chainFetcher := &fakePoolFetcher{pool: chain.PoolState{Tick: 0}}
	quoter := &fakeQuoter{quote: oracle.Quote{Price: decimal.NewFromInt(1), AsOf: epochEnd, Stale: false}}

	a := newTestAccountant(chainFetcher, quoter, st, epochEnd.Add(time.Minute))
	a.maybeCloseEpoch(context.Background())

	require.Len(t, st.accruals, 2)
	total := new(big.Int)
	for _, acc := range st.accruals {
		total.Add(total, acc.RewardUnits)
	}
	assert.Equal(t, int64(1000), total.Int64())
	assert.True(t, st.lastClosed.Equal(epochEnd))
	assert.Equal(t, int64(0), st.rollover.Int64())
}

func TestAccountantRollsOverBudgetWhenNoEligibleWeight(t *testing.T) {
	epochStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	epochEnd := epochStart.Add(24 * time.Hour)

	posOutOfRange := rewardengine.EnrolledPosition{
		ID: uuid.New(), UserID: uuid.New(), TokenID: big.NewInt(1),
		TickLower: 1000, TickUpper: 2000, LiquidityUnits: big.NewInt(1000),
		CreatedAt: epochStart.Add(-48 * time.Hour),
	}

	st := &fakeAccountantStore{
		eligible:   []rewardengine.EnrolledPosition{posOutOfRange},
		lastClosed: epochStart,
		rollover:   big.NewInt(0),
		treasury: &rewardengine.TreasuryConfig{
			DailyBudget:         big.NewInt(1000),
			ProgramStartTime:    epochStart.Add(-72 * time.Hour),
			ProgramDurationDays: 90,
		},
		settings: &rewardengine.ProgramSettings{
			TimeBoostCoefficient: decimal.NewFromFloat(0.1),
			FullRangeBonus:       decimal.NewFromInt(1),
		},
	}

	// pool tick 0 is outside [1000,2000), so inRangeFraction = 0 for the only position -> Z=0
	chainFetcher := &fakePoolFetcher{pool: chain.PoolState{Tick: 0}}
	quoter := &fakeQuoter{quote: oracle.Quote{Price: decimal.NewFromInt(1), AsOf: epochEnd, Stale: false}}

	a := newTestAccountant(chainFetcher, quoter, st, epochEnd.Add(time.Minute))
	a.maybeCloseEpoch(context.Background())

	assert.Empty(t, st.accruals)
	assert.Equal(t, int64(1000), st.rollover.Int64())
	assert.True(t, st.lastClosed.Equal(epochEnd))
}

func TestAccountantDefersOnStalePrice(t *testing.T) {
	epochStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	epochEnd := epochStart.Add(24 * time.Hour)

	st := &fakeAccountantStore{
		lastClosed: epochStart,
		rollover:   big.NewInt(0),
		treasury: &rewardengine.TreasuryConfig{
			DailyBudget:         big.NewInt(1000),
			ProgramStartTime:    epochStart.Add(-72 * time.Hour),
			ProgramDurationDays: 90,
		},
		settings: &rewardengine.ProgramSettings{TimeBoostCoefficient: decimal.Zero, FullRangeBonus: decimal.NewFromInt(1)},
	}

	chainFetcher := &fakePoolFetcher{pool: chain.PoolState{Tick: 0}}
	quoter := &fakeQuoter{quote: oracle.Quote{Stale: true}}

	a := newTestAccountant(chainFetcher, quoter, st, epochEnd.Add(time.Minute))
	a.maybeCloseEpoch(context.Background())

	assert.Empty(t, st.accruals)
	assert.True(t, st.lastClosed.Equal(epochStart), "stalled epoch must not advance the cursor")
}

func TestAccountantDefersOnPoolFetchFailure(t *testing.T) {
	epochStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	epochEnd := epochStart.Add(24 * time.Hour)

	st := &fakeAccountantStore{
		lastClosed: epochStart,
		rollover:   big.NewInt(0),
		treasury: &rewardengine.TreasuryConfig{
			DailyBudget:         big.NewInt(1000),
			ProgramStartTime:    epochStart.Add(-72 * time.Hour),
			ProgramDurationDays: 90,
		},
		settings: &rewardengine.ProgramSettings{TimeBoostCoefficient: decimal.Zero, FullRangeBonus: decimal.NewFromInt(1)},
	}

	chainFetcher := &fakePoolFetcher{err: apperr.NewTransient("rpc down", nil)}
	quoter := &fakeQuoter{quote: oracle.Quote{Price: decimal.NewFromInt(1), AsOf: epochEnd}}

	a := newTestAccountant(chainFetcher, quoter, st, epochEnd.Add(time.Minute))
	a.maybeCloseEpoch(context.Background())

	assert.Empty(t, st.accruals)
	assert.True(t, st.lastClosed.Equal(epochStart))
}

func TestAccountantWaitsForAlignedBoundary(t *testing.T) {
	epochStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	st := &fakeAccountantStore{
		lastClosed: epochStart,
		rollover:   big.NewInt(0),
		treasury: &rewardengine.TreasuryConfig{
			DailyBudget:         big.NewInt(1000),
			ProgramStartTime:    epochStart.Add(-72 * time.Hour),
			ProgramDurationDays: 90,
		},
		settings: &rewardengine.ProgramSettings{TimeBoostCoefficient: decimal.Zero, FullRangeBonus: decimal.NewFromInt(1)},
	}

	chainFetcher := &fakePoolFetcher{pool: chain.PoolState{Tick: 0}}
	quoter := &fakeQuoter{quote: oracle.Quote{Price: decimal.NewFromInt(1), AsOf: epochStart}}

	// only 1 hour into the epoch: no boundary reached yet
	a := newTestAccountant(chainFetcher, quoter, st, epochStart.Add(time.Hour))
	a.maybeCloseEpoch(context.Background())

	assert.Empty(t, st.accruals)
	assert.True(t, st.lastClosed.Equal(epochStart))
}
