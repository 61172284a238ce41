package lifecycle

import (
	"context"
	"math/big"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChainPositionReader is the subset of *chain.Reader the Sync Validator
// needs: a single-position read, since it walks every enrolled position
// directly rather than grouping by owner.
type ChainPositionReader interface {
	FetchPosition(ctx context.Context, tokenID *big.Int) (*chain.RawPosition, error)
	FetchPoolState(ctx context.Context) (chain.PoolState, error)
}

// SyncValidatorStore is the subset of *store.Store the Sync Validator needs.
type SyncValidatorStore interface {
	GetAllPositions(ctx context.Context) ([]rewardengine.EnrolledPosition, error)
	SetPositionState(ctx context.Context, tokenID *big.Int, isActive, rewardEligible bool) error
	RecordDiscrepancy(ctx context.Context, d rewardengine.SyncDiscrepancy) error
	RecentDiscrepancies(ctx context.Context, n int) ([]rewardengine.SyncDiscrepancy, error)
	CountDiscrepancies(ctx context.Context) (total, critical, autoFixed int64, err error)
}

// HealthReport is the Sync Validator's exposed health summary (§4.6).
type HealthReport struct {
	TotalDiscrepancies int64
	CriticalCount      int64
	AutoFixedCount     int64
	Recent             []rewardengine.SyncDiscrepancy
}

// SyncValidator is the independent cross-check loop: it never deletes, and
// auto-fixes only the non-destructive active→inactive transition when the
// chain fetch succeeded cleanly.
type SyncValidator struct {
	chain    ChainPositionReader
	store    SyncValidatorStore
	logger   *zap.Logger
	interval time.Duration

	significanceThreshold decimal.Decimal
	now                   func() time.Time
}

// NewSyncValidator wires the validator's dependencies.
func NewSyncValidator(chainReader ChainPositionReader, st SyncValidatorStore, logger *zap.Logger, interval time.Duration, significanceThreshold decimal.Decimal) *SyncValidator {
	return &SyncValidator{
		chain:                 chainReader,
		store:                 st,
		logger:                logger,
		interval:              interval,
		significanceThreshold: significanceThreshold,
		now:                   time.Now,
	}
}

// Start runs the 300s independent validation loop until ctx is cancelled.
func (v *SyncValidator) Start(ctx context.Context) {
	v.logger.Info("sync validator starting", zap.Duration("interval", v.interval))
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			v.logger.Info("sync validator stopped")
			return
		case <-ticker.C:
			v.runPass(ctx)
		}
	}
}

func (v *SyncValidator) runPass(ctx context.Context) {
	positions, err := v.store.GetAllPositions(ctx)
	if err != nil {
		v.logger.Error("sync validator failed to list positions", zap.Error(err))
		return
	}

	pool, poolErr := v.chain.FetchPoolState(ctx)
	poolFetchOK := poolErr == nil

	for _, p := range positions {
		v.checkPosition(ctx, p, pool, poolFetchOK)
	}
}

func (v *SyncValidator) checkPosition(ctx context.Context, p rewardengine.EnrolledPosition, pool chain.PoolState, poolFetchOK bool) {
	onChain, err := v.chain.FetchPosition(ctx, p.TokenID)
	chainReadOK := err == nil || apperr.IsPermanent(err) // NotFound is a clean read: the position genuinely isn't there.
	if err != nil && apperr.IsTransient(err) {
		return // transient read failures are skipped, same rule as the Reconciler (§4.5).
	}

	chainCtx := rewardengine.PositionStateContext{
		TokenID:         p.TokenID,
		CurrentValueUSD: p.CurrentValueUSD,
		IsOnBlockchain:  err == nil,
	}
	if err == nil {
		chainCtx.HasBlockchainLiquidity = onChain.HasLiquidity()
		chainCtx.BlockchainLiquidity = onChain.Liquidity
		chainCtx.HasUnclaimedTokens = onChain.HasUnclaimedTokens()
	}
	if poolFetchOK {
		chainCtx.CurrentTick = pool.Tick
	}

	decision := Decide(chainCtx, v.significanceThreshold)
	// §8 scenario 3: needs-closeout is a non-active state for isActive purposes.
	chainIsActive := decision.State == rewardengine.StateActive

	if chainIsActive == p.IsActive {
		return
	}

	autoFixed := false
	// Auto-fix is restricted to the single non-destructive direction:
	// active (locally) -> inactive (on chain), and only when both this
	// position's chain read and the pass's pool-state read were clean.
	if p.IsActive && !chainIsActive && poolFetchOK && chainReadOK {
		if err := v.store.SetPositionState(ctx, p.TokenID, false, decision.RewardEligible); err != nil {
			v.logger.Error("sync validator auto-fix failed", zap.String("tokenId", p.TokenID.String()), zap.Error(err))
		} else {
			autoFixed = true
		}
	}

	discrepancy := rewardengine.SyncDiscrepancy{
		ID:         uuid.New(),
		TokenID:    p.TokenID,
		DBState:    stateFor(p),
		ChainState: decision.State,
		Severity:   rewardengine.SeverityCritical,
		DetectedAt: v.now(),
		AutoFixed:  autoFixed,
	}
	if err := v.store.RecordDiscrepancy(ctx, discrepancy); err != nil {
		v.logger.Error("failed to record discrepancy", zap.Error(err))
	}
}

// BuildHealthReport exposes the validator's running totals and its 10 most
// recent discrepancies, the §4.6 health endpoint contract.
func (v *SyncValidator) BuildHealthReport(ctx context.Context) (HealthReport, error) {
	total, critical, autoFixed, err := v.store.CountDiscrepancies(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	recent, err := v.store.RecentDiscrepancies(ctx, 10)
	if err != nil {
		return HealthReport{}, err
	}
	return HealthReport{
		TotalDiscrepancies: total,
		CriticalCount:      critical,
		AutoFixedCount:     autoFixed,
		Recent:             recent,
	}, nil
}

func stateFor(p rewardengine.EnrolledPosition) rewardengine.PositionState {
	if p.IsActive {
		return rewardengine.StateActive
	}
	return rewardengine.StateInactive
}
