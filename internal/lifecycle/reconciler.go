package lifecycle

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/blackhole-labs/lp-reward-engine/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBatchSize       = 3
	suspectMissingConfirms = 3
	suspectMissingWindow   = 6 * time.Hour
)

// ChainPositionFetcher is the subset of *chain.Reader the Reconciler needs.
type ChainPositionFetcher interface {
	FetchPositionsOfOwner(ctx context.Context, owner common.Address) ([]chain.RawPosition, error)
	FetchPoolState(ctx context.Context) (chain.PoolState, error)
}

// ReconcilerStore is the subset of *store.Store the Reconciler needs.
type ReconcilerStore interface {
	ListUsers(ctx context.Context) ([]rewardengine.User, error)
	GetUserByAddress(ctx context.Context, address common.Address) (*rewardengine.User, error)
	GetPositionsByOwner(ctx context.Context, userID uuid.UUID) ([]rewardengine.EnrolledPosition, error)
	ApplyOwnerDiffs(ctx context.Context, diffs []rewardengine.PositionDiff) error
}

// PositionValuer is the subset of *valuation.Valuer the Reconciler needs to
// price a position's live liquidity into USD each pass.
type PositionValuer interface {
	ValueUSD(ctx context.Context, token0, token1 common.Address, liquidity *big.Int, tickLower, tickUpper int32, sqrtPriceX96 *big.Int) (decimal.Decimal, error)
}

// suspectMissingTracker records, in memory, the confirmation history for a
// tokenId observed missing from a chain enumeration. This is deliberately
// not persisted: a process restart resets the confirmation window, which
// is conservative (it delays, never hastens, eventual deletion) and the
// spec's §4.5 safety rule forbids treating a single miss as deletion
// regardless of history.
type suspectMissingTracker struct {
	mu   sync.Mutex
	seen map[string][]time.Time
}

func newSuspectMissingTracker() *suspectMissingTracker {
	return &suspectMissingTracker{seen: make(map[string][]time.Time)}
}

// confirm records one more missing-observation for tokenID at now and
// reports whether the confirmation threshold has now been met within the window.
func (t *suspectMissingTracker) confirm(tokenID string, now time.Time) (confirmed bool, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := now.Add(-suspectMissingWindow)
	kept := t.seen[tokenID][:0]
	for _, ts := range t.seen[tokenID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)
	t.seen[tokenID] = kept

	return len(kept) >= suspectMissingConfirms, len(kept)
}

func (t *suspectMissingTracker) clear(tokenID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, tokenID)
}

// Reconciler is the Lifecycle Reconciler: a 120s cooperative loop that
// reads chain truth for every enrolled user and writes only the diff,
// bound by the §4.5 transient-failure safety rules.
type Reconciler struct {
	chain     ChainPositionFetcher
	store     ReconcilerStore
	valuer    PositionValuer
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	significanceThreshold decimal.Decimal

	missing *suspectMissingTracker
	now     func() time.Time

	running atomic.Bool
}

// NewReconciler wires the Reconciler's dependencies. batchSize <= 0 defaults to 3 per §4.5.
func NewReconciler(chainReader ChainPositionFetcher, st ReconcilerStore, valuer PositionValuer, logger *zap.Logger, interval time.Duration, batchSize int, significanceThreshold decimal.Decimal) *Reconciler {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Reconciler{
		chain:                  chainReader,
		store:                  st,
		valuer:                 valuer,
		logger:                 logger,
		interval:               interval,
		batchSize:              batchSize,
		significanceThreshold:  significanceThreshold,
		missing:                newSuspectMissingTracker(),
		now:                    time.Now,
	}
}

// Start runs the cooperative reconciliation loop until ctx is cancelled,
// finishing the in-flight user's transaction before exiting.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("lifecycle reconciler starting", zap.Duration("interval", r.interval))
	r.running.Store(true)
	defer r.running.Store(false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("lifecycle reconciler stopped")
			return
		case <-ticker.C:
			r.runPass(ctx)
		}
	}
}

// Running reports whether the periodic loop is currently active, the
// §6 GET /position-lifecycle/status contract.
func (r *Reconciler) Running() bool {
	return r.running.Load()
}

// CheckUser runs the §4.5 reconciliation for a single address on demand,
// outside the periodic loop's cadence, the §6 POST
// /position-lifecycle/check-user/{address} contract. It applies the same
// transient-failure safety rules as a normal pass.
func (r *Reconciler) CheckUser(ctx context.Context, address common.Address) error {
	user, err := r.store.GetUserByAddress(ctx, address)
	if err != nil {
		return err
	}
	r.reconcileUser(ctx, *user)
	return nil
}

func (r *Reconciler) runPass(ctx context.Context) {
	users, err := r.store.ListUsers(ctx)
	if err != nil {
		r.logger.Error("reconciler failed to list users", zap.Error(err))
		return
	}

	wellFormed := make([]rewardengine.User, 0, len(users))
	for _, u := range users {
		if common.IsHexAddress(u.Address.Hex()) {
			wellFormed = append(wellFormed, u)
		}
	}

	for i := 0; i < len(wellFormed); i += r.batchSize {
		end := i + r.batchSize
		if end > len(wellFormed) {
			end = len(wellFormed)
		}
		batch := wellFormed[i:end]

		var wg sync.WaitGroup
		for _, u := range batch {
			wg.Add(1)
			go func(u rewardengine.User) {
				defer wg.Done()
				r.reconcileUser(ctx, u)
			}(u)
		}
		wg.Wait()
	}
}

// reconcileUser applies the §4.5 safety rules for one user: a transient
// fetch failure means zero mutations for every one of this user's positions.
func (r *Reconciler) reconcileUser(ctx context.Context, user rewardengine.User) {
	chainPositions, err := r.chain.FetchPositionsOfOwner(ctx, user.Address)
	if err != nil {
		if apperr.IsTransient(err) {
			r.logger.Warn("skipping user this pass: transient chain fetch failure",
				zap.String("address", user.Address.Hex()), zap.Error(err))
			return
		}
		r.logger.Error("unexpected permanent error fetching positions", zap.String("address", user.Address.Hex()), zap.Error(err))
		return
	}

	pool, err := r.chain.FetchPoolState(ctx)
	if err != nil {
		if apperr.IsTransient(err) {
			r.logger.Warn("skipping user this pass: pool state unavailable",
				zap.String("address", user.Address.Hex()), zap.Error(err))
			return
		}
		return
	}

	localPositions, err := r.store.GetPositionsByOwner(ctx, user.ID)
	if err != nil {
		r.logger.Error("failed to load local positions", zap.String("address", user.Address.Hex()), zap.Error(err))
		return
	}

	byToken := make(map[string]chain.RawPosition, len(chainPositions))
	for _, p := range chainPositions {
		byToken[p.TokenID.String()] = p
	}

	now := r.now()
	diffs := make([]rewardengine.PositionDiff, 0, len(localPositions))
	for _, local := range localPositions {
		tokenID := local.TokenID.String()
		onChain, found := byToken[tokenID]

		if !found {
			// §4.5: a single missing observation is never a deletion. Only
			// an independent confirmation pipeline, gated behind repeated
			// observations across a time window, may act on it — and even
			// then, only the Sync Validator's auto-fix path mutates state;
			// the Reconciler itself never deletes.
			confirmed, count := r.missing.confirm(tokenID, now)
			r.logger.Warn("suspect-missing position observed",
				zap.String("tokenId", tokenID), zap.Int("confirmations", count), zap.Bool("confirmed", confirmed))
			continue
		}
		r.missing.clear(tokenID)

		valueUSD, err := r.valuer.ValueUSD(ctx, local.Token0, local.Token1, onChain.Liquidity, local.TickLower, local.TickUpper, pool.SqrtPriceX96)
		if err != nil {
			r.logger.Warn("failed to price position this pass, carrying last known value",
				zap.String("tokenId", tokenID), zap.Error(err))
			valueUSD = local.CurrentValueUSD
		}

		ctxRecord := rewardengine.PositionStateContext{
			TokenID:                local.TokenID,
			HasBlockchainLiquidity: onChain.HasLiquidity(),
			BlockchainLiquidity:    onChain.Liquidity,
			CurrentValueUSD:        valueUSD,
			HasUnclaimedTokens:     onChain.HasUnclaimedTokens(),
			IsOnBlockchain:         true,
			CurrentTick:            pool.Tick,
		}
		decision := Decide(ctxRecord, r.significanceThreshold)
		// §8 scenario 3: needs-closeout flips isActive false while leaving
		// rewardEligible true — only the active state itself keeps isActive true.
		isActive := decision.State == rewardengine.StateActive

		if isActive == local.IsActive && decision.RewardEligible == local.RewardEligible && valueUSD.Equal(local.CurrentValueUSD) {
			continue
		}

		diffs = append(diffs, rewardengine.PositionDiff{
			TokenID:         local.TokenID,
			IsActive:        isActive,
			RewardEligible:  decision.RewardEligible,
			CurrentValueUSD: valueUSD,
			LiquidityUnits:  onChain.Liquidity,
		})
	}

	if len(diffs) == 0 {
		return
	}
	// §4.5 ordering guarantee: every diff from one reconciliation pass over
	// one owner commits in a single transaction.
	if err := r.store.ApplyOwnerDiffs(ctx, diffs); err != nil {
		r.logger.Error("failed to apply owner diffs", zap.String("address", user.Address.Hex()), zap.Error(err))
	}
}
