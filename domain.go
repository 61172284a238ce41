// Package rewardengine holds the shared entity types for the liquidity
// mining reward backend: enrolled positions, reward accruals, claim
// authorizations, and the program-wide treasury/settings singletons.
// Every internal/* package imports these instead of redeclaring them,
// the same way the teacher's internal/db imported the root
// blackholedex package for its domain types.
package rewardengine

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionState is the result of the Position State Manager's decision.
type PositionState string

const (
	StateActive       PositionState = "active"
	StateInactive     PositionState = "inactive"
	StateNeedsCloseout PositionState = "needs-closeout"
	StateUnknown      PositionState = "unknown"
)

// User is created lazily on first interaction and never deleted.
type User struct {
	ID      uuid.UUID
	Address common.Address
}

// EnrolledPosition mirrors an NFT liquidity position registered with the program.
type EnrolledPosition struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TokenID         *big.Int
	TickLower       int32
	TickUpper       int32
	FeeTier         uint32
	Token0          common.Address
	Token1          common.Address
	LiquidityUnits  *big.Int
	CurrentValueUSD decimal.Decimal
	IsActive        bool
	RewardEligible  bool
	CreatedViaApp   bool
	CreatedAt       time.Time
}

// PositionStateContext is the transient input to the Position State Manager.
type PositionStateContext struct {
	TokenID                 *big.Int
	HasBlockchainLiquidity  bool
	BlockchainLiquidity     *big.Int
	CurrentValueUSD         decimal.Decimal
	HasUnclaimedTokens      bool
	IsOnBlockchain          bool
	CurrentTick             int32
}

// PositionDiff is one position's updated state/value from a single
// reconciliation pass. The Lifecycle Reconciler accumulates a user's diffs
// and applies them in one store transaction (§4.5's per-owner ordering
// guarantee) instead of writing each position independently.
type PositionDiff struct {
	TokenID         *big.Int
	IsActive        bool
	RewardEligible  bool
	CurrentValueUSD decimal.Decimal
	LiquidityUnits  *big.Int
}

// RewardAccrual is an append-only per-epoch, per-position reward row.
type RewardAccrual struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	PositionID       uuid.UUID
	EpochStart       time.Time
	EpochEnd         time.Time
	RewardUnits      *big.Int
	AccumulatedUnits *big.Int
	FormulaInputs    FormulaInputs
}

// FormulaInputs captures the §4.7 formula's per-position inputs for audit.
type FormulaInputs struct {
	ShareOfPool      decimal.Decimal
	TimeBoostFactor  decimal.Decimal
	InRangeFraction  decimal.Decimal
	FullRangeBonus   decimal.Decimal
	NormalizedWeight decimal.Decimal
	EpochBudget      *big.Int
	RolloverApplied  *big.Int
}

// ClaimAuthorization is the signed record the on-chain contract verifies.
type ClaimAuthorization struct {
	ID                        uuid.UUID
	UserAddress               common.Address
	Nonce                     uint64
	CumulativeAuthorizedUnits *big.Int
	SignedAt                  time.Time
	SignatureDigest           [32]byte
	Signature                 []byte
}

// TreasuryConfig is the versioned singleton source of truth for the reward formula's constants.
type TreasuryConfig struct {
	Version               int
	TotalAllocation       *big.Int
	ProgramStartTime      time.Time
	ProgramDurationDays   int
	DailyBudget           *big.Int
	RewardContractAddress common.Address
	TokenAddress          common.Address
	ChainID               *big.Int
}

// ProgramSettings is the versioned singleton holding the formula's tunable coefficients.
type ProgramSettings struct {
	Version                 int
	TimeBoostCoefficient    decimal.Decimal // w1
	FullRangeBonus          decimal.Decimal
	InRangeMultiplier       decimal.Decimal
	SignificanceThresholdUSD decimal.Decimal
	AbsoluteMaxClaimUnits   *big.Int
}

// SyncDiscrepancy records a disagreement found by the Sync Validator.
type SyncDiscrepancy struct {
	ID         uuid.UUID
	TokenID    *big.Int
	DBState    PositionState
	ChainState PositionState
	Severity   DiscrepancySeverity
	DetectedAt time.Time
	AutoFixed  bool
}

// DiscrepancySeverity classifies a SyncDiscrepancy.
type DiscrepancySeverity string

const (
	SeverityInfo     DiscrepancySeverity = "info"
	SeverityCritical DiscrepancySeverity = "critical"
)

// AdminOperation is an append-only audit row for admin-path mutations
// (TreasuryConfig/ProgramSettings updates) — the core only appends these,
// it never drives the admin UI that produces them.
type AdminOperation struct {
	ID        uuid.UUID
	Actor     string
	Operation string
	Payload   string
	AppliedAt time.Time
}
