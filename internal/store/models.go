package store

import (
	"time"

	"gorm.io/gorm"
)

// UserRecord is the gorm model for rewardengine.User.
type UserRecord struct {
	ID        string `gorm:"type:char(36);primaryKey"`
	Address   string `gorm:"type:char(42);uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (UserRecord) TableName() string { return "users" }

// EnrolledPositionRecord is the gorm model for rewardengine.EnrolledPosition.
type EnrolledPositionRecord struct {
	ID              string `gorm:"type:char(36);primaryKey"`
	UserID          string `gorm:"type:char(36);index;not null"`
	TokenID         string `gorm:"type:varchar(78);uniqueIndex;not null;comment:big.Int as string"`
	TickLower       int32  `gorm:"not null"`
	TickUpper       int32  `gorm:"not null"`
	FeeTier         uint32 `gorm:"not null"`
	Token0          string `gorm:"type:char(42);not null"`
	Token1          string `gorm:"type:char(42);not null"`
	LiquidityUnits  string `gorm:"type:varchar(78);not null;comment:big.Int as string"`
	CurrentValueUSD string `gorm:"type:varchar(78);not null;comment:decimal as string"`
	IsActive        bool   `gorm:"not null;index"`
	RewardEligible  bool   `gorm:"not null;index"`
	CreatedViaApp   bool   `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (EnrolledPositionRecord) TableName() string { return "enrolled_positions" }

// RewardAccrualRecord is the gorm model for rewardengine.RewardAccrual. Append-only.
type RewardAccrualRecord struct {
	ID               string    `gorm:"type:char(36);primaryKey"`
	UserID           string    `gorm:"type:char(36);index;not null"`
	PositionID       string    `gorm:"type:char(36);index;not null"`
	EpochStart       time.Time `gorm:"not null;index"`
	EpochEnd         time.Time `gorm:"not null;index"`
	RewardUnits      string    `gorm:"type:varchar(78);not null"`
	AccumulatedUnits string    `gorm:"type:varchar(78);not null"`

	ShareOfPool      string `gorm:"type:varchar(78);not null"`
	TimeBoostFactor  string `gorm:"type:varchar(78);not null"`
	InRangeFraction  string `gorm:"type:varchar(78);not null"`
	FullRangeBonus   string `gorm:"type:varchar(78);not null"`
	NormalizedWeight string `gorm:"type:varchar(78);not null"`
	EpochBudget      string `gorm:"type:varchar(78);not null"`
	RolloverApplied  string `gorm:"type:varchar(78);not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RewardAccrualRecord) TableName() string { return "reward_accruals" }

// ClaimAuthorizationRecord is the gorm model for rewardengine.ClaimAuthorization. Append-only.
type ClaimAuthorizationRecord struct {
	ID                        string    `gorm:"type:char(36);primaryKey"`
	UserAddress               string    `gorm:"type:char(42);uniqueIndex:idx_claim_user_nonce;not null"`
	Nonce                     uint64    `gorm:"not null;uniqueIndex:idx_claim_user_nonce"`
	CumulativeAuthorizedUnits string    `gorm:"type:varchar(78);not null"`
	SignedAt                  time.Time `gorm:"not null"`
	SignatureDigest           string    `gorm:"type:char(64);not null"`
	Signature                 string    `gorm:"type:varchar(200);not null"`
	CreatedAt                 time.Time `gorm:"autoCreateTime"`
}

func (ClaimAuthorizationRecord) TableName() string { return "claim_authorizations" }

// TreasuryConfigRecord is the gorm model for the versioned rewardengine.TreasuryConfig singleton.
type TreasuryConfigRecord struct {
	Version               int    `gorm:"primaryKey"`
	TotalAllocation       string `gorm:"type:varchar(78);not null"`
	ProgramStartTime      time.Time `gorm:"not null"`
	ProgramDurationDays   int    `gorm:"not null"`
	DailyBudget           string `gorm:"type:varchar(78);not null"`
	RewardContractAddress string `gorm:"type:char(42);not null"`
	TokenAddress          string `gorm:"type:char(42);not null"`
	ChainID               string `gorm:"type:varchar(78);not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
}

func (TreasuryConfigRecord) TableName() string { return "treasury_config" }

// ProgramSettingsRecord is the gorm model for the versioned rewardengine.ProgramSettings singleton.
type ProgramSettingsRecord struct {
	Version                  int    `gorm:"primaryKey"`
	TimeBoostCoefficient     string `gorm:"type:varchar(78);not null"`
	FullRangeBonus           string `gorm:"type:varchar(78);not null"`
	InRangeMultiplier        string `gorm:"type:varchar(78);not null"`
	SignificanceThresholdUSD string `gorm:"type:varchar(78);not null"`
	AbsoluteMaxClaimUnits    string `gorm:"type:varchar(78);not null"`
	CreatedAt                time.Time `gorm:"autoCreateTime"`
}

func (ProgramSettingsRecord) TableName() string { return "program_settings" }

// SyncDiscrepancyRecord is the gorm model for rewardengine.SyncDiscrepancy. Append-only.
type SyncDiscrepancyRecord struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	TokenID    string    `gorm:"type:varchar(78);index;not null"`
	DBState    string    `gorm:"type:varchar(20);not null"`
	ChainState string    `gorm:"type:varchar(20);not null"`
	Severity   string    `gorm:"type:varchar(20);not null"`
	DetectedAt time.Time `gorm:"not null;index"`
	AutoFixed  bool      `gorm:"not null"`
}

func (SyncDiscrepancyRecord) TableName() string { return "sync_discrepancies" }

// AdminOperationRecord is the gorm model for rewardengine.AdminOperation. Append-only.
type AdminOperationRecord struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Actor     string    `gorm:"type:varchar(100);not null"`
	Operation string    `gorm:"type:varchar(100);not null;index"`
	Payload   string    `gorm:"type:text;not null"`
	AppliedAt time.Time `gorm:"not null;index"`
}

func (AdminOperationRecord) TableName() string { return "admin_operations" }

// EpochCursorRecord is a single-row table tracking the last epoch boundary
// the Reward Accountant successfully closed, so the 60s wake-up loop can
// survive process restarts without re-closing or skipping an epoch.
type EpochCursorRecord struct {
	ID                  uint      `gorm:"primaryKey"`
	LastClosedEpochEnd  time.Time `gorm:"not null"`
	RolloverBucket      string    `gorm:"type:varchar(78);not null"`
}

func (EpochCursorRecord) TableName() string { return "epoch_cursor" }

// allModels lists every table AutoMigrate must create, mirroring the
// teacher's single-model AutoMigrate call in NewMySQLRecorder.
func allModels() []interface{} {
	return []interface{}{
		&UserRecord{},
		&EnrolledPositionRecord{},
		&RewardAccrualRecord{},
		&ClaimAuthorizationRecord{},
		&TreasuryConfigRecord{},
		&ProgramSettingsRecord{},
		&SyncDiscrepancyRecord{},
		&AdminOperationRecord{},
		&EpochCursorRecord{},
	}
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels()...)
}
