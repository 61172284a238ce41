// Package store is the Position Store: durable record of enrolled
// positions and their lifecycle flags, mapped by owner, by token-id, and
// by active-eligibility. Modeled on the teacher's internal/db MySQLRecorder
// (gorm + mysql driver, AutoMigrate, %w-wrapped errors) generalized from a
// single AssetSnapshotRecord table to the full schema in spec §6.
package store

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the Position Store. Its state-mutating operations each run in
// a single transaction; concurrent mutation of the same tokenId is
// serialized by a per-tokenId lock, per §4.3 — the rest of the Store is
// otherwise free of global locks.
type Store struct {
	db *gorm.DB

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New opens a MySQL connection via dsn and migrates the schema, the same
// way the teacher's NewMySQLRecorder does for its single table.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an already-open gorm.DB (used by tests with sqlmock).
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) lockFor(tokenID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[tokenID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[tokenID] = l
	}
	return l
}

// GetOrCreateUser returns the existing user for address, creating one
// lazily on first interaction. Users are never deleted.
func (s *Store) GetOrCreateUser(ctx context.Context, address common.Address) (*rewardengine.User, error) {
	addr := normalizeAddress(address)

	var rec UserRecord
	err := s.db.WithContext(ctx).Where("address = ?", addr).First(&rec).Error
	if err == nil {
		return recordToUser(rec), nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, apperr.NewTransient("lookup user", err)
	}

	rec = UserRecord{ID: uuid.New().String(), Address: addr}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, apperr.NewTransient("create user", err)
	}
	return recordToUser(rec), nil
}

// ListUsers returns every user the program has ever recorded, the
// Reconciler's per-pass enumeration population.
func (s *Store) ListUsers(ctx context.Context) ([]rewardengine.User, error) {
	var recs []UserRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, apperr.NewTransient("list users", err)
	}
	out := make([]rewardengine.User, 0, len(recs))
	for _, r := range recs {
		out = append(out, *recordToUser(r))
	}
	return out, nil
}

// GetUserByID returns a Permanent NotFound error if userID was never created.
func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*rewardengine.User, error) {
	var rec UserRecord
	err := s.db.WithContext(ctx).Where("id = ?", userID.String()).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewPermanent(apperr.ReasonNotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.NewTransient("lookup user by id", err)
	}
	return recordToUser(rec), nil
}

// GetUserByAddress returns a Permanent NotFound error if the user has never interacted.
func (s *Store) GetUserByAddress(ctx context.Context, address common.Address) (*rewardengine.User, error) {
	var rec UserRecord
	err := s.db.WithContext(ctx).Where("address = ?", normalizeAddress(address)).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperr.NewPermanent(apperr.ReasonNotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.NewTransient("lookup user", err)
	}
	return recordToUser(rec), nil
}

// UpsertPosition creates or updates an EnrolledPosition, serialized per tokenId.
func (s *Store) UpsertPosition(ctx context.Context, pos rewardengine.EnrolledPosition) error {
	tokenID := pos.TokenID.String()
	lock := s.lockFor(tokenID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := positionToRecord(pos)

		var existing EnrolledPositionRecord
		err := tx.Where("token_id = ?", tokenID).First(&existing).Error
		switch err {
		case gorm.ErrRecordNotFound:
			rec.ID = uuid.New().String()
			return tx.Create(&rec).Error
		case nil:
			rec.ID = existing.ID
			return tx.Model(&existing).Updates(rec).Error
		default:
			return err
		}
	})
}

// SetPositionState is the Position State Manager's only write path —
// isActive/rewardEligible are never set by any other caller.
func (s *Store) SetPositionState(ctx context.Context, tokenID *big.Int, isActive, rewardEligible bool) error {
	lock := s.lockFor(tokenID.String())
	lock.Lock()
	defer lock.Unlock()

	result := s.db.WithContext(ctx).Model(&EnrolledPositionRecord{}).
		Where("token_id = ?", tokenID.String()).
		Updates(map[string]interface{}{"is_active": isActive, "reward_eligible": rewardEligible})
	if result.Error != nil {
		return apperr.NewTransient("set position state", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NewPermanent(apperr.ReasonNotFound, "position not enrolled")
	}
	return nil
}

// ApplyOwnerDiffs writes every diff the Lifecycle Reconciler produced for a
// single owner's reconciliation pass inside one transaction — §4.5's
// ordering guarantee: either all of that owner's position updates commit
// together, or none do. Each tokenId's per-position lock is still held for
// the duration, same as SetPositionState, so a concurrent registration or
// sync-validator fix can't interleave with it.
func (s *Store) ApplyOwnerDiffs(ctx context.Context, diffs []rewardengine.PositionDiff) error {
	if len(diffs) == 0 {
		return nil
	}

	locks := make([]*sync.Mutex, 0, len(diffs))
	for _, d := range diffs {
		lock := s.lockFor(d.TokenID.String())
		lock.Lock()
		locks = append(locks, lock)
	}
	defer func() {
		for _, l := range locks {
			l.Unlock()
		}
	}()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range diffs {
			result := tx.Model(&EnrolledPositionRecord{}).
				Where("token_id = ?", d.TokenID.String()).
				Updates(map[string]interface{}{
					"is_active":         d.IsActive,
					"reward_eligible":   d.RewardEligible,
					"current_value_usd": d.CurrentValueUSD.String(),
					"liquidity_units":   bigIntToString(d.LiquidityUnits),
				})
			if result.Error != nil {
				return apperr.NewTransient("apply owner diff", result.Error)
			}
			if result.RowsAffected == 0 {
				return apperr.NewPermanent(apperr.ReasonNotFound, "position not enrolled")
			}
		}
		return nil
	})
}

// GetPositionsByOwner returns every enrolled position for a user.
func (s *Store) GetPositionsByOwner(ctx context.Context, userID uuid.UUID) ([]rewardengine.EnrolledPosition, error) {
	var recs []EnrolledPositionRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Find(&recs).Error; err != nil {
		return nil, apperr.NewTransient("get positions by owner", err)
	}
	return recordsToPositions(recs), nil
}

// GetEligiblePositions returns every position with rewardEligible = true,
// the Reward Accountant's epoch-close population.
func (s *Store) GetEligiblePositions(ctx context.Context) ([]rewardengine.EnrolledPosition, error) {
	var recs []EnrolledPositionRecord
	if err := s.db.WithContext(ctx).Where("reward_eligible = ?", true).Find(&recs).Error; err != nil {
		return nil, apperr.NewTransient("get eligible positions", err)
	}
	return recordsToPositions(recs), nil
}

// GetAllPositions returns every enrolled position, used by the Sync Validator's full walk.
func (s *Store) GetAllPositions(ctx context.Context) ([]rewardengine.EnrolledPosition, error) {
	var recs []EnrolledPositionRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, apperr.NewTransient("get all positions", err)
	}
	return recordsToPositions(recs), nil
}

// AppendRewardAccrual writes one immutable reward-accrual row.
func (s *Store) AppendRewardAccrual(ctx context.Context, accrual rewardengine.RewardAccrual) error {
	rec := RewardAccrualRecord{
		ID:               uuid.New().String(),
		UserID:           accrual.UserID.String(),
		PositionID:       accrual.PositionID.String(),
		EpochStart:       accrual.EpochStart,
		EpochEnd:         accrual.EpochEnd,
		RewardUnits:      bigIntToString(accrual.RewardUnits),
		AccumulatedUnits: bigIntToString(accrual.AccumulatedUnits),
		ShareOfPool:      accrual.FormulaInputs.ShareOfPool.String(),
		TimeBoostFactor:  accrual.FormulaInputs.TimeBoostFactor.String(),
		InRangeFraction:  accrual.FormulaInputs.InRangeFraction.String(),
		FullRangeBonus:   accrual.FormulaInputs.FullRangeBonus.String(),
		NormalizedWeight: accrual.FormulaInputs.NormalizedWeight.String(),
		EpochBudget:      bigIntToString(accrual.FormulaInputs.EpochBudget),
		RolloverApplied:  bigIntToString(accrual.FormulaInputs.RolloverApplied),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return apperr.NewTransient("append reward accrual", err)
	}
	return nil
}

// GetRewardAccruals returns every accrual row for a user, ordered by epochEnd (§5 ordering guarantee).
func (s *Store) GetRewardAccruals(ctx context.Context, userID uuid.UUID) ([]rewardengine.RewardAccrual, error) {
	var recs []RewardAccrualRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Order("epoch_end ASC").Find(&recs).Error; err != nil {
		return nil, apperr.NewTransient("get reward accruals", err)
	}
	out := make([]rewardengine.RewardAccrual, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordToAccrual(r))
	}
	return out, nil
}

// RecordClaimAuthorization appends one signed authorization. Returns a
// Permanent NonceReplay error if an authorization already exists at that
// (address, nonce) pair.
func (s *Store) RecordClaimAuthorization(ctx context.Context, auth rewardengine.ClaimAuthorization) error {
	addr := normalizeAddressString(auth.UserAddress.Hex())

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ClaimAuthorizationRecord
		err := tx.Where("user_address = ? AND nonce = ?", addr, auth.Nonce).First(&existing).Error
		if err == nil {
			return apperr.NewPermanent(apperr.ReasonNonceReplay, "authorization already exists at this nonce")
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		rec := ClaimAuthorizationRecord{
			ID:                        auth.ID.String(),
			UserAddress:               addr,
			Nonce:                     auth.Nonce,
			CumulativeAuthorizedUnits: bigIntToString(auth.CumulativeAuthorizedUnits),
			SignedAt:                  auth.SignedAt,
			SignatureDigest:           fmt.Sprintf("%x", auth.SignatureDigest),
			Signature:                 fmt.Sprintf("%x", auth.Signature),
		}
		return tx.Create(&rec).Error
	})
}

// GetCumulativeAuthorized returns the highest cumulativeAuthorizedUnits ever
// signed for address, or zero if none exist.
func (s *Store) GetCumulativeAuthorized(ctx context.Context, address common.Address) (*big.Int, error) {
	var rec ClaimAuthorizationRecord
	err := s.db.WithContext(ctx).
		Where("user_address = ?", normalizeAddressString(address.Hex())).
		Order("nonce DESC").
		First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, apperr.NewTransient("get cumulative authorized", err)
	}
	amount, ok := new(big.Int).SetString(rec.CumulativeAuthorizedUnits, 10)
	if !ok {
		return nil, apperr.NewInconsistent("stored cumulativeAuthorizedUnits is not a valid integer")
	}
	return amount, nil
}

// RecordDiscrepancy appends one Sync Validator finding.
func (s *Store) RecordDiscrepancy(ctx context.Context, d rewardengine.SyncDiscrepancy) error {
	rec := SyncDiscrepancyRecord{
		ID:         d.ID.String(),
		TokenID:    d.TokenID.String(),
		DBState:    string(d.DBState),
		ChainState: string(d.ChainState),
		Severity:   string(d.Severity),
		DetectedAt: d.DetectedAt,
		AutoFixed:  d.AutoFixed,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return apperr.NewTransient("record discrepancy", err)
	}
	return nil
}

// RecentDiscrepancies returns the most recent n discrepancy rows for the
// Sync Validator's health report.
func (s *Store) RecentDiscrepancies(ctx context.Context, n int) ([]rewardengine.SyncDiscrepancy, error) {
	var recs []SyncDiscrepancyRecord
	if err := s.db.WithContext(ctx).Order("detected_at DESC").Limit(n).Find(&recs).Error; err != nil {
		return nil, apperr.NewTransient("list recent discrepancies", err)
	}
	out := make([]rewardengine.SyncDiscrepancy, 0, len(recs))
	for _, r := range recs {
		tokenID, _ := new(big.Int).SetString(r.TokenID, 10)
		out = append(out, rewardengine.SyncDiscrepancy{
			ID:         uuid.MustParse(r.ID),
			TokenID:    tokenID,
			DBState:    rewardengine.PositionState(r.DBState),
			ChainState: rewardengine.PositionState(r.ChainState),
			Severity:   rewardengine.DiscrepancySeverity(r.Severity),
			DetectedAt: r.DetectedAt,
			AutoFixed:  r.AutoFixed,
		})
	}
	return out, nil
}

// CountDiscrepancies returns {total, critical, autoFixed} counts for the health report.
func (s *Store) CountDiscrepancies(ctx context.Context) (total, critical, autoFixed int64, err error) {
	db := s.db.WithContext(ctx).Model(&SyncDiscrepancyRecord{})
	if err = db.Count(&total).Error; err != nil {
		return 0, 0, 0, apperr.NewTransient("count discrepancies", err)
	}
	if err = s.db.WithContext(ctx).Model(&SyncDiscrepancyRecord{}).Where("severity = ?", string(rewardengine.SeverityCritical)).Count(&critical).Error; err != nil {
		return 0, 0, 0, apperr.NewTransient("count critical discrepancies", err)
	}
	if err = s.db.WithContext(ctx).Model(&SyncDiscrepancyRecord{}).Where("auto_fixed = ?", true).Count(&autoFixed).Error; err != nil {
		return 0, 0, 0, apperr.NewTransient("count auto-fixed discrepancies", err)
	}
	return total, critical, autoFixed, nil
}

// RecordAdminOperation appends one admin-path audit row (SPEC_FULL §6.1).
func (s *Store) RecordAdminOperation(ctx context.Context, op rewardengine.AdminOperation) error {
	rec := AdminOperationRecord{
		ID:        op.ID.String(),
		Actor:     op.Actor,
		Operation: op.Operation,
		Payload:   op.Payload,
		AppliedAt: op.AppliedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return apperr.NewTransient("record admin operation", err)
	}
	return nil
}

// GetTreasuryConfig returns the latest (highest-version) TreasuryConfig row.
func (s *Store) GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error) {
	var rec TreasuryConfigRecord
	if err := s.db.WithContext(ctx).Order("version DESC").First(&rec).Error; err != nil {
		return nil, apperr.NewTransient("get treasury config", err)
	}
	total, _ := new(big.Int).SetString(rec.TotalAllocation, 10)
	daily, _ := new(big.Int).SetString(rec.DailyBudget, 10)
	chainID, _ := new(big.Int).SetString(rec.ChainID, 10)
	return &rewardengine.TreasuryConfig{
		Version:               rec.Version,
		TotalAllocation:       total,
		ProgramStartTime:      rec.ProgramStartTime,
		ProgramDurationDays:   rec.ProgramDurationDays,
		DailyBudget:           daily,
		RewardContractAddress: common.HexToAddress(rec.RewardContractAddress),
		TokenAddress:          common.HexToAddress(rec.TokenAddress),
		ChainID:               chainID,
	}, nil
}

// PutTreasuryConfig appends a new version of the TreasuryConfig singleton (admin path only).
func (s *Store) PutTreasuryConfig(ctx context.Context, cfg rewardengine.TreasuryConfig) error {
	rec := TreasuryConfigRecord{
		Version:               cfg.Version,
		TotalAllocation:       bigIntToString(cfg.TotalAllocation),
		ProgramStartTime:      cfg.ProgramStartTime,
		ProgramDurationDays:   cfg.ProgramDurationDays,
		DailyBudget:           bigIntToString(cfg.DailyBudget),
		RewardContractAddress: cfg.RewardContractAddress.Hex(),
		TokenAddress:          cfg.TokenAddress.Hex(),
		ChainID:               bigIntToString(cfg.ChainID),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return apperr.NewTransient("put treasury config", err)
	}
	return nil
}

// GetProgramSettings returns the latest (highest-version) ProgramSettings row.
func (s *Store) GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error) {
	var rec ProgramSettingsRecord
	if err := s.db.WithContext(ctx).Order("version DESC").First(&rec).Error; err != nil {
		return nil, apperr.NewTransient("get program settings", err)
	}
	w1, _ := decimal.NewFromString(rec.TimeBoostCoefficient)
	frb, _ := decimal.NewFromString(rec.FullRangeBonus)
	irm, _ := decimal.NewFromString(rec.InRangeMultiplier)
	threshold, _ := decimal.NewFromString(rec.SignificanceThresholdUSD)
	maxClaim, _ := new(big.Int).SetString(rec.AbsoluteMaxClaimUnits, 10)
	return &rewardengine.ProgramSettings{
		Version:                  rec.Version,
		TimeBoostCoefficient:     w1,
		FullRangeBonus:           frb,
		InRangeMultiplier:        irm,
		SignificanceThresholdUSD: threshold,
		AbsoluteMaxClaimUnits:    maxClaim,
	}, nil
}

// PutProgramSettings appends a new version of the ProgramSettings singleton (admin path only).
func (s *Store) PutProgramSettings(ctx context.Context, settings rewardengine.ProgramSettings) error {
	rec := ProgramSettingsRecord{
		Version:                  settings.Version,
		TimeBoostCoefficient:     settings.TimeBoostCoefficient.String(),
		FullRangeBonus:           settings.FullRangeBonus.String(),
		InRangeMultiplier:        settings.InRangeMultiplier.String(),
		SignificanceThresholdUSD: settings.SignificanceThresholdUSD.String(),
		AbsoluteMaxClaimUnits:    bigIntToString(settings.AbsoluteMaxClaimUnits),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return apperr.NewTransient("put program settings", err)
	}
	return nil
}

// GetEpochCursor returns the last closed epoch boundary and the pending
// rollover bucket, or zero values if the Accountant has never closed an epoch.
func (s *Store) GetEpochCursor(ctx context.Context) (lastClosedEpochEnd time.Time, rolloverBucket *big.Int, err error) {
	var rec EpochCursorRecord
	dbErr := s.db.WithContext(ctx).First(&rec).Error
	if dbErr == gorm.ErrRecordNotFound {
		return time.Time{}, big.NewInt(0), nil
	}
	if dbErr != nil {
		return time.Time{}, nil, apperr.NewTransient("get epoch cursor", dbErr)
	}
	bucket, ok := new(big.Int).SetString(rec.RolloverBucket, 10)
	if !ok {
		bucket = big.NewInt(0)
	}
	return rec.LastClosedEpochEnd, bucket, nil
}

// SetEpochCursor persists the epoch boundary and rollover bucket after a
// successful (possibly zero-accrual) epoch close.
func (s *Store) SetEpochCursor(ctx context.Context, lastClosedEpochEnd time.Time, rolloverBucket *big.Int) error {
	rec := EpochCursorRecord{ID: 1, LastClosedEpochEnd: lastClosedEpochEnd, RolloverBucket: bigIntToString(rolloverBucket)}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&EpochCursorRecord{}).Where("id = ?", 1).Updates(map[string]interface{}{
			"last_closed_epoch_end": lastClosedEpochEnd,
			"rollover_bucket":       bigIntToString(rolloverBucket),
		})
		if result.Error != nil {
			return apperr.NewTransient("update epoch cursor", result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&rec).Error; err != nil {
				return apperr.NewTransient("create epoch cursor", err)
			}
		}
		return nil
	})
}

// GetLatestAccrualForPosition returns the most recent RewardAccrual row for
// positionID, or nil if the position has never accrued.
func (s *Store) GetLatestAccrualForPosition(ctx context.Context, positionID uuid.UUID) (*rewardengine.RewardAccrual, error) {
	var rec RewardAccrualRecord
	err := s.db.WithContext(ctx).Where("position_id = ?", positionID.String()).Order("epoch_end DESC").First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewTransient("get latest accrual for position", err)
	}
	accrual := recordToAccrual(rec)
	return &accrual, nil
}

func normalizeAddress(addr common.Address) string {
	return normalizeAddressString(addr.Hex())
}

func normalizeAddressString(hex string) string {
	return common.HexToAddress(hex).Hex()
}

// bigIntToString safely converts *big.Int to a decimal-string column,
// handling nil the way the teacher's bigIntToString does.
func bigIntToString(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}

func recordToUser(rec UserRecord) *rewardengine.User {
	return &rewardengine.User{
		ID:      uuid.MustParse(rec.ID),
		Address: common.HexToAddress(rec.Address),
	}
}

func positionToRecord(pos rewardengine.EnrolledPosition) EnrolledPositionRecord {
	return EnrolledPositionRecord{
		UserID:          pos.UserID.String(),
		TokenID:         pos.TokenID.String(),
		TickLower:       pos.TickLower,
		TickUpper:       pos.TickUpper,
		FeeTier:         pos.FeeTier,
		Token0:          pos.Token0.Hex(),
		Token1:          pos.Token1.Hex(),
		LiquidityUnits:  bigIntToString(pos.LiquidityUnits),
		CurrentValueUSD: pos.CurrentValueUSD.String(),
		IsActive:        pos.IsActive,
		RewardEligible:  pos.RewardEligible,
		CreatedViaApp:   pos.CreatedViaApp,
	}
}

func recordsToPositions(recs []EnrolledPositionRecord) []rewardengine.EnrolledPosition {
	out := make([]rewardengine.EnrolledPosition, 0, len(recs))
	for _, r := range recs {
		tokenID, _ := new(big.Int).SetString(r.TokenID, 10)
		liquidity, _ := new(big.Int).SetString(r.LiquidityUnits, 10)
		usd, _ := decimal.NewFromString(r.CurrentValueUSD)
		out = append(out, rewardengine.EnrolledPosition{
			ID:              uuid.MustParse(r.ID),
			UserID:          uuid.MustParse(r.UserID),
			TokenID:         tokenID,
			TickLower:       r.TickLower,
			TickUpper:       r.TickUpper,
			FeeTier:         r.FeeTier,
			Token0:          common.HexToAddress(r.Token0),
			Token1:          common.HexToAddress(r.Token1),
			LiquidityUnits:  liquidity,
			CurrentValueUSD: usd,
			IsActive:        r.IsActive,
			RewardEligible:  r.RewardEligible,
			CreatedViaApp:   r.CreatedViaApp,
			CreatedAt:       r.CreatedAt,
		})
	}
	return out
}

func recordToAccrual(r RewardAccrualRecord) rewardengine.RewardAccrual {
	rewardUnits, _ := new(big.Int).SetString(r.RewardUnits, 10)
	accumulated, _ := new(big.Int).SetString(r.AccumulatedUnits, 10)
	epochBudget, _ := new(big.Int).SetString(r.EpochBudget, 10)
	rollover, _ := new(big.Int).SetString(r.RolloverApplied, 10)
	shareOfPool, _ := decimal.NewFromString(r.ShareOfPool)
	timeBoost, _ := decimal.NewFromString(r.TimeBoostFactor)
	inRange, _ := decimal.NewFromString(r.InRangeFraction)
	fullRange, _ := decimal.NewFromString(r.FullRangeBonus)
	normalized, _ := decimal.NewFromString(r.NormalizedWeight)

	return rewardengine.RewardAccrual{
		ID:               uuid.MustParse(r.ID),
		UserID:           uuid.MustParse(r.UserID),
		PositionID:       uuid.MustParse(r.PositionID),
		EpochStart:       r.EpochStart,
		EpochEnd:         r.EpochEnd,
		RewardUnits:      rewardUnits,
		AccumulatedUnits: accumulated,
		FormulaInputs: rewardengine.FormulaInputs{
			ShareOfPool:      shareOfPool,
			TimeBoostFactor:  timeBoost,
			InRangeFraction:  inRange,
			FullRangeBonus:   fullRange,
			NormalizedWeight: normalized,
			EpochBudget:      epochBudget,
			RolloverApplied:  rollover,
		},
	}
}
