package store

import (
	"context"
	"math/big"
	"testing"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewWithDB(gormDB), mock
}

func TestAppendRewardAccrual(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `reward_accruals`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	accrual := rewardengine.RewardAccrual{
		ID:               uuid.New(),
		UserID:           uuid.New(),
		PositionID:       uuid.New(),
		EpochStart:       time.Now().Add(-24 * time.Hour),
		EpochEnd:         time.Now(),
		RewardUnits:      big.NewInt(3076),
		AccumulatedUnits: big.NewInt(3076),
		FormulaInputs: rewardengine.FormulaInputs{
			ShareOfPool:      decimal.NewFromFloat(0.5),
			TimeBoostFactor:  decimal.NewFromFloat(1.6),
			InRangeFraction:  decimal.NewFromInt(1),
			FullRangeBonus:   decimal.NewFromInt(1),
			NormalizedWeight: decimal.NewFromFloat(0.6154),
			EpochBudget:      big.NewInt(5000),
			RolloverApplied:  big.NewInt(0),
		},
	}

	err := s.AppendRewardAccrual(context.Background(), accrual)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordClaimAuthorizationReplay(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_address", "nonce", "cumulative_authorized_units", "signed_at", "signature_digest", "signature", "created_at"}).
		AddRow("11111111-1111-1111-1111-111111111111", "0xabc", 7, "100", time.Now(), "deadbeef", "aa", time.Now())
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `claim_authorizations`").WillReturnRows(rows)
	mock.ExpectRollback()

	auth := rewardengine.ClaimAuthorization{
		ID:                        uuid.New(),
		UserAddress:               common.HexToAddress("0xabc"),
		Nonce:                     7,
		CumulativeAuthorizedUnits: big.NewInt(100),
		SignedAt:                  time.Now(),
	}

	err := s.RecordClaimAuthorization(context.Background(), auth)
	require.Error(t, err)
}

func TestGetCumulativeAuthorizedNoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `claim_authorizations`").WillReturnRows(sqlmock.NewRows(nil))

	amount, err := s.GetCumulativeAuthorized(context.Background(), common.HexToAddress("0xabc"))
	require.NoError(t, err)
	assert.Equal(t, "0", amount.String())
}

func TestGetUserByIDNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT \\* FROM `users`").WillReturnRows(sqlmock.NewRows(nil))

	_, err := s.GetUserByID(context.Background(), uuid.New())
	require.Error(t, err)
	reason, ok := apperr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonNotFound, reason)
}

func TestApplyOwnerDiffsSingleTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	diffs := []rewardengine.PositionDiff{
		{TokenID: big.NewInt(1), IsActive: true, RewardEligible: true, CurrentValueUSD: decimal.NewFromInt(500), LiquidityUnits: big.NewInt(1000)},
		{TokenID: big.NewInt(2), IsActive: false, RewardEligible: true, CurrentValueUSD: decimal.Zero, LiquidityUnits: big.NewInt(0)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `enrolled_positions`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `enrolled_positions`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ApplyOwnerDiffs(context.Background(), diffs)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOwnerDiffsRollsBackOnMissingPosition(t *testing.T) {
	s, mock := newMockStore(t)

	diffs := []rewardengine.PositionDiff{
		{TokenID: big.NewInt(1), IsActive: true, RewardEligible: true, CurrentValueUSD: decimal.NewFromInt(500), LiquidityUnits: big.NewInt(1000)},
		{TokenID: big.NewInt(2), IsActive: false, RewardEligible: false, CurrentValueUSD: decimal.Zero, LiquidityUnits: big.NewInt(0)},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `enrolled_positions`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `enrolled_positions`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.ApplyOwnerDiffs(context.Background(), diffs)
	require.Error(t, err)
	reason, ok := apperr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonNotFound, reason)
}

func TestBigIntToString(t *testing.T) {
	assert.Equal(t, "0", bigIntToString(nil))
	assert.Equal(t, "42", bigIntToString(big.NewInt(42)))
}
