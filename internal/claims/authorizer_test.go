package claims

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChainReader struct {
	nonce       uint64
	claimed     *big.Int
	authorized  bool
	nonceErr    error
	claimedErr  error
	authErr     error
}

func (f *fakeChainReader) FetchUserNonce(ctx context.Context, user common.Address) (uint64, error) {
	return f.nonce, f.nonceErr
}

func (f *fakeChainReader) FetchUserClaimedAmount(ctx context.Context, user common.Address) (*big.Int, error) {
	return f.claimed, f.claimedErr
}

func (f *fakeChainReader) FetchCalculatorAuthorized(ctx context.Context, calculator common.Address) (bool, error) {
	return f.authorized, f.authErr
}

type fakeAuthStore struct {
	users       map[common.Address]uuid.UUID
	positions   map[uuid.UUID][]rewardengine.EnrolledPosition
	latest      map[uuid.UUID]*rewardengine.RewardAccrual
	cumulative  map[common.Address]*big.Int
	authsByKey  map[string]bool
	treasury    *rewardengine.TreasuryConfig
	settings    *rewardengine.ProgramSettings
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		users:      make(map[common.Address]uuid.UUID),
		positions:  make(map[uuid.UUID][]rewardengine.EnrolledPosition),
		latest:     make(map[uuid.UUID]*rewardengine.RewardAccrual),
		cumulative: make(map[common.Address]*big.Int),
		authsByKey: make(map[string]bool),
	}
}

func (f *fakeAuthStore) GetOrCreateUser(ctx context.Context, address common.Address) (*rewardengine.User, error) {
	id, ok := f.users[address]
	if !ok {
		id = uuid.New()
		f.users[address] = id
	}
	return &rewardengine.User{ID: id, Address: address}, nil
}

func (f *fakeAuthStore) GetPositionsByOwner(ctx context.Context, userID uuid.UUID) ([]rewardengine.EnrolledPosition, error) {
	return f.positions[userID], nil
}

func (f *fakeAuthStore) GetLatestAccrualForPosition(ctx context.Context, positionID uuid.UUID) (*rewardengine.RewardAccrual, error) {
	return f.latest[positionID], nil
}

func (f *fakeAuthStore) GetCumulativeAuthorized(ctx context.Context, address common.Address) (*big.Int, error) {
	if v, ok := f.cumulative[address]; ok {
		return v, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeAuthStore) RecordClaimAuthorization(ctx context.Context, auth rewardengine.ClaimAuthorization) error {
	key := auth.UserAddress.Hex() + ":" + big.NewInt(int64(auth.Nonce)).String()
	if f.authsByKey[key] {
		return apperr.NewPermanent(apperr.ReasonNonceReplay, "authorization already exists at this nonce")
	}
	f.authsByKey[key] = true
	f.cumulative[auth.UserAddress] = auth.CumulativeAuthorizedUnits
	return nil
}

func (f *fakeAuthStore) GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error) {
	return f.treasury, nil
}

func (f *fakeAuthStore) GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error) {
	return f.settings, nil
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func baseStore() *fakeAuthStore {
	st := newFakeAuthStore()
	st.treasury = &rewardengine.TreasuryConfig{
		ChainID:               big.NewInt(8453),
		RewardContractAddress: common.HexToAddress("0xcontract"),
	}
	st.settings = &rewardengine.ProgramSettings{
		AbsoluteMaxClaimUnits: big.NewInt(1_000_000),
	}
	return st
}

func TestAuthorizeHappyPath(t *testing.T) {
	st := baseStore()
	userAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	positionID := uuid.New()
	userID, _ := st.GetOrCreateUser(context.Background(), userAddr)
	st.positions[userID.ID] = []rewardengine.EnrolledPosition{{ID: positionID, UserID: userID.ID}}
	st.latest[positionID] = &rewardengine.RewardAccrual{AccumulatedUnits: big.NewInt(500)}

	reader := &fakeChainReader{nonce: 7, claimed: big.NewInt(0), authorized: true}
	signer := NewLocalSigner(testKey(t))
	authorizer := NewAuthorizer(reader, st, signer)

	result, err := authorizer.Authorize(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), result.Nonce)
	assert.Equal(t, "500", result.CumulativeAuthorized.String())
	assert.NotEmpty(t, result.Signature)
}

func TestAuthorizeNothingToClaim(t *testing.T) {
	st := baseStore()
	userAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	positionID := uuid.New()
	userID, _ := st.GetOrCreateUser(context.Background(), userAddr)
	st.positions[userID.ID] = []rewardengine.EnrolledPosition{{ID: positionID, UserID: userID.ID}}
	st.latest[positionID] = &rewardengine.RewardAccrual{AccumulatedUnits: big.NewInt(100)}
	st.cumulative[userAddr] = big.NewInt(100)

	reader := &fakeChainReader{nonce: 1, claimed: big.NewInt(0), authorized: true}
	authorizer := NewAuthorizer(reader, st, NewLocalSigner(testKey(t)))

	_, err := authorizer.Authorize(context.Background(), userAddr)
	require.Error(t, err)
	reason, ok := apperr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonNothingToClaim, reason)
}

func TestAuthorizeCapsAtAbsoluteMax(t *testing.T) {
	st := baseStore()
	st.settings.AbsoluteMaxClaimUnits = big.NewInt(50)
	userAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	positionID := uuid.New()
	userID, _ := st.GetOrCreateUser(context.Background(), userAddr)
	st.positions[userID.ID] = []rewardengine.EnrolledPosition{{ID: positionID, UserID: userID.ID}}
	st.latest[positionID] = &rewardengine.RewardAccrual{AccumulatedUnits: big.NewInt(500)}

	reader := &fakeChainReader{nonce: 1, claimed: big.NewInt(0), authorized: true}
	authorizer := NewAuthorizer(reader, st, NewLocalSigner(testKey(t)))

	result, err := authorizer.Authorize(context.Background(), userAddr)
	require.NoError(t, err)
	assert.Equal(t, "50", result.CumulativeAuthorized.String())
}

func TestAuthorizeNonceReplayBecomesStaleNonce(t *testing.T) {
	st := baseStore()
	userAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	positionID := uuid.New()
	userID, _ := st.GetOrCreateUser(context.Background(), userAddr)
	st.positions[userID.ID] = []rewardengine.EnrolledPosition{{ID: positionID, UserID: userID.ID}}
	st.latest[positionID] = &rewardengine.RewardAccrual{AccumulatedUnits: big.NewInt(500)}
	st.authsByKey[userAddr.Hex()+":7"] = true

	reader := &fakeChainReader{nonce: 7, claimed: big.NewInt(0), authorized: true}
	authorizer := NewAuthorizer(reader, st, NewLocalSigner(testKey(t)))

	_, err := authorizer.Authorize(context.Background(), userAddr)
	require.Error(t, err)
	reason, ok := apperr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonStaleNonce, reason)
}

func TestAuthorizeCalculatorUnauthorized(t *testing.T) {
	st := baseStore()
	userAddr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	reader := &fakeChainReader{nonce: 1, claimed: big.NewInt(0), authorized: false}
	authorizer := NewAuthorizer(reader, st, NewLocalSigner(testKey(t)))

	_, err := authorizer.Authorize(context.Background(), userAddr)
	require.Error(t, err)
	reason, ok := apperr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonCalculatorUnauthorized, reason)
}

func TestAuthorizeMalformedAddress(t *testing.T) {
	st := baseStore()
	authorizer := NewAuthorizer(&fakeChainReader{}, st, NewLocalSigner(testKey(t)))

	_, err := authorizer.Authorize(context.Background(), common.Address{})
	require.Error(t, err)
	reason, ok := apperr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonMalformedAddress, reason)
}
