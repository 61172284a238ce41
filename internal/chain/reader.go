package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// RawPosition is the Chain Reader's view of a position-NFT, ported from the
// teacher's AMMState/position field shapes in types.go.
type RawPosition struct {
	TokenID     *big.Int
	TickLower   int32
	TickUpper   int32
	FeeTier     uint32
	Token0      common.Address
	Token1      common.Address
	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// HasLiquidity reports whether the position currently holds on-chain liquidity.
func (p RawPosition) HasLiquidity() bool {
	return p.Liquidity != nil && p.Liquidity.Sign() > 0
}

// HasUnclaimedTokens reports whether the position has residual fees owed.
func (p RawPosition) HasUnclaimedTokens() bool {
	return (p.TokensOwed0 != nil && p.TokensOwed0.Sign() > 0) ||
		(p.TokensOwed1 != nil && p.TokensOwed1.Sign() > 0)
}

// PoolState is the AMM's current state, ported from the teacher's AMMState.
type PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
}

// Addresses names the four contracts the Chain Reader reads from.
type Addresses struct {
	Pool               common.Address
	PositionManager    common.Address
	RewardToken        common.Address
	RewardContract     common.Address
}

const (
	positionManagerABIJSON = `[
		{"name":"positions","type":"function","stateMutability":"view",
		 "inputs":[{"name":"tokenId","type":"uint256"}],
		 "outputs":[
			{"name":"nonce","type":"uint96"},
			{"name":"operator","type":"address"},
			{"name":"token0","type":"address"},
			{"name":"token1","type":"address"},
			{"name":"fee","type":"uint24"},
			{"name":"tickLower","type":"int24"},
			{"name":"tickUpper","type":"int24"},
			{"name":"liquidity","type":"uint128"},
			{"name":"feeGrowthInside0LastX128","type":"uint256"},
			{"name":"feeGrowthInside1LastX128","type":"uint256"},
			{"name":"tokensOwed0","type":"uint128"},
			{"name":"tokensOwed1","type":"uint128"}
		 ]},
		{"name":"balanceOf","type":"function","stateMutability":"view",
		 "inputs":[{"name":"owner","type":"address"}],
		 "outputs":[{"name":"balance","type":"uint256"}]},
		{"name":"tokenOfOwnerByIndex","type":"function","stateMutability":"view",
		 "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
		 "outputs":[{"name":"tokenId","type":"uint256"}]}
	]`

	poolABIJSON = `[
		{"name":"slot0","type":"function","stateMutability":"view",
		 "inputs":[],
		 "outputs":[
			{"name":"sqrtPriceX96","type":"uint160"},
			{"name":"tick","type":"int24"},
			{"name":"observationIndex","type":"uint16"},
			{"name":"observationCardinality","type":"uint16"},
			{"name":"observationCardinalityNext","type":"uint16"},
			{"name":"feeProtocol","type":"uint8"},
			{"name":"unlocked","type":"bool"}
		 ]},
		{"name":"liquidity","type":"function","stateMutability":"view",
		 "inputs":[], "outputs":[{"name":"","type":"uint128"}]}
	]`

	rewardContractABIJSON = `[
		{"name":"userNonce","type":"function","stateMutability":"view",
		 "inputs":[{"name":"user","type":"address"}],
		 "outputs":[{"name":"","type":"uint256"}]},
		{"name":"userClaimedAmount","type":"function","stateMutability":"view",
		 "inputs":[{"name":"user","type":"address"}],
		 "outputs":[{"name":"","type":"uint256"}]},
		{"name":"isAuthorizedCalculator","type":"function","stateMutability":"view",
		 "inputs":[{"name":"calculator","type":"address"}],
		 "outputs":[{"name":"","type":"bool"}]}
	]`

	erc20ABIJSON = `[
		{"name":"balanceOf","type":"function","stateMutability":"view",
		 "inputs":[{"name":"account","type":"address"}],
		 "outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view",
		 "inputs":[], "outputs":[{"name":"","type":"uint8"}]}
	]`
)

// Reader is the Chain Reader component: the only way the rest of the
// system observes AMM/position/token state.
type Reader struct {
	client    *Client
	addresses Addresses

	positionManagerABI abi.ABI
	poolABI            abi.ABI
	rewardABI          abi.ABI
	erc20ABI           abi.ABI
}

// NewReader parses the fixed contract ABI fragments the reader depends on
// and binds them to the given contract addresses.
func NewReader(client *Client, addresses Addresses) (*Reader, error) {
	pm, err := abi.JSON(strings.NewReader(positionManagerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	pool, err := abi.JSON(strings.NewReader(poolABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	reward, err := abi.JSON(strings.NewReader(rewardContractABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse reward contract abi: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	return &Reader{
		client:             client,
		addresses:          addresses,
		positionManagerABI: pm,
		poolABI:            pool,
		rewardABI:          reward,
		erc20ABI:           erc20,
	}, nil
}

type positionsResult struct {
	Nonce                    *big.Int
	Operator                 common.Address
	Token0                   common.Address
	Token1                   common.Address
	Fee                      *big.Int
	TickLower                *big.Int
	TickUpper                *big.Int
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

// FetchPosition returns a single position's on-chain state, or a Permanent
// NotFound error if tokenId was never minted / has been burned.
func (r *Reader) FetchPosition(ctx context.Context, tokenID *big.Int) (*RawPosition, error) {
	var out positionsResult
	if err := r.client.call(ctx, r.addresses.PositionManager, r.positionManagerABI, "positions", &out, tokenID); err != nil {
		return nil, err
	}

	return &RawPosition{
		TokenID:     tokenID,
		TickLower:   int32(out.TickLower.Int64()),
		TickUpper:   int32(out.TickUpper.Int64()),
		FeeTier:     uint32(out.Fee.Uint64()),
		Token0:      out.Token0,
		Token1:      out.Token1,
		Liquidity:   out.Liquidity,
		TokensOwed0: out.TokensOwed0,
		TokensOwed1: out.TokensOwed1,
	}, nil
}

// FetchPositionsOfOwner enumerates every position-NFT tokenId owned by
// owner and fetches each one's state. A Transient error here means the
// Lifecycle Reconciler must skip owner entirely this pass (§4.5).
func (r *Reader) FetchPositionsOfOwner(ctx context.Context, owner common.Address) ([]RawPosition, error) {
	var balance *big.Int
	if err := r.client.call(ctx, r.addresses.PositionManager, r.positionManagerABI, "balanceOf", &balance, owner); err != nil {
		return nil, err
	}

	positions := make([]RawPosition, 0, balance.Uint64())
	for i := uint64(0); i < balance.Uint64(); i++ {
		var tokenID *big.Int
		if err := r.client.call(ctx, r.addresses.PositionManager, r.positionManagerABI, "tokenOfOwnerByIndex", &tokenID, owner, new(big.Int).SetUint64(i)); err != nil {
			return nil, err
		}
		pos, err := r.FetchPosition(ctx, tokenID)
		if err != nil {
			if apperr.IsPermanent(err) {
				// tokenId disappeared between enumeration and fetch; treat
				// the failed fetch as authoritative and skip it rather than failing the whole owner.
				continue
			}
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, nil
}

type slot0Result struct {
	SqrtPriceX96               *big.Int
	Tick                       *big.Int
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	FeeProtocol                uint8
	Unlocked                   bool
}

// FetchPoolState reads the AMM pool's current price, tick, and liquidity.
func (r *Reader) FetchPoolState(ctx context.Context) (PoolState, error) {
	var slot0 slot0Result
	if err := r.client.call(ctx, r.addresses.Pool, r.poolABI, "slot0", &slot0); err != nil {
		return PoolState{}, err
	}
	var liquidity *big.Int
	if err := r.client.call(ctx, r.addresses.Pool, r.poolABI, "liquidity", &liquidity); err != nil {
		return PoolState{}, err
	}
	return PoolState{
		SqrtPriceX96: slot0.SqrtPriceX96,
		Tick:         int32(slot0.Tick.Int64()),
		Liquidity:    liquidity,
	}, nil
}

// FetchUserNonce reads the reward contract's per-user replay-protection counter.
func (r *Reader) FetchUserNonce(ctx context.Context, user common.Address) (uint64, error) {
	var nonce *big.Int
	if err := r.client.call(ctx, r.addresses.RewardContract, r.rewardABI, "userNonce", &nonce, user); err != nil {
		return 0, err
	}
	return nonce.Uint64(), nil
}

// FetchUserClaimedAmount reads the reward contract's running total of what
// user has actually claimed on-chain, the floor the Claim Authorizer's
// `A_prev` must never fall below (§4.9 step 2).
func (r *Reader) FetchUserClaimedAmount(ctx context.Context, user common.Address) (*big.Int, error) {
	var claimed *big.Int
	if err := r.client.call(ctx, r.addresses.RewardContract, r.rewardABI, "userClaimedAmount", &claimed, user); err != nil {
		return nil, err
	}
	return claimed, nil
}

// FetchCalculatorAuthorized reports whether the reward contract currently
// recognizes calculator as an authorized signer. The Claim Authorizer
// checks this before signing so it can surface `CalculatorUnauthorized`
// instead of producing a signature the contract would reject.
func (r *Reader) FetchCalculatorAuthorized(ctx context.Context, calculator common.Address) (bool, error) {
	var authorized bool
	if err := r.client.call(ctx, r.addresses.RewardContract, r.rewardABI, "isAuthorizedCalculator", &authorized, calculator); err != nil {
		return false, err
	}
	return authorized, nil
}

// FetchTokenBalance reads an ERC20 balance, used for the reward-token balance check.
func (r *Reader) FetchTokenBalance(ctx context.Context, holder common.Address) (*big.Int, error) {
	var balance *big.Int
	if err := r.client.call(ctx, r.addresses.RewardToken, r.erc20ABI, "balanceOf", &balance, holder); err != nil {
		return nil, err
	}
	return balance, nil
}

// FetchTokenDecimals reads an ERC20 token's decimals(), used by the Position
// Valuer to scale a position's raw token0/token1 amounts before pricing them.
func (r *Reader) FetchTokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	var decimals uint8
	if err := r.client.call(ctx, token, r.erc20ABI, "decimals", &decimals); err != nil {
		return 0, err
	}
	return decimals, nil
}
