// Package claims implements the Claim Authorizer (§4.9): it validates a
// claim request, computes the amount to authorize, signs the
// contract-compatible digest, and persists the issuance so the on-chain
// contract can later verify and pay it out.
package claims

import (
	"context"
	"math/big"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// NonceFetcher is the subset of *chain.Reader the Authorizer needs to
// learn the contract's current replay-protection counter and claimed total.
type NonceFetcher interface {
	FetchUserNonce(ctx context.Context, user common.Address) (uint64, error)
	FetchUserClaimedAmount(ctx context.Context, user common.Address) (*big.Int, error)
	FetchCalculatorAuthorized(ctx context.Context, calculator common.Address) (bool, error)
}

// AuthorizerStore is the subset of *store.Store the Authorizer needs.
type AuthorizerStore interface {
	GetOrCreateUser(ctx context.Context, address common.Address) (*rewardengine.User, error)
	GetPositionsByOwner(ctx context.Context, userID uuid.UUID) ([]rewardengine.EnrolledPosition, error)
	GetLatestAccrualForPosition(ctx context.Context, positionID uuid.UUID) (*rewardengine.RewardAccrual, error)
	GetCumulativeAuthorized(ctx context.Context, address common.Address) (*big.Int, error)
	RecordClaimAuthorization(ctx context.Context, auth rewardengine.ClaimAuthorization) error
	GetTreasuryConfig(ctx context.Context) (*rewardengine.TreasuryConfig, error)
	GetProgramSettings(ctx context.Context) (*rewardengine.ProgramSettings, error)
}

// Result is the §6 POST /rewards/claim/{userId} success response.
type Result struct {
	Nonce                uint64
	CumulativeAuthorized *big.Int
	Signature            []byte
	Digest               [32]byte
}

// Authorizer is the Claim Authorizer component.
type Authorizer struct {
	chain  NonceFetcher
	store  AuthorizerStore
	signer Signer
	now    func() time.Time
}

// NewAuthorizer wires the Authorizer's dependencies.
func NewAuthorizer(chainReader NonceFetcher, st AuthorizerStore, signer Signer) *Authorizer {
	return &Authorizer{chain: chainReader, store: st, signer: signer, now: time.Now}
}

// Authorize runs the full §4.9 algorithm for userAddress and, on success,
// persists and returns a signed ClaimAuthorization.
func (a *Authorizer) Authorize(ctx context.Context, userAddress common.Address) (*Result, error) {
	if userAddress == (common.Address{}) {
		return nil, apperr.NewPermanent(apperr.ReasonMalformedAddress, "malformed user address")
	}

	treasury, err := a.store.GetTreasuryConfig(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := a.store.GetProgramSettings(ctx)
	if err != nil {
		return nil, err
	}

	authorized, err := a.chain.FetchCalculatorAuthorized(ctx, common.BytesToAddress(a.signer.Address()[:]))
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, apperr.NewPermanent(apperr.ReasonCalculatorUnauthorized, "calculator is not yet authorized by the reward contract")
	}

	user, err := a.store.GetOrCreateUser(ctx, userAddress)
	if err != nil {
		return nil, err
	}

	accrued, err := a.sumAccrued(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	signedPrev, err := a.store.GetCumulativeAuthorized(ctx, userAddress)
	if err != nil {
		return nil, err
	}
	onChainClaimed, err := a.chain.FetchUserClaimedAmount(ctx, userAddress)
	if err != nil {
		return nil, err
	}
	prev := signedPrev
	if onChainClaimed.Cmp(prev) > 0 {
		prev = onChainClaimed
	}

	delta := new(big.Int).Sub(accrued, prev)
	if delta.Sign() <= 0 {
		return nil, apperr.NewPermanent(apperr.ReasonNothingToClaim, "nothing to claim")
	}

	grant := delta
	if grant.Cmp(settings.AbsoluteMaxClaimUnits) > 0 {
		grant = new(big.Int).Set(settings.AbsoluteMaxClaimUnits)
	}
	cumulative := new(big.Int).Add(prev, grant)

	nonce, err := a.chain.FetchUserNonce(ctx, userAddress)
	if err != nil {
		return nil, err
	}

	digest, err := BuildDigest(treasury.ChainID, treasury.RewardContractAddress, userAddress, cumulative, nonce)
	if err != nil {
		return nil, apperr.NewTransient("build claim digest", err)
	}

	signature, err := a.signer.Sign(digest)
	if err != nil {
		return nil, apperr.NewTransient("sign claim digest", err)
	}

	auth := rewardengine.ClaimAuthorization{
		ID:                        uuid.New(),
		UserAddress:               userAddress,
		Nonce:                     nonce,
		CumulativeAuthorizedUnits: cumulative,
		SignedAt:                  a.now(),
		SignatureDigest:           digest,
		Signature:                 signature,
	}

	// §4.9 step 4/7: if the on-chain nonce advanced between our read and
	// this commit, RecordClaimAuthorization's (address, nonce) uniqueness
	// check fails with NonceReplay — surfaced to the caller as StaleNonce,
	// since from the caller's perspective the authorization raced a claim
	// that already consumed this nonce.
	if err := a.store.RecordClaimAuthorization(ctx, auth); err != nil {
		if reason, ok := apperr.ReasonOf(err); ok && reason == apperr.ReasonNonceReplay {
			return nil, apperr.NewPermanent(apperr.ReasonStaleNonce, "on-chain nonce advanced before the authorization committed")
		}
		return nil, err
	}

	return &Result{
		Nonce:                nonce,
		CumulativeAuthorized: cumulative,
		Signature:            signature,
		Digest:               digest,
	}, nil
}

// sumAccrued totals the user's most recent AccumulatedUnits across every
// enrolled position, the "Σ rewardUnits over all the user's positions"
// accrued figure §4.9 step 2 refers to.
func (a *Authorizer) sumAccrued(ctx context.Context, userID uuid.UUID) (*big.Int, error) {
	positions, err := a.store.GetPositionsByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	for _, pos := range positions {
		latest, err := a.store.GetLatestAccrualForPosition(ctx, pos.ID)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			continue
		}
		total.Add(total, latest.AccumulatedUnits)
	}
	return total, nil
}
