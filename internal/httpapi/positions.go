package httpapi

import (
	"encoding/json"
	"math/big"
	"net/http"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/blackhole-labs/lp-reward-engine/internal/lifecycle"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type registerBulkRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type registerBulkResponse struct {
	RegisteredCount int `json:"registeredCount"`
}

// handleRegisterBulk implements POST /positions/register/bulk: enumerates
// every position-NFT the wallet currently holds via the Chain Reader,
// classifies each one through the Position State Manager, and upserts it
// into the Store as enrolled (createdViaApp = true).
func (s *Server) handleRegisterBulk(w http.ResponseWriter, r *http.Request) {
	var req registerBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	addr, err := parseAddress(req.WalletAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.GetOrCreateUser(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	chainPositions, err := s.chainReader.FetchPositionsOfOwner(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pool, err := s.chainReader.FetchPoolState(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	settings, err := s.store.GetProgramSettings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	registered := 0
	for _, cp := range chainPositions {
		valueUSD, err := s.valuer.ValueUSD(r.Context(), cp.Token0, cp.Token1, cp.Liquidity, cp.TickLower, cp.TickUpper, pool.SqrtPriceX96)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := rewardengine.PositionStateContext{
			TokenID:                cp.TokenID,
			HasBlockchainLiquidity: cp.HasLiquidity(),
			BlockchainLiquidity:    cp.Liquidity,
			CurrentValueUSD:        valueUSD,
			HasUnclaimedTokens:     cp.HasUnclaimedTokens(),
			IsOnBlockchain:         true,
			CurrentTick:            pool.Tick,
		}
		decision := lifecycle.Decide(ctx, settings.SignificanceThresholdUSD)
		isActive := decision.State == rewardengine.StateActive

		pos := rewardengine.EnrolledPosition{
			UserID:          user.ID,
			TokenID:         cp.TokenID,
			TickLower:       cp.TickLower,
			TickUpper:       cp.TickUpper,
			FeeTier:         cp.FeeTier,
			Token0:          cp.Token0,
			Token1:          cp.Token1,
			LiquidityUnits:  valueOrZero(cp.Liquidity),
			CurrentValueUSD: valueUSD,
			IsActive:        isActive,
			RewardEligible:  decision.RewardEligible,
			CreatedViaApp:   true,
		}
		if err := s.store.UpsertPosition(r.Context(), pos); err != nil {
			s.writeError(w, r, err)
			return
		}
		registered++
	}

	writeJSON(w, http.StatusOK, registerBulkResponse{RegisteredCount: registered})
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

type eligiblePositionsResponse struct {
	EligiblePositions int `json:"eligiblePositions"`
	TotalPositions    int `json:"totalPositions"`
	RegisteredCount   int `json:"registeredCount"`
}

// handleEligiblePositions implements GET /positions/eligible/{address}.
func (s *Server) handleEligiblePositions(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.GetUserByAddress(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	positions, err := s.store.GetPositionsByOwner(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	eligible, registeredViaApp := 0, 0
	for _, p := range positions {
		if p.RewardEligible {
			eligible++
		}
		if p.CreatedViaApp {
			registeredViaApp++
		}
	}

	writeJSON(w, http.StatusOK, eligiblePositionsResponse{
		EligiblePositions: eligible,
		TotalPositions:    len(positions),
		RegisteredCount:   registeredViaApp,
	})
}

type positionResponse struct {
	ID              string `json:"id"`
	TokenID         string `json:"tokenId"`
	TickLower       int32  `json:"tickLower"`
	TickUpper       int32  `json:"tickUpper"`
	FeeTier         uint32 `json:"feeTier"`
	Token0          string `json:"token0"`
	Token1          string `json:"token1"`
	LiquidityUnits  string `json:"liquidityUnits"`
	CurrentValueUSD string `json:"currentValueUsd"`
	IsActive        bool   `json:"isActive"`
	RewardEligible  bool   `json:"rewardEligible"`
	CreatedViaApp   bool   `json:"createdViaApp"`
}

// handlePositionsByUser implements GET /positions/user/{userId}.
func (s *Server) handlePositionsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed userId"})
		return
	}

	positions, err := s.store.GetPositionsByOwner(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]positionResponse, 0, len(positions))
	for _, p := range positions {
		out = append(out, toPositionResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func toPositionResponse(p rewardengine.EnrolledPosition) positionResponse {
	return positionResponse{
		ID:              p.ID.String(),
		TokenID:         p.TokenID.String(),
		TickLower:       p.TickLower,
		TickUpper:       p.TickUpper,
		FeeTier:         p.FeeTier,
		Token0:          p.Token0.Hex(),
		Token1:          p.Token1.Hex(),
		LiquidityUnits:  p.LiquidityUnits.String(),
		CurrentValueUSD: p.CurrentValueUSD.String(),
		IsActive:        p.IsActive,
		RewardEligible:  p.RewardEligible,
		CreatedViaApp:   p.CreatedViaApp,
	}
}
