package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type rewardAccrualResponse struct {
	ID               string `json:"id"`
	PositionID       string `json:"positionId"`
	EpochStart       string `json:"epochStart"`
	EpochEnd         string `json:"epochEnd"`
	RewardUnits      string `json:"rewardUnits"`
	AccumulatedUnits string `json:"accumulatedUnits"`
}

// handleRewardsByUser implements GET /rewards/user/{userId}.
func (s *Server) handleRewardsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed userId"})
		return
	}

	accruals, err := s.store.GetRewardAccruals(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]rewardAccrualResponse, 0, len(accruals))
	for _, a := range accruals {
		out = append(out, rewardAccrualResponse{
			ID:               a.ID.String(),
			PositionID:       a.PositionID.String(),
			EpochStart:       a.EpochStart.UTC().Format("2006-01-02T15:04:05Z"),
			EpochEnd:         a.EpochEnd.UTC().Format("2006-01-02T15:04:05Z"),
			RewardUnits:      a.RewardUnits.String(),
			AccumulatedUnits: a.AccumulatedUnits.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type rewardStatsResponse struct {
	TotalAccumulated string `json:"totalAccumulated"`
	TotalClaimed     string `json:"totalClaimed"`
	TotalClaimable   string `json:"totalClaimable"`
	ActivePositions  int    `json:"activePositions"`
	AvgDailyRewards  string `json:"avgDailyRewards"`
}

// handleRewardStats implements GET /rewards/user/{userId}/stats.
func (s *Server) handleRewardStats(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed userId"})
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	positions, err := s.store.GetPositionsByOwner(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	accruals, err := s.store.GetRewardAccruals(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	totalAccumulated, epochs := sumIncrementsAndEpochs(accruals)

	totalClaimed, err := s.store.GetCumulativeAuthorized(r.Context(), user.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	totalClaimable := new(big.Int).Sub(totalAccumulated, totalClaimed)
	if totalClaimable.Sign() < 0 {
		totalClaimable = big.NewInt(0)
	}

	activePositions := 0
	for _, p := range positions {
		if p.IsActive {
			activePositions++
		}
	}

	avgDaily := big.NewInt(0)
	if epochs > 0 {
		avgDaily = new(big.Int).Div(totalAccumulated, big.NewInt(int64(epochs)))
	}

	writeJSON(w, http.StatusOK, rewardStatsResponse{
		TotalAccumulated: totalAccumulated.String(),
		TotalClaimed:     totalClaimed.String(),
		TotalClaimable:   totalClaimable.String(),
		ActivePositions:  activePositions,
		AvgDailyRewards:  avgDaily.String(),
	})
}

// sumIncrementsAndEpochs sums every RewardUnits increment across all of a
// user's accrual rows (equal to the final cumulative total across
// positions, since accumulatedUnits is a running per-position sum of
// exactly these increments) and counts the distinct epochs observed.
func sumIncrementsAndEpochs(accruals []rewardengine.RewardAccrual) (*big.Int, int) {
	total := big.NewInt(0)
	seen := make(map[string]struct{})
	for _, a := range accruals {
		total.Add(total, a.RewardUnits)
		seen[a.EpochEnd.String()] = struct{}{}
	}
	return total, len(seen)
}

type claimableEntry struct {
	PositionID       string `json:"positionId"`
	AccumulatedUnits string `json:"accumulatedUnits"`
	ClaimedUnits     string `json:"claimedUnits"`
}

// handleClaimable implements GET /rewards/user/{userId}/claimable. Claims
// are authorized per-user, not per-position, so claimedUnits here
// apportions the user's total claimed amount across positions, weighted
// by each position's share of accumulatedUnits.
func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed userId"})
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	positions, err := s.store.GetPositionsByOwner(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(positions) == 0 {
		writeJSON(w, http.StatusOK, []claimableEntry{})
		return
	}

	type withAccrual struct {
		positionID  uuid.UUID
		accumulated *big.Int
	}
	items := make([]withAccrual, 0, len(positions))
	totalAccumulated := big.NewInt(0)
	for _, p := range positions {
		latest, err := s.store.GetLatestAccrualForPosition(r.Context(), p.ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		accumulated := big.NewInt(0)
		if latest != nil {
			accumulated = latest.AccumulatedUnits
		}
		items = append(items, withAccrual{positionID: p.ID, accumulated: accumulated})
		totalAccumulated.Add(totalAccumulated, accumulated)
	}

	totalClaimed, err := s.store.GetCumulativeAuthorized(r.Context(), user.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]claimableEntry, 0, len(items))
	for _, it := range items {
		claimed := apportion(totalClaimed, it.accumulated, totalAccumulated)
		out = append(out, claimableEntry{
			PositionID:       it.positionID.String(),
			AccumulatedUnits: it.accumulated.String(),
			ClaimedUnits:     claimed.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func apportion(total, share, base *big.Int) *big.Int {
	if base.Sign() == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(total, share)
	return numerator.Div(numerator, base)
}

type claimRequest struct {
	UserAddress string `json:"userAddress"`
}

type claimResponse struct {
	Nonce                uint64 `json:"nonce"`
	CumulativeAuthorized string `json:"cumulativeAuthorized"`
	Signature            string `json:"signature"`
}

// handleClaim implements POST /rewards/claim/{userId}: delegates to the
// Claim Authorizer and maps its typed failures per §6/§7 (409 StaleNonce,
// 429 NothingToClaim).
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	addr, err := parseAddress(req.UserAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.authorizer.Authorize(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{
		Nonce:                result.Nonce,
		CumulativeAuthorized: result.CumulativeAuthorized.String(),
		Signature:            hex.EncodeToString(result.Signature),
	})
}
