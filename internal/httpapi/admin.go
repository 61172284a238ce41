package httpapi

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"time"

	rewardengine "github.com/blackhole-labs/lp-reward-engine"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type adminClaims struct {
	Actor string `json:"actor"`
	jwt.RegisteredClaims
}

type adminActorKey struct{}

// requireAdminJWT gates the §6.1 admin path behind a bearer JWT signed
// with the engine's shared admin secret, stashing the token's actor claim
// in the request context for the audit trail.
func (s *Server) requireAdminJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == "" || raw == header {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}

		claims := &adminClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid bearer token"})
			return
		}

		ctx := context.WithValue(r.Context(), adminActorKey{}, claims.Actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(adminActorKey{}).(string)
	if actor == "" {
		return "unknown"
	}
	return actor
}

type putTreasuryConfigRequest struct {
	TotalAllocation       string `json:"totalAllocation"`
	ProgramStartTime      string `json:"programStartTime"`
	ProgramDurationDays   int    `json:"programDurationDays"`
	DailyBudget           string `json:"dailyBudget"`
	RewardContractAddress string `json:"rewardContractAddress"`
	TokenAddress          string `json:"tokenAddress"`
	ChainID               string `json:"chainId"`
}

// handlePutTreasuryConfig implements PUT /admin/treasury-config.
func (s *Server) handlePutTreasuryConfig(w http.ResponseWriter, r *http.Request) {
	var req putTreasuryConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	totalAllocation, ok := new(big.Int).SetString(req.TotalAllocation, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed totalAllocation"})
		return
	}
	dailyBudget, ok := new(big.Int).SetString(req.DailyBudget, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed dailyBudget"})
		return
	}
	chainID, ok := new(big.Int).SetString(req.ChainID, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed chainId"})
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.ProgramStartTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed programStartTime"})
		return
	}
	rewardContract, err := parseAddress(req.RewardContractAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tokenAddress, err := parseAddress(req.TokenAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	nextVersion := 1
	if current, err := s.store.GetTreasuryConfig(r.Context()); err == nil {
		nextVersion = current.Version + 1
	}

	cfg := rewardengine.TreasuryConfig{
		Version:               nextVersion,
		TotalAllocation:       totalAllocation,
		ProgramStartTime:      startTime,
		ProgramDurationDays:   req.ProgramDurationDays,
		DailyBudget:           dailyBudget,
		RewardContractAddress: rewardContract,
		TokenAddress:          tokenAddress,
		ChainID:               chainID,
	}
	if err := s.store.PutTreasuryConfig(r.Context(), cfg); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.recordAdminOperation(r, "put-treasury-config", req)
	writeJSON(w, http.StatusOK, struct{}{})
}

type putProgramSettingsRequest struct {
	TimeBoostCoefficient    string `json:"timeBoostCoefficient"`
	FullRangeBonus          string `json:"fullRangeBonus"`
	InRangeMultiplier       string `json:"inRangeMultiplier"`
	SignificanceThresholdUSD string `json:"significanceThresholdUsd"`
	AbsoluteMaxClaimUnits   string `json:"absoluteMaxClaimUnits"`
}

// handlePutProgramSettings implements PUT /admin/program-settings.
func (s *Server) handlePutProgramSettings(w http.ResponseWriter, r *http.Request) {
	var req putProgramSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	timeBoost, err := decimal.NewFromString(req.TimeBoostCoefficient)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed timeBoostCoefficient"})
		return
	}
	fullRangeBonus, err := decimal.NewFromString(req.FullRangeBonus)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed fullRangeBonus"})
		return
	}
	inRangeMultiplier, err := decimal.NewFromString(req.InRangeMultiplier)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed inRangeMultiplier"})
		return
	}
	significanceThreshold, err := decimal.NewFromString(req.SignificanceThresholdUSD)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed significanceThresholdUsd"})
		return
	}
	absoluteMax, ok := new(big.Int).SetString(req.AbsoluteMaxClaimUnits, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed absoluteMaxClaimUnits"})
		return
	}

	nextVersion := 1
	if current, err := s.store.GetProgramSettings(r.Context()); err == nil {
		nextVersion = current.Version + 1
	}

	settings := rewardengine.ProgramSettings{
		Version:                  nextVersion,
		TimeBoostCoefficient:     timeBoost,
		FullRangeBonus:           fullRangeBonus,
		InRangeMultiplier:        inRangeMultiplier,
		SignificanceThresholdUSD: significanceThreshold,
		AbsoluteMaxClaimUnits:    absoluteMax,
	}
	if err := s.store.PutProgramSettings(r.Context(), settings); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.recordAdminOperation(r, "put-program-settings", req)
	writeJSON(w, http.StatusOK, struct{}{})
}

// recordAdminOperation appends an audit row for an admin mutation. Audit
// failures are logged but never block the response: the mutation already
// committed.
func (s *Server) recordAdminOperation(r *http.Request, operation string, payload interface{}) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte("{}")
	}
	op := rewardengine.AdminOperation{
		ID:        uuid.New(),
		Actor:     actorFromContext(r.Context()),
		Operation: operation,
		Payload:   string(encoded),
		AppliedAt: s.now(),
	}
	if err := s.store.RecordAdminOperation(r.Context(), op); err != nil {
		s.logger.Error("failed to record admin operation audit row")
	}
}
