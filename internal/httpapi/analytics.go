package httpapi

import "net/http"

type programAnalyticsResponse struct {
	ProgramAPR               string `json:"programApr"`
	ActiveLiquidityProviders int    `json:"activeLiquidityProviders"`
	TotalLiquidity           string `json:"totalLiquidity"`
	TreasuryTotal            string `json:"treasuryTotal"`
}

// handleProgramAnalytics implements GET /rewards/program-analytics.
func (s *Server) handleProgramAnalytics(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.analytics.ProgramAnalytics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, programAnalyticsResponse{
		ProgramAPR:               snapshot.ProgramAPR.String(),
		ActiveLiquidityProviders: snapshot.ActiveLiquidityProviders,
		TotalLiquidity:           snapshot.TotalLiquidity.String(),
		TreasuryTotal:            snapshot.TreasuryTotal.String(),
	})
}

type poolAPRResponse struct {
	TradingFeesAPR string `json:"tradingFeesApr"`
}

// handlePoolAPR implements GET /trading-fees/pool-apr.
func (s *Server) handlePoolAPR(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.analytics.PoolAPR(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, poolAPRResponse{TradingFeesAPR: snapshot.TradingFeesAPR.String()})
}
