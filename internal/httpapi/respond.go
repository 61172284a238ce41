package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/blackhole-labs/lp-reward-engine/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a typed apperr error to a status code and an opaque
// message, logging the real cause with a correlation id — §7's
// propagation policy: no internal error text, stack traces, or upstream
// bodies ever reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := middleware.GetReqID(r.Context())
	status, message := classify(err)
	s.logger.Error("request failed",
		zap.String("correlationId", correlationID),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, status, errorBody{Error: message})
}

func classify(err error) (int, string) {
	if apperr.IsTransient(err) {
		return http.StatusInternalServerError, "temporarily unavailable, please retry"
	}
	if apperr.IsUnavailable(err) {
		return http.StatusServiceUnavailable, "data unavailable, please retry shortly"
	}
	reason, ok := apperr.ReasonOf(err)
	if !ok {
		return http.StatusInternalServerError, "internal error"
	}
	switch reason {
	case apperr.ReasonMalformedAddress, apperr.ReasonValidation:
		return http.StatusBadRequest, "malformed request"
	case apperr.ReasonNotFound:
		return http.StatusNotFound, "not found"
	case apperr.ReasonNothingToClaim:
		return http.StatusTooManyRequests, "nothing to claim"
	case apperr.ReasonStaleNonce, apperr.ReasonNonceReplay:
		return http.StatusConflict, "claim authorization nonce is stale, please retry"
	case apperr.ReasonCalculatorUnauthorized:
		return http.StatusServiceUnavailable, "calculator is not yet authorized, please wait out the time-delay window"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
