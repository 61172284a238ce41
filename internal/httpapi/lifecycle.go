package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type lifecycleStatusResponse struct {
	IsRunning bool `json:"isRunning"`
}

// handleLifecycleStatus implements GET /position-lifecycle/status.
func (s *Server) handleLifecycleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, lifecycleStatusResponse{IsRunning: s.reconciler.Running()})
}

type checkUserResponse struct {
	OK bool `json:"ok"`
}

// handleCheckUser implements POST /position-lifecycle/check-user/{address}:
// runs the §4.5 reconciliation for a single address on demand, outside the
// periodic loop's cadence.
func (s *Server) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.reconciler.CheckUser(r.Context(), addr); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkUserResponse{OK: true})
}
