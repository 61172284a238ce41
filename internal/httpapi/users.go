package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	Address string `json:"address"`
}

type userResponse struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// handleCreateUser implements POST /users: returns the existing user for
// address or lazily creates one, per §3's "created lazily on first
// interaction, never deleted" rule.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}

	addr, err := parseAddress(req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.GetOrCreateUser(r.Context(), addr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID.String(), Address: user.Address.Hex()})
}

// handleGetUser implements GET /users/{address}.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, userResponse{ID: user.ID.String(), Address: user.Address.Hex()})
}
