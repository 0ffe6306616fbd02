package web

import (
	"net/http"

	"github.com/evcraddock/hometrace/internal/auth"
)

type createConnectionRequest struct {
	RealtorID int64 `json:"realtor_id" validate:"omitempty,gt=0"`
	BuyerID   int64 `json:"buyer_id" validate:"required,gt=0"`
}

// handleCreateConnection connects a buyer to the calling realtor. Admins
// name the realtor explicitly.
func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var req createConnectionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p := principal(r)
	realtorID := req.RealtorID
	if realtorID == 0 && p.Role == auth.RoleRealtor {
		realtorID = p.UserID
	}

	c, err := s.conns.Create(r.Context(), p, realtorID, req.BuyerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.conns.List(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(conns))
}

func (s *Server) handleRemoveConnection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.conns.Remove(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}
