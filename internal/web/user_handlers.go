package web

import (
	"net/http"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
)

type addUserRequest struct {
	Email string    `json:"email" validate:"required,email"`
	Name  string    `json:"name" validate:"max=200"`
	Role  auth.Role `json:"role" validate:"required,oneof=buyer realtor admin"`
}

func requireAdmin(r *http.Request) error {
	if !principal(r).IsAdmin() {
		return apperr.Forbidden("admin access required")
	}
	return nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByID(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	users, err := s.users.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(users))
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	var req addUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.users.Add(r.Context(), req.Email, req.Name, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := requireAdmin(r); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if id == principal(r).UserID {
		writeError(w, r, apperr.Validation("cannot remove yourself"))
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}
