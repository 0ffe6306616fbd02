package web

import (
	"net/http"
	"strings"

	"github.com/evcraddock/hometrace/internal/auth"
)

type createKeyRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type createKeyResponse struct {
	Key    string       `json:"key"` // raw key, shown once
	APIKey *auth.APIKey `json:"api_key"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "API Key"
	}

	raw, key, err := s.apiKeys.Create(r.Context(), principal(r).UserID, name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createKeyResponse{Key: raw, APIKey: key})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.apiKeys.List(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(keys))
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.apiKeys.Delete(r.Context(), principal(r).UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}
