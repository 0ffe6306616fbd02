package web

import (
	"net/http"
	"time"

	"github.com/evcraddock/hometrace/internal/suggestion"
)

type suggestRequest struct {
	BuyerID     int64     `json:"buyer_id" validate:"required,gt=0"`
	HouseID     int64     `json:"house_id" validate:"required,gt=0"`
	SuggestedAt time.Time `json:"suggested_at"`
	Message     *string   `json:"message" validate:"omitempty,max=2000"`
}

type rejectRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=2000"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	sg, err := s.suggestions.Suggest(r.Context(), principal(r), suggestion.SuggestInput{
		BuyerID:     req.BuyerID,
		HouseID:     req.HouseID,
		SuggestedAt: req.SuggestedAt.UTC(),
		Message:     req.Message,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sg)
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	houseID, err := queryID(r, "house_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.suggestions.List(r.Context(), principal(r), suggestion.ListFilter{
		Status:  suggestion.Status(r.URL.Query().Get("status")),
		HouseID: houseID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(list))
}

func (s *Server) handleGetSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sg, err := s.suggestions.Get(r.Context(), id, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

// handleAcceptSuggestion answers with the visit the acceptance created.
func (s *Server) handleAcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.suggestions.Accept(r.Context(), id, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRejectSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	sg, err := s.suggestions.Reject(r.Context(), id, principal(r), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (s *Server) handleWithdrawSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.suggestions.Withdraw(r.Context(), id, principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}
