package web

import (
	"context"
	"net/http"
	"time"

	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/visit"
)

type scheduleVisitRequest struct {
	HouseID     int64     `json:"house_id" validate:"required,gt=0"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Notes       *string   `json:"notes"`
}

type completeVisitRequest struct {
	OverallImpression *visit.Impression `json:"overall_impression" validate:"omitempty,oneof=LOVED LIKED NEUTRAL DISLIKED"`
	WouldBuy          *bool             `json:"would_buy"`
	Notes             *string           `json:"notes"`
}

func (s *Server) handleScheduleVisit(w http.ResponseWriter, r *http.Request) {
	var req scheduleVisitRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	v, err := s.visits.Schedule(r.Context(), principal(r), visit.ScheduleInput{
		HouseID:     req.HouseID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleListVisits(w http.ResponseWriter, r *http.Request) {
	buyerID, err := queryID(r, "buyer_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	houseID, err := queryID(r, "house_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	upcoming, err := queryBool(r, "upcoming")
	if err != nil {
		writeError(w, r, err)
		return
	}

	visits, err := s.visits.List(r.Context(), principal(r), visit.ListFilter{
		BuyerID:  buyerID,
		HouseID:  houseID,
		Status:   visit.Status(r.URL.Query().Get("status")),
		Upcoming: upcoming,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(visits))
}

func (s *Server) handleGetVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.visits.Get(r.Context(), id, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleStartVisit(w http.ResponseWriter, r *http.Request) {
	s.visitAction(w, r, s.visits.Start)
}

func (s *Server) handleCancelVisit(w http.ResponseWriter, r *http.Request) {
	s.visitAction(w, r, s.visits.Cancel)
}

func (s *Server) handleCompleteVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req completeVisitRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	v, err := s.visits.Complete(r.Context(), id, principal(r), visit.CompleteInput{
		Impression: req.OverallImpression,
		WouldBuy:   req.WouldBuy,
		Notes:      req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRemoveVisit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.visits.Remove(r.Context(), id, principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}

type visitActionFunc func(ctx context.Context, id int64, p auth.Principal) (*visit.Visit, error)

func (s *Server) visitAction(w http.ResponseWriter, r *http.Request, action visitActionFunc) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := action(r.Context(), id, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
