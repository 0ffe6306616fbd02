package web

import (
	"net/http"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/tour"
)

type createTourRequest struct {
	Name          string     `json:"name" validate:"required,max=200"`
	BuyerID       *int64     `json:"buyer_id" validate:"omitempty,gt=0"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	Notes         string     `json:"notes"`
}

type tourStatusRequest struct {
	Status tour.Status `json:"status" validate:"required,oneof=PLANNED IN_PROGRESS COMPLETED CANCELLED"`
}

type addStopRequest struct {
	HouseID       int64      `json:"house_id" validate:"required,gt=0"`
	EstimatedTime *time.Time `json:"estimated_time"`
	Notes         string     `json:"notes"`
}

type linkStopRequest struct {
	VisitID int64 `json:"visit_id" validate:"required,gt=0"`
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	var req createTourRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.tours.Create(r.Context(), principal(r), tour.CreateInput{
		Name:          req.Name,
		BuyerID:       req.BuyerID,
		ScheduledDate: utcPtr(req.ScheduledDate),
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTours(w http.ResponseWriter, r *http.Request) {
	tours, err := s.tours.List(r.Context(), principal(r), tour.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tours))
}

func (s *Server) handleGetTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.tours.Get(r.Context(), id, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTourStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req tourStatusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := s.tours.UpdateStatus(r.Context(), id, req.Status, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRemoveTour(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tours.Remove(r.Context(), id, principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}

func (s *Server) handleAddStop(w http.ResponseWriter, r *http.Request) {
	tourID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addStopRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stop, err := s.tours.AddStop(r.Context(), tourID, principal(r), tour.StopInput{
		HouseID:       req.HouseID,
		EstimatedTime: utcPtr(req.EstimatedTime),
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stop)
}

// handleRemoveStop reads the stop from the stopId query parameter.
func (s *Server) handleRemoveStop(w http.ResponseWriter, r *http.Request) {
	tourID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	stopID, err := queryID(r, "stopId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stopID == 0 {
		writeError(w, r, apperr.ValidationFields(map[string]string{"stopId": "required"}))
		return
	}

	if err := s.tours.RemoveStop(r.Context(), tourID, stopID, principal(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, stopID)
}

func (s *Server) handleLinkStop(w http.ResponseWriter, r *http.Request) {
	stopID, err := pathID(r, "stopId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req linkStopRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stop, err := s.tours.LinkStopToVisit(r.Context(), stopID, req.VisitID, principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stop)
}
