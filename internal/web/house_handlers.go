package web

import (
	"net/http"

	"github.com/evcraddock/hometrace/internal/house"
)

// addHouseRequest adds by listing lookup unless Manual is set.
type addHouseRequest struct {
	Address    string   `json:"address" validate:"required,max=500"`
	Manual     bool     `json:"manual"`
	RealtorURL string   `json:"realtor_url" validate:"omitempty,url"`
	Price      *int64   `json:"price" validate:"omitempty,gte=0"`
	Bedrooms   *float64 `json:"bedrooms" validate:"omitempty,gte=0"`
	Bathrooms  *float64 `json:"bathrooms" validate:"omitempty,gte=0"`
	Sqft       *int64   `json:"sqft" validate:"omitempty,gte=0"`
}

func (s *Server) handleAddHouse(w http.ResponseWriter, r *http.Request) {
	var req addHouseRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var h *house.House
	var err error
	if req.Manual {
		h, err = s.houses.AddManual(r.Context(), principal(r), house.ManualInput{
			Address:    req.Address,
			RealtorURL: req.RealtorURL,
			Price:      req.Price,
			Bedrooms:   req.Bedrooms,
			Bathrooms:  req.Bathrooms,
			Sqft:       req.Sqft,
		})
	} else {
		h, err = s.houses.Add(r.Context(), principal(r), req.Address)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleListHouses(w http.ResponseWriter, r *http.Request) {
	addedBy, err := queryID(r, "added_by")
	if err != nil {
		writeError(w, r, err)
		return
	}
	houses, err := s.houses.List(r.Context(), house.ListOptions{
		Search:  r.URL.Query().Get("q"),
		AddedBy: addedBy,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The raw listing is only sent for a single house.
	for _, h := range houses {
		h.RawJSON = nil
	}
	writeJSON(w, http.StatusOK, orEmpty(houses))
}

func (s *Server) handleGetHouse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h, err := s.houses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleRemoveHouse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.houses.Remove(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}
