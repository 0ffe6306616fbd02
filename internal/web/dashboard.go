package web

import (
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/evcraddock/hometrace/internal/suggestion"
	"github.com/evcraddock/hometrace/internal/tour"
	"github.com/evcraddock/hometrace/internal/visit"
)

const dashboardVisits = 10

type dashboard struct {
	UpcomingVisits     []*visit.Visit           `json:"upcoming_visits"`
	PendingSuggestions []*suggestion.Suggestion `json:"pending_suggestions"`
	ActiveTours        []*tour.Tour             `json:"active_tours"`
}

// handleDashboard loads the caller's upcoming visits, pending suggestions
// and active tours in parallel.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	var d dashboard

	g, ctx := errgroup.WithContext(r.Context())

	g.Go(func() error {
		visits, err := s.visits.List(ctx, p, visit.ListFilter{
			Status:   visit.StatusScheduled,
			Upcoming: true,
			Limit:    dashboardVisits,
		})
		if err != nil {
			return fmt.Errorf("upcoming visits: %w", err)
		}
		d.UpcomingVisits = orEmpty(visits)
		return nil
	})

	g.Go(func() error {
		pending, err := s.suggestions.List(ctx, p, suggestion.ListFilter{Status: suggestion.StatusPending})
		if err != nil {
			return fmt.Errorf("pending suggestions: %w", err)
		}
		d.PendingSuggestions = orEmpty(pending)
		return nil
	})

	g.Go(func() error {
		tours, err := s.tours.List(ctx, p, "")
		if err != nil {
			return fmt.Errorf("tours: %w", err)
		}
		d.ActiveTours = []*tour.Tour{}
		for _, t := range tours {
			if t.Status.Editable() {
				d.ActiveTours = append(d.ActiveTours, t)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
