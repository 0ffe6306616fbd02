package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/email"
	"github.com/evcraddock/hometrace/internal/house"
	"github.com/evcraddock/hometrace/internal/suggestion"
	"github.com/evcraddock/hometrace/internal/visit"
)

// Users resolves recipients.
type Users interface {
	GetByID(ctx context.Context, id int64) (*auth.User, error)
}

// Houses resolves the house a message is about.
type Houses interface {
	Get(ctx context.Context, id int64) (*house.House, error)
}

// Emailer mails the other party when a suggestion is made or answered.
type Emailer struct {
	dispatch *Dispatcher
	sender   email.Sender
	users    Users
	houses   Houses
	baseURL  string
}

// NewEmailer creates an Emailer that links back to baseURL.
func NewEmailer(d *Dispatcher, sender email.Sender, users Users, houses Houses, baseURL string) *Emailer {
	return &Emailer{
		dispatch: d,
		sender:   sender,
		users:    users,
		houses:   houses,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// SuggestionCreated tells the buyer about a new suggestion.
func (e *Emailer) SuggestionCreated(ctx context.Context, s *suggestion.Suggestion) {
	e.dispatch.Go(ctx, "suggestion.created", func(ctx context.Context) error {
		buyer, realtor, h, err := e.parties(ctx, s)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s suggested a visit to %s on %s.\n", displayName(realtor), h.Address, when(s))
		writeHouse(&b, h)
		if s.Message != nil {
			fmt.Fprintf(&b, "\n%q\n", *s.Message)
		}
		fmt.Fprintf(&b, "\nAccept or reject it at %s/api/visits/suggestions/%d\n", e.baseURL, s.ID)

		return e.send(ctx, buyer, "Visit suggested: "+h.Address, b.String())
	})
}

// SuggestionAccepted tells the realtor the buyer accepted.
func (e *Emailer) SuggestionAccepted(ctx context.Context, s *suggestion.Suggestion, v *visit.Visit) {
	e.dispatch.Go(ctx, "suggestion.accepted", func(ctx context.Context) error {
		buyer, realtor, h, err := e.parties(ctx, s)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s accepted your suggested visit to %s on %s.\n", displayName(buyer), h.Address, when(s))
		fmt.Fprintf(&b, "\nThe visit is scheduled: %s/api/visits/%d\n", e.baseURL, v.ID)

		return e.send(ctx, realtor, "Visit accepted: "+h.Address, b.String())
	})
}

// SuggestionRejected tells the realtor the buyer declined, with the reason.
func (e *Emailer) SuggestionRejected(ctx context.Context, s *suggestion.Suggestion) {
	e.dispatch.Go(ctx, "suggestion.rejected", func(ctx context.Context) error {
		buyer, realtor, h, err := e.parties(ctx, s)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s declined your suggested visit to %s on %s.\n", displayName(buyer), h.Address, when(s))
		if s.RejectionReason != nil {
			fmt.Fprintf(&b, "\nReason: %s\n", *s.RejectionReason)
		}

		return e.send(ctx, realtor, "Visit declined: "+h.Address, b.String())
	})
}

func (e *Emailer) parties(ctx context.Context, s *suggestion.Suggestion) (buyer, realtor *auth.User, h *house.House, err error) {
	if buyer, err = e.users.GetByID(ctx, s.BuyerID); err != nil {
		return nil, nil, nil, fmt.Errorf("loading buyer %d: %w", s.BuyerID, err)
	}
	if realtor, err = e.users.GetByID(ctx, s.RealtorID); err != nil {
		return nil, nil, nil, fmt.Errorf("loading realtor %d: %w", s.RealtorID, err)
	}
	if h, err = e.houses.Get(ctx, s.HouseID); err != nil {
		return nil, nil, nil, fmt.Errorf("loading house %d: %w", s.HouseID, err)
	}
	return buyer, realtor, h, nil
}

func (e *Emailer) send(ctx context.Context, to *auth.User, subject, body string) error {
	return e.sender.Send(ctx, email.Message{
		To:      []string{to.Email},
		Subject: subject,
		Body:    body,
	})
}

func writeHouse(b *strings.Builder, h *house.House) {
	var parts []string
	if h.Price != nil {
		parts = append(parts, email.FormatPrice(*h.Price))
	}
	if h.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("%g bd", *h.Bedrooms))
	}
	if h.Bathrooms != nil {
		parts = append(parts, fmt.Sprintf("%g ba", *h.Bathrooms))
	}
	if h.Sqft != nil {
		parts = append(parts, email.FormatWithCommas(*h.Sqft)+" sqft")
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "%s\n", strings.Join(parts, " | "))
	}
	if h.RealtorURL != "" {
		fmt.Fprintf(b, "%s\n", h.RealtorURL)
	}
}

func displayName(u *auth.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func when(s *suggestion.Suggestion) string {
	return s.SuggestedAt.UTC().Format("Mon Jan 2 at 15:04 MST")
}
