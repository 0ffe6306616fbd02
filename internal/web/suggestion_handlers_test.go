package web

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/suggestion"
	"github.com/evcraddock/hometrace/internal/testutil"
	"github.com/evcraddock/hometrace/internal/visit"
)

type suggestionFixture struct {
	env          *testEnv
	buyer        auth.Principal
	realtor      auth.Principal
	buyerToken   string
	realtorToken string
	houseID      int64
}

func newSuggestionFixture(t *testing.T) *suggestionFixture {
	t.Helper()
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	realtor := testutil.User(t, env.db, auth.RoleRealtor)
	testutil.Connect(t, env.db, realtor, buyer)
	return &suggestionFixture{
		env:          env,
		buyer:        buyer,
		realtor:      realtor,
		buyerToken:   env.key(t, buyer),
		realtorToken: env.key(t, realtor),
		houseID:      testutil.House(t, env.db, realtor),
	}
}

func (f *suggestionFixture) suggest(t *testing.T, ahead time.Duration) *suggestion.Suggestion {
	t.Helper()
	w := f.env.do(t, "POST", "/api/visits/suggestions", f.realtorToken, map[string]any{
		"buyer_id":     f.buyer.UserID,
		"house_id":     f.houseID,
		"suggested_at": f.env.clock.Now().Add(ahead),
		"message":      "Open house on Saturday",
	})
	expectStatus(t, w, http.StatusCreated)
	return decodeAs[*suggestion.Suggestion](t, w)
}

func TestSuggestAndAcceptOverHTTP(t *testing.T) {
	f := newSuggestionFixture(t)

	sg := f.suggest(t, 48*time.Hour)
	if sg.Status != suggestion.StatusPending {
		t.Fatalf("status = %s, want PENDING", sg.Status)
	}
	if sg.RealtorID != f.realtor.UserID {
		t.Errorf("suggested_by_realtor_id = %d, want %d", sg.RealtorID, f.realtor.UserID)
	}

	w := f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/accept", sg.ID), f.buyerToken, nil)
	expectStatus(t, w, http.StatusOK)
	v := decodeAs[*visit.Visit](t, w)
	if v.Status != visit.StatusScheduled {
		t.Errorf("visit status = %s, want SCHEDULED", v.Status)
	}
	if v.SuggestionID == nil || *v.SuggestionID != sg.ID {
		t.Errorf("suggestion_id = %v, want %d", v.SuggestionID, sg.ID)
	}
	if !v.ScheduledAt.Equal(sg.SuggestedAt) {
		t.Errorf("scheduled_at = %v, want %v", v.ScheduledAt, sg.SuggestedAt)
	}

	w = f.env.do(t, "GET", fmt.Sprintf("/api/visits/suggestions/%d", sg.ID), f.realtorToken, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[*suggestion.Suggestion](t, w); got.Status != suggestion.StatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", got.Status)
	}

	w = f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/accept", sg.ID), f.buyerToken, nil)
	detail := expectError(t, w, http.StatusConflict, apperr.CodeInvalidTransition)
	if !strings.Contains(detail.Message, "ACCEPTED") {
		t.Errorf("message %q should say the suggestion was accepted", detail.Message)
	}
}

func TestAcceptNotifiesRealtor(t *testing.T) {
	f := newSuggestionFixture(t)
	sg := f.suggest(t, 48*time.Hour)

	w := f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/accept", sg.ID), f.buyerToken, nil)
	expectStatus(t, w, http.StatusOK)

	if err := f.env.srv.dispatcher.Wait(t.Context()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	var subjects []string
	for _, m := range f.env.mail.messages() {
		subjects = append(subjects, m.Subject)
	}
	joined := strings.Join(subjects, "|")
	if !strings.Contains(joined, "Visit suggested") || !strings.Contains(joined, "Visit accepted") {
		t.Errorf("subjects = %v, want created and accepted notices", subjects)
	}
}

func TestConcurrentAcceptCreatesOneVisit(t *testing.T) {
	f := newSuggestionFixture(t)
	sg := f.suggest(t, 48*time.Hour)

	const n = 4
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/accept", sg.ID), f.buyerToken, nil)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	ok := 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", c)
		}
	}
	if ok != 1 {
		t.Errorf("%d accepts succeeded, want 1 (codes %v)", ok, codes)
	}

	w := f.env.do(t, "GET", "/api/visits", f.buyerToken, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[[]*visit.Visit](t, w); len(got) != 1 {
		t.Errorf("got %d visits, want 1", len(got))
	}
}

func TestAcceptExpiredSuggestion(t *testing.T) {
	f := newSuggestionFixture(t)
	sg := f.suggest(t, 30*time.Hour)

	f.env.clock.Advance(8 * time.Hour)

	w := f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/accept", sg.ID), f.buyerToken, nil)
	detail := expectError(t, w, http.StatusConflict, apperr.CodeInvalidTransition)
	if !strings.Contains(detail.Message, "EXPIRED") {
		t.Errorf("message %q should say the suggestion expired", detail.Message)
	}

	w = f.env.do(t, "GET", "/api/visits/suggestions?status=EXPIRED", f.buyerToken, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[[]*suggestion.Suggestion](t, w); len(got) != 1 {
		t.Errorf("got %d expired suggestions, want 1", len(got))
	}
}

func TestSuggestGuards(t *testing.T) {
	f := newSuggestionFixture(t)

	w := f.env.do(t, "POST", "/api/visits/suggestions", f.buyerToken, map[string]any{
		"buyer_id":     f.buyer.UserID,
		"house_id":     f.houseID,
		"suggested_at": f.env.clock.Now().Add(48 * time.Hour),
	})
	expectError(t, w, http.StatusForbidden, apperr.CodeForbidden)

	stranger := testutil.User(t, f.env.db, auth.RoleBuyer)
	w = f.env.do(t, "POST", "/api/visits/suggestions", f.realtorToken, map[string]any{
		"buyer_id":     stranger.UserID,
		"house_id":     f.houseID,
		"suggested_at": f.env.clock.Now().Add(48 * time.Hour),
	})
	expectError(t, w, http.StatusForbidden, apperr.CodeForbidden)

	w = f.env.do(t, "POST", "/api/visits/suggestions", f.realtorToken, map[string]any{
		"house_id":     f.houseID,
		"suggested_at": f.env.clock.Now().Add(48 * time.Hour),
	})
	detail := expectError(t, w, http.StatusUnprocessableEntity, apperr.CodeValidation)
	if detail.Details["buyer_id"] != "required" {
		t.Errorf("details = %v, want buyer_id required", detail.Details)
	}
}

func TestRejectSuggestionOverHTTP(t *testing.T) {
	f := newSuggestionFixture(t)
	sg := f.suggest(t, 48*time.Hour)

	w := f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/reject", sg.ID), f.realtorToken, nil)
	expectError(t, w, http.StatusForbidden, apperr.CodeForbidden)

	w = f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/reject", sg.ID), f.buyerToken, map[string]any{
		"reason": "Too far from work",
	})
	expectStatus(t, w, http.StatusOK)
	got := decodeAs[*suggestion.Suggestion](t, w)
	if got.Status != suggestion.StatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status)
	}
	if got.RejectionReason == nil || *got.RejectionReason != "Too far from work" {
		t.Errorf("rejection_reason = %v", got.RejectionReason)
	}

	w = f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/accept", sg.ID), f.buyerToken, nil)
	expectError(t, w, http.StatusConflict, apperr.CodeInvalidTransition)
}

func TestRejectWithoutReason(t *testing.T) {
	f := newSuggestionFixture(t)
	sg := f.suggest(t, 48*time.Hour)

	w := f.env.do(t, "POST", fmt.Sprintf("/api/visits/suggestions/%d/reject", sg.ID), f.buyerToken, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[*suggestion.Suggestion](t, w); got.RejectionReason != nil {
		t.Errorf("rejection_reason = %q, want none", *got.RejectionReason)
	}
}

func TestWithdrawSuggestion(t *testing.T) {
	f := newSuggestionFixture(t)
	sg := f.suggest(t, 48*time.Hour)

	w := f.env.do(t, "DELETE", fmt.Sprintf("/api/visits/suggestions/%d", sg.ID), f.buyerToken, nil)
	expectError(t, w, http.StatusForbidden, apperr.CodeForbidden)

	w = f.env.do(t, "DELETE", fmt.Sprintf("/api/visits/suggestions/%d", sg.ID), f.realtorToken, nil)
	expectStatus(t, w, http.StatusOK)

	w = f.env.do(t, "GET", fmt.Sprintf("/api/visits/suggestions/%d", sg.ID), f.buyerToken, nil)
	expectError(t, w, http.StatusNotFound, apperr.CodeNotFound)
}

func TestListSuggestionsByRole(t *testing.T) {
	f := newSuggestionFixture(t)
	f.suggest(t, 48*time.Hour)
	f.suggest(t, 72*time.Hour)

	for _, token := range []string{f.buyerToken, f.realtorToken} {
		w := f.env.do(t, "GET", "/api/visits/suggestions?status=PENDING", token, nil)
		expectStatus(t, w, http.StatusOK)
		if got := decodeAs[[]*suggestion.Suggestion](t, w); len(got) != 2 {
			t.Errorf("got %d suggestions, want 2", len(got))
		}
	}

	other := testutil.User(t, f.env.db, auth.RoleBuyer)
	w := f.env.do(t, "GET", "/api/visits/suggestions", f.env.key(t, other), nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[[]*suggestion.Suggestion](t, w); len(got) != 0 {
		t.Errorf("unrelated buyer sees %d suggestions", len(got))
	}
}
