package web

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/testutil"
	"github.com/evcraddock/hometrace/internal/visit"
)

func scheduleVisit(t *testing.T, env *testEnv, token string, houseID int64, at time.Time) *visit.Visit {
	t.Helper()
	w := env.do(t, "POST", "/api/visits", token, map[string]any{
		"house_id":     houseID,
		"scheduled_at": at,
	})
	expectStatus(t, w, http.StatusCreated)
	return decodeAs[*visit.Visit](t, w)
}

func TestVisitLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	token := env.key(t, buyer)
	houseID := testutil.House(t, env.db, buyer)

	v := scheduleVisit(t, env, token, houseID, env.clock.Now().Add(2*time.Hour))
	if v.Status != visit.StatusScheduled {
		t.Fatalf("status = %s, want SCHEDULED", v.Status)
	}
	if v.BuyerID != buyer.UserID {
		t.Errorf("buyer_id = %d, want %d", v.BuyerID, buyer.UserID)
	}

	w := env.do(t, "POST", fmt.Sprintf("/api/visits/%d/start", v.ID), token, nil)
	expectStatus(t, w, http.StatusOK)
	started := decodeAs[*visit.Visit](t, w)
	if started.Status != visit.StatusInProgress || started.StartedAt == nil {
		t.Fatalf("after start: status %s, started_at %v", started.Status, started.StartedAt)
	}

	w = env.do(t, "POST", fmt.Sprintf("/api/visits/%d/start", v.ID), token, nil)
	detail := expectError(t, w, http.StatusConflict, apperr.CodeInvalidTransition)
	if !strings.Contains(detail.Message, "IN_PROGRESS") {
		t.Errorf("message %q should name the current status", detail.Message)
	}

	w = env.do(t, "POST", fmt.Sprintf("/api/visits/%d/complete", v.ID), token, map[string]any{
		"overall_impression": "LOVED",
		"would_buy":          true,
		"notes":              "great light",
	})
	expectStatus(t, w, http.StatusOK)
	done := decodeAs[*visit.Visit](t, w)
	if done.Status != visit.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("after complete: status %s, completed_at %v", done.Status, done.CompletedAt)
	}
	if done.OverallImpression == nil || *done.OverallImpression != visit.ImpressionLoved {
		t.Errorf("overall_impression = %v, want LOVED", done.OverallImpression)
	}
	if done.WouldBuy == nil || !*done.WouldBuy {
		t.Errorf("would_buy = %v, want true", done.WouldBuy)
	}

	w = env.do(t, "DELETE", fmt.Sprintf("/api/visits/%d", v.ID), token, nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, "GET", fmt.Sprintf("/api/visits/%d", v.ID), token, nil)
	expectError(t, w, http.StatusNotFound, apperr.CodeNotFound)
}

func TestCompleteVisitWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	token := env.key(t, buyer)
	v := scheduleVisit(t, env, token, testutil.House(t, env.db, buyer), env.clock.Now())

	expectStatus(t, env.do(t, "POST", fmt.Sprintf("/api/visits/%d/start", v.ID), token, nil), http.StatusOK)

	w := env.do(t, "POST", fmt.Sprintf("/api/visits/%d/complete", v.ID), token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[*visit.Visit](t, w); got.OverallImpression != nil {
		t.Errorf("overall_impression = %v, want none", *got.OverallImpression)
	}
}

func TestCompleteVisitRejectsUnknownImpression(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	token := env.key(t, buyer)
	v := scheduleVisit(t, env, token, testutil.House(t, env.db, buyer), env.clock.Now())
	expectStatus(t, env.do(t, "POST", fmt.Sprintf("/api/visits/%d/start", v.ID), token, nil), http.StatusOK)

	w := env.do(t, "POST", fmt.Sprintf("/api/visits/%d/complete", v.ID), token, map[string]any{
		"overall_impression": "ECSTATIC",
	})
	detail := expectError(t, w, http.StatusUnprocessableEntity, apperr.CodeValidation)
	if detail.Details["overall_impression"] == "" {
		t.Errorf("details = %v, want overall_impression", detail.Details)
	}
}

func TestCancelTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	token := env.key(t, buyer)
	v := scheduleVisit(t, env, token, testutil.House(t, env.db, buyer), env.clock.Now().Add(time.Hour))

	expectStatus(t, env.do(t, "POST", fmt.Sprintf("/api/visits/%d/cancel", v.ID), token, nil), http.StatusOK)

	w := env.do(t, "POST", fmt.Sprintf("/api/visits/%d/cancel", v.ID), token, nil)
	detail := expectError(t, w, http.StatusConflict, apperr.CodeInvalidTransition)
	if !strings.Contains(detail.Message, "CANCELLED") {
		t.Errorf("message %q should name CANCELLED", detail.Message)
	}
}

func TestScheduleVisitValidation(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)

	w := env.do(t, "POST", "/api/visits", env.key(t, buyer), map[string]any{
		"scheduled_at": env.clock.Now(),
	})
	detail := expectError(t, w, http.StatusUnprocessableEntity, apperr.CodeValidation)
	if detail.Details["house_id"] != "required" {
		t.Errorf("details = %v, want house_id required", detail.Details)
	}
}

func TestScheduleVisitForMissingHouse(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)

	w := env.do(t, "POST", "/api/visits", env.key(t, buyer), map[string]any{
		"house_id":     9999,
		"scheduled_at": env.clock.Now(),
	})
	expectError(t, w, http.StatusNotFound, apperr.CodeNotFound)
}

func TestVisitTransitionsAreOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.User(t, env.db, auth.RoleBuyer)
	other := testutil.User(t, env.db, auth.RoleBuyer)
	v := scheduleVisit(t, env, env.key(t, owner), testutil.House(t, env.db, owner), env.clock.Now())

	w := env.do(t, "POST", fmt.Sprintf("/api/visits/%d/start", v.ID), env.key(t, other), nil)
	expectError(t, w, http.StatusForbidden, apperr.CodeForbidden)
}

func TestAdminCanRemoveAnyVisit(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	v := scheduleVisit(t, env, env.key(t, buyer), testutil.House(t, env.db, buyer), env.clock.Now())

	w := env.do(t, "DELETE", fmt.Sprintf("/api/visits/%d", v.ID), env.key(t, env.admin(t)), nil)
	expectStatus(t, w, http.StatusOK)
}

func TestListVisits(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)
	other := testutil.User(t, env.db, auth.RoleBuyer)
	token := env.key(t, buyer)
	houseID := testutil.House(t, env.db, buyer)

	scheduleVisit(t, env, token, houseID, env.clock.Now().Add(-time.Hour))
	scheduleVisit(t, env, token, houseID, env.clock.Now().Add(time.Hour))
	scheduleVisit(t, env, env.key(t, other), houseID, env.clock.Now().Add(time.Hour))

	w := env.do(t, "GET", "/api/visits", token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[[]*visit.Visit](t, w); len(got) != 2 {
		t.Errorf("got %d visits, want 2", len(got))
	}

	w = env.do(t, "GET", "/api/visits?upcoming=true", token, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decodeAs[[]*visit.Visit](t, w); len(got) != 1 {
		t.Errorf("got %d upcoming visits, want 1", len(got))
	}

	w = env.do(t, "GET", "/api/visits?status=LOST", token, nil)
	expectError(t, w, http.StatusUnprocessableEntity, apperr.CodeValidation)
}

func TestListVisitsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	buyer := testutil.User(t, env.db, auth.RoleBuyer)

	w := env.do(t, "GET", "/api/visits", env.key(t, buyer), nil)
	expectStatus(t, w, http.StatusOK)
	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}
