package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evcraddock/hometrace/internal/apperr"
)

type authFixture struct {
	authn    *Authenticator
	sessions *SessionStore
	apiKeys  *APIKeyStore
	user     *User
	lastErr  error
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	d := openTestDB(t)
	f := &authFixture{
		sessions: NewSessionStore(d),
		apiKeys:  NewAPIKeyStore(d),
		user:     mustAddUser(t, NewUserStore(d, ""), "buyer@example.com", RoleBuyer),
	}
	f.authn = NewAuthenticator(f.sessions, f.apiKeys, func(w http.ResponseWriter, r *http.Request, err error) {
		f.lastErr = err
		status := apperr.StatusFor(apperr.CodeOf(err))
		if errors.Is(err, ErrRateLimited) {
			status = http.StatusTooManyRequests
		}
		w.WriteHeader(status)
	})
	return f
}

func principalEcho(t *testing.T, want int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			t.Error("no principal in context")
		}
		if p.UserID != want {
			t.Errorf("principal user = %d, want %d", p.UserID, want)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRejectsAnonymous(t *testing.T) {
	f := newAuthFixture(t)
	h := f.authn.Require(principalEcho(t, 0))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/visits", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if apperr.CodeOf(f.lastErr) != apperr.CodeUnauthorized {
		t.Errorf("err = %v, want UNAUTHORIZED", f.lastErr)
	}
}

func TestRequireAcceptsBearerKey(t *testing.T) {
	f := newAuthFixture(t)
	raw, _, err := f.apiKeys.Create(context.Background(), f.user.ID, "CLI")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	f.authn.Require(principalEcho(t, f.user.ID)).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireAcceptsSessionCookie(t *testing.T) {
	f := newAuthFixture(t)
	rec := httptest.NewRecorder()
	if err := f.sessions.Create(context.Background(), rec, f.user.ID); err != nil {
		t.Fatalf("create session: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
	r.AddCookie(sessionCookie(t, rec))
	w := httptest.NewRecorder()
	f.authn.Require(principalEcho(t, f.user.ID)).ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRequireMalformedHeader(t *testing.T) {
	f := newAuthFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
	r.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	f.authn.Require(principalEcho(t, 0)).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRequireRateLimitsFailures(t *testing.T) {
	f := newAuthFixture(t)
	raw, _, err := f.apiKeys.Create(context.Background(), f.user.ID, "CLI")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	h := f.authn.Require(principalEcho(t, f.user.ID))

	do := func(key string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/visits", nil)
		r.RemoteAddr = "10.0.0.9:5555"
		r.Header.Set("Authorization", "Bearer "+key)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	// Successful requests do not count toward the limit.
	for i := 0; i < rateLimitMaxFail+5; i++ {
		if code := do(raw); code != http.StatusOK {
			t.Fatalf("valid request %d: status %d", i, code)
		}
	}

	for i := 0; i < rateLimitMaxFail; i++ {
		if code := do("ht_wrong"); code != http.StatusUnauthorized {
			t.Fatalf("failure %d: status %d, want 401", i, code)
		}
	}
	if code := do(raw); code != http.StatusTooManyRequests {
		t.Errorf("after %d failures: status %d, want 429", rateLimitMaxFail, code)
	}
}

func TestRequireSessionIgnoresBearer(t *testing.T) {
	f := newAuthFixture(t)
	raw, _, err := f.apiKeys.Create(context.Background(), f.user.ID, "CLI")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/keys", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	f.authn.RequireSession(principalEcho(t, f.user.ID)).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
