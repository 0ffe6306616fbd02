package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
)

// ErrRateLimited is reported when an address has too many failed API key attempts.
var ErrRateLimited = errors.New("too many failed attempts")

const (
	rateLimitWindow  = time.Minute
	rateLimitMaxFail = 10
)

// rateLimiter tracks failed API key attempts per client address.
type rateLimiter struct {
	mu       sync.Mutex
	now      func() time.Time
	failures map[string][]time.Time
}

func newRateLimiter(now func() time.Time) *rateLimiter {
	return &rateLimiter{now: now, failures: make(map[string][]time.Time)}
}

// prune drops attempts outside the window. Callers hold mu.
func (rl *rateLimiter) prune(addr string) []time.Time {
	cutoff := rl.now().Add(-rateLimitWindow)
	valid := rl.failures[addr][:0]
	for _, t := range rl.failures[addr] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(rl.failures, addr)
		return nil
	}
	rl.failures[addr] = valid
	return valid
}

func (rl *rateLimiter) blocked(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(addr)) >= rateLimitMaxFail
}

func (rl *rateLimiter) fail(addr string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.failures[addr] = append(rl.prune(addr), rl.now())
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator resolves requests to principals from a Bearer API key or a
// session cookie.
type Authenticator struct {
	sessions *SessionStore
	apiKeys  *APIKeyStore
	limiter  *rateLimiter
	onError  ErrorWriter
}

// NewAuthenticator creates an Authenticator. onError renders 401 and 429 responses.
func NewAuthenticator(sessions *SessionStore, apiKeys *APIKeyStore, onError ErrorWriter) *Authenticator {
	return &Authenticator{
		sessions: sessions,
		apiKeys:  apiKeys,
		limiter:  newRateLimiter(time.Now),
		onError:  onError,
	}
}

// Resolve returns the principal for r. A Bearer header takes precedence
// over the session cookie.
func (a *Authenticator) Resolve(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		p, err := a.sessions.Validate(r)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				return Principal{}, apperr.Unauthorized("authentication required")
			}
			return Principal{}, err
		}
		return p, nil
	}

	key, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || key == "" {
		return Principal{}, apperr.Unauthorized("authorization header must be a Bearer token")
	}

	addr := clientAddr(r)
	if a.limiter.blocked(addr) {
		return Principal{}, ErrRateLimited
	}

	p, ok, err := a.apiKeys.Validate(r.Context(), key)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		a.limiter.fail(addr)
		slog.Warn("invalid api key", "addr", addr)
		return Principal{}, apperr.Unauthorized("invalid API key")
	}
	return p, nil
}

// Require rejects requests without a principal and stores it in the
// request context otherwise.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Resolve(r)
		if err != nil {
			a.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireSession is Require restricted to cookie sessions. API key
// management uses it so a leaked key cannot mint more keys.
func (a *Authenticator) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.sessions.Validate(r)
		if err != nil {
			if errors.Is(err, ErrNoSession) {
				err = apperr.Unauthorized("session required")
			}
			a.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
