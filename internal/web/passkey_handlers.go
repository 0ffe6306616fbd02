package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
)

const ceremonyTTL = 5 * time.Minute

// ceremony is an in-flight WebAuthn registration or login.
type ceremony struct {
	session *webauthn.SessionData
	userID  int64 // 0 for discoverable logins
	expires time.Time
}

// ceremonies keeps WebAuthn session data between begin and finish, keyed
// by a random ceremony ID handed to the browser.
type ceremonies struct {
	mu      sync.Mutex
	now     func() time.Time
	pending map[string]ceremony
}

func (c *ceremonies) put(session *webauthn.SessionData, userID int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, p := range c.pending {
		if now.After(p.expires) {
			delete(c.pending, id)
		}
	}
	id := uuid.NewString()
	c.pending[id] = ceremony{session: session, userID: userID, expires: now.Add(ceremonyTTL)}
	return id
}

// take removes and returns a live ceremony. Each ID works once.
func (c *ceremonies) take(id string) (ceremony, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	delete(c.pending, id)
	if !ok || c.now().After(p.expires) {
		return ceremony{}, false
	}
	return p, true
}

// passkeyHandlers holds WebAuthn-related HTTP handlers.
type passkeyHandlers struct {
	wan        *webauthn.WebAuthn
	passkeys   *auth.PasskeyStore
	sessions   *auth.SessionStore
	users      *auth.UserStore
	ceremonies *ceremonies
}

type beginResponse struct {
	CeremonyID string `json:"ceremony_id"`
	Options    any    `json:"options"`
}

func newPasskeyHandlers(baseURL string, passkeys *auth.PasskeyStore, sessions *auth.SessionStore, users *auth.UserStore) (*passkeyHandlers, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "HomeTrace",
		RPID:          parsed.Hostname(),
		RPOrigins:     []string{strings.TrimRight(baseURL, "/")},
	})
	if err != nil {
		return nil, err
	}

	return &passkeyHandlers{
		wan:        wan,
		passkeys:   passkeys,
		sessions:   sessions,
		users:      users,
		ceremonies: &ceremonies{now: time.Now, pending: make(map[string]ceremony)},
	}, nil
}

func (h *passkeyHandlers) passkeyUser(r *http.Request, userID int64) (*auth.PasskeyUser, error) {
	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	creds, err := h.passkeys.WebAuthnCredentials(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return auth.NewPasskeyUser(u, creds), nil
}

// handleBeginRegistration starts passkey registration for the session user.
func (h *passkeyHandlers) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	user, err := h.passkeyUser(r, p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Exclude existing credentials so the same authenticator is not registered twice.
	creds := user.WebAuthnCredentials()
	exclude := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		exclude[i] = c.Descriptor()
	}

	creation, session, err := h.wan.BeginRegistration(user, webauthn.WithExclusions(exclude))
	if err != nil {
		writeError(w, r, fmt.Errorf("beginning registration: %w", err))
		return
	}

	writeJSON(w, http.StatusOK, beginResponse{
		CeremonyID: h.ceremonies.put(session, p.UserID),
		Options:    creation,
	})
}

// handleFinishRegistration verifies the authenticator response and stores
// the credential under ?name=.
func (h *passkeyHandlers) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	c, ok := h.ceremonies.take(r.URL.Query().Get("ceremony"))
	if !ok || c.userID != p.UserID {
		writeError(w, r, apperr.Validation("no registration in progress"))
		return
	}

	user, err := h.passkeyUser(r, p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	credential, err := h.wan.FinishRegistration(user, *c.session, r)
	if err != nil {
		slog.WarnContext(r.Context(), "finishing registration", "err", err)
		writeError(w, r, apperr.Validation("passkey registration failed"))
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}
	if err := h.passkeys.Save(r.Context(), p.UserID, name, credential); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// handleBeginLogin starts a discoverable passkey login.
func (h *passkeyHandlers) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, session, err := h.wan.BeginDiscoverableLogin()
	if err != nil {
		writeError(w, r, fmt.Errorf("beginning passkey login: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, beginResponse{
		CeremonyID: h.ceremonies.put(session, 0),
		Options:    assertion,
	})
}

// handleFinishLogin verifies the assertion and starts a session for the
// user named by the credential's user handle.
func (h *passkeyHandlers) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := h.ceremonies.take(r.URL.Query().Get("ceremony"))
	if !ok {
		writeError(w, r, apperr.Validation("no login in progress"))
		return
	}

	var userID int64
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		id, err := auth.UserIDFromHandle(userHandle)
		if err != nil {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		user, err := h.passkeyUser(r, id)
		if err != nil {
			return nil, err
		}
		userID = id
		return user, nil
	}

	if _, _, err := h.wan.FinishPasskeyLogin(handler, *c.session, r); err != nil {
		slog.WarnContext(r.Context(), "finishing passkey login", "err", err)
		writeError(w, r, apperr.Unauthorized("passkey login failed"))
		return
	}

	if err := h.sessions.Create(r.Context(), w, userID); err != nil {
		writeError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "login success", "user_id", userID, "method", "passkey")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *passkeyHandlers) handleList(w http.ResponseWriter, r *http.Request) {
	creds, err := h.passkeys.ListByUser(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(creds))
}

func (h *passkeyHandlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.passkeys.Delete(r.Context(), principal(r).UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeRemoved(w, id)
}
