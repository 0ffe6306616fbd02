package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
)

// loginSentMessage is returned whether or not the email is known, so the
// endpoint does not reveal which addresses have accounts.
const loginSentMessage = "If that email is registered, a login link has been sent. Check your inbox."

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type linkSender func(ctx context.Context, to, token string) (string, error)

// handleLogin mails a browser login link.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.sendLoginLink(w, r, s.mailer.SendMagicLink)
}

// handleCLILogin mails a link that ends with an API key for the CLI.
func (s *Server) handleCLILogin(w http.ResponseWriter, r *http.Request) {
	s.sendLoginLink(w, r, s.mailer.SendCLIMagicLink)
}

func (s *Server) sendLoginLink(w http.ResponseWriter, r *http.Request, send linkSender) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if s.users.IsAuthorized(ctx, req.Email) {
		token, err := s.tokens.Create(ctx, req.Email)
		if err != nil {
			slog.ErrorContext(ctx, "creating login token", "err", err)
		} else if _, err := send(ctx, req.Email, token); err != nil {
			slog.ErrorContext(ctx, "sending login link", "err", err)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"message": loginSentMessage})
}

// redeem turns a magic link token into the user it was issued for.
func (s *Server) redeem(r *http.Request) (*auth.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, apperr.ValidationFields(map[string]string{"token": "required"})
	}

	email, err := s.tokens.Redeem(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, apperr.Unauthorized("invalid or expired login link")
		}
		return nil, err
	}

	u, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil, apperr.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	return u, nil
}

// handleVerify redeems a login link and starts a browser session.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	u, err := s.redeem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sessions.Create(r.Context(), w, u.ID); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "login success", "user_id", u.ID, "method", "magic_link")
	writeJSON(w, http.StatusOK, u)
}

// handleCLIVerify redeems a CLI login link and shows a new API key as
// plain text for pasting into `ht login`.
func (s *Server) handleCLIVerify(w http.ResponseWriter, r *http.Request) {
	u, err := s.redeem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	raw, _, err := s.apiKeys.Create(r.Context(), u.ID, "CLI")
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "login success", "user_id", u.ID, "method", "cli")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := fmt.Fprintf(w, "Your HomeTrace API key:\n\n%s\n\nRun: ht login --key %s\n", raw, raw); err != nil {
		slog.Error("writing api key", "err", err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		slog.ErrorContext(r.Context(), "destroying session", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
