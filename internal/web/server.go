// Package web provides the HomeTrace HTTP API.
package web

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/connection"
	"github.com/evcraddock/hometrace/internal/db"
	"github.com/evcraddock/hometrace/internal/email"
	"github.com/evcraddock/hometrace/internal/house"
	"github.com/evcraddock/hometrace/internal/housekeeping"
	"github.com/evcraddock/hometrace/internal/logging"
	"github.com/evcraddock/hometrace/internal/notify"
	"github.com/evcraddock/hometrace/internal/suggestion"
	"github.com/evcraddock/hometrace/internal/tour"
	"github.com/evcraddock/hometrace/internal/visit"
)

// Config holds the settings the server needs at construction.
type Config struct {
	BaseURL    string
	AdminEmail string
	DevMode    bool
}

// Options are optional collaborators. Zero values get working defaults.
type Options struct {
	Sender     email.Sender
	Lookup     house.Lookuper
	Dispatcher *notify.Dispatcher
	Now        func() time.Time
}

// Server is the HomeTrace HTTP server.
type Server struct {
	cfg Config
	now func() time.Time

	users    *auth.UserStore
	sessions *auth.SessionStore
	tokens   *auth.TokenStore
	apiKeys  *auth.APIKeyStore
	passkeys *auth.PasskeyStore
	mailer   *auth.Mailer
	auth     *auth.Authenticator

	houses         *house.Service
	conns          *connection.Store
	visits         *visit.Service
	suggestionRepo *suggestion.Repository
	suggestions    *suggestion.Service
	tours          *tour.Service

	dispatcher *notify.Dispatcher
	webauthn   *passkeyHandlers

	mux     *http.ServeMux
	handler http.Handler
}

// NewServer wires stores, services and routes over the database.
func NewServer(d *sql.DB, cfg Config, opts Options) (*Server, error) {
	if opts.Sender == nil {
		opts.Sender = email.LogSender{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = notify.NewDispatcher(notify.DefaultTimeout)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		cfg:        cfg,
		now:        opts.Now,
		users:      auth.NewUserStore(d, cfg.AdminEmail),
		sessions:   auth.NewSessionStore(d),
		tokens:     auth.NewTokenStore(d),
		apiKeys:    auth.NewAPIKeyStore(d),
		passkeys:   auth.NewPasskeyStore(d),
		mailer:     auth.NewMailer(opts.Sender, cfg.BaseURL),
		conns:      connection.NewStore(d),
		dispatcher: opts.Dispatcher,
		mux:        http.NewServeMux(),
	}
	s.auth = auth.NewAuthenticator(s.sessions, s.apiKeys, writeError)

	tx := db.NewTxManager(d)
	houseRepo := house.NewRepository(d)
	visitRepo := visit.NewRepository(d)
	s.suggestionRepo = suggestion.NewRepository(d)

	s.houses = house.NewService(houseRepo, opts.Lookup)
	s.visits = visit.NewService(visitRepo, houseRepo, s.conns).WithClock(opts.Now)
	emailer := notify.NewEmailer(opts.Dispatcher, opts.Sender, s.users, houseRepo, cfg.BaseURL)
	s.suggestions = suggestion.NewService(tx, s.suggestionRepo, visitRepo, houseRepo, s.conns, emailer).WithClock(opts.Now)
	s.tours = tour.NewService(tx, tour.NewRepository(d), houseRepo, visitRepo, s.conns).WithClock(opts.Now)

	pk, err := newPasskeyHandlers(cfg.BaseURL, s.passkeys, s.sessions, s.users)
	if err != nil {
		return nil, fmt.Errorf("configuring passkeys: %w", err)
	}
	s.webauthn = pk

	s.routes()
	s.handler = logging.RequestLogger(s.mux)
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Login flows.
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /auth/verify", s.handleVerify)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)
	s.mux.HandleFunc("POST /cli/auth/login", s.handleCLILogin)
	s.mux.HandleFunc("GET /cli/auth/verify", s.handleCLIVerify)
	s.mux.HandleFunc("POST /auth/passkey/login/begin", s.webauthn.handleBeginLogin)
	s.mux.HandleFunc("POST /auth/passkey/login/finish", s.webauthn.handleFinishLogin)
	s.session("POST /auth/passkey/register/begin", s.webauthn.handleBeginRegistration)
	s.session("POST /auth/passkey/register/finish", s.webauthn.handleFinishRegistration)
	s.session("GET /api/passkeys", s.webauthn.handleList)
	s.session("DELETE /api/passkeys/{id}", s.webauthn.handleDelete)

	// API keys can only be managed from a browser session.
	s.session("GET /api/keys", s.handleListKeys)
	s.session("POST /api/keys", s.handleCreateKey)
	s.session("DELETE /api/keys/{id}", s.handleDeleteKey)

	s.api("GET /api/me", s.handleMe)
	s.api("GET /api/dashboard", s.handleDashboard)

	s.api("GET /api/users", s.handleListUsers)
	s.api("POST /api/users", s.handleAddUser)
	s.api("DELETE /api/users/{id}", s.handleDeleteUser)

	s.api("GET /api/houses", s.handleListHouses)
	s.api("POST /api/houses", s.handleAddHouse)
	s.api("GET /api/houses/{id}", s.handleGetHouse)
	s.api("DELETE /api/houses/{id}", s.handleRemoveHouse)

	s.api("GET /api/connections", s.handleListConnections)
	s.api("POST /api/connections", s.handleCreateConnection)
	s.api("DELETE /api/connections/{id}", s.handleRemoveConnection)

	s.api("POST /api/visits", s.handleScheduleVisit)
	s.api("GET /api/visits", s.handleListVisits)
	s.api("GET /api/visits/{id}", s.handleGetVisit)
	s.api("POST /api/visits/{id}/start", s.handleStartVisit)
	s.api("POST /api/visits/{id}/complete", s.handleCompleteVisit)
	s.api("POST /api/visits/{id}/cancel", s.handleCancelVisit)
	s.api("DELETE /api/visits/{id}", s.handleRemoveVisit)

	s.api("POST /api/visits/suggestions", s.handleSuggest)
	s.api("GET /api/visits/suggestions", s.handleListSuggestions)
	s.api("GET /api/visits/suggestions/{id}", s.handleGetSuggestion)
	s.api("POST /api/visits/suggestions/{id}/accept", s.handleAcceptSuggestion)
	s.api("POST /api/visits/suggestions/{id}/reject", s.handleRejectSuggestion)
	s.api("DELETE /api/visits/suggestions/{id}", s.handleWithdrawSuggestion)

	s.api("POST /api/tours", s.handleCreateTour)
	s.api("GET /api/tours", s.handleListTours)
	s.api("GET /api/tours/{id}", s.handleGetTour)
	s.api("PATCH /api/tours/{id}", s.handleUpdateTourStatus)
	s.api("DELETE /api/tours/{id}", s.handleRemoveTour)
	s.api("POST /api/tours/{id}/stops", s.handleAddStop)
	s.api("DELETE /api/tours/{id}/stops", s.handleRemoveStop)
	s.api("POST /api/tours/stops/{stopId}/visit", s.handleLinkStop)
}

// api registers a handler that requires a session or API key.
func (s *Server) api(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.auth.Require(h))
}

// session registers a handler that requires a browser session.
func (s *Server) session(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, s.auth.RequireSession(h))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// EnsureAdmin creates the configured admin user if it is missing.
func (s *Server) EnsureAdmin(ctx context.Context) error {
	return s.users.EnsureAdmin(ctx)
}

// HousekeepingTasks returns the periodic cleanup steps for this server's
// stores.
func (s *Server) HousekeepingTasks() []housekeeping.Task {
	return []housekeeping.Task{
		{Name: "expire suggestions", Run: s.suggestionRepo.ExpireDue},
		{Name: "purge sessions", Run: func(ctx context.Context, _ time.Time) (int64, error) {
			return s.sessions.Cleanup(ctx)
		}},
		{Name: "purge login tokens", Run: func(ctx context.Context, _ time.Time) (int64, error) {
			return s.tokens.Cleanup(ctx)
		}},
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
