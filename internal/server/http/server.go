// Package http exposes the token endpoints over HTTP/JSON and provides the
// authentication gate middleware for protected routes.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/dmitrijs2005/campusgate/internal/server/auth"
	"github.com/dmitrijs2005/campusgate/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// Tokens is the token lifecycle the handlers drive. *services.TokenService
// implements it.
type Tokens interface {
	Authenticator
	Login(ctx context.Context, userName, password string, meta services.RequestMeta) (*services.TokenPair, error)
	Refresh(ctx context.Context, presented string, meta services.RequestMeta) (*services.TokenPair, error)
	Revoke(ctx context.Context, accessToken string, subjectID int64, meta services.RequestMeta) error
	Logout(ctx context.Context, accessToken string, subjectID int64, meta services.RequestMeta) error
	Validate(ctx context.Context, accessToken string) (*services.Validation, error)
	Now() time.Time
}

// DefaultBypass lists routes served without an access token.
var DefaultBypass = []string{"/health", "/auth/login", "/token/refresh", "/token/validate", "/public/*"}

type Options struct {
	// Bypass overrides DefaultBypass when non-nil.
	Bypass       []string
	RefreshLimit rate.Limit
	RefreshBurst int
	CookieSecure bool
}

type Server struct {
	address      string
	tokens       Tokens
	logger       logging.Logger
	limiter      *ipLimiter
	bypass       []string
	cookieSecure bool
}

func NewServer(address string, tokens Tokens, opts Options, l logging.Logger) *Server {
	bypass := opts.Bypass
	if bypass == nil {
		bypass = DefaultBypass
	}
	return &Server{
		address:      address,
		tokens:       tokens,
		logger:       l.With("module", "http_server"),
		limiter:      newIPLimiter(opts.RefreshLimit, opts.RefreshBurst),
		bypass:       bypass,
		cookieSecure: opts.CookieSecure,
	}
}

// Handler builds the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Gate(s.tokens, s.logger, s.bypass...))

	r.Get("/health", s.health)

	r.Route("/auth", func(r chi.Router) {
		r.With(noStore).Post("/login", s.login)
		r.Post("/logout", s.logout)
	})

	r.Route("/token", func(r chi.Router) {
		r.Use(noStore)
		r.Get("/info", s.info)
		r.Post("/refresh", s.refresh)
		r.Post("/revoke", s.revoke)
		r.Post("/validate", s.validate)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

var _ Tokens = (*services.TokenService)(nil)
var _ Authenticator = (*services.TokenService)(nil)

// identity returns the gate's result for the request. Handlers mounted behind
// the gate can rely on it being present.
func identity(r *http.Request) (auth.Identity, *auth.Token, string, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, nil, "", false
	}
	tok, raw, ok := auth.TokenFromContext(r.Context())
	return id, tok, raw, ok
}
