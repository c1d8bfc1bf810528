// Package services contains application services for the campusgate CLI.
// SessionService keeps the local token pair in step with the server:
// login stores it, refresh rotates it, revoke and logout retire it.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/client/client"
	"github.com/dmitrijs2005/campusgate/internal/client/repositories/session"
	"github.com/dmitrijs2005/campusgate/internal/common"
)

// SessionService defines the token operations the CLI exposes.
//
// Info retries once through Refresh when the server rejects the access
// token. A refresh rejected as theft or as invalid clears the local session.
type SessionService interface {
	Login(ctx context.Context, username string, password []byte) error
	Refresh(ctx context.Context) error
	Info(ctx context.Context) (*client.TokenInfo, error)
	Validate(ctx context.Context) (*client.Validation, error)
	Revoke(ctx context.Context) error
	Logout(ctx context.Context) error
	Current(ctx context.Context) (*session.Session, error)
	Ping(ctx context.Context) error
}

type sessionService struct {
	client client.Client
	db     *sql.DB
	now    func() time.Time
}

func NewSessionService(c client.Client, db *sql.DB) SessionService {
	return &sessionService{client: c, db: db, now: time.Now}
}

func (s *sessionService) repo() session.Repository {
	return session.NewSQLiteRepository(s.db)
}

func (s *sessionService) Login(ctx context.Context, username string, password []byte) error {
	pair, err := s.client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	return s.repo().Save(ctx, &session.Session{
		Username:     username,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UpdatedAt:    s.now(),
	})
}

// Current returns the stored session or client.ErrNoSession.
func (s *sessionService) Current(ctx context.Context) (*session.Session, error) {
	cur, err := s.repo().Load(ctx)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, client.ErrNoSession
	}
	return cur, err
}

func (s *sessionService) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx)
	return err
}

func (s *sessionService) refresh(ctx context.Context) (*session.Session, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	pair, err := s.client.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, client.ErrSecurityRisk) || errors.Is(err, client.ErrUnauthorized) {
			if clearErr := s.repo().Clear(ctx); clearErr != nil {
				return nil, errors.Join(err, clearErr)
			}
		}
		return nil, fmt.Errorf("refresh error: %w", err)
	}

	cur.AccessToken = pair.AccessToken
	cur.RefreshToken = pair.RefreshToken
	cur.UpdatedAt = s.now()
	if err := s.repo().Save(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

// accessToken returns a usable access token, rotating first when the
// stored one was dropped by Revoke.
func (s *sessionService) accessToken(ctx context.Context) (string, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if cur.AccessToken != "" {
		return cur.AccessToken, nil
	}
	cur, err = s.refresh(ctx)
	if err != nil {
		return "", err
	}
	return cur.AccessToken, nil
}

func (s *sessionService) Info(ctx context.Context) (*client.TokenInfo, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	info, err := s.client.Info(ctx, token)
	if !errors.Is(err, client.ErrUnauthorized) {
		return info, err
	}

	cur, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Info(ctx, cur.AccessToken)
}

func (s *sessionService) Validate(ctx context.Context) (*client.Validation, error) {
	cur, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	if cur.AccessToken == "" {
		return &client.Validation{Valid: false, Message: "No access token stored"}, nil
	}
	return s.client.Validate(ctx, cur.AccessToken)
}

// Revoke kills the current access token on the server and drops it locally.
// The refresh token survives, so the next call rotates a fresh pair.
func (s *sessionService) Revoke(ctx context.Context) error {
	cur, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if cur.AccessToken != "" {
		if err := s.client.Revoke(ctx, cur.AccessToken); err != nil && !errors.Is(err, client.ErrUnauthorized) {
			return fmt.Errorf("revoke error: %w", err)
		}
	}
	return s.repo().ClearAccessToken(ctx)
}

// Logout tells the server when it can and always forgets the local session.
func (s *sessionService) Logout(ctx context.Context) error {
	cur, err := s.Current(ctx)
	if errors.Is(err, client.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}

	var remoteErr error
	if cur.AccessToken != "" {
		remoteErr = s.client.Logout(ctx, cur.AccessToken)
		if errors.Is(remoteErr, client.ErrUnauthorized) {
			remoteErr = nil
		}
	}
	if err := s.repo().Clear(ctx); err != nil {
		return err
	}
	if remoteErr != nil {
		return fmt.Errorf("logged out locally, server logout failed: %w", remoteErr)
	}
	return nil
}

func (s *sessionService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
