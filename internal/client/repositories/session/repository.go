// Package session persists the CLI's token pair between runs.
package session

import (
	"context"
	"time"
)

// Session is the single locally stored login.
type Session struct {
	Username     string
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

// Repository stores at most one Session. Load returns common.ErrorNotFound
// when nobody is logged in.
type Repository interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	ClearAccessToken(ctx context.Context) error
	Clear(ctx context.Context) error
}
