// Package services contains server-side business logic. This file implements
// TokenService, which owns the token lifecycle: login, refresh rotation with
// theft detection, revocation and the per-request authentication check.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/cryptox"
	"github.com/dmitrijs2005/campusgate/internal/dbx"
	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/dmitrijs2005/campusgate/internal/server/audit"
	"github.com/dmitrijs2005/campusgate/internal/server/auth"
	"github.com/dmitrijs2005/campusgate/internal/server/config"
	"github.com/dmitrijs2005/campusgate/internal/server/models"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/repomanager"
)

// RequestMeta describes the client a token operation comes from.
type RequestMeta struct {
	UserAgent   string
	IPAddress   string
	Fingerprint string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Validation is the outcome of checking an access token without the gate.
type Validation struct {
	Valid            bool
	ExpiresAt        time.Time
	SecondsRemaining int64
	Message          string
}

type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	codec                        *auth.Codec
	events                       audit.Sink
	logger                       logging.Logger
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewTokenService constructs a TokenService. events may be nil.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, cfg *config.Config,
	events audit.Sink, logger logging.Logger) *TokenService {
	if events == nil {
		events = audit.Tee{}
	}
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		codec:                        codec,
		events:                       events,
		logger:                       logger.With("module", "tokens"),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Login verifies credentials and stores a fresh refresh token for the user,
// replacing any previous one.
func (s *TokenService) Login(ctx context.Context, userName, password string, meta RequestMeta) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	ok, err := cryptox.VerifyPassword(user.PasswordHash, []byte(password))
	if err != nil {
		s.logger.Error(ctx, "stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	if !user.Enabled {
		return nil, common.ErrUserDisabled
	}

	refreshTok, refresh, err := s.codec.IssueRefresh(user.ID, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	accessTok, access, err := s.codec.Issue(user.ID, user.Role, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	record := newRecord(user.ID, refresh, refreshTok.ExpiresAt, meta)
	if err := s.repomanager.RefreshTokens(s.db).Upsert(ctx, record); err != nil {
		s.logger.Error(ctx, "storing refresh token failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	s.record(ctx, audit.EventLogin, user.ID, accessTok.ID, meta)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessTok.ExpiresAt,
		RefreshExpiresAt: refreshTok.ExpiresAt,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented
// refresh token is single-use: on success it is replaced by a new value.
//
// A request that does not look like it comes from the device the token was
// last used on is treated as theft. All refresh tokens of the subject are
// deleted before common.ErrSecurityRiskDetected is returned.
func (s *TokenService) Refresh(ctx context.Context, presented string, meta RequestMeta) (*TokenPair, error) {
	tok, err := s.codec.DecodeRefresh(presented)
	if err != nil {
		return nil, common.ErrInvalidRefreshToken
	}

	repo := s.repomanager.RefreshTokens(s.db)
	record, err := repo.FindByUser(ctx, tok.SubjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("refresh token lookup: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(record.Token), []byte(presented)) != 1 {
		return nil, common.ErrInvalidRefreshToken
	}
	if record.Expired(s.codec.Now()) {
		return nil, common.ErrInvalidRefreshToken
	}

	stored := auth.DeviceInfo{UserAgent: record.UserAgent, IPAddress: record.IPAddress, DeviceClass: record.DeviceClass}
	if !auth.SameDevice(stored, meta.UserAgent, meta.IPAddress) {
		if _, err := repo.DeleteByUser(ctx, tok.SubjectID); err != nil {
			return nil, fmt.Errorf("invalidating refresh tokens after theft: %w", err)
		}
		s.logger.Warn(ctx, "refresh token used from a different device",
			"user_id", tok.SubjectID, "stored_class", record.DeviceClass, "class", auth.DeviceClass(meta.UserAgent))
		s.record(ctx, audit.EventTheftDetected, tok.SubjectID, tok.ID, meta)
		return nil, common.ErrSecurityRiskDetected
	}

	id, err := s.LoadIdentity(ctx, tok.SubjectID)
	if err != nil {
		return nil, err
	}
	role := ""
	if roles := id.Roles(); len(roles) > 0 {
		role = roles[0]
	}

	nextTok, next, err := s.codec.IssueRefresh(tok.SubjectID, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	err = dbx.WithSerializableTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		replaced, err := s.repomanager.RefreshTokens(tx).Rotate(ctx, tok.SubjectID, presented,
			newRecord(tok.SubjectID, next, nextTok.ExpiresAt, meta))
		if err != nil {
			return err
		}
		if !replaced {
			return common.ErrInvalidRefreshToken
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) {
			return nil, err
		}
		return nil, fmt.Errorf("rotating refresh token: %w", err)
	}

	accessTok, access, err := s.codec.Issue(tok.SubjectID, role, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.record(ctx, audit.EventRefresh, tok.SubjectID, accessTok.ID, meta)
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     next,
		AccessExpiresAt:  accessTok.ExpiresAt,
		RefreshExpiresAt: nextTok.ExpiresAt,
	}, nil
}

// Revoke blacklists accessToken until its own expiry. Tokens that do not
// decode, belong to another subject or are already revoked are ignored.
func (s *TokenService) Revoke(ctx context.Context, accessToken string, subjectID int64, meta RequestMeta) error {
	tok, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil
	}
	if tok.SubjectID != subjectID {
		s.logger.Warn(ctx, "refusing to revoke a token of another subject", "user_id", subjectID, "owner_id", tok.SubjectID)
		return nil
	}

	bl := s.repomanager.Blacklist(s.db)
	revoked, err := bl.Exists(ctx, tok.ID)
	if err != nil {
		return fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return nil
	}

	added, err := bl.Add(ctx, &models.BlacklistEntry{
		TokenID:     tok.ID,
		ExpiresAt:   tok.ExpiresAt,
		TokenType:   models.BlacklistTokenTypeAccess,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		DeviceClass: deviceClass(meta.UserAgent),
	})
	if err != nil {
		return fmt.Errorf("blacklist insert: %w", err)
	}
	if added {
		s.logger.Info(ctx, "access token revoked", "user_id", subjectID, "jti", tok.ID)
		s.record(ctx, audit.EventTokenRevoked, subjectID, tok.ID, meta)
	}
	return nil
}

// InvalidateAllTokensForSubject deletes the subject's refresh tokens, forcing
// a new login. Access tokens already issued stay valid until they expire.
func (s *TokenService) InvalidateAllTokensForSubject(ctx context.Context, subjectID int64) error {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, subjectID)
	if err != nil {
		return fmt.Errorf("deleting refresh tokens: %w", err)
	}
	s.logger.Info(ctx, "refresh tokens invalidated", "user_id", subjectID, "count", n)
	return nil
}

// Logout revokes the presented access token and every refresh token of the
// subject.
func (s *TokenService) Logout(ctx context.Context, accessToken string, subjectID int64, meta RequestMeta) error {
	if err := s.Revoke(ctx, accessToken, subjectID, meta); err != nil {
		return err
	}
	if err := s.InvalidateAllTokensForSubject(ctx, subjectID); err != nil {
		return err
	}
	s.record(ctx, audit.EventLogout, subjectID, "", meta)
	return nil
}

// Authenticate is the check behind every protected request: the token must
// decode as an access token, must not be revoked, and must name an enabled
// user. Store failures are returned as errors, never as "not revoked".
func (s *TokenService) Authenticate(ctx context.Context, accessToken string) (auth.Identity, *auth.Token, error) {
	if accessToken == "" {
		return nil, nil, common.ErrorUnauthorized
	}
	tok, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, nil, err
	}

	revoked, err := s.repomanager.Blacklist(s.db).Exists(ctx, tok.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return nil, nil, common.ErrTokenRevoked
	}

	id, err := s.LoadIdentity(ctx, tok.SubjectID)
	if err != nil {
		return nil, nil, err
	}
	return id, tok, nil
}

// Validate reports whether accessToken is currently usable, applying the
// same checks as the gate. Only store failures are returned as errors.
func (s *TokenService) Validate(ctx context.Context, accessToken string) (*Validation, error) {
	tok, err := s.codec.Decode(accessToken)
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return &Validation{Message: "Token has expired"}, nil
	case err != nil:
		return &Validation{Message: "Token is invalid"}, nil
	}

	revoked, err := s.repomanager.Blacklist(s.db).Exists(ctx, tok.ID)
	if err != nil {
		return nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return &Validation{Message: "Token has been revoked"}, nil
	}

	if _, err := s.LoadIdentity(ctx, tok.SubjectID); err != nil {
		if errors.Is(err, common.ErrUserNotFound) || errors.Is(err, common.ErrUserDisabled) {
			return &Validation{Message: "Token is invalid"}, nil
		}
		return nil, err
	}

	return &Validation{
		Valid:            true,
		ExpiresAt:        tok.ExpiresAt,
		SecondsRemaining: tok.SecondsRemaining(s.codec.Now()),
		Message:          "Token is valid",
	}, nil
}

// LoadIdentity resolves a subject id to an enabled principal.
func (s *TokenService) LoadIdentity(ctx context.Context, subjectID int64) (auth.Identity, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	if !user.Enabled {
		return nil, common.ErrUserDisabled
	}
	return &auth.Principal{UserID: user.ID, Username: user.UserName, Role: user.Role, Enabled: user.Enabled}, nil
}

// Now is the codec clock, exposed so handlers report times consistently.
func (s *TokenService) Now() time.Time { return s.codec.Now() }

// --- helpers below ---

func (s *TokenService) record(ctx context.Context, typ audit.EventType, userID int64, tokenID string, meta RequestMeta) {
	err := s.events.Record(ctx, audit.Event{
		Type:        typ,
		UserID:      userID,
		TokenID:     tokenID,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		DeviceClass: deviceClass(meta.UserAgent),
		Fingerprint: meta.Fingerprint,
		At:          s.codec.Now(),
	})
	if err != nil {
		s.logger.Warn(ctx, "recording security event failed", "event", string(typ), "error", err)
	}
}

func newRecord(userID int64, token string, expires time.Time, meta RequestMeta) *models.RefreshToken {
	return &models.RefreshToken{
		UserID:      userID,
		Token:       token,
		Expires:     expires,
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		DeviceClass: deviceClass(meta.UserAgent),
	}
}

func deviceClass(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	return auth.DeviceClass(userAgent)
}
