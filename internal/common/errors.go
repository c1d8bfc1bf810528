// Package common defines shared constants and sentinel errors used across
// server and client layers of campusgate. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
	ErrSecurityRiskDetected = errors.New("security risk detected")
	ErrTokenRevoked         = errors.New("token revoked")

	// Identity errors.
	ErrUserNotFound = errors.New("user not found")
	ErrUserDisabled = errors.New("user disabled")

	// Transport errors.
	ErrTooManyRequests = errors.New("too many requests")
)
