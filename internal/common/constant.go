// Package common contains shared constants and sentinel errors used across
// campusgate components.
package common

const (
	// AuthorizationHeaderName carries the access token as "Bearer <token>".
	AuthorizationHeaderName = "Authorization"

	// RefreshTokenHeaderName carries the refresh token as "Bearer <token>"
	// when the cookie is not available.
	RefreshTokenHeaderName = "Refresh-Token"

	// RefreshTokenCookieName is the HttpOnly cookie holding the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// DeviceFingerprintHeaderName is an optional client-supplied device hint.
	DeviceFingerprintHeaderName = "X-Device-Fingerprint"

	// BearerPrefix precedes token values in the Authorization and Refresh-Token headers.
	BearerPrefix = "Bearer "

	// GRPCAuthorizationKey is the gRPC metadata key carrying the access token.
	GRPCAuthorizationKey = "authorization"
)
