// Package auth implements the stateless half of session security: the signed
// token codec, the device heuristic used by refresh, and the authenticated
// identity attached to requests.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens signed by the
// same key. A token is only accepted where its type is expected.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Decode errors. They wrap the common sentinels so callers may match either
// the specific kind or the generic class.
var (
	ErrInvalidSignature = fmt.Errorf("%w: signature is invalid", common.ErrInvalidToken)
	ErrMalformed        = fmt.Errorf("%w: malformed", common.ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w", common.ErrTokenExpired)
)

// Claims is the signed claim set: {sub, role, jti, iat, exp, typ}.
type Claims struct {
	jwt.RegisteredClaims
	Role string    `json:"role,omitempty"`
	Type TokenType `json:"typ"`
}

// Token is a decoded, verified token.
type Token struct {
	ID        string
	SubjectID int64
	Role      string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SecondsRemaining returns whole seconds until expiry relative to now,
// never negative.
func (t *Token) SecondsRemaining(now time.Time) int64 {
	left := t.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// Codec signs and verifies HS256 tokens with a process-wide secret that is
// injected once and never mutated.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock overrides the time source. Tests use it to move time.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec returns a Codec that signs with secret.
func NewCodec(secret []byte, opts ...CodecOption) *Codec {
	key := make([]byte, len(secret))
	copy(key, secret)
	c := &Codec{secret: key, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Now returns the codec's notion of the current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Issue mints an access token for subjectID valid for ttl.
// A non-positive ttl yields a token that is already expired.
func (c *Codec) Issue(subjectID int64, role string, ttl time.Duration) (*Token, string, error) {
	return c.issue(subjectID, role, TokenTypeAccess, ttl)
}

// IssueRefresh mints a refresh token for subjectID valid for ttl.
func (c *Codec) IssueRefresh(subjectID int64, ttl time.Duration) (*Token, string, error) {
	return c.issue(subjectID, "", TokenTypeRefresh, ttl)
}

func (c *Codec) issue(subjectID int64, role string, typ TokenType, ttl time.Duration) (*Token, string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
		Type: typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, "", err
	}

	return claimsToToken(&claims, subjectID), signed, nil
}

// Decode verifies an access token: signature first, then expiry.
func (c *Codec) Decode(tokenString string) (*Token, error) {
	return c.decode(tokenString, TokenTypeAccess)
}

// DecodeRefresh verifies a refresh token the same way Decode does.
func (c *Codec) DecodeRefresh(tokenString string) (*Token, error) {
	return c.decode(tokenString, TokenTypeRefresh)
}

// JTI returns the unique id of a valid access token.
func (c *Codec) JTI(tokenString string) (string, error) {
	t, err := c.Decode(tokenString)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// Expiry returns the expiry of a valid access token.
func (c *Codec) Expiry(tokenString string) (time.Time, error) {
	t, err := c.Decode(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	return t.ExpiresAt, nil
}

// SubjectID returns the subject of a valid access token.
func (c *Codec) SubjectID(tokenString string) (int64, error) {
	t, err := c.Decode(tokenString)
	if err != nil {
		return 0, err
	}
	return t.SubjectID, nil
}

func (c *Codec) decode(tokenString string, want TokenType) (*Token, error) {
	if tokenString == "" {
		return nil, ErrMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classify(tokenString, err)
	}

	if claims.Type != want {
		return nil, ErrMalformed
	}

	subjectID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || claims.ID == "" {
		return nil, ErrMalformed
	}

	return claimsToToken(claims, subjectID), nil
}

// classify maps parser failures onto the codec's three kinds. A token whose
// header and claims decode but whose signature segment does not is a tamper,
// not a malformed token.
func classify(tokenString string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		if _, _, uerr := jwt.NewParser().ParseUnverified(tokenString, &Claims{}); uerr == nil {
			return ErrInvalidSignature
		}
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

func claimsToToken(claims *Claims, subjectID int64) *Token {
	t := &Token{
		ID:        claims.ID,
		SubjectID: subjectID,
		Role:      claims.Role,
		Type:      claims.Type,
	}
	if claims.IssuedAt != nil {
		t.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		t.ExpiresAt = claims.ExpiresAt.Time
	}
	return t
}
