package auth

import "context"

// Identity is what the authentication gate attaches to a request. It hides
// the shape of the user entity from everything downstream.
type Identity interface {
	ID() int64
	Roles() []string
	IsEnabled() bool
}

// Principal is the one concrete Identity, loaded from the users table.
type Principal struct {
	UserID   int64
	Username string
	Role     string
	Enabled  bool
}

func (p *Principal) ID() int64       { return p.UserID }
func (p *Principal) IsEnabled() bool { return p.Enabled }

func (p *Principal) Roles() []string {
	if p.Role == "" {
		return nil
	}
	return []string{p.Role}
}

type ctxKey string

const (
	identityKey ctxKey = "identity"
	tokenKey    ctxKey = "access_token"
)

// ContextWithIdentity attaches id and the verified token it was derived from.
func ContextWithIdentity(ctx context.Context, id Identity, tok *Token, raw string) context.Context {
	ctx = context.WithValue(ctx, identityKey, id)
	return context.WithValue(ctx, tokenKey, &verifiedToken{token: tok, raw: raw})
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id != nil
}

// TokenFromContext returns the verified access token and its raw form.
func TokenFromContext(ctx context.Context) (*Token, string, bool) {
	v, ok := ctx.Value(tokenKey).(*verifiedToken)
	if !ok || v == nil {
		return nil, "", false
	}
	return v.token, v.raw, true
}

type verifiedToken struct {
	token *Token
	raw   string
}
