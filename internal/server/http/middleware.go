package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/dmitrijs2005/campusgate/internal/server/auth"
)

// Authenticator checks an access token and resolves its subject.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Identity, *auth.Token, error)
}

// Gate rejects requests without a valid, unrevoked access token for an
// enabled user, except on bypassed routes. A pattern ending in "/*" matches
// the prefix; anything else matches the path exactly. Every failure is the
// same 401 to the caller.
func Gate(a Authenticator, logger logging.Logger, bypass ...string) func(http.Handler) http.Handler {
	exact := make(map[string]struct{})
	var prefixes []string
	for _, p := range bypass {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			prefixes = append(prefixes, prefix+"/")
			continue
		}
		exact[p] = struct{}{}
	}

	bypassed := func(path string) bool {
		if _, ok := exact[path]; ok {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypassed(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			raw := common.BearerToken(r.Header.Get(common.AuthorizationHeaderName))
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			id, tok, err := a.Authenticate(r.Context(), raw)
			if err != nil {
				if isRejection(err) {
					logger.Debug(r.Context(), "request rejected", "path", r.URL.Path, "reason", err.Error())
				} else {
					logger.Error(r.Context(), "authentication failed on store error", "path", r.URL.Path, "error", err)
				}
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), id, tok, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isRejection tells ordinary credential failures apart from store errors.
func isRejection(err error) bool {
	for _, target := range []error{
		common.ErrorUnauthorized,
		common.ErrInvalidToken,
		common.ErrTokenExpired,
		common.ErrTokenRevoked,
		common.ErrUserNotFound,
		common.ErrUserDisabled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// noStore forbids caching of responses that carry tokens.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
