// Package refreshtokens declares the server-side repository contract for
// the one-active-token-per-user refresh token store.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/server/models"
)

// Repository stores at most one refresh token per user.
type Repository interface {
	// Upsert stores token as the user's only refresh token, replacing any
	// previous one.
	Upsert(ctx context.Context, token *models.RefreshToken) error

	// FindByUser returns the user's refresh token or common.ErrorNotFound.
	FindByUser(ctx context.Context, userID int64) (*models.RefreshToken, error)

	// Rotate replaces the user's token value, expiry and device metadata, but
	// only if the stored value still equals oldToken. It reports whether a
	// row was replaced; false means a concurrent rotation won.
	Rotate(ctx context.Context, userID int64, oldToken string, next *models.RefreshToken) (bool, error)

	// DeleteByUser removes every refresh token of the user. Deleting nothing
	// is not an error.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes tokens whose expiry is before now and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
