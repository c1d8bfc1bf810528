// Package blacklist stores the ids of revoked access tokens until the tokens
// themselves would have expired.
package blacklist

import (
	"context"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/server/models"
)

// Repository is the revocation store consulted on every authenticated request.
type Repository interface {
	// Add records the entry. It reports false when the token id was already
	// present, in which case the stored entry is left untouched.
	Add(ctx context.Context, entry *models.BlacklistEntry) (bool, error)

	// Exists reports whether tokenID has been revoked.
	Exists(ctx context.Context, tokenID string) (bool, error)

	// Find returns the entry for tokenID or common.ErrorNotFound.
	Find(ctx context.Context, tokenID string) (*models.BlacklistEntry, error)

	// DeleteExpired removes entries whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
