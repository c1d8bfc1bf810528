// Package users declares the read side of the account store that the token
// core depends on: credential lookup for login and identity load for the
// authentication gate.
package users

import (
	"context"

	"github.com/dmitrijs2005/campusgate/internal/server/models"
)

type Repository interface {
	// Create inserts a user and returns it with ID and CreatedAt populated.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByLogin returns the user with the given username or
	// common.ErrorNotFound.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetByID returns the user with the given id or common.ErrorNotFound.
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
